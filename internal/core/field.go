package core

import (
	"strconv"
	"strings"
)

// Field is a header slot that is either computed (Auto) or set by the
// operator (Override). The zero value is Auto.
type Field struct {
	raw      string
	override bool
}

// Auto returns a field resolved to its protocol default.
func Auto() Field { return Field{} }

// Override returns a field carrying operator text. An empty or "auto"
// string is the same as Auto.
func Override(raw string) Field {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "auto") {
		return Field{}
	}
	return Field{raw: raw, override: true}
}

// Value returns an override for a numeric value.
func Value(v uint64) Field { return Field{raw: strconv.FormatUint(v, 10), override: true} }

// IsAuto reports whether the field resolves to its default.
func (f Field) IsAuto() bool { return !f.override }

// Raw returns the override text, or "" for Auto.
func (f Field) Raw() string { return f.raw }

func (f Field) String() string {
	if !f.override {
		return "auto"
	}
	return f.raw
}

// Unsigned is the set of wire field carriers.
type Unsigned interface {
	~uint8 | ~uint16 | ~uint32
}

// Resolve returns auto() for an Auto field or the parsed override. The
// override is decimal unless prefixed 0x, 0o or 0b, and must fit in bits.
// A leading zero is still decimal: "065" is 65. auto may be nil when the field has no default, in which case
// an Auto field yields a FieldParseError wrapping ErrMissingField.
func Resolve[T Unsigned](name string, f Field, bits int, auto func() T) (T, error) {
	if f.IsAuto() {
		if auto == nil {
			return 0, &FieldParseError{Field: name, Err: ErrMissingField}
		}
		return auto(), nil
	}
	v, err := strconv.ParseUint(f.raw, literalBase(f.raw), bits)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok {
			err = ne.Err
		}
		return 0, &FieldParseError{Field: name, Raw: f.raw, Err: err}
	}
	return T(v), nil
}

// literalBase returns 0 (prefix-detected) for 0x, 0o and 0b literals and 10
// otherwise.
func literalBase(s string) int {
	if len(s) > 1 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X', 'o', 'O', 'b', 'B':
			return 0
		}
	}
	return 10
}

// Const returns an auto function yielding v.
func Const[T Unsigned](v T) func() T {
	return func() T { return v }
}
