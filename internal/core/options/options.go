// Package options maps symbolic IPv4 and TCP option names to wire records.
package options

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"firestige.xyz/pktcraft/internal/core"
)

// MaxLen is the largest option area an IPv4 or TCP header can carry.
const MaxLen = 40

// Family selects an option table.
type Family int

const (
	IPv4 Family = iota
	TCP
)

func (f Family) String() string {
	if f == TCP {
		return "tcp"
	}
	return "ipv4"
}

// Record is one encoded option.
type Record struct {
	Name  string
	Bytes []byte
}

// IPv4 option type octets (copy flag, class and number).
var ipv4Types = map[string]byte{
	"EOL":    0x00,
	"NOP":    0x01,
	"SEC":    0x82,
	"LSR":    0x83,
	"TS":     0x44,
	"ESEC":   0x85,
	"CIPSO":  0x86,
	"RR":     0x07,
	"SID":    0x88,
	"SSR":    0x89,
	"ZSU":    0x0a,
	"MTUP":   0x0b,
	"MTUR":   0x0c,
	"FINN":   0xcd,
	"VISA":   0x8e,
	"ENCODE": 0x0f,
	"IMITD":  0x90,
	"EIP":    0x91,
	"TR":     0x52,
	"ADDEXT": 0x93,
	"RTRALT": 0x94,
	"SDB":    0x95,
	"DPS":    0x97,
	"UMP":    0x98,
	"QS":     0x19,
	"EXP":    0x1e,
}

// tcpEncoder builds a TCP option record from an optional "=value" suffix.
// hasValue is false when the token carried no suffix.
type tcpEncoder func(value string, hasValue bool) ([]byte, error)

var errNoValue = fmt.Errorf("option takes no value")

func fixed(b ...byte) tcpEncoder {
	return func(_ string, hasValue bool) ([]byte, error) {
		if hasValue {
			return nil, errNoValue
		}
		return append([]byte(nil), b...), nil
	}
}

var tcpKinds = map[string]tcpEncoder{
	"EOL":            fixed(0),
	"NOP":            fixed(1),
	"SACK_PERMITTED": fixed(4, 2),
	"MSS": func(v string, has bool) ([]byte, error) {
		mss := uint64(1460)
		if has {
			n, err := strconv.ParseUint(v, 0, 16)
			if err != nil {
				return nil, err
			}
			mss = n
		}
		b := []byte{2, 4, 0, 0}
		binary.BigEndian.PutUint16(b[2:], uint16(mss))
		return b, nil
	},
	"WSCALE": func(v string, has bool) ([]byte, error) {
		shift := uint64(7)
		if has {
			n, err := strconv.ParseUint(v, 0, 8)
			if err != nil {
				return nil, err
			}
			shift = n
		}
		return []byte{3, 3, byte(shift)}, nil
	},
	"SACK": func(v string, has bool) ([]byte, error) {
		blocks := [][2]uint32{{0, 0}}
		if has {
			blocks = blocks[:0]
			for _, blk := range strings.Split(v, "/") {
				l, r, ok := strings.Cut(blk, "-")
				if !ok {
					return nil, fmt.Errorf("sack block %q: want left-right", blk)
				}
				left, err := strconv.ParseUint(strings.TrimSpace(l), 0, 32)
				if err != nil {
					return nil, err
				}
				right, err := strconv.ParseUint(strings.TrimSpace(r), 0, 32)
				if err != nil {
					return nil, err
				}
				blocks = append(blocks, [2]uint32{uint32(left), uint32(right)})
			}
		}
		b := make([]byte, 2, 2+8*len(blocks))
		b[0], b[1] = 5, byte(2+8*len(blocks))
		for _, blk := range blocks {
			b = binary.BigEndian.AppendUint32(b, blk[0])
			b = binary.BigEndian.AppendUint32(b, blk[1])
		}
		return b, nil
	},
	"TIMESTAMPS": func(v string, has bool) ([]byte, error) {
		var tsval, tsecr uint64
		if has {
			a, e, ok := strings.Cut(v, ":")
			if !ok {
				return nil, fmt.Errorf("timestamps %q: want tsval:tsecr", v)
			}
			var err error
			if tsval, err = strconv.ParseUint(strings.TrimSpace(a), 0, 32); err != nil {
				return nil, err
			}
			if tsecr, err = strconv.ParseUint(strings.TrimSpace(e), 0, 32); err != nil {
				return nil, err
			}
		}
		b := []byte{8, 10}
		b = binary.BigEndian.AppendUint32(b, uint32(tsval))
		b = binary.BigEndian.AppendUint32(b, uint32(tsecr))
		return b, nil
	},
}

// Split breaks a comma separated option list into tokens.
func Split(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// Names returns the sorted option names of a family.
func Names(f Family) []string {
	var names []string
	if f == TCP {
		for n := range tcpKinds {
			names = append(names, n)
		}
	} else {
		for n := range ipv4Types {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// EncodeIPv4 encodes IPv4 option names in order, one type octet each.
// Blank tokens are skipped.
func EncodeIPv4(names []string) ([]Record, error) {
	var recs []Record
	for _, tok := range names {
		name := strings.ToUpper(strings.TrimSpace(tok))
		if name == "" {
			continue
		}
		t, ok := ipv4Types[name]
		if !ok {
			return nil, &core.UnsupportedOptionError{Token: strings.TrimSpace(tok)}
		}
		recs = append(recs, Record{Name: name, Bytes: []byte{t}})
	}
	return recs, nil
}

// EncodeTCP encodes TCP option tokens in order. A token is NAME or
// NAME=value for MSS, WSCALE, SACK and TIMESTAMPS.
func EncodeTCP(names []string) ([]Record, error) {
	var recs []Record
	for _, tok := range names {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		name, value, hasValue := strings.Cut(tok, "=")
		name = strings.ToUpper(strings.TrimSpace(name))
		enc, ok := tcpKinds[name]
		if !ok {
			return nil, &core.UnsupportedOptionError{Token: tok}
		}
		b, err := enc(strings.TrimSpace(value), hasValue)
		if err != nil {
			return nil, &core.UnsupportedOptionError{Token: tok}
		}
		recs = append(recs, Record{Name: name, Bytes: b})
	}
	return recs, nil
}

// Encode dispatches on family.
func Encode(f Family, names []string) ([]Record, error) {
	if f == TCP {
		return EncodeTCP(names)
	}
	return EncodeIPv4(names)
}

// Concat joins records in order.
func Concat(recs []Record) []byte {
	var out []byte
	for _, r := range recs {
		out = append(out, r.Bytes...)
	}
	return out
}

// Pad zero-fills b up to the next 32-bit boundary.
func Pad(b []byte) []byte {
	if rem := len(b) % 4; rem != 0 {
		b = append(b, make([]byte, 4-rem)...)
	}
	return b
}

// Area encodes, concatenates and pads an option list, rejecting areas
// longer than MaxLen. field names the header slot for errors.
func Area(f Family, field string, names []string) ([]byte, error) {
	recs, err := Encode(f, names)
	if err != nil {
		return nil, err
	}
	area := Pad(Concat(recs))
	if len(area) > MaxLen {
		return nil, &core.FieldParseError{
			Field: field,
			Raw:   strings.Join(names, ","),
			Err:   core.ErrOptionsTooLong,
		}
	}
	return area, nil
}
