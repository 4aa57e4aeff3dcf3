package packetfile

import (
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"firestige.xyz/pktcraft/internal/core"
	"firestige.xyz/pktcraft/internal/core/options"
)

// Payload is packet data. In a document it is text, or hex after a "hex:"
// prefix. A missing payload stays nil.
type Payload []byte

const hexPrefix = "hex:"

var (
	fieldType   = reflect.TypeOf(core.Field{})
	payloadType = reflect.TypeOf(Payload(nil))
)

// Parse decodes a YAML or JSON document. Unknown keys are rejected.
func Parse(data []byte) (*Document, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse packet document: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("packet document is empty")
	}
	return Decode(raw)
}

// Decode decodes an already unmarshalled document, e.g. the params of a
// control socket request.
func Decode(raw map[string]any) (*Document, error) {
	var doc Document
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			fieldHook,
			payloadHook,
			optionsHook,
		),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &doc,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid packet document: %w", err)
	}
	return &doc, nil
}

// LoadRaw reads a document file without decoding it, e.g. to forward it
// over the control socket.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read packet document %s: %w", path, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse packet document: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("packet document is empty")
	}
	return raw, nil
}

// Load reads and parses a document file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read packet document %s: %w", path, err)
	}
	return Parse(data)
}

// LoadSpec reads a document file and converts it to a build spec.
func LoadSpec(path string) (*Document, core.FullPacketSpec, error) {
	doc, err := Load(path)
	if err != nil {
		return nil, core.FullPacketSpec{}, err
	}
	spec, err := doc.Spec()
	if err != nil {
		return nil, core.FullPacketSpec{}, err
	}
	return doc, spec, nil
}

// fieldHook turns scalars into core.Field values.
func fieldHook(from, to reflect.Type, data any) (any, error) {
	if to != fieldType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return core.Override(v), nil
	case int:
		if v < 0 {
			return core.Override(strconv.Itoa(v)), nil
		}
		return core.Value(uint64(v)), nil
	case int64:
		if v < 0 {
			return core.Override(strconv.FormatInt(v, 10)), nil
		}
		return core.Value(uint64(v)), nil
	case uint64:
		return core.Value(v), nil
	case float64:
		if v >= 0 && v == math.Trunc(v) && v <= math.MaxUint32 {
			return core.Value(uint64(v)), nil
		}
		return core.Override(strconv.FormatFloat(v, 'g', -1, 64)), nil
	}
	return nil, fmt.Errorf("expected a number or string, got %s", from)
}

// payloadHook decodes "hex:" payloads.
func payloadHook(from, to reflect.Type, data any) (any, error) {
	if to != payloadType || from.Kind() != reflect.String {
		return data, nil
	}
	s := data.(string)
	if rest, ok := strings.CutPrefix(s, hexPrefix); ok {
		clean := strings.NewReplacer(" ", "", ":", "", "\n", "").Replace(rest)
		b, err := hex.DecodeString(clean)
		if err != nil {
			return nil, fmt.Errorf("payload: %w", err)
		}
		return Payload(b), nil
	}
	if s == "" {
		return Payload{}, nil
	}
	return Payload(s), nil
}

// optionsHook accepts "NOP,EOL" where a list is expected.
func optionsHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf([]string(nil)) {
		return data, nil
	}
	return options.Split(data.(string)), nil
}
