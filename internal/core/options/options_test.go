package options

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/pktcraft/internal/core"
)

func TestEncodeIPv4NopEol(t *testing.T) {
	recs, err := EncodeIPv4(Split("NOP,EOL"))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, []byte{0x01}, recs[0].Bytes)
	assert.Equal(t, []byte{0x00}, recs[1].Bytes)
	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x00}, Pad(Concat(recs)))
}

func TestEncodeIPv4AllNamesKnown(t *testing.T) {
	names := []string{"ADDEXT", "CIPSO", "DPS", "EIP", "ENCODE", "EOL", "ESEC", "EXP", "FINN", "IMITD",
		"LSR", "MTUP", "MTUR", "NOP", "QS", "RR", "RTRALT", "SDB", "SEC", "SID", "SSR", "TR", "TS",
		"UMP", "VISA", "ZSU"}
	assert.Equal(t, names, Names(IPv4))

	recs, err := EncodeIPv4(names)
	require.NoError(t, err)
	seen := map[byte]string{}
	for _, r := range recs {
		require.Len(t, r.Bytes, 1)
		if prev, dup := seen[r.Bytes[0]]; dup {
			t.Errorf("%s and %s share type %#x", prev, r.Name, r.Bytes[0])
		}
		seen[r.Bytes[0]] = r.Name
	}
}

// Type octets carry the copy flag and class along with the number.
func TestEncodeIPv4FullTypeOctet(t *testing.T) {
	tests := []struct {
		name   string
		octet  byte
		copied bool
		class  byte
		number byte
	}{
		{"SEC", 0x82, true, 0, 2},
		{"LSR", 0x83, true, 0, 3},
		{"TS", 0x44, false, 2, 4},
		{"RR", 0x07, false, 0, 7},
		{"SSR", 0x89, true, 0, 9},
	}
	for _, tt := range tests {
		recs, err := EncodeIPv4([]string{tt.name})
		require.NoError(t, err)
		b := recs[0].Bytes[0]
		assert.Equal(t, tt.octet, b, tt.name)
		assert.Equal(t, tt.copied, b&0x80 != 0, tt.name)
		assert.Equal(t, tt.class, b>>5&0x03, tt.name)
		assert.Equal(t, tt.number, b&0x1f, tt.name)
	}
}

func TestEncodeIPv4OrderAndCase(t *testing.T) {
	recs, err := EncodeIPv4([]string{" rr", "TS ", "", "nop"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x07, 0x44, 0x01}, Concat(recs))
}

func TestEncodeUnknownToken(t *testing.T) {
	_, err := EncodeIPv4([]string{"NOP", "BOGUS"})
	var oe *core.UnsupportedOptionError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, "BOGUS", oe.Token)

	// MSS is a TCP option only.
	_, err = EncodeIPv4([]string{"MSS"})
	assert.True(t, errors.As(err, &oe))
}

func TestEncodeTCPDefaults(t *testing.T) {
	tests := []struct {
		token    string
		expected []byte
	}{
		{"EOL", []byte{0}},
		{"NOP", []byte{1}},
		{"MSS", []byte{2, 4, 0x05, 0xb4}},
		{"WSCALE", []byte{3, 3, 7}},
		{"SACK_PERMITTED", []byte{4, 2}},
		{"SACK", []byte{5, 10, 0, 0, 0, 0, 0, 0, 0, 0}},
		{"TIMESTAMPS", []byte{8, 10, 0, 0, 0, 0, 0, 0, 0, 0}},
	}
	for _, tt := range tests {
		recs, err := EncodeTCP([]string{tt.token})
		require.NoError(t, err, tt.token)
		assert.Equal(t, tt.expected, recs[0].Bytes, tt.token)
	}
	assert.Len(t, Names(TCP), 7)
}

func TestEncodeTCPValues(t *testing.T) {
	recs, err := EncodeTCP([]string{"MSS=1200", "WSCALE=2", "SACK=1-2/0x10-0x20", "TIMESTAMPS=7:9"})
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 4, 0x04, 0xb0}, recs[0].Bytes)
	assert.Equal(t, []byte{3, 3, 2}, recs[1].Bytes)
	assert.Equal(t, []byte{5, 18, 0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 0x10, 0, 0, 0, 0x20}, recs[2].Bytes)
	assert.Equal(t, []byte{8, 10, 0, 0, 0, 7, 0, 0, 0, 9}, recs[3].Bytes)
}

func TestEncodeTCPBadValues(t *testing.T) {
	for _, tok := range []string{"NOP=1", "MSS=70000", "WSCALE=x", "SACK=5", "TIMESTAMPS=1"} {
		_, err := EncodeTCP([]string{tok})
		var oe *core.UnsupportedOptionError
		if assert.True(t, errors.As(err, &oe), tok) {
			assert.Equal(t, tok, oe.Token)
		}
	}
}

func TestAreaTooLong(t *testing.T) {
	names := make([]string, 41)
	for i := range names {
		names[i] = "NOP"
	}
	_, err := Area(IPv4, "ipv4.options", names)
	var fe *core.FieldParseError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "ipv4.options", fe.Field)
	assert.True(t, errors.Is(err, core.ErrOptionsTooLong))

	area, err := Area(IPv4, "ipv4.options", names[:40])
	require.NoError(t, err)
	assert.Len(t, area, 40)
}

func TestSplit(t *testing.T) {
	assert.Nil(t, Split("  "))
	assert.Equal(t, []string{"NOP", " EOL", ""}, Split("NOP, EOL,"))
}
