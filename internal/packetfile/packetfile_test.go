package packetfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/pktcraft/internal/core"
)

const tcpDoc = `
label: syn-probe
protocol: tcp
ethernet:
  source: "aa.bb.cc.dd.ee.ff"
  destination: "ff:ff:ff:ff:ff:ff"
ipv4:
  source: 192.168.1.1
  destination: 127.0.0.1
  ttl: auto
  identification: "0x1234"
  flags:
    dont_fragment: true
  options: "NOP,EOL"
tcp:
  destination_port: 80
  sequence: 1000
  flags: {syn: true, ns: true}
  reserved: [true, false, false]
  options: ["MSS=1200", "WSCALE=2"]
  payload: "hex:68 65 6c 6c 6f"
`

func TestParseTCPDocument(t *testing.T) {
	doc, err := Parse([]byte(tcpDoc))
	require.NoError(t, err)
	assert.Equal(t, "syn-probe", doc.Label)

	spec, err := doc.Spec()
	require.NoError(t, err)
	assert.Equal(t, core.ProtocolTCP, spec.Protocol)
	assert.Equal(t, "aa.bb.cc.dd.ee.ff", spec.Ethernet.Addresses.Source)
	assert.Equal(t, "192.168.1.1", spec.IPv4.Addresses.Source)
	assert.Equal(t, "127.0.0.1", spec.IPv4.Addresses.Destination)
	assert.True(t, spec.IPv4.TTL.IsAuto())
	assert.Equal(t, "0x1234", spec.IPv4.Identification.Raw())
	assert.True(t, spec.IPv4.Flags.DontFragment)
	assert.Equal(t, []string{"NOP", "EOL"}, spec.IPv4.Options)

	assert.True(t, spec.TCP.SourcePort.IsAuto())
	assert.Equal(t, "80", spec.TCP.DestinationPort.Raw())
	assert.Equal(t, "1000", spec.TCP.Sequence.Raw())
	assert.True(t, spec.TCP.Flags.SYN && spec.TCP.Flags.NS)
	assert.False(t, spec.TCP.Flags.ACK)
	assert.Equal(t, [3]bool{true, false, false}, spec.TCP.Reserved)
	assert.Equal(t, []string{"MSS=1200", "WSCALE=2"}, spec.TCP.Options)
	assert.Equal(t, []byte("hello"), spec.TCP.Payload)
}

func TestParseJSONDocument(t *testing.T) {
	doc, err := Parse([]byte(`{
		"protocol": "UDP",
		"ipv4": {"source": "10.0.0.1", "destination": "10.0.0.2", "dscp": 46},
		"udp": {"source_port": 1234, "destination_port": "0x04d2"},
		"payload": "ping"
	}`))
	require.NoError(t, err)

	spec, err := doc.Spec()
	require.NoError(t, err)
	assert.Equal(t, core.ProtocolUDP, spec.Protocol)
	assert.Equal(t, "46", spec.IPv4.DSCP.Raw())
	assert.Equal(t, "1234", spec.UDP.SourcePort.Raw())
	assert.Equal(t, "0x04d2", spec.UDP.DestinationPort.Raw())
	assert.Equal(t, []byte("ping"), spec.UDP.Payload, "top-level payload fills the section")
}

func TestICMPDefaults(t *testing.T) {
	doc, err := Parse([]byte("protocol: icmp\n"))
	require.NoError(t, err)
	spec, err := doc.Spec()
	require.NoError(t, err)
	assert.Equal(t, core.ICMPEchoRequest, spec.ICMP.Type)
	assert.True(t, spec.ICMP.Code.IsAuto())
	assert.Nil(t, spec.ICMP.Payload, "missing payload keeps the default placeholder")

	doc, err = Parse([]byte("protocol: icmp\nicmp:\n  type: 3\n  code: 1\n  payload: \"\"\n"))
	require.NoError(t, err)
	spec, err = doc.Spec()
	require.NoError(t, err)
	assert.Equal(t, core.ICMPDestinationUnreachable, spec.ICMP.Type)
	assert.Equal(t, "1", spec.ICMP.Code.Raw())
	assert.NotNil(t, spec.ICMP.Payload)
	assert.Empty(t, spec.ICMP.Payload)
}

func TestIPOnlyPayload(t *testing.T) {
	doc, err := Parse([]byte("protocol: ip\npayload: \"hex:deadbeef\"\n"))
	require.NoError(t, err)
	spec, err := doc.Spec()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, spec.Payload)
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"unknown key":  "protocol: tcp\ntcp:\n  windw: 5\n",
		"bad hex":      "protocol: ip\npayload: \"hex:zz\"\n",
		"bool field":   "protocol: tcp\ntcp:\n  window: true\n",
		"empty":        "",
		"not yaml map": "- a\n- b\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestSpecErrors(t *testing.T) {
	doc, err := Parse([]byte("label: x\n"))
	require.NoError(t, err)
	_, err = doc.Spec()
	assert.Error(t, err)

	doc, err = Parse([]byte("protocol: sctp\n"))
	require.NoError(t, err)
	_, err = doc.Spec()
	var pe *core.UnsupportedProtocolError
	assert.True(t, errors.As(err, &pe))

	doc, err = Parse([]byte("protocol: icmp\nicmp:\n  type: bogus\n"))
	require.NoError(t, err)
	_, err = doc.Spec()
	var fe *core.FieldParseError
	assert.True(t, errors.As(err, &fe))
}

func TestLoadSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syn.yaml")
	require.NoError(t, os.WriteFile(path, []byte(tcpDoc), 0644))

	doc, spec, err := LoadSpec(path)
	require.NoError(t, err)
	assert.Equal(t, "syn-probe", doc.Label)
	assert.Equal(t, core.ProtocolTCP, spec.Protocol)

	_, _, err = LoadSpec(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
