package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/pktcraft/internal/config"
	"firestige.xyz/pktcraft/internal/core"
	"firestige.xyz/pktcraft/internal/core/decoder"
	"firestige.xyz/pktcraft/internal/core/encoder"
	"firestige.xyz/pktcraft/internal/metrics"
)

// mockTransmitter records frames and can be told to fail.
type mockTransmitter struct {
	mu     sync.Mutex
	frames [][]byte
	fail   bool
	closed bool
}

func (m *mockTransmitter) Send(_ context.Context, frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("no carrier")
	}
	m.frames = append(m.frames, append([]byte(nil), frame...))
	return nil
}

func (m *mockTransmitter) Name() string { return "mock" }

func (m *mockTransmitter) Close() error {
	m.closed = true
	return nil
}

func (m *mockTransmitter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.frames)
}

func baseSpec(p core.Protocol) core.FullPacketSpec {
	return core.FullPacketSpec{
		Protocol: p,
		Ethernet: core.EthernetSpec{Addresses: core.AddressPair{Source: "aa:bb:cc:dd:ee:ff", Destination: "11:22:33:44:55:66"}},
		IPv4:     core.IPv4Spec{Addresses: core.AddressPair{Source: "127.0.0.1", Destination: "127.0.0.1"}},
	}
}

func decode(t *testing.T, frame []byte) gopacket.Packet {
	t.Helper()
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default)
	require.NotNil(t, pkt.Layer(layers.LayerTypeEthernet))
	require.NotNil(t, pkt.Layer(layers.LayerTypeIPv4))
	return pkt
}

func TestPipelineUDPLoopback(t *testing.T) {
	spec := baseSpec(core.ProtocolUDP)
	spec.UDP = core.UDPSpec{SourcePort: core.Value(1234), DestinationPort: core.Value(1234)}

	pkt, err := New(Options{}).Build(spec)
	require.NoError(t, err)
	assert.Len(t, pkt.Segment, 8)
	assert.Len(t, pkt.Datagram, 28)
	assert.Len(t, pkt.Frame, 42)

	p := decode(t, pkt.Frame)
	udp, ok := p.Layer(layers.LayerTypeUDP).(*layers.UDP)
	require.True(t, ok)
	assert.Equal(t, layers.UDPPort(1234), udp.SrcPort)
	assert.Equal(t, layers.UDPPort(1234), udp.DstPort)
	assert.Equal(t, uint16(8), udp.Length)

	status, err := decoder.Verify(pkt.Frame)
	require.NoError(t, err)
	assert.True(t, status.IPv4)
	assert.True(t, status.Transport)
}

func TestPipelineTCPSyn(t *testing.T) {
	spec := baseSpec(core.ProtocolTCP)
	spec.IPv4.Addresses.Source = "192.168.1.1"
	spec.TCP = core.TCPSpec{DestinationPort: core.Value(80), Flags: core.TCPFlags{SYN: true}}

	pl := NewBuilder().WithPorts(encoder.FixedPort(50000)).Build()
	pkt, err := pl.Build(spec)
	require.NoError(t, err)

	p := decode(t, pkt.Frame)
	tcp, ok := p.Layer(layers.LayerTypeTCP).(*layers.TCP)
	require.True(t, ok)
	assert.Equal(t, layers.TCPPort(50000), tcp.SrcPort)
	assert.Equal(t, layers.TCPPort(80), tcp.DstPort)
	assert.Zero(t, tcp.Seq)
	assert.Zero(t, tcp.Ack)
	assert.Equal(t, uint8(5), tcp.DataOffset)
	assert.True(t, tcp.SYN)
	assert.False(t, tcp.ACK)
	assert.Equal(t, byte(0x02), pkt.Segment[13])

	ip := p.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	assert.Equal(t, layers.IPProtocolTCP, ip.Protocol)
	assert.Equal(t, uint8(64), ip.TTL)

	status, err := decoder.Verify(pkt.Frame)
	require.NoError(t, err)
	assert.True(t, status.Transport)
}

func TestPipelineIPv4Options(t *testing.T) {
	spec := baseSpec(core.ProtocolIP)
	spec.IPv4.Options = []string{"NOP", "EOL"}

	pkt, err := New(Options{}).Build(spec)
	require.NoError(t, err)
	require.Len(t, pkt.Datagram, 24)
	assert.Equal(t, byte(0x46), pkt.Datagram[0], "version 4, IHL 6")
	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x00}, pkt.Datagram[20:24])
}

func TestPipelineEthernetBroadcast(t *testing.T) {
	spec := baseSpec(core.ProtocolIP)
	spec.Ethernet.Addresses.Destination = "FF:FF:FF:FF:FF:FF"

	frame, err := New(Options{}).Run(spec)
	require.NoError(t, err)
	assert.Len(t, frame, 34)
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, frame[0:6])
	assert.Equal(t, []byte{0x08, 0x00}, frame[12:14])
	assert.Equal(t, byte(0), frame[14+9], "protocol ip carries next protocol 0")
}

func TestPipelineICMPEchoRequest(t *testing.T) {
	spec := baseSpec(core.ProtocolICMP)
	spec.ICMP = core.ICMPSpec{Type: core.ICMPEchoRequest}

	pkt, err := New(Options{}).Build(spec)
	require.NoError(t, err)

	p := decode(t, pkt.Frame)
	icmp, ok := p.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4)
	require.True(t, ok)
	assert.Equal(t, uint8(layers.ICMPv4TypeEchoRequest), icmp.TypeCode.Type())
	assert.Equal(t, uint8(8), icmp.TypeCode.Code())
	assert.Equal(t, []byte(core.DefaultICMPPayload), icmp.Payload)

	status, err := decoder.Verify(pkt.Frame)
	require.NoError(t, err)
	assert.True(t, status.Transport)
}

func TestPipelineFailFast(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*core.FullPacketSpec)
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unsupported protocol",
			mutate: func(s *core.FullPacketSpec) { s.Protocol = "sctp" },
			check: func(t *testing.T, err error) {
				var pe *core.UnsupportedProtocolError
				assert.ErrorAs(t, err, &pe)
			},
		},
		{
			name:   "bad mac",
			mutate: func(s *core.FullPacketSpec) { s.Ethernet.Addresses.Source = "zz:zz" },
			check: func(t *testing.T, err error) {
				var ae *core.AddressParseError
				require.ErrorAs(t, err, &ae)
				assert.Equal(t, "ethernet.source", ae.Which)
			},
		},
		{
			name:   "bad ip",
			mutate: func(s *core.FullPacketSpec) { s.IPv4.Addresses.Destination = "10.0.0" },
			check: func(t *testing.T, err error) {
				var ae *core.AddressParseError
				require.ErrorAs(t, err, &ae)
				assert.Equal(t, "ipv4.destination", ae.Which)
			},
		},
		{
			name:   "bad tcp field",
			mutate: func(s *core.FullPacketSpec) { s.TCP.Window = core.Override("70000") },
			check: func(t *testing.T, err error) {
				var fe *core.FieldParseError
				require.ErrorAs(t, err, &fe)
				assert.Equal(t, "tcp.window", fe.Field)
			},
		},
		{
			name:   "bad ipv4 field after a good segment",
			mutate: func(s *core.FullPacketSpec) { s.IPv4.TTL = core.Override("300") },
			check: func(t *testing.T, err error) {
				var fe *core.FieldParseError
				require.ErrorAs(t, err, &fe)
				assert.Equal(t, "ipv4.ttl", fe.Field)
			},
		},
		{
			name:   "unknown option",
			mutate: func(s *core.FullPacketSpec) { s.TCP.Options = []string{"FOO"} },
			check: func(t *testing.T, err error) {
				var oe *core.UnsupportedOptionError
				assert.ErrorAs(t, err, &oe)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := baseSpec(core.ProtocolTCP)
			spec.TCP.DestinationPort = core.Value(80)
			tt.mutate(&spec)

			pl := New(Options{})
			pkt, err := pl.Build(spec)
			require.Error(t, err)
			assert.Nil(t, pkt)
			tt.check(t, err)
			assert.Equal(t, uint64(1), pl.Metrics().Snapshot().Failed)
			assert.True(t, core.IsInputError(err))

			frame, err := pl.Run(spec)
			assert.Error(t, err)
			assert.Nil(t, frame)
		})
	}
}

func TestPipelineVerifyReportsOverriddenChecksum(t *testing.T) {
	spec := baseSpec(core.ProtocolUDP)
	spec.UDP = core.UDPSpec{SourcePort: core.Value(53), DestinationPort: core.Value(53), Checksum: core.Override("0x1234")}

	before := testutil.ToFloat64(metrics.ChecksumMismatchTotal.WithLabelValues("udp"))
	pl := New(Options{Verify: true})
	pkt, err := pl.Build(spec)
	require.NoError(t, err, "a bad checksum is reported, not rejected")
	require.NotNil(t, pkt)

	stats := pl.Metrics().Snapshot()
	assert.Equal(t, uint64(1), stats.Verified)
	assert.Equal(t, uint64(1), stats.ChecksumMismatches)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ChecksumMismatchTotal.WithLabelValues("udp")))
}

func TestPipelineVerifyCleanFrame(t *testing.T) {
	spec := baseSpec(core.ProtocolICMP)
	pl := NewBuilder().FromConfig(config.DefaultsConfig{DSCP: 46, Verify: true}).Build()

	pkt, err := pl.Build(spec)
	require.NoError(t, err)
	assert.Equal(t, byte(46<<2), pkt.Datagram[1])
	assert.Zero(t, pl.Metrics().Snapshot().ChecksumMismatches)
}

func TestPipelineConcurrentBuilds(t *testing.T) {
	pl := New(Options{})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(port uint64) {
			defer wg.Done()
			spec := baseSpec(core.ProtocolUDP)
			spec.UDP = core.UDPSpec{SourcePort: core.Value(port), DestinationPort: core.Value(port)}
			pkt, err := pl.Build(spec)
			if err != nil {
				t.Error(err)
				return
			}
			if got := uint64(pkt.Segment[0])<<8 | uint64(pkt.Segment[1]); got != port {
				t.Errorf("source port %d, expected %d", got, port)
			}
		}(uint64(1000 + i))
	}
	wg.Wait()
	assert.Equal(t, uint64(16), pl.Metrics().Snapshot().Built)
}

func TestRunnerSend(t *testing.T) {
	tx := &mockTransmitter{}
	r := NewRunner(New(Options{}), tx)
	assert.Equal(t, "mock", r.Driver())

	spec := baseSpec(core.ProtocolICMP)
	pkt, err := r.Send(context.Background(), spec)
	require.NoError(t, err)
	require.Equal(t, 1, tx.count())
	assert.Equal(t, pkt.Frame, tx.frames[0])

	// Build failures never reach the transmitter.
	spec.Protocol = "gre"
	_, err = r.Send(context.Background(), spec)
	require.Error(t, err)
	assert.Equal(t, 1, tx.count())

	tx.fail = true
	spec.Protocol = core.ProtocolICMP
	pkt, err = r.Send(context.Background(), spec)
	require.Error(t, err)
	assert.NotNil(t, pkt)

	stats := r.Pipeline().Metrics().Snapshot()
	assert.Equal(t, uint64(1), stats.Sent)
	assert.Equal(t, uint64(1), stats.SendErrors)

	require.NoError(t, r.Close())
	assert.True(t, tx.closed)
}

func TestRunnerReplay(t *testing.T) {
	tx := &mockTransmitter{}
	r := NewRunner(New(Options{}), tx)

	frames := [][]byte{{1}, {2}, {3}}
	n, err := r.Replay(context.Background(), frames, config.ReplayConfig{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, frames, tx.frames)
	assert.Equal(t, uint64(3), r.Pipeline().Metrics().Snapshot().Sent)
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.Built.Add(3)
	m.SendErrors.Add(1)
	m.Reset()
	assert.Equal(t, Stats{}, m.Snapshot())
}
