// Package pipeline composes the header encoders into a complete Ethernet
// frame and optionally hands it to a transmitter.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"firestige.xyz/pktcraft/internal/core"
	"firestige.xyz/pktcraft/internal/core/decoder"
	"firestige.xyz/pktcraft/internal/core/encoder"
	"firestige.xyz/pktcraft/internal/metrics"
)

// Options configures a Pipeline.
type Options struct {
	Defaults encoder.Defaults
	Verify   bool            // Decode each built frame and report checksum mismatches
	Decoder  decoder.Decoder // nil means the standard decoder
}

// Packet holds every stage of one build. Segment is the IPv4 payload:
// the transport segment, or the raw payload for protocol ip.
type Packet struct {
	Protocol core.Protocol
	Segment  []byte
	Datagram []byte
	Frame    []byte
}

// Pipeline turns a FullPacketSpec into a frame. It holds no per-build state
// and is safe for concurrent use.
type Pipeline struct {
	opts    Options
	decoder decoder.Decoder
	metrics *Metrics
}

// New creates a new pipeline.
func New(opts Options) *Pipeline {
	d := opts.Decoder
	if d == nil {
		d = decoder.NewStandardDecoder()
	}
	return &Pipeline{
		opts:    opts,
		decoder: d,
		metrics: NewMetrics(),
	}
}

// Metrics returns the pipeline's counters.
func (p *Pipeline) Metrics() *Metrics {
	return p.metrics
}

// Run builds spec and returns only the frame.
func (p *Pipeline) Run(spec core.FullPacketSpec) ([]byte, error) {
	pkt, err := p.Build(spec)
	if err != nil {
		return nil, err
	}
	return pkt.Frame, nil
}

// Build encodes spec. The first failing stage aborts the build and no
// partial output is returned.
func (p *Pipeline) Build(spec core.FullPacketSpec) (*Packet, error) {
	start := time.Now()
	label := protocolLabel(spec.Protocol)

	pkt, err := p.build(spec)
	if err != nil {
		p.metrics.Failed.Add(1)
		metrics.BuildsTotal.WithLabelValues(label, "error").Inc()
		metrics.BuildErrorsTotal.WithLabelValues(label, errorKind(err)).Inc()
		slog.Debug("build failed", "protocol", spec.Protocol, "error", err)
		return nil, err
	}

	p.metrics.Built.Add(1)
	metrics.BuildsTotal.WithLabelValues(label, "ok").Inc()
	metrics.BuildLatencySeconds.WithLabelValues(label).Observe(time.Since(start).Seconds())
	metrics.FrameBytes.WithLabelValues(label).Observe(float64(len(pkt.Frame)))
	slog.Debug("frame built",
		"protocol", spec.Protocol,
		"segment_len", len(pkt.Segment),
		"datagram_len", len(pkt.Datagram),
		"frame_len", len(pkt.Frame),
	)

	if p.opts.Verify {
		p.verify(pkt)
	}
	return pkt, nil
}

func (p *Pipeline) build(spec core.FullPacketSpec) (*Packet, error) {
	next, err := spec.Protocol.Number()
	if err != nil {
		return nil, err
	}

	// Addresses are checked before any header is encoded.
	macSrc, macDst, err := core.ParseMACPair("ethernet", spec.Ethernet.Addresses)
	if err != nil {
		return nil, err
	}
	ipSrc, ipDst, err := core.ParseIPv4Pair("ipv4", spec.IPv4.Addresses)
	if err != nil {
		return nil, err
	}

	var segment []byte
	switch spec.Protocol {
	case core.ProtocolIP:
		segment = spec.Payload
	case core.ProtocolTCP:
		segment, err = encoder.BuildTCP(spec.TCP, ipSrc, ipDst, p.opts.Defaults)
	case core.ProtocolUDP:
		segment, err = encoder.BuildUDP(spec.UDP, ipSrc, ipDst)
	case core.ProtocolICMP:
		segment, err = encoder.BuildICMP(spec.ICMP)
	}
	if err != nil {
		return nil, err
	}

	datagram, err := encoder.BuildIPv4(spec.IPv4, next, segment, p.opts.Defaults)
	if err != nil {
		return nil, err
	}

	return &Packet{
		Protocol: spec.Protocol,
		Segment:  segment,
		Datagram: datagram,
		Frame:    encoder.FrameMAC(macDst, macSrc, core.EtherTypeIPv4, datagram),
	}, nil
}

// verify decodes the frame and logs every layer whose checksum fails.
// Mismatches are expected when a checksum was overridden.
func (p *Pipeline) verify(pkt *Packet) {
	decoded, err := p.decoder.Decode(pkt.Frame)
	if err != nil {
		slog.Warn("built frame does not decode", "protocol", pkt.Protocol, "error", err)
		return
	}
	p.metrics.Verified.Add(1)
	if !decoded.Checksums.IPv4 {
		p.metrics.ChecksumMismatches.Add(1)
		metrics.ChecksumMismatchTotal.WithLabelValues("ipv4").Inc()
		slog.Warn("ipv4 checksum does not verify", "checksum", fmt.Sprintf("%#04x", decoded.IP.Checksum))
	}
	if pkt.Protocol != core.ProtocolIP && !decoded.Checksums.Transport {
		p.metrics.ChecksumMismatches.Add(1)
		metrics.ChecksumMismatchTotal.WithLabelValues(string(pkt.Protocol)).Inc()
		slog.Warn("transport checksum does not verify",
			"protocol", pkt.Protocol,
			"checksum", fmt.Sprintf("%#04x", decoded.Transport.Checksum),
		)
	}
}

func protocolLabel(p core.Protocol) string {
	if _, err := p.Number(); err != nil {
		return "unknown"
	}
	return string(p)
}

// errorKind classifies err for the build error counter.
func errorKind(err error) string {
	var (
		fe *core.FieldParseError
		ae *core.AddressParseError
		oe *core.UnsupportedOptionError
		pe *core.UnsupportedProtocolError
	)
	switch {
	case errors.Is(err, core.ErrOptionsTooLong):
		return "options_too_long"
	case errors.Is(err, core.ErrMissingField):
		return "missing_field"
	case errors.As(err, &oe):
		return "unsupported_option"
	case errors.As(err, &pe):
		return "unsupported_protocol"
	case errors.As(err, &ae):
		return "address"
	case errors.As(err, &fe):
		return "field"
	}
	return "other"
}
