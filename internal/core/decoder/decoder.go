// Package decoder reads back frames produced by the pipeline and verifies
// their checksums.
package decoder

import (
	"encoding/binary"

	"firestige.xyz/pktcraft/internal/core"
	"firestige.xyz/pktcraft/internal/core/checksum"
)

// Decoder decodes built frames into structured format.
type Decoder interface {
	Decode(frame []byte) (core.DecodedFrame, error)
}

// StandardDecoder decodes Ethernet II / IPv4 / TCP|UDP|ICMP frames.
type StandardDecoder struct{}

// NewStandardDecoder creates a decoder.
func NewStandardDecoder() *StandardDecoder {
	return &StandardDecoder{}
}

// Decode implements Decoder. Transports other than TCP, UDP and ICMP are
// left in Payload undecoded.
func (d *StandardDecoder) Decode(frame []byte) (core.DecodedFrame, error) {
	var out core.DecodedFrame

	eth, rest, err := decodeEthernet(frame)
	if err != nil {
		return out, err
	}
	out.Ethernet = eth
	if eth.EtherType != core.EtherTypeIPv4 {
		return out, core.ErrUnsupportedProto
	}

	ip, ipPayload, err := decodeIPv4(rest)
	if err != nil {
		return out, err
	}
	out.IP = ip
	out.Checksums.IPv4 = checksum.Sum(rest[:int(ip.IHL)*4]) == 0

	transport, payload, err := decodeTransport(ipPayload, ip.Protocol)
	if err != nil {
		return out, err
	}
	out.Transport = transport
	out.Payload = payload
	out.Checksums.Transport = verifyTransport(ip, ipPayload)
	return out, nil
}

// Verify decodes frame and reports whether every checksum holds.
func Verify(frame []byte) (core.ChecksumStatus, error) {
	f, err := NewStandardDecoder().Decode(frame)
	if err != nil {
		return core.ChecksumStatus{}, err
	}
	return f.Checksums, nil
}

func verifyTransport(ip core.IPHeader, seg []byte) bool {
	switch ip.Protocol {
	case protocolTCP:
		return len(seg) >= tcpHeaderMinLen && checksum.Transport(ip.SrcIP, ip.DstIP, protocolTCP, seg) == 0
	case protocolUDP:
		if len(seg) < udpHeaderLen {
			return false
		}
		// Zero means the sender skipped the checksum.
		if binary.BigEndian.Uint16(seg[6:8]) == 0 {
			return true
		}
		return checksum.Transport(ip.SrcIP, ip.DstIP, protocolUDP, seg) == 0
	case protocolICMP:
		return len(seg) >= icmpHeaderLen && checksum.Sum(seg) == 0
	}
	return false
}
