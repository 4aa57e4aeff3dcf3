// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"
	"net/netip"

	"firestige.xyz/pktcraft/internal/core"
)

const ipv4HeaderMinLen = 20

// decodeIPv4 decodes IPv4 header.
// The payload is bounded by Total Length when it fits the buffer; an
// operator override that overstates it leaves the full buffer.
func decodeIPv4(data []byte) (core.IPHeader, []byte, error) {
	if len(data) < ipv4HeaderMinLen {
		return core.IPHeader{}, nil, core.ErrPacketTooShort
	}

	ip := core.IPHeader{
		Version: data[0] >> 4,
		IHL:     data[0] & 0x0F, // In 32-bit words
		DSCP:    data[1] >> 2,
		ECN:     data[1] & 0x03,
	}
	if ip.Version != 4 {
		return ip, nil, core.ErrUnsupportedProto
	}

	headerLen := int(ip.IHL) * 4
	if headerLen < ipv4HeaderMinLen || len(data) < headerLen {
		return ip, nil, core.ErrPacketTooShort
	}

	// Total Length, Identification (offsets 2, 4)
	ip.TotalLen = binary.BigEndian.Uint16(data[2:4])
	ip.ID = binary.BigEndian.Uint16(data[4:6])

	// Flags (3 bits) and Fragment Offset (13 bits) at offset 6
	flagsOffset := binary.BigEndian.Uint16(data[6:8])
	ip.Flags = uint8(flagsOffset >> 13)
	ip.FragmentOffset = flagsOffset & 0x1FFF

	ip.TTL = data[8]
	ip.Protocol = data[9]
	ip.Checksum = binary.BigEndian.Uint16(data[10:12])

	ip.SrcIP = netip.AddrFrom4([4]byte(data[12:16]))
	ip.DstIP = netip.AddrFrom4([4]byte(data[16:20]))

	if headerLen > ipv4HeaderMinLen {
		ip.Options = data[ipv4HeaderMinLen:headerLen]
	}

	payload := data[headerLen:]
	if end := int(ip.TotalLen); end >= headerLen && end <= len(data) {
		payload = data[headerLen:end]
	}
	return ip, payload, nil
}
