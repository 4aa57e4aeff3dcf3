// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"

	"firestige.xyz/pktcraft/internal/core"
)

const (
	udpHeaderLen    = 8
	tcpHeaderMinLen = 20
	icmpHeaderLen   = 8

	// Protocol numbers
	protocolICMP = 1
	protocolTCP  = 6
	protocolUDP  = 17
)

// decodeTransport decodes transport layer header (TCP/UDP/ICMP).
// Returns TransportHeader and remaining payload.
func decodeTransport(data []byte, protocol uint8) (core.TransportHeader, []byte, error) {
	switch protocol {
	case protocolTCP:
		return decodeTCP(data)
	case protocolUDP:
		return decodeUDP(data)
	case protocolICMP:
		return decodeICMP(data)
	default:
		// Raw IP payload
		return core.TransportHeader{Protocol: protocol}, data, nil
	}
}

// decodeUDP decodes UDP header.
func decodeUDP(data []byte) (core.TransportHeader, []byte, error) {
	if len(data) < udpHeaderLen {
		return core.TransportHeader{}, nil, core.ErrPacketTooShort
	}

	transport := core.TransportHeader{
		Protocol: protocolUDP,
		SrcPort:  binary.BigEndian.Uint16(data[0:2]),
		DstPort:  binary.BigEndian.Uint16(data[2:4]),
		Length:   binary.BigEndian.Uint16(data[4:6]), // Includes header and data
		Checksum: binary.BigEndian.Uint16(data[6:8]),
	}

	return transport, data[udpHeaderLen:], nil
}

// decodeTCP decodes TCP header.
func decodeTCP(data []byte) (core.TransportHeader, []byte, error) {
	if len(data) < tcpHeaderMinLen {
		return core.TransportHeader{}, nil, core.ErrPacketTooShort
	}

	transport := core.TransportHeader{
		Protocol: protocolTCP,
		SrcPort:  binary.BigEndian.Uint16(data[0:2]),
		DstPort:  binary.BigEndian.Uint16(data[2:4]),
		SeqNum:   binary.BigEndian.Uint32(data[4:8]),
		AckNum:   binary.BigEndian.Uint32(data[8:12]),
	}

	// Byte 12: | data offset (4) | reserved (3) | NS (1) |
	transport.DataOffset = data[12] >> 4
	transport.Reserved = (data[12] >> 1) & 0x07
	transport.TCPFlags = uint16(data[12]&0x01)<<8 | uint16(data[13])

	headerLen := int(transport.DataOffset) * 4
	if headerLen < tcpHeaderMinLen || len(data) < headerLen {
		return transport, nil, core.ErrPacketTooShort
	}

	transport.Window = binary.BigEndian.Uint16(data[14:16])
	transport.Checksum = binary.BigEndian.Uint16(data[16:18])
	transport.Urgent = binary.BigEndian.Uint16(data[18:20])
	if headerLen > tcpHeaderMinLen {
		transport.Options = data[tcpHeaderMinLen:headerLen]
	}

	return transport, data[headerLen:], nil
}

// decodeICMP decodes ICMP header.
func decodeICMP(data []byte) (core.TransportHeader, []byte, error) {
	if len(data) < icmpHeaderLen {
		return core.TransportHeader{}, nil, core.ErrPacketTooShort
	}

	transport := core.TransportHeader{
		Protocol:     protocolICMP,
		ICMPType:     data[0],
		ICMPCode:     data[1],
		Checksum:     binary.BigEndian.Uint16(data[2:4]),
		RestOfHeader: binary.BigEndian.Uint32(data[4:8]),
	}

	return transport, data[icmpHeaderLen:], nil
}
