// Package core defines decoded frame views used for verification.
package core

import "net/netip"

// EthernetHeader represents L2 Ethernet frame header.
type EthernetHeader struct {
	SrcMAC    [6]byte
	DstMAC    [6]byte
	EtherType uint16 // 0x0800=IPv4
}

// IPHeader represents a decoded IPv4 header.
type IPHeader struct {
	Version        uint8
	IHL            uint8
	DSCP           uint8
	ECN            uint8
	TotalLen       uint16
	ID             uint16
	Flags          uint8 // Reserved=0x4, DF=0x2, MF=0x1
	FragmentOffset uint16
	TTL            uint8
	Protocol       uint8 // TCP=6, UDP=17, ICMP=1
	Checksum       uint16
	SrcIP          netip.Addr
	DstIP          netip.Addr
	Options        []byte // Raw option area including padding
}

// TransportHeader represents a decoded L4 header (TCP, UDP or ICMP).
type TransportHeader struct {
	Protocol uint8
	SrcPort  uint16
	DstPort  uint16
	Checksum uint16

	// TCP-specific fields
	SeqNum     uint32
	AckNum     uint32
	DataOffset uint8
	Reserved   uint8  // 3 bits
	TCPFlags   uint16 // NS in bit 8, CWR..FIN in bits 7..0
	Window     uint16
	Urgent     uint16
	Options    []byte

	// UDP-specific fields
	Length uint16

	// ICMP-specific fields
	ICMPType     uint8
	ICMPCode     uint8
	RestOfHeader uint32
}

// ChecksumStatus records whether each layer's checksum verified.
type ChecksumStatus struct {
	IPv4      bool
	Transport bool // false also when the transport is not decoded
}

// DecodedFrame is a frame produced by the pipeline, read back.
type DecodedFrame struct {
	Ethernet  EthernetHeader
	IP        IPHeader
	Transport TransportHeader
	Payload   []byte // Zero-copy slice
	Checksums ChecksumStatus
}
