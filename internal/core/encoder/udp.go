package encoder

import (
	"encoding/binary"
	"net/netip"
	"strconv"

	"firestige.xyz/pktcraft/internal/core"
	"firestige.xyz/pktcraft/internal/core/checksum"
)

const udpHeaderLen = 8

// BuildUDP encodes a UDP datagram. Both ports are required. An automatic
// checksum that computes to zero is sent as 0xFFFF; an override is written
// as given, so 0 disables the checksum.
func BuildUDP(spec core.UDPSpec, src, dst netip.Addr) ([]byte, error) {
	if err := checkPseudoAddrs(src, dst); err != nil {
		return nil, err
	}
	srcPort, err := core.Resolve[uint16]("udp.source_port", spec.SourcePort, 16, nil)
	if err != nil {
		return nil, err
	}
	dstPort, err := core.Resolve[uint16]("udp.destination_port", spec.DestinationPort, 16, nil)
	if err != nil {
		return nil, err
	}

	size := udpHeaderLen + len(spec.Payload)
	if size > 0xffff {
		return nil, &core.FieldParseError{Field: "udp.length", Raw: strconv.Itoa(size), Err: errTooLarge}
	}
	length, err := core.Resolve("udp.length", spec.Length, 16, core.Const(uint16(size)))
	if err != nil {
		return nil, err
	}
	var csumOverride uint16
	if !spec.Checksum.IsAuto() {
		if csumOverride, err = core.Resolve[uint16]("udp.checksum", spec.Checksum, 16, nil); err != nil {
			return nil, err
		}
	}

	b := make([]byte, size)
	binary.BigEndian.PutUint16(b[0:2], srcPort)
	binary.BigEndian.PutUint16(b[2:4], dstPort)
	binary.BigEndian.PutUint16(b[4:6], length)
	copy(b[udpHeaderLen:], spec.Payload)

	// Checksum is written last.
	sum := csumOverride
	if spec.Checksum.IsAuto() {
		sum = checksum.NeverZero(checksum.Transport(src, dst, core.ProtoUDP, b))
	}
	binary.BigEndian.PutUint16(b[6:8], sum)
	return b, nil
}
