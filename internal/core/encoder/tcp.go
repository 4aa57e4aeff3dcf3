package encoder

import (
	"encoding/binary"
	"net/netip"
	"strconv"

	"firestige.xyz/pktcraft/internal/core"
	"firestige.xyz/pktcraft/internal/core/checksum"
	"firestige.xyz/pktcraft/internal/core/options"
)

const tcpHeaderMinLen = 20

// BuildTCP encodes a TCP segment. src and dst feed the pseudo-header.
// Ports default to d's port source; data offset defaults to the base header
// plus padded options.
func BuildTCP(spec core.TCPSpec, src, dst netip.Addr, d Defaults) ([]byte, error) {
	if err := checkPseudoAddrs(src, dst); err != nil {
		return nil, err
	}
	srcPort, err := core.Resolve("tcp.source_port", spec.SourcePort, 16, d.port)
	if err != nil {
		return nil, err
	}
	dstPort, err := core.Resolve("tcp.destination_port", spec.DestinationPort, 16, d.port)
	if err != nil {
		return nil, err
	}
	seq, err := core.Resolve("tcp.sequence", spec.Sequence, 32, core.Const[uint32](0))
	if err != nil {
		return nil, err
	}
	ack, err := core.Resolve("tcp.acknowledgement", spec.Acknowledgement, 32, core.Const[uint32](0))
	if err != nil {
		return nil, err
	}

	opts, err := options.Area(options.TCP, "tcp.options", spec.Options)
	if err != nil {
		return nil, err
	}
	minLen := tcpHeaderMinLen + len(opts)

	dataOff, err := core.Resolve("tcp.data_offset", spec.DataOffset, 4, core.Const(uint8(minLen/4)))
	if err != nil {
		return nil, err
	}
	window, err := core.Resolve("tcp.window", spec.Window, 16, core.Const[uint16](0))
	if err != nil {
		return nil, err
	}
	urgent, err := core.Resolve("tcp.urgent_pointer", spec.UrgentPointer, 16, core.Const[uint16](0))
	if err != nil {
		return nil, err
	}
	var csumOverride uint16
	if !spec.Checksum.IsAuto() {
		if csumOverride, err = core.Resolve[uint16]("tcp.checksum", spec.Checksum, 16, nil); err != nil {
			return nil, err
		}
	}

	headerLen := max(int(dataOff)*4, minLen)
	size := headerLen + len(spec.Payload)
	if size > 0xffff {
		return nil, &core.FieldParseError{Field: "tcp.payload", Raw: strconv.Itoa(size), Err: errTooLarge}
	}

	b := make([]byte, size)
	binary.BigEndian.PutUint16(b[0:2], srcPort)
	binary.BigEndian.PutUint16(b[2:4], dstPort)
	binary.BigEndian.PutUint32(b[4:8], seq)
	binary.BigEndian.PutUint32(b[8:12], ack)
	b[12] = dataOff<<4 | reservedBits(spec.Reserved)<<1
	if spec.Flags.NS {
		b[12] |= 0x01
	}
	b[13] = spec.Flags.Byte()
	binary.BigEndian.PutUint16(b[14:16], window)
	binary.BigEndian.PutUint16(b[18:20], urgent)
	copy(b[tcpHeaderMinLen:], opts)
	copy(b[headerLen:], spec.Payload)

	// Checksum is written last.
	sum := csumOverride
	if spec.Checksum.IsAuto() {
		sum = checksum.Transport(src, dst, core.ProtoTCP, b)
	}
	binary.BigEndian.PutUint16(b[16:18], sum)
	return b, nil
}

// reservedBits packs the three reserved flags, first flag most significant.
func reservedBits(r [3]bool) uint8 {
	var v uint8
	for _, set := range r {
		v <<= 1
		if set {
			v |= 1
		}
	}
	return v
}
