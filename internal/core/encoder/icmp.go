package encoder

import (
	"encoding/binary"

	"firestige.xyz/pktcraft/internal/core"
	"firestige.xyz/pktcraft/internal/core/checksum"
)

const icmpHeaderLen = 8

// Echo requests default to code 8, not the RFC 792 value 0.
func icmpDefaultCode(t core.ICMPType) func() uint8 {
	if t == core.ICMPEchoRequest {
		return core.Const[uint8](8)
	}
	return core.Const[uint8](0)
}

// BuildICMP encodes an ICMP message: type, code, checksum, the 32-bit
// rest-of-header word and the payload.
func BuildICMP(spec core.ICMPSpec) ([]byte, error) {
	code, err := core.Resolve("icmp.code", spec.Code, 8, icmpDefaultCode(spec.Type))
	if err != nil {
		return nil, err
	}
	rest, err := core.Resolve("icmp.rest_of_header", spec.RestOfHeader, 32, core.Const[uint32](0))
	if err != nil {
		return nil, err
	}
	var csumOverride uint16
	if !spec.Checksum.IsAuto() {
		if csumOverride, err = core.Resolve[uint16]("icmp.checksum", spec.Checksum, 16, nil); err != nil {
			return nil, err
		}
	}

	payload := spec.Payload
	if payload == nil {
		payload = []byte(core.DefaultICMPPayload)
	}

	b := make([]byte, icmpHeaderLen+len(payload))
	b[0] = byte(spec.Type)
	b[1] = code
	binary.BigEndian.PutUint32(b[4:8], rest)
	copy(b[icmpHeaderLen:], payload)

	// Checksum is written last.
	sum := csumOverride
	if spec.Checksum.IsAuto() {
		sum = checksum.Sum(b)
	}
	binary.BigEndian.PutUint16(b[2:4], sum)
	return b, nil
}
