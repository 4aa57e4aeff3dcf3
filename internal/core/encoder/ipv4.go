package encoder

import (
	"encoding/binary"
	"strconv"

	"golang.org/x/net/ipv4"

	"firestige.xyz/pktcraft/internal/core"
	"firestige.xyz/pktcraft/internal/core/checksum"
	"firestige.xyz/pktcraft/internal/core/options"
)

// IPv4 auto values.
const (
	ipv4Version        = 4
	ipv4Identification = 12345
	ipv4TTL            = 64
)

// BuildIPv4 encodes an IPv4 datagram carrying payload with next as the
// protocol field.
//
// IHL defaults to the word count of the base header plus padded options.
// An IHL override smaller than that still writes every option; the header
// area is the larger of the two. Total length defaults to the buffer length.
func BuildIPv4(spec core.IPv4Spec, next uint8, payload []byte, d Defaults) ([]byte, error) {
	src, dst, err := core.ParseIPv4Pair("ipv4", spec.Addresses)
	if err != nil {
		return nil, err
	}

	opts, err := options.Area(options.IPv4, "ipv4.options", spec.Options)
	if err != nil {
		return nil, err
	}
	minLen := ipv4.HeaderLen + len(opts)

	ihl, err := core.Resolve("ipv4.ihl", spec.IHL, 4, core.Const(uint8(minLen/4)))
	if err != nil {
		return nil, err
	}
	version, err := core.Resolve("ipv4.version", spec.Version, 4, core.Const[uint8](ipv4Version))
	if err != nil {
		return nil, err
	}
	dscp, err := core.Resolve("ipv4.dscp", spec.DSCP, 6, core.Const(d.DSCP&0x3f))
	if err != nil {
		return nil, err
	}
	ecn, err := core.Resolve("ipv4.ecn", spec.ECN, 2, core.Const[uint8](0))
	if err != nil {
		return nil, err
	}
	id, err := core.Resolve("ipv4.identification", spec.Identification, 16, core.Const[uint16](ipv4Identification))
	if err != nil {
		return nil, err
	}
	fragOff, err := core.Resolve("ipv4.fragment_offset", spec.FragmentOffset, 13, core.Const[uint16](0))
	if err != nil {
		return nil, err
	}
	ttl, err := core.Resolve("ipv4.ttl", spec.TTL, 8, core.Const[uint8](ipv4TTL))
	if err != nil {
		return nil, err
	}

	headerLen := max(int(ihl)*4, minLen)
	size := headerLen + len(payload)
	if size > 0xffff {
		return nil, &core.FieldParseError{Field: "ipv4.total_length", Raw: strconv.Itoa(size), Err: errTooLarge}
	}
	totalLen, err := core.Resolve("ipv4.total_length", spec.TotalLength, 16, core.Const(uint16(size)))
	if err != nil {
		return nil, err
	}
	var csumOverride uint16
	if !spec.Checksum.IsAuto() {
		if csumOverride, err = core.Resolve[uint16]("ipv4.checksum", spec.Checksum, 16, nil); err != nil {
			return nil, err
		}
	}

	b := make([]byte, size)
	b[0] = version<<4 | ihl
	b[1] = dscp<<2 | ecn
	binary.BigEndian.PutUint16(b[2:4], totalLen)
	binary.BigEndian.PutUint16(b[4:6], id)
	binary.BigEndian.PutUint16(b[6:8], uint16(spec.Flags.Bits())<<13|fragOff)
	b[8] = ttl
	b[9] = next
	s, t := src.As4(), dst.As4()
	copy(b[12:16], s[:])
	copy(b[16:20], t[:])
	copy(b[ipv4.HeaderLen:], opts)
	copy(b[headerLen:], payload)

	// Checksum is written last.
	sum := csumOverride
	if spec.Checksum.IsAuto() {
		sum = checksum.Sum(b[:headerLen])
	}
	binary.BigEndian.PutUint16(b[10:12], sum)
	return b, nil
}
