// Package checksum implements the RFC 1071 internet checksum.
package checksum

import (
	"encoding/binary"
	"net/netip"
)

// PseudoHeaderLen is the size of the IPv4 TCP/UDP pseudo-header.
const PseudoHeaderLen = 12

// Accumulator is a running one's-complement sum. The zero value is ready to use.
// Bytes may be written in pieces of any length; an odd trailing byte is
// carried into the next Write.
type Accumulator struct {
	sum  uint64
	odd  bool
	last byte
}

// Write adds b to the running sum.
func (a *Accumulator) Write(b []byte) {
	if len(b) == 0 {
		return
	}
	if a.odd {
		a.sum += uint64(a.last)<<8 | uint64(b[0])
		a.odd = false
		b = b[1:]
	}
	n := len(b) &^ 1
	for i := 0; i < n; i += 2 {
		a.sum += uint64(binary.BigEndian.Uint16(b[i:]))
	}
	if n < len(b) {
		a.odd = true
		a.last = b[n]
	}
}

// AddUint16 adds a 16-bit word in network order.
func (a *Accumulator) AddUint16(v uint16) {
	a.Write([]byte{byte(v >> 8), byte(v)})
}

// AddUint32 adds a 32-bit value as two words in network order.
func (a *Accumulator) AddUint32(v uint32) {
	a.AddUint16(uint16(v >> 16))
	a.AddUint16(uint16(v))
}

// Sum16 folds the carries and returns the one's complement. A pending odd
// byte is treated as padded with zero.
func (a *Accumulator) Sum16() uint16 {
	sum := a.sum
	if a.odd {
		sum += uint64(a.last) << 8
	}
	for sum>>16 != 0 {
		sum = sum&0xffff + sum>>16
	}
	return ^uint16(sum)
}

// Reset zeros the accumulator.
func (a *Accumulator) Reset() { *a = Accumulator{} }

// Sum returns the internet checksum of data.
func Sum(data []byte) uint16 {
	var a Accumulator
	a.Write(data)
	return a.Sum16()
}

// Pseudo returns the IPv4 pseudo-header: source, destination, zero,
// protocol and the L4 length.
func Pseudo(src, dst netip.Addr, proto uint8, length int) []byte {
	b := make([]byte, PseudoHeaderLen)
	s, d := src.As4(), dst.As4()
	copy(b[0:4], s[:])
	copy(b[4:8], d[:])
	b[9] = proto
	binary.BigEndian.PutUint16(b[10:12], uint16(length))
	return b
}

// Transport returns the TCP or UDP checksum of segment, pseudo-header
// included. The segment's own checksum field must be zero.
func Transport(src, dst netip.Addr, proto uint8, segment []byte) uint16 {
	var a Accumulator
	a.Write(Pseudo(src, dst, proto, len(segment)))
	a.Write(segment)
	return a.Sum16()
}

// NeverZero maps a computed UDP checksum of 0 to 0xFFFF, since 0 on the wire
// means no checksum. Both are zero in one's-complement arithmetic.
func NeverZero(sum uint16) uint16 {
	if sum == 0 {
		return 0xffff
	}
	return sum
}
