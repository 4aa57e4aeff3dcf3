// Package encoder writes IPv4, TCP, UDP, ICMP and Ethernet II headers from
// core specs. Every builder resolves all fields before allocating and
// returns a nil buffer on error.
package encoder

import (
	"errors"
	"math/rand"
	"net/netip"

	"firestige.xyz/pktcraft/internal/core"
)

const (
	ephemeralMin = 49152
	ephemeralMax = 65535
)

var (
	errTooLarge = errors.New("datagram exceeds 65535 bytes")
	errNotIPv4  = errors.New("not an IPv4 address")
)

// checkPseudoAddrs rejects pseudo-header addresses that are not IPv4.
func checkPseudoAddrs(src, dst netip.Addr) error {
	for _, a := range []struct {
		which string
		addr  netip.Addr
	}{{"ipv4.source", src}, {"ipv4.destination", dst}} {
		if a.addr.Is4() {
			continue
		}
		if !a.addr.IsValid() {
			return &core.AddressParseError{Which: a.which, Err: core.ErrMissingField}
		}
		return &core.AddressParseError{Which: a.which, Raw: a.addr.String(), Err: errNotIPv4}
	}
	return nil
}

// PortSource supplies automatic TCP ports.
type PortSource interface {
	Port() uint16
}

// EphemeralPorts draws uniformly from the IANA dynamic range 49152-65535.
// It is safe for concurrent use.
type EphemeralPorts struct{}

func (EphemeralPorts) Port() uint16 {
	return uint16(ephemeralMin + rand.Intn(ephemeralMax-ephemeralMin+1))
}

// FixedPort always returns the same port.
type FixedPort uint16

func (p FixedPort) Port() uint16 { return uint16(p) }

// Defaults carries site-level auto values.
type Defaults struct {
	DSCP  uint8      // 6 bits
	Ports PortSource // nil means EphemeralPorts
}

func (d Defaults) port() uint16 {
	if d.Ports == nil {
		return EphemeralPorts{}.Port()
	}
	return d.Ports.Port()
}
