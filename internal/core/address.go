package core

import (
	"errors"
	"net"
	"net/netip"
	"strings"
)

var errNotIPv4 = errors.New("not an IPv4 address")

// ParseIPv4Pair validates both halves of an IPv4 address pair. prefix
// qualifies the half named in an error, e.g. "ipv4".
func ParseIPv4Pair(prefix string, p AddressPair) (src, dst netip.Addr, err error) {
	if src, err = ParseIPv4(prefix+".source", p.Source); err != nil {
		return netip.Addr{}, netip.Addr{}, err
	}
	if dst, err = ParseIPv4(prefix+".destination", p.Destination); err != nil {
		return netip.Addr{}, netip.Addr{}, err
	}
	return src, dst, nil
}

// ParseIPv4 parses dotted-decimal text.
func ParseIPv4(which, raw string) (netip.Addr, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return netip.Addr{}, &AddressParseError{Which: which, Err: ErrMissingField}
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Addr{}, &AddressParseError{Which: which, Raw: raw, Err: err}
	}
	if !addr.Is4() {
		return netip.Addr{}, &AddressParseError{Which: which, Raw: raw, Err: errNotIPv4}
	}
	return addr, nil
}

// ParseMACPair validates both halves of a MAC address pair.
func ParseMACPair(prefix string, p AddressPair) (src, dst net.HardwareAddr, err error) {
	if src, err = ParseMAC(prefix+".source", p.Source); err != nil {
		return nil, nil, err
	}
	if dst, err = ParseMAC(prefix+".destination", p.Destination); err != nil {
		return nil, nil, err
	}
	return src, dst, nil
}

// ParseMAC parses a 6-byte MAC written with ':', '-' or '.' between octets.
func ParseMAC(which, raw string) (net.HardwareAddr, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &AddressParseError{Which: which, Err: ErrMissingField}
	}
	text := raw
	// "aa.bb.cc.dd.ee.ff" is per-octet; net.ParseMAC reads dots as Cisco groups.
	if strings.Count(text, ".") == 5 {
		text = strings.ReplaceAll(text, ".", ":")
	}
	mac, err := net.ParseMAC(text)
	if err != nil {
		return nil, &AddressParseError{Which: which, Raw: raw, Err: err}
	}
	if len(mac) != 6 {
		return nil, &AddressParseError{Which: which, Raw: raw, Err: errors.New("not a 6-byte MAC")}
	}
	return mac, nil
}
