// Package core defines sentinel and typed build errors.
package core

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// Field resolution errors
	ErrMissingField   = errors.New("pktcraft: required field missing")
	ErrOptionsTooLong = errors.New("pktcraft: options exceed 40 bytes")

	// Frame decoding errors
	ErrPacketTooShort   = errors.New("pktcraft: packet too short")
	ErrUnsupportedProto = errors.New("pktcraft: unsupported protocol")

	// Frame store errors
	ErrFrameNotFound = errors.New("pktcraft: frame not found")

	// Transmission errors
	ErrUnsupportedPlatform = errors.New("pktcraft: transmitter not supported on this platform")
	ErrTransmitterClosed   = errors.New("pktcraft: transmitter closed")

	// Configuration errors
	ErrConfigInvalid = errors.New("pktcraft: invalid configuration")

	// Daemon errors
	ErrDaemonNotRunning = errors.New("pktcraft: daemon not running")
)

// FieldParseError reports an override that is not a number or does not fit
// the field's wire width.
type FieldParseError struct {
	Field string
	Raw   string
	Err   error
}

func (e *FieldParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pktcraft: field %s: invalid value %q: %v", e.Field, e.Raw, e.Err)
	}
	return fmt.Sprintf("pktcraft: field %s: invalid value %q", e.Field, e.Raw)
}

func (e *FieldParseError) Unwrap() error { return e.Err }

// AddressParseError reports a malformed or missing IPv4 or MAC address.
// Which names the half of the pair, e.g. "ipv4.source" or "ethernet.destination".
type AddressParseError struct {
	Which string
	Raw   string
	Err   error
}

func (e *AddressParseError) Error() string {
	if e.Raw == "" {
		return fmt.Sprintf("pktcraft: address %s: missing", e.Which)
	}
	return fmt.Sprintf("pktcraft: address %s: malformed %q", e.Which, e.Raw)
}

func (e *AddressParseError) Unwrap() error { return e.Err }

// UnsupportedOptionError reports a symbolic option name with no table entry.
type UnsupportedOptionError struct {
	Token string
}

func (e *UnsupportedOptionError) Error() string {
	return fmt.Sprintf("pktcraft: unsupported option %q", e.Token)
}

// UnsupportedProtocolError reports a top-level protocol selection the
// pipeline cannot dispatch.
type UnsupportedProtocolError struct {
	Protocol string
}

func (e *UnsupportedProtocolError) Error() string {
	return fmt.Sprintf("pktcraft: unsupported protocol %q", e.Protocol)
}

func (e *UnsupportedProtocolError) Unwrap() error { return ErrUnsupportedProto }

// IsInputError reports whether err was caused by operator input rather
// than by the environment.
func IsInputError(err error) bool {
	var (
		fe *FieldParseError
		ae *AddressParseError
		oe *UnsupportedOptionError
		pe *UnsupportedProtocolError
	)
	return errors.As(err, &fe) || errors.As(err, &ae) || errors.As(err, &oe) || errors.As(err, &pe)
}
