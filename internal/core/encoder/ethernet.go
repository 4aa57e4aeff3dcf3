package encoder

import (
	"encoding/binary"
	"net"

	"firestige.xyz/pktcraft/internal/core"
)

// EthernetHeaderLen is the Ethernet II header size without VLAN tags.
const EthernetHeaderLen = 14

// Frame validates the MAC pair and wraps payload in an Ethernet II header.
// No FCS is appended.
func Frame(macs core.AddressPair, etherType uint16, payload []byte) ([]byte, error) {
	src, dst, err := core.ParseMACPair("ethernet", macs)
	if err != nil {
		return nil, err
	}
	return FrameMAC(dst, src, etherType, payload), nil
}

// FrameMAC writes destination, source, EtherType and payload.
func FrameMAC(dst, src net.HardwareAddr, etherType uint16, payload []byte) []byte {
	b := make([]byte, EthernetHeaderLen+len(payload))
	copy(b[0:6], dst)
	copy(b[6:12], src)
	binary.BigEndian.PutUint16(b[12:14], etherType)
	copy(b[EthernetHeaderLen:], payload)
	return b
}
