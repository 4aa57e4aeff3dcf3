// Package core defines the packet specification model shared by the
// encoders, the pipeline and the outer surfaces.
package core

import (
	"fmt"
	"strconv"
	"strings"
)

// IP protocol numbers written into the IPv4 protocol field.
const (
	ProtoNone uint8 = 0
	ProtoICMP uint8 = 1
	ProtoTCP  uint8 = 6
	ProtoUDP  uint8 = 17
)

// EtherTypeIPv4 is the only EtherType the pipeline frames.
const EtherTypeIPv4 uint16 = 0x0800

// Protocol is the top-level selection of a build.
type Protocol string

const (
	ProtocolIP   Protocol = "ip"
	ProtocolTCP  Protocol = "tcp"
	ProtocolUDP  Protocol = "udp"
	ProtocolICMP Protocol = "icmp"
)

// ParseProtocol parses a protocol name case-insensitively.
func ParseProtocol(s string) (Protocol, error) {
	p := Protocol(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case ProtocolIP, ProtocolTCP, ProtocolUDP, ProtocolICMP:
		return p, nil
	case "ipv4":
		return ProtocolIP, nil
	}
	return "", &UnsupportedProtocolError{Protocol: s}
}

// Number returns the IPv4 next-protocol number for p.
func (p Protocol) Number() (uint8, error) {
	switch p {
	case ProtocolIP:
		return ProtoNone, nil
	case ProtocolTCP:
		return ProtoTCP, nil
	case ProtocolUDP:
		return ProtoUDP, nil
	case ProtocolICMP:
		return ProtoICMP, nil
	}
	return 0, &UnsupportedProtocolError{Protocol: string(p)}
}

// ICMPType is the ICMP message type.
type ICMPType uint8

const (
	ICMPEchoReply              ICMPType = 0
	ICMPDestinationUnreachable ICMPType = 3
	ICMPSourceQuench           ICMPType = 4
	ICMPRedirect               ICMPType = 5
	ICMPEchoRequest            ICMPType = 8
	ICMPTimeExceeded           ICMPType = 11
	ICMPParameterProblem       ICMPType = 12
	ICMPTimestamp              ICMPType = 13
	ICMPTimestampReply         ICMPType = 14
)

var icmpTypeNames = map[ICMPType]string{
	ICMPEchoReply:              "echo-reply",
	ICMPDestinationUnreachable: "destination-unreachable",
	ICMPSourceQuench:           "source-quench",
	ICMPRedirect:               "redirect",
	ICMPEchoRequest:            "echo-request",
	ICMPTimeExceeded:           "time-exceeded",
	ICMPParameterProblem:       "parameter-problem",
	ICMPTimestamp:              "timestamp",
	ICMPTimestampReply:         "timestamp-reply",
}

func (t ICMPType) String() string {
	if n, ok := icmpTypeNames[t]; ok {
		return n
	}
	return "type-" + strconv.Itoa(int(t))
}

// ParseICMPType accepts a type name ("echo-request", "echo_request",
// "EchoRequest") or a number from the enumerated set.
func ParseICMPType(s string) (ICMPType, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", "-", " ", "-").Replace(norm)
	for t, n := range icmpTypeNames {
		if norm == n || norm == strings.ReplaceAll(n, "-", "") {
			return t, nil
		}
	}
	if v, err := strconv.ParseUint(norm, literalBase(norm), 8); err == nil {
		if _, ok := icmpTypeNames[ICMPType(v)]; ok {
			return ICMPType(v), nil
		}
	}
	return 0, &FieldParseError{Field: "icmp.type", Raw: s, Err: fmt.Errorf("unknown icmp type")}
}

// AddressPair is a source and destination address kept as operator text
// until a builder validates both halves together.
type AddressPair struct {
	Source      string
	Destination string
}

// IPv4Flags are the three flag bits of the IPv4 header.
type IPv4Flags struct {
	Reserved      bool
	DontFragment  bool
	MoreFragments bool
}

// Bits packs the flags into the 3-bit wire field.
func (f IPv4Flags) Bits() uint8 {
	var b uint8
	if f.Reserved {
		b |= 0x4
	}
	if f.DontFragment {
		b |= 0x2
	}
	if f.MoreFragments {
		b |= 0x1
	}
	return b
}

// IPv4Spec describes one IPv4 header. The protocol field is supplied by
// the pipeline from the selected transport.
type IPv4Spec struct {
	Addresses      AddressPair
	Version        Field
	IHL            Field
	DSCP           Field
	ECN            Field
	TotalLength    Field
	Identification Field
	Flags          IPv4Flags
	FragmentOffset Field
	TTL            Field
	Checksum       Field
	Options        []string
}

// TCPFlags are the nine control bits, NS included.
type TCPFlags struct {
	NS  bool
	CWR bool
	ECE bool
	URG bool
	ACK bool
	PSH bool
	RST bool
	SYN bool
	FIN bool
}

// Byte returns the eight flags carried in byte 13 of the header.
func (f TCPFlags) Byte() uint8 {
	var b uint8
	for i, set := range []bool{f.FIN, f.SYN, f.RST, f.PSH, f.ACK, f.URG, f.ECE, f.CWR} {
		if set {
			b |= 1 << i
		}
	}
	return b
}

// TCPSpec describes one TCP segment.
type TCPSpec struct {
	SourcePort      Field
	DestinationPort Field
	Sequence        Field
	Acknowledgement Field
	DataOffset      Field
	Reserved        [3]bool
	Flags           TCPFlags
	Window          Field
	Checksum        Field
	UrgentPointer   Field
	Options         []string
	Payload         []byte
}

// UDPSpec describes one UDP datagram. Both ports are mandatory.
type UDPSpec struct {
	SourcePort      Field
	DestinationPort Field
	Length          Field
	Checksum        Field
	Payload         []byte
}

// DefaultICMPPayload is sent when an ICMP spec carries no payload.
const DefaultICMPPayload = "ICMP request"

// ICMPSpec describes one ICMP message. A nil Payload means the default
// placeholder; an empty non-nil Payload sends no data.
type ICMPSpec struct {
	Type         ICMPType
	Code         Field
	Checksum     Field
	RestOfHeader Field
	Payload      []byte
}

// EthernetSpec describes the Ethernet II header.
type EthernetSpec struct {
	Addresses AddressPair
}

// FullPacketSpec is the immutable snapshot of one build request. Payload
// is the raw data carried directly by IPv4 when Protocol is ProtocolIP.
type FullPacketSpec struct {
	Protocol Protocol
	Ethernet EthernetSpec
	IPv4     IPv4Spec
	TCP      TCPSpec
	UDP      UDPSpec
	ICMP     ICMPSpec
	Payload  []byte
}
