// Package packetfile reads packet documents (YAML or JSON) into build specs.
package packetfile

import (
	"fmt"

	"firestige.xyz/pktcraft/internal/core"
)

// Document is the on-disk form of one packet. Numeric header fields accept
// a number, a string in any Go integer literal form, or "auto".
type Document struct {
	Label    string     `mapstructure:"label"`
	Protocol string     `mapstructure:"protocol"`
	Ethernet AddressDoc `mapstructure:"ethernet"`
	IPv4     IPv4Doc    `mapstructure:"ipv4"`
	TCP      TCPDoc     `mapstructure:"tcp"`
	UDP      UDPDoc     `mapstructure:"udp"`
	ICMP     ICMPDoc    `mapstructure:"icmp"`
	Payload  Payload    `mapstructure:"payload"` // Used when the selected section has none
}

// AddressDoc is a source/destination pair.
type AddressDoc struct {
	Source      string `mapstructure:"source"`
	Destination string `mapstructure:"destination"`
}

func (a AddressDoc) pair() core.AddressPair {
	return core.AddressPair{Source: a.Source, Destination: a.Destination}
}

// IPv4Doc is the ipv4 section.
type IPv4Doc struct {
	AddressDoc     `mapstructure:",squash"`
	Version        core.Field   `mapstructure:"version"`
	IHL            core.Field   `mapstructure:"ihl"`
	DSCP           core.Field   `mapstructure:"dscp"`
	ECN            core.Field   `mapstructure:"ecn"`
	TotalLength    core.Field   `mapstructure:"total_length"`
	Identification core.Field   `mapstructure:"identification"`
	Flags          IPv4FlagsDoc `mapstructure:"flags"`
	FragmentOffset core.Field   `mapstructure:"fragment_offset"`
	TTL            core.Field   `mapstructure:"ttl"`
	Checksum       core.Field   `mapstructure:"checksum"`
	Options        []string     `mapstructure:"options"`
}

// IPv4FlagsDoc holds the three IPv4 flag bits.
type IPv4FlagsDoc struct {
	Reserved      bool `mapstructure:"reserved"`
	DontFragment  bool `mapstructure:"dont_fragment"`
	MoreFragments bool `mapstructure:"more_fragments"`
}

// TCPDoc is the tcp section.
type TCPDoc struct {
	SourcePort      core.Field  `mapstructure:"source_port"`
	DestinationPort core.Field  `mapstructure:"destination_port"`
	Sequence        core.Field  `mapstructure:"sequence"`
	Acknowledgement core.Field  `mapstructure:"acknowledgement"`
	DataOffset      core.Field  `mapstructure:"data_offset"`
	Reserved        [3]bool     `mapstructure:"reserved"`
	Flags           TCPFlagsDoc `mapstructure:"flags"`
	Window          core.Field  `mapstructure:"window"`
	Checksum        core.Field  `mapstructure:"checksum"`
	UrgentPointer   core.Field  `mapstructure:"urgent_pointer"`
	Options         []string    `mapstructure:"options"`
	Payload         Payload     `mapstructure:"payload"`
}

// TCPFlagsDoc holds the nine TCP control bits.
type TCPFlagsDoc struct {
	NS  bool `mapstructure:"ns"`
	CWR bool `mapstructure:"cwr"`
	ECE bool `mapstructure:"ece"`
	URG bool `mapstructure:"urg"`
	ACK bool `mapstructure:"ack"`
	PSH bool `mapstructure:"psh"`
	RST bool `mapstructure:"rst"`
	SYN bool `mapstructure:"syn"`
	FIN bool `mapstructure:"fin"`
}

// UDPDoc is the udp section.
type UDPDoc struct {
	SourcePort      core.Field `mapstructure:"source_port"`
	DestinationPort core.Field `mapstructure:"destination_port"`
	Length          core.Field `mapstructure:"length"`
	Checksum        core.Field `mapstructure:"checksum"`
	Payload         Payload    `mapstructure:"payload"`
}

// ICMPDoc is the icmp section. Type defaults to echo-request.
type ICMPDoc struct {
	Type         string     `mapstructure:"type"`
	Code         core.Field `mapstructure:"code"`
	Checksum     core.Field `mapstructure:"checksum"`
	RestOfHeader core.Field `mapstructure:"rest_of_header"`
	Payload      Payload    `mapstructure:"payload"`
}

func pick(section, fallback Payload) []byte {
	if section != nil {
		return section
	}
	return fallback
}

// Spec converts the document into an immutable build snapshot.
func (d *Document) Spec() (core.FullPacketSpec, error) {
	if d.Protocol == "" {
		return core.FullPacketSpec{}, fmt.Errorf("protocol is required")
	}
	proto, err := core.ParseProtocol(d.Protocol)
	if err != nil {
		return core.FullPacketSpec{}, err
	}

	spec := core.FullPacketSpec{
		Protocol: proto,
		Ethernet: core.EthernetSpec{Addresses: d.Ethernet.pair()},
		IPv4: core.IPv4Spec{
			Addresses:      d.IPv4.pair(),
			Version:        d.IPv4.Version,
			IHL:            d.IPv4.IHL,
			DSCP:           d.IPv4.DSCP,
			ECN:            d.IPv4.ECN,
			TotalLength:    d.IPv4.TotalLength,
			Identification: d.IPv4.Identification,
			Flags: core.IPv4Flags{
				Reserved:      d.IPv4.Flags.Reserved,
				DontFragment:  d.IPv4.Flags.DontFragment,
				MoreFragments: d.IPv4.Flags.MoreFragments,
			},
			FragmentOffset: d.IPv4.FragmentOffset,
			TTL:            d.IPv4.TTL,
			Checksum:       d.IPv4.Checksum,
			Options:        d.IPv4.Options,
		},
	}

	switch proto {
	case core.ProtocolIP:
		spec.Payload = d.Payload
	case core.ProtocolTCP:
		f := d.TCP.Flags
		spec.TCP = core.TCPSpec{
			SourcePort:      d.TCP.SourcePort,
			DestinationPort: d.TCP.DestinationPort,
			Sequence:        d.TCP.Sequence,
			Acknowledgement: d.TCP.Acknowledgement,
			DataOffset:      d.TCP.DataOffset,
			Reserved:        d.TCP.Reserved,
			Flags: core.TCPFlags{
				NS: f.NS, CWR: f.CWR, ECE: f.ECE, URG: f.URG, ACK: f.ACK,
				PSH: f.PSH, RST: f.RST, SYN: f.SYN, FIN: f.FIN,
			},
			Window:        d.TCP.Window,
			Checksum:      d.TCP.Checksum,
			UrgentPointer: d.TCP.UrgentPointer,
			Options:       d.TCP.Options,
			Payload:       pick(d.TCP.Payload, d.Payload),
		}
	case core.ProtocolUDP:
		spec.UDP = core.UDPSpec{
			SourcePort:      d.UDP.SourcePort,
			DestinationPort: d.UDP.DestinationPort,
			Length:          d.UDP.Length,
			Checksum:        d.UDP.Checksum,
			Payload:         pick(d.UDP.Payload, d.Payload),
		}
	case core.ProtocolICMP:
		t := core.ICMPEchoRequest
		if d.ICMP.Type != "" {
			if t, err = core.ParseICMPType(d.ICMP.Type); err != nil {
				return core.FullPacketSpec{}, err
			}
		}
		spec.ICMP = core.ICMPSpec{
			Type:         t,
			Code:         d.ICMP.Code,
			Checksum:     d.ICMP.Checksum,
			RestOfHeader: d.ICMP.RestOfHeader,
			Payload:      pick(d.ICMP.Payload, d.Payload),
		}
	}
	return spec, nil
}
