// Package decode classifies captured link-layer frames into Ethernet, IP and
// transport headers.
//
// Every decoder is total: any input, including nil and truncated frames,
// yields exactly one outcome and never panics. Header fields that are byte
// slices (MAC addresses, payloads) are sub-slices of the frame passed to
// Frame. They are only valid for as long as the caller keeps that frame
// alive, which for live capture means until the next read.
package decode

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/google/gopacket/layers"
)

// Status is the result of decoding one layer.
type Status uint8

const (
	// Decoded means the header parsed and every layer below it was handed on.
	Decoded Status = iota
	// Malformed means the header was too short or inconsistent to trust.
	Malformed
	// Unrecognized means the header parsed but the protocol it names is
	// outside the decoded set. It is not an error.
	Unrecognized
)

func (s Status) String() string {
	switch s {
	case Decoded:
		return "decoded"
	case Malformed:
		return "malformed"
	case Unrecognized:
		return "unrecognized"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// IPVersion tells the two network layer variants apart.
type IPVersion uint8

const (
	UnknownIP IPVersion = 0
	IPv4      IPVersion = 4
	IPv6      IPVersion = 6
)

func (v IPVersion) String() string {
	switch v {
	case IPv4:
		return "IPv4"
	case IPv6:
		return "IPv6"
	default:
		return "IP"
	}
}

// TransportProtocol tells the transport layer variants apart.
type TransportProtocol uint8

const (
	OtherTransport TransportProtocol = iota
	TCP
	UDP
)

func (p TransportProtocol) String() string {
	switch p {
	case TCP:
		return "TCP"
	case UDP:
		return "UDP"
	default:
		return "Other"
	}
}

// EthernetHeader is the fixed 14 byte link-layer header.
type EthernetHeader struct {
	Src       net.HardwareAddr
	Dst       net.HardwareAddr
	EtherType layers.EthernetType
}

// IPHeader is the part of an IPv4 or IPv6 header the trace cares about.
// Src and Dst keep their family: IPv4 addresses satisfy Is4 and IPv6
// addresses Is6.
type IPHeader struct {
	Version      IPVersion
	Src          netip.Addr
	Dst          netip.Addr
	NextProtocol layers.IPProtocol
}

// Segment is a decoded TCP or UDP header and the bytes it carries.
type Segment struct {
	Protocol TransportProtocol
	SrcPort  uint16
	DstPort  uint16
	Payload  []byte
}

// TransportOutcome is the result of Transport.
type TransportOutcome struct {
	Status Status
	// Protocol is the raw next-protocol code taken from the IP header.
	Protocol layers.IPProtocol
	Src      netip.Addr
	Dst      netip.Addr
	// Segment is only populated when Status is Decoded.
	Segment Segment
	// Length is the number of transport bytes handed to the decoder.
	Length int
	// HexDump holds the rendered payload when it was requested.
	HexDump string
	Err     error
}

// Kind maps the raw protocol code onto the closed transport variant.
func (t TransportOutcome) Kind() TransportProtocol {
	switch t.Protocol {
	case layers.IPProtocolTCP:
		return TCP
	case layers.IPProtocolUDP:
		return UDP
	default:
		return OtherTransport
	}
}

// NetworkOutcome is the result of Network.
type NetworkOutcome struct {
	Status Status
	// EtherType is the raw tag the network layer was selected by.
	EtherType layers.EthernetType
	// IP is only populated when Status is Decoded.
	IP        IPHeader
	Transport TransportOutcome
	// Length is the number of bytes following the Ethernet header.
	Length int
	Err    error
}

// Version maps the ethertype onto the closed network variant.
func (n NetworkOutcome) Version() IPVersion {
	switch n.EtherType {
	case layers.EthernetTypeIPv4:
		return IPv4
	case layers.EthernetTypeIPv6:
		return IPv6
	default:
		return UnknownIP
	}
}

// FrameOutcome is the result of decoding one captured frame.
type FrameOutcome struct {
	Status Status
	// Length is the total captured length of the frame.
	Length int
	// Ethernet is only populated when Status is not Malformed.
	Ethernet EthernetHeader
	Network  NetworkOutcome
	Err      error
}

// Class names the single terminal classification of a frame.
type Class string

const (
	ClassTCP               Class = "tcp"
	ClassUDP               Class = "udp"
	ClassOtherTransport    Class = "other-transport"
	ClassOtherEtherType    Class = "other-ethertype"
	ClassMalformedEthernet Class = "malformed-ethernet"
	ClassMalformedIPv4     Class = "malformed-ipv4"
	ClassMalformedIPv6     Class = "malformed-ipv6"
	ClassMalformedTCP      Class = "malformed-tcp"
	ClassMalformedUDP      Class = "malformed-udp"
)

// Classes lists every Class in display order.
var Classes = []Class{
	ClassTCP,
	ClassUDP,
	ClassOtherTransport,
	ClassOtherEtherType,
	ClassMalformedEthernet,
	ClassMalformedIPv4,
	ClassMalformedIPv6,
	ClassMalformedTCP,
	ClassMalformedUDP,
}

// Malformed reports whether the class is one of the malformed outcomes.
func (c Class) Malformed() bool {
	switch c {
	case ClassMalformedEthernet, ClassMalformedIPv4, ClassMalformedIPv6,
		ClassMalformedTCP, ClassMalformedUDP:
		return true
	}
	return false
}

// Class walks the outcome down to the layer where decoding stopped.
func (f FrameOutcome) Class() Class {
	if f.Status == Malformed {
		return ClassMalformedEthernet
	}

	n := f.Network
	switch n.Status {
	case Unrecognized:
		return ClassOtherEtherType
	case Malformed:
		if n.Version() == IPv6 {
			return ClassMalformedIPv6
		}
		return ClassMalformedIPv4
	}

	t := n.Transport
	switch t.Status {
	case Unrecognized:
		return ClassOtherTransport
	case Malformed:
		if t.Kind() == UDP {
			return ClassMalformedUDP
		}
		return ClassMalformedTCP
	}
	if t.Segment.Protocol == UDP {
		return ClassUDP
	}
	return ClassTCP
}
