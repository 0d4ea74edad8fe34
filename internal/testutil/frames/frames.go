// Package frames builds captured frames for tests.
package frames

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Endpoints describes both ends of a synthetic conversation.
type Endpoints struct {
	SrcMAC, DstMAC   net.HardwareAddr
	SrcIP, DstIP     net.IP
	SrcPort, DstPort uint16
}

// V4 returns IPv4 endpoints on a typical home LAN.
func V4() Endpoints {
	return Endpoints{
		SrcMAC:  net.HardwareAddr{0x02, 0x42, 0xac, 0x11, 0x00, 0x02},
		DstMAC:  net.HardwareAddr{0x00, 0x1a, 0x2b, 0x3c, 0x4d, 0x5e},
		SrcIP:   net.IP{192, 168, 1, 10},
		DstIP:   net.IP{93, 184, 216, 34},
		SrcPort: 51514,
		DstPort: 443,
	}
}

// V6 returns IPv6 endpoints.
func V6() Endpoints {
	ep := V4()
	ep.SrcIP = net.ParseIP("fe80::42:acff:fe11:2")
	ep.DstIP = net.ParseIP("2001:db8::1")
	ep.SrcPort = 5353
	ep.DstPort = 53
	return ep
}

// Serialize lays the given layers out into one frame, fixing lengths and
// checksums.
func Serialize(t testing.TB, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		t.Fatalf("serialize frame: %v", err)
	}
	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())
	return out
}

// IP returns the Ethernet and IP layers for ep carrying proto.
func IP(ep Endpoints, proto layers.IPProtocol) (*layers.Ethernet, gopacket.NetworkLayer) {
	eth := &layers.Ethernet{SrcMAC: ep.SrcMAC, DstMAC: ep.DstMAC}
	if v4 := ep.SrcIP.To4(); v4 != nil {
		eth.EthernetType = layers.EthernetTypeIPv4
		return eth, &layers.IPv4{
			Version:  4,
			TTL:      64,
			Protocol: proto,
			SrcIP:    v4,
			DstIP:    ep.DstIP.To4(),
		}
	}
	eth.EthernetType = layers.EthernetTypeIPv6
	return eth, &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: proto,
		SrcIP:      ep.SrcIP.To16(),
		DstIP:      ep.DstIP.To16(),
	}
}

// TCP builds an Ethernet+IP+TCP frame carrying payload.
func TCP(t testing.TB, ep Endpoints, payload []byte) []byte {
	t.Helper()
	eth, ip := IP(ep, layers.IPProtocolTCP)
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(ep.SrcPort),
		DstPort: layers.TCPPort(ep.DstPort),
		Seq:     1105024978,
		PSH:     true,
		ACK:     true,
		Window:  64240,
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("tcp checksum layer: %v", err)
	}
	return Serialize(t, eth, ip.(gopacket.SerializableLayer), tcp, gopacket.Payload(payload))
}

// UDP builds an Ethernet+IP+UDP frame carrying payload.
func UDP(t testing.TB, ep Endpoints, payload []byte) []byte {
	t.Helper()
	eth, ip := IP(ep, layers.IPProtocolUDP)
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(ep.SrcPort),
		DstPort: layers.UDPPort(ep.DstPort),
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("udp checksum layer: %v", err)
	}
	return Serialize(t, eth, ip.(gopacket.SerializableLayer), udp, gopacket.Payload(payload))
}

// Raw builds an Ethernet+IP frame whose IP payload is the given bytes,
// whatever proto claims it to be.
func Raw(t testing.TB, ep Endpoints, proto layers.IPProtocol, payload []byte) []byte {
	t.Helper()
	eth, ip := IP(ep, proto)
	return Serialize(t, eth, ip.(gopacket.SerializableLayer), gopacket.Payload(payload))
}

// ARP builds a broadcast ARP request from ep.
func ARP(t testing.TB, ep Endpoints) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       ep.SrcMAC,
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte(ep.SrcMAC),
		SourceProtAddress: []byte(ep.SrcIP.To4()),
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    []byte(ep.DstIP.To4()),
	}
	return Serialize(t, eth, arp)
}

// Ethernet returns a bare Ethernet header followed by payload, without any
// padding or length fixing.
func Ethernet(ep Endpoints, tag uint16, payload []byte) []byte {
	out := make([]byte, 14, 14+len(payload))
	copy(out[0:6], ep.DstMAC)
	copy(out[6:12], ep.SrcMAC)
	binary.BigEndian.PutUint16(out[12:14], tag)
	return append(out, payload...)
}
