package decode

import (
	"fmt"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Network decodes payload as the network layer selected by etherType and
// hands whatever follows the IP header to Transport.
func Network(etherType layers.EthernetType, payload []byte, wantHex bool) (out NetworkOutcome) {
	out = NetworkOutcome{
		EtherType: etherType,
		Length:    len(payload),
	}
	defer recoverMalformed(&out.Status, &out.Err)

	var (
		hdr  IPHeader
		next []byte
		err  error
	)
	switch etherType {
	case layers.EthernetTypeIPv4:
		hdr, next, err = decodeIPv4(payload)
	case layers.EthernetTypeIPv6:
		hdr, next, err = decodeIPv6(payload)
	default:
		out.Status = Unrecognized
		return out
	}
	if err != nil {
		out.Status = Malformed
		out.Err = err
		return out
	}

	out.Status = Decoded
	out.IP = hdr
	out.Transport = Transport(hdr.NextProtocol, hdr.Src, hdr.Dst, next, wantHex)
	return out
}

func decodeIPv4(data []byte) (IPHeader, []byte, error) {
	if len(data) > 0 && data[0]>>4 != 4 {
		return IPHeader{}, nil, fmt.Errorf("IPv4 header carries version %d", data[0]>>4)
	}

	var ip layers.IPv4
	if err := ip.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return IPHeader{}, nil, err
	}
	src, ok := netip.AddrFromSlice(ip.SrcIP)
	if !ok {
		return IPHeader{}, nil, fmt.Errorf("invalid IPv4 source address %v", ip.SrcIP)
	}
	dst, ok := netip.AddrFromSlice(ip.DstIP)
	if !ok {
		return IPHeader{}, nil, fmt.Errorf("invalid IPv4 destination address %v", ip.DstIP)
	}
	return IPHeader{
		Version:      IPv4,
		Src:          src,
		Dst:          dst,
		NextProtocol: ip.Protocol,
	}, ip.Payload, nil
}

func decodeIPv6(data []byte) (IPHeader, []byte, error) {
	if len(data) > 0 && data[0]>>4 != 6 {
		return IPHeader{}, nil, fmt.Errorf("IPv6 header carries version %d", data[0]>>4)
	}

	var ip layers.IPv6
	if err := ip.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return IPHeader{}, nil, err
	}
	src, ok := netip.AddrFromSlice(ip.SrcIP)
	if !ok {
		return IPHeader{}, nil, fmt.Errorf("invalid IPv6 source address %v", ip.SrcIP)
	}
	dst, ok := netip.AddrFromSlice(ip.DstIP)
	if !ok {
		return IPHeader{}, nil, fmt.Errorf("invalid IPv6 destination address %v", ip.DstIP)
	}
	return IPHeader{
		Version:      IPv6,
		Src:          src,
		Dst:          dst,
		NextProtocol: ip.NextHeader,
	}, ip.Payload, nil
}
