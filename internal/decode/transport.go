package decode

import (
	"fmt"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"netsniff/internal/hexdump"
)

const tcpMinHeader = 20

// Transport decodes data as the transport protocol named by proto. src and
// dst are the addresses from the enclosing IP header and are carried through
// to the outcome. When wantHex is set the payload of a decoded TCP or UDP
// segment is rendered into HexDump.
func Transport(proto layers.IPProtocol, src, dst netip.Addr, data []byte, wantHex bool) (out TransportOutcome) {
	out = TransportOutcome{
		Protocol: proto,
		Src:      src,
		Dst:      dst,
		Length:   len(data),
	}
	defer recoverMalformed(&out.Status, &out.Err)

	switch proto {
	case layers.IPProtocolTCP:
		if len(data) >= tcpMinHeader && data[12]>>4 < tcpMinHeader/4 {
			out.Status = Malformed
			out.Err = fmt.Errorf("TCP data offset %d below minimum of %d words", data[12]>>4, tcpMinHeader/4)
			return out
		}
		var tcp layers.TCP
		if err := tcp.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
			out.Status = Malformed
			out.Err = err
			return out
		}
		out.Segment = Segment{
			Protocol: TCP,
			SrcPort:  uint16(tcp.SrcPort),
			DstPort:  uint16(tcp.DstPort),
			Payload:  tcp.Payload,
		}

	case layers.IPProtocolUDP:
		var udp layers.UDP
		if err := udp.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
			out.Status = Malformed
			out.Err = err
			return out
		}
		out.Segment = Segment{
			Protocol: UDP,
			SrcPort:  uint16(udp.SrcPort),
			DstPort:  uint16(udp.DstPort),
			Payload:  udp.Payload,
		}

	default:
		out.Status = Unrecognized
		return out
	}

	out.Status = Decoded
	if wantHex {
		out.HexDump = hexdump.Dump(out.Segment.Payload)
	}
	return out
}

// recoverMalformed turns a panic inside a layer decoder into a Malformed
// outcome so a hostile frame cannot take the capture loop down.
func recoverMalformed(status *Status, err *error) {
	if r := recover(); r != nil {
		*status = Malformed
		*err = fmt.Errorf("decoder panic: %v", r)
	}
}
