// Package output turns decode outcomes into trace lines and writes them out.
package output

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"netsniff/internal/decode"
	"netsniff/internal/models"
)

// Render builds the trace for one frame captured on iface. Every outcome
// yields exactly one header line.
func Render(iface string, ci gopacket.CaptureInfo, out decode.FrameOutcome) models.Trace {
	t := models.Trace{
		Timestamp: ci.Timestamp,
		Interface: iface,
		Class:     out.Class(),
		Length:    out.Length,
	}
	if ci.Length > 0 {
		t.Length = ci.Length
	}
	tag := "[" + iface + "]: "

	if out.Status == decode.Malformed {
		t.Severity = models.Warn
		t.Err = out.Err
		t.Protocol = "Ethernet"
		t.Header = fmt.Sprintf("%sMalformed Ethernet Packet; length: %d", tag, out.Length)
		return t
	}
	t.SrcMAC = out.Ethernet.Src.String()
	t.DstMAC = out.Ethernet.Dst.String()

	n := out.Network
	switch n.Status {
	case decode.Unrecognized:
		t.Protocol = etherTypeName(n.EtherType)
		t.Header = fmt.Sprintf("%sUnknown packet: %s > %s; ethertype: 0x%04x length: %d",
			tag, out.Ethernet.Src, out.Ethernet.Dst, uint16(n.EtherType), out.Length)
		return t
	case decode.Malformed:
		t.Severity = models.Warn
		t.Err = n.Err
		t.Protocol = n.Version().String()
		t.Header = fmt.Sprintf("%sMalformed %s Packet", tag, n.Version())
		return t
	}

	tr := n.Transport
	t.SrcIP, t.DstIP = tr.Src, tr.Dst
	switch tr.Status {
	case decode.Unrecognized:
		t.Protocol = ipProtocolName(tr.Protocol)
		t.Header = fmt.Sprintf("%sUnknown %s packet: %s > %s; protocol: %d length: %d",
			tag, n.IP.Version, tr.Src, tr.Dst, uint8(tr.Protocol), tr.Length)
		return t
	case decode.Malformed:
		t.Severity = models.Warn
		t.Err = tr.Err
		t.Protocol = tr.Kind().String()
		t.Header = fmt.Sprintf("%sMalformed %s Packet", tag, tr.Kind())
		return t
	}

	seg := tr.Segment
	t.Protocol = seg.Protocol.String()
	t.SrcPort, t.DstPort = seg.SrcPort, seg.DstPort
	t.Header = fmt.Sprintf("%s%s Packet: %s > %s; length: %d",
		tag, seg.Protocol,
		netip.AddrPortFrom(tr.Src, seg.SrcPort),
		netip.AddrPortFrom(tr.Dst, seg.DstPort),
		tr.Length)
	t.Dump = tr.HexDump
	return t
}

func etherTypeName(et layers.EthernetType) string {
	if name := et.String(); name != "" && !strings.HasPrefix(name, "Unknown") {
		return name
	}
	return fmt.Sprintf("0x%04x", uint16(et))
}

func ipProtocolName(p layers.IPProtocol) string {
	if name := p.String(); name != "" && !strings.HasPrefix(name, "Unknown") {
		return name
	}
	return fmt.Sprintf("proto %d", uint8(p))
}
