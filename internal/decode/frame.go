package decode

import (
	"encoding/binary"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// EthernetHeaderLen is the size of an untagged Ethernet II header.
const EthernetHeaderLen = 14

// Frame decodes one captured link-layer frame. It is the single entry point
// used by the capture loop.
//
// raw is borrowed: the outcome refers into it, so it must be rendered before
// the capture layer reuses the buffer.
func Frame(raw []byte, wantHex bool) (out FrameOutcome) {
	out.Length = len(raw)
	defer recoverMalformed(&out.Status, &out.Err)

	var eth layers.Ethernet
	if err := eth.DecodeFromBytes(raw, gopacket.NilDecodeFeedback); err != nil {
		out.Status = Malformed
		out.Err = err
		return out
	}

	// gopacket folds 802.3 length values into EthernetTypeLLC; the trace
	// reports the tag exactly as it appeared on the wire.
	tag := layers.EthernetType(binary.BigEndian.Uint16(raw[12:EthernetHeaderLen]))
	out.Ethernet = EthernetHeader{
		Src:       eth.SrcMAC,
		Dst:       eth.DstMAC,
		EtherType: tag,
	}
	out.Network = Network(tag, eth.Payload, wantHex)
	out.Status = Decoded
	return out
}
