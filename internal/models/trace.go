package models

import (
	"net/netip"
	"strings"
	"time"

	"netsniff/internal/decode"
)

// Severity selects the stream a trace is written to.
type Severity uint8

const (
	Info Severity = iota
	Warn
)

func (s Severity) String() string {
	if s == Warn {
		return "warn"
	}
	return "info"
}

// Trace is the rendered account of one captured frame. It holds no
// references into frame memory and may be kept after the next read.
type Trace struct {
	Timestamp time.Time
	Interface string
	Class     decode.Class
	Severity  Severity

	// Header is the one line every frame produces.
	Header string
	// Dump is the optional multi-line hex dump of the transport payload.
	Dump string
	// Err is the decoder error behind a Warn trace.
	Err error

	// Summary fields for aggregation. Addresses are invalid and ports zero
	// when the frame did not decode that far.
	SrcMAC   string
	DstMAC   string
	SrcIP    netip.Addr
	DstIP    netip.Addr
	SrcPort  uint16
	DstPort  uint16
	Protocol string
	Length   int
}

// Lines returns the header followed by each dump line.
func (t Trace) Lines() []string {
	if t.Dump == "" {
		return []string{t.Header}
	}
	return append([]string{t.Header}, strings.Split(t.Dump, "\n")...)
}

// String joins Lines with newlines.
func (t Trace) String() string {
	if t.Dump == "" {
		return t.Header
	}
	return t.Header + "\n" + t.Dump
}
