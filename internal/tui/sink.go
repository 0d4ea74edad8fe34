package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/gopacket"

	"netsniff/internal/decode"
	"netsniff/internal/output"
)

// Sink feeds the capture loop into a running program. send is normally
// (*tea.Program).Send, which blocks until the program takes the message, so
// frames reach the view in arrival order.
type Sink struct {
	iface     string
	send      func(tea.Msg)
	observers []output.Observer
}

// NewSink returns a capture sink for the watch view. Every trace is shown to
// the observers before it is sent.
func NewSink(iface string, send func(tea.Msg), observers ...output.Observer) *Sink {
	return &Sink{iface: iface, send: send, observers: observers}
}

// Emit renders the frame, records it and hands it to the view.
func (s *Sink) Emit(ci gopacket.CaptureInfo, out decode.FrameOutcome) {
	t := output.Render(s.iface, ci, out)
	for _, o := range s.observers {
		o.Observe(t)
	}
	s.send(TraceMsg(t))
}

// ReadError shows the error in the status line.
func (s *Sink) ReadError(err error) {
	s.send(ReadErrorMsg{Err: err})
}
