package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/gopacket"
	"github.com/rs/zerolog"

	"netsniff/internal/decode"
	"netsniff/internal/logging"
	"netsniff/internal/models"
)

// Observer is told about every trace after it has been written.
type Observer interface {
	Observe(t models.Trace)
}

// Option configures a Printer.
type Option func(*Printer)

// WithColor styles info headers by classification when the writer supports
// it.
func WithColor(on bool) Option {
	return func(p *Printer) { p.color = on }
}

// WithObserver forwards every trace to o.
func WithObserver(o Observer) Option {
	return func(p *Printer) { p.observers = append(p.observers, o) }
}

// Printer is the plain line-oriented sink. Info traces go to out, one line
// each, with the hex dump on the lines that follow. Warn traces and read
// errors go to the logger at warn, whatever level the logger was built with.
type Printer struct {
	iface     string
	out       io.Writer
	log       zerolog.Logger
	color     bool
	styles    map[decode.Class]lipgloss.Style
	observers []Observer
}

// NewPrinter returns a Printer that tags every line with iface.
func NewPrinter(iface string, out io.Writer, log zerolog.Logger, opts ...Option) *Printer {
	p := &Printer{
		iface: iface,
		out:   out,
		log:   logging.CapLevel(log, zerolog.WarnLevel),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.color {
		p.styles = classStyles(lipgloss.NewRenderer(out))
	}
	return p
}

func classStyles(r *lipgloss.Renderer) map[decode.Class]lipgloss.Style {
	return map[decode.Class]lipgloss.Style{
		decode.ClassTCP:            r.NewStyle().Foreground(lipgloss.Color("#5FD7FF")),
		decode.ClassUDP:            r.NewStyle().Foreground(lipgloss.Color("#87D75F")),
		decode.ClassOtherTransport: r.NewStyle().Foreground(lipgloss.Color("#FFD75F")),
		decode.ClassOtherEtherType: r.NewStyle().Foreground(lipgloss.Color("#8A8A8A")),
	}
}

// Emit renders and writes one frame.
func (p *Printer) Emit(ci gopacket.CaptureInfo, out decode.FrameOutcome) {
	p.Write(Render(p.iface, ci, out))
}

// ReadError reports a failed read. The capture keeps going.
func (p *Printer) ReadError(err error) {
	p.log.Warn().Err(err).Str("interface", p.iface).Msg("error reading from capture channel")
}

// Write prints an already rendered trace.
func (p *Printer) Write(t models.Trace) {
	if t.Severity == models.Warn {
		ev := p.log.Warn().Str("class", string(t.Class)).Int("length", t.Length)
		if t.Err != nil {
			ev = ev.Err(t.Err)
		}
		ev.Msg(t.Header)
	} else {
		header := t.Header
		if style, ok := p.styles[t.Class]; ok {
			header = style.Render(header)
		}
		if _, err := io.WriteString(p.out, header+"\n"); err != nil {
			p.log.Error().Err(err).Msg("write trace")
		}
		if t.Dump != "" {
			if _, err := io.WriteString(p.out, t.Dump+"\n"); err != nil {
				p.log.Error().Err(err).Msg("write hex dump")
			}
		}
	}

	for _, o := range p.observers {
		o.Observe(t)
	}
}
