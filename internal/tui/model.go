package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"netsniff/internal/analysis"
	"netsniff/internal/discovery"
	"netsniff/internal/models"
)

// TickMsg drives the periodic stats refresh.
type TickMsg time.Time

// TraceMsg carries one rendered frame from the capture loop.
type TraceMsg models.Trace

// ReadErrorMsg reports a failed read from the capture channel.
type ReadErrorMsg struct{ Err error }

// CaptureDoneMsg is sent once the capture loop has returned.
type CaptureDoneMsg struct{ Err error }

type line struct {
	text string
	warn bool
}

// WatchModel is the live view: rates, classification counts, top talkers,
// alerts and a scrollback of trace lines.
type WatchModel struct {
	stats         *analysis.TrafficStats
	inventory     *discovery.Inventory
	interfaceName string

	bps      float64
	pps      float64
	totals   analysis.Totals
	hosts    int
	classes  []analysis.ClassStat
	services []analysis.ProtocolStat
	alerts   []analysis.Alert
	table    table.Model
	lines    []line
	maxLines int
	readErrs int
	lastErr  error
	done     bool
	doneErr  error
	width    int
	height   int
}

// NewWatchModel returns a model reading from stats and keeping at most
// scrollback trace lines. inventory may be nil.
func NewWatchModel(stats *analysis.TrafficStats, inventory *discovery.Inventory, iface string, scrollback int) WatchModel {
	columns := []table.Column{
		{Title: "Source IP", Width: 40},
		{Title: "Bytes", Width: 12},
		{Title: "Packets", Width: 10},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(false),
		table.WithHeight(6),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	if scrollback <= 0 {
		scrollback = 500
	}

	return WatchModel{
		stats:         stats,
		inventory:     inventory,
		interfaceName: iface,
		table:         t,
		maxLines:      scrollback,
	}
}

func (m WatchModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
