package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"netsniff/internal/analysis"
	"netsniff/internal/models"
)

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case TraceMsg:
		t := models.Trace(msg)
		for _, l := range t.Lines() {
			m.lines = append(m.lines, line{text: l, warn: t.Severity == models.Warn})
		}
		if len(m.lines) > m.maxLines {
			m.lines = m.lines[len(m.lines)-m.maxLines:]
		}
		return m, nil

	case ReadErrorMsg:
		m.readErrs++
		m.lastErr = msg.Err
		return m, nil

	case CaptureDoneMsg:
		m.done = true
		m.doneErr = msg.Err
		return m, nil

	case TickMsg:
		bps, pps := m.stats.GetRates()
		m.bps = bps
		m.pps = pps
		m.totals = m.stats.GetTotals()
		m.classes = m.stats.GetClassStats()
		m.services = m.stats.GetServiceStats()
		m.alerts = m.stats.GetAlerts(5)
		if m.inventory != nil {
			m.hosts = m.inventory.Len()
		}

		talkers := m.stats.GetTopTalkers(10)
		rows := make([]table.Row, len(talkers))
		for i, stat := range talkers {
			rows[i] = table.Row{stat.IP.String(), analysis.FormatBytes(stat.Bytes), fmt.Sprintf("%d", stat.Packets)}
		}
		m.table.SetRows(rows)

		return m, tickCmd()
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}
