package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"netsniff/internal/analysis"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFF7DB")).
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Margin(0, 1)

	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	alertStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F87"))
)

// traceRows is how many scrollback lines are shown when the terminal size
// is not known yet.
const traceRows = 10

func (m WatchModel) View() string {
	headerText := fmt.Sprintf("netsniff - Monitoring: %s", m.interfaceName)
	if m.done {
		headerText += " [capture ended]"
	}
	title := titleStyle.Render(headerText)

	qos := fmt.Sprintf("Bandwidth: %s\nPacket Rate: %.2f PPS\nFrames: %d (%d malformed)\nRead errors: %d",
		formatBps(m.bps), m.pps, m.totals.Frames, m.totals.Malformed, m.readErrs)
	if m.inventory != nil {
		qos += fmt.Sprintf("\nLocal hosts: %d", m.hosts)
	}
	qosBox := infoStyle.Render(qos)

	var classStrs []string
	for _, c := range m.classes {
		if c.Count > 0 {
			classStrs = append(classStrs, fmt.Sprintf("%s: %d", c.Class, c.Count))
		}
	}
	if len(classStrs) == 0 {
		classStrs = append(classStrs, "Waiting for data...")
	}
	classBox := infoStyle.Render("Classes:\n" + strings.Join(classStrs, "\n"))

	serviceBox := infoStyle.Render("Services:\n" + strings.Join(topServices(m.services, 5), "\n"))

	ttBox := infoStyle.Render("Top Talkers\n" + m.table.View())

	row1 := lipgloss.JoinHorizontal(lipgloss.Top, qosBox, classBox, serviceBox)
	sections := []string{title, row1, ttBox}

	if len(m.alerts) > 0 {
		var alertStrs []string
		for _, a := range m.alerts {
			alertStrs = append(alertStrs, alertStyle.Render(string(a.Type))+" "+a.Message)
		}
		sections = append(sections, infoStyle.Render("Alerts\n"+strings.Join(alertStrs, "\n")))
	}

	sections = append(sections, infoStyle.Render("Trace\n"+m.traceView()))

	status := "Press q to quit."
	if m.done && m.doneErr != nil {
		status = fmt.Sprintf("Capture stopped: %v. Press q to quit.", m.doneErr)
	} else if m.lastErr != nil {
		status = fmt.Sprintf("Last read error: %v. Press q to quit.", m.lastErr)
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n" + status
}

func (m WatchModel) traceView() string {
	rows := traceRows
	if m.height > 0 {
		// room left after the panels above
		rows = m.height - 26
		if rows < 3 {
			rows = 3
		}
	}

	lines := m.lines
	if len(lines) > rows {
		lines = lines[len(lines)-rows:]
	}
	if len(lines) == 0 {
		return "Waiting for frames..."
	}

	out := make([]string, len(lines))
	for i, l := range lines {
		if l.warn {
			out[i] = warnStyle.Render(l.text)
		} else {
			out[i] = l.text
		}
	}
	return strings.Join(out, "\n")
}

func topServices(stats []analysis.ProtocolStat, limit int) []string {
	if len(stats) == 0 {
		return []string{"Waiting for data..."}
	}
	if len(stats) < limit {
		limit = len(stats)
	}
	out := make([]string, 0, limit)
	for _, s := range stats[:limit] {
		out = append(out, fmt.Sprintf("%s: %d", s.Protocol, s.Count))
	}
	return out
}

func formatBps(bps float64) string {
	if bps >= 1e6 {
		return fmt.Sprintf("%.2f Mbps", bps/1e6)
	}
	if bps >= 1e3 {
		return fmt.Sprintf("%.2f Kbps", bps/1e3)
	}
	return fmt.Sprintf("%.2f bps", bps)
}
