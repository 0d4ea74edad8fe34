package reporting

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"

	"netsniff/internal/analysis"
	"netsniff/internal/discovery"
)

// Session describes the capture a summary is written for.
type Session struct {
	Interface  string
	Started    time.Time
	Ended      time.Time
	ReadErrors uint64
	// Hosts is the passive inventory gathered during the session.
	Hosts []discovery.Host
}

// WriteSummary writes a plain text account of the session's traffic.
func WriteSummary(w io.Writer, sess Session, stats *analysis.TrafficStats) error {
	var b strings.Builder

	totals := stats.GetTotals()
	fmt.Fprintf(&b, "Session summary for %s\n", sess.Interface)
	fmt.Fprintf(&b, "  Duration:    %s\n", sess.Ended.Sub(sess.Started).Round(time.Millisecond))
	fmt.Fprintf(&b, "  Frames:      %d (%d malformed)\n", totals.Frames, totals.Malformed)
	fmt.Fprintf(&b, "  Data:        %s\n", analysis.FormatBytes(totals.Bytes))
	fmt.Fprintf(&b, "  Read errors: %d\n", sess.ReadErrors)

	b.WriteString("\nClassification\n")
	for _, c := range stats.GetClassStats() {
		if c.Count == 0 {
			continue
		}
		fmt.Fprintf(&b, "  %-20s %d\n", c.Class, c.Count)
	}

	talkers := stats.GetTopTalkers(10)
	b.WriteString("\nTop Talkers\n")
	if len(talkers) == 0 {
		b.WriteString("  none\n")
	}
	for _, talker := range talkers {
		fmt.Fprintf(&b, "  %-40s %10s %8d pkts\n", talker.IP, analysis.FormatBytes(talker.Bytes), talker.Packets)
	}

	if len(sess.Hosts) > 0 {
		b.WriteString("\nLocal Hosts\n")
		for _, h := range sess.Hosts {
			fmt.Fprintf(&b, "  %-40s %-17s %8d frames", h.IP, h.MAC, h.Frames)
			if h.MACChanges > 0 {
				fmt.Fprintf(&b, " (MAC changed %d times)", h.MACChanges)
			}
			b.WriteByte('\n')
		}
	}

	alerts := stats.GetAlerts(10)
	b.WriteString("\nAlerts\n")
	if len(alerts) == 0 {
		b.WriteString("  No alerts triggered during this session.\n")
	}
	for _, alert := range alerts {
		fmt.Fprintf(&b, "  %s %-18s %s\n", alert.Timestamp.Format("15:04:05"), alert.Type, alert.Message)
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return errors.Wrap(err, "write summary")
	}
	return nil
}
