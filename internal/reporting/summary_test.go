package reporting

import (
	"net/netip"
	"strings"
	"testing"
	"time"

	"netsniff/internal/analysis"
	"netsniff/internal/decode"
	"netsniff/internal/discovery"
	"netsniff/internal/models"
)

func TestWriteSummary(t *testing.T) {
	stats := analysis.NewTrafficStats(analysis.DefaultConfig())

	stats.Observe(models.Trace{
		Class:    decode.ClassTCP,
		Protocol: "TCP",
		SrcIP:    netip.MustParseAddr("192.168.1.10"),
		DstPort:  80,
		Length:   1536,
	})
	stats.Observe(models.Trace{
		Class:    decode.ClassMalformedUDP,
		Protocol: "UDP",
		SrcIP:    netip.MustParseAddr("10.0.0.7"),
		Length:   40,
	})

	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var out strings.Builder
	err := WriteSummary(&out, Session{
		Interface:  "eth0",
		Started:    start,
		Ended:      start.Add(90 * time.Second),
		ReadErrors: 2,
		Hosts: []discovery.Host{
			{IP: netip.MustParseAddr("192.168.1.1"), MAC: "00:1a:2b:3c:4d:5e", Frames: 12, MACChanges: 1},
		},
	}, stats)
	if err != nil {
		t.Fatalf("Failed to write summary: %v", err)
	}
	text := out.String()

	for _, want := range []string{
		"Session summary for eth0",
		"Duration:    1m30s",
		"Frames:      2 (1 malformed)",
		"Data:        1.5 KB",
		"Read errors: 2",
		"malformed-udp",
		"192.168.1.10",
		"Plaintext HTTP traffic",
		"Local Hosts",
		"00:1a:2b:3c:4d:5e",
		"(MAC changed 1 times)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Summary missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "other-ethertype") {
		t.Error("Summary lists a class that was never seen")
	}
}

func TestWriteSummaryEmpty(t *testing.T) {
	var out strings.Builder
	now := time.Now()
	if err := WriteSummary(&out, Session{Interface: "lo", Started: now, Ended: now}, analysis.NewTrafficStats(analysis.DefaultConfig())); err != nil {
		t.Fatalf("Failed to write summary: %v", err)
	}
	if !strings.Contains(out.String(), "No alerts triggered during this session.") {
		t.Error("Summary missing empty alert notice")
	}
	if !strings.Contains(out.String(), "  none\n") {
		t.Error("Summary missing empty talker notice")
	}
	if strings.Contains(out.String(), "Local Hosts") {
		t.Error("Summary lists hosts when none were seen")
	}
}
