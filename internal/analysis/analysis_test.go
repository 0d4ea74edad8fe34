package analysis

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netsniff/internal/decode"
	"netsniff/internal/models"
)

var (
	base   = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	alice  = netip.MustParseAddr("192.168.1.10")
	bob    = netip.MustParseAddr("192.168.1.20")
	server = netip.MustParseAddr("2001:db8::1")
)

func tcpTrace(src netip.Addr, sport, dport uint16, length int) models.Trace {
	return models.Trace{
		Timestamp: base,
		Interface: "eth0",
		Class:     decode.ClassTCP,
		Protocol:  "TCP",
		SrcIP:     src,
		DstIP:     server,
		SrcPort:   sport,
		DstPort:   dport,
		Length:    length,
		DstMAC:    "00:1a:2b:3c:4d:5e",
	}
}

func TestTrafficStatsAggregates(t *testing.T) {
	s := NewTrafficStats(DefaultConfig())

	s.Observe(tcpTrace(alice, 51000, 443, 1500))
	s.Observe(tcpTrace(alice, 51000, 443, 500))
	s.Observe(tcpTrace(bob, 40000, 22, 100))
	s.Observe(models.Trace{Class: decode.ClassMalformedEthernet, Protocol: "Ethernet", Length: 9, Severity: models.Warn})
	s.Observe(models.Trace{Class: decode.ClassOtherEtherType, Protocol: "ARP", Length: 60})

	totals := s.GetTotals()
	assert.Equal(t, int64(5), totals.Frames)
	assert.Equal(t, int64(2169), totals.Bytes)
	assert.Equal(t, int64(1), totals.Malformed)

	talkers := s.GetTopTalkers(10)
	require.Len(t, talkers, 2)
	assert.Equal(t, IPStat{IP: alice, Bytes: 2000, Packets: 2}, talkers[0])
	assert.Equal(t, IPStat{IP: bob, Bytes: 100, Packets: 1}, talkers[1])
	assert.Len(t, s.GetTopTalkers(1), 1)

	assert.Equal(t, []ProtocolStat{
		{Protocol: "TCP", Count: 3},
		{Protocol: "ARP", Count: 1},
		{Protocol: "Ethernet", Count: 1},
	}, s.GetProtocolStats())

	assert.Equal(t, []ProtocolStat{
		{Protocol: "HTTPS", Count: 2},
		{Protocol: "SSH", Count: 1},
	}, s.GetServiceStats())

	classes := s.GetClassStats()
	require.Len(t, classes, len(decode.Classes))
	counts := map[decode.Class]int64{}
	for _, c := range classes {
		counts[c.Class] = c.Count
	}
	assert.Equal(t, int64(3), counts[decode.ClassTCP])
	assert.Equal(t, int64(1), counts[decode.ClassMalformedEthernet])
	assert.Equal(t, int64(1), counts[decode.ClassOtherEtherType])
	assert.Zero(t, counts[decode.ClassUDP])
}

func TestGetRatesResetsWindow(t *testing.T) {
	s := NewTrafficStats(DefaultConfig())
	s.lastTick = time.Now().Add(-time.Second)
	s.Observe(tcpTrace(alice, 1, 2, 1000))

	bps, pps := s.GetRates()
	assert.InDelta(t, 8000, bps, 800)
	assert.InDelta(t, 1, pps, 0.1)

	s.lastTick = time.Now().Add(-time.Second)
	bps, pps = s.GetRates()
	assert.Zero(t, bps)
	assert.Zero(t, pps)
}

func TestServerPort(t *testing.T) {
	assert.Equal(t, uint16(53), serverPort(53, 40000))
	assert.Equal(t, uint16(443), serverPort(51000, 443))
	assert.Equal(t, uint16(9000), serverPort(9000, 40000))
	assert.Equal(t, "9000", GetServiceName(9000))
	assert.Equal(t, "DNS", GetServiceName(53))
}

func TestDetectorUnsecureProtocolThrottled(t *testing.T) {
	ad := NewAnomalyDetector(DefaultConfig())

	tr := tcpTrace(alice, 51000, 80, 100)
	ad.Observe(tr)
	ad.Observe(tr)
	tr.Timestamp = base.Add(11 * time.Second)
	ad.Observe(tr)

	alerts := ad.GetRecentAlerts(10)
	require.Len(t, alerts, 2)
	assert.Equal(t, AnomalyUnsecure, alerts[0].Type)
	assert.Equal(t, "Plaintext HTTP traffic on port 80 from 192.168.1.10", alerts[0].Message)
	assert.Equal(t, "192.168.1.10", alerts[0].Source)
}

func TestNegativeLimitsReturnEmpty(t *testing.T) {
	s := NewTrafficStats(DefaultConfig())
	s.Observe(tcpTrace(alice, 51000, 80, 100))
	s.Observe(tcpTrace(bob, 40000, 443, 100))

	assert.Empty(t, s.GetTopTalkers(-1))
	assert.Empty(t, s.GetTopTalkers(0))
	require.Len(t, s.GetAlerts(10), 1)
	assert.Empty(t, s.GetAlerts(-3))
	assert.Empty(t, s.anomalyDetector.GetRecentAlerts(-1))
}

func TestDetectorBroadcastStorm(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BroadcastThreshold = 3
	ad := NewAnomalyDetector(cfg)

	for i := 0; i < 4; i++ {
		ad.Observe(models.Trace{
			Timestamp: base.Add(time.Duration(i) * time.Millisecond),
			Interface: "eth0",
			Class:     decode.ClassOtherEtherType,
			DstMAC:    broadcastMAC,
		})
	}

	alerts := ad.GetRecentAlerts(10)
	require.Len(t, alerts, 1)
	assert.Equal(t, AnomalyBroadcastStorm, alerts[0].Type)
	assert.Equal(t, "eth0", alerts[0].Source)
}

func TestDetectorMalformedBurst(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MalformedThreshold = 2
	ad := NewAnomalyDetector(cfg)

	// Spread out, so no burst.
	for i := 0; i < 3; i++ {
		ad.Observe(models.Trace{Timestamp: base.Add(time.Duration(i) * 2 * time.Second), Class: decode.ClassMalformedTCP})
	}
	assert.Empty(t, ad.GetRecentAlerts(10))

	later := base.Add(time.Minute)
	for i := 0; i < 3; i++ {
		ad.Observe(models.Trace{Timestamp: later, Class: decode.ClassMalformedIPv6})
	}
	alerts := ad.GetRecentAlerts(10)
	require.Len(t, alerts, 1)
	assert.Equal(t, AnomalyMalformedBurst, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "malformed-ipv6")
}

func TestDetectorDoSAndHistoryBound(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DoSThreshold = 1
	cfg.MaxAlerts = 3
	ad := NewAnomalyDetector(cfg)

	for i := 0; i < 10; i++ {
		tr := tcpTrace(bob, 40000, 22, 64)
		tr.Timestamp = base.Add(time.Duration(i) * time.Millisecond)
		ad.Observe(tr)
	}

	alerts := ad.GetRecentAlerts(10)
	require.Len(t, alerts, 3)
	for _, a := range alerts {
		assert.Equal(t, AnomalyDoS, a.Type)
		assert.Equal(t, "192.168.1.20", a.Source)
	}
	assert.Len(t, ad.GetRecentAlerts(2), 2)
}

func TestStatsForwardsToDetector(t *testing.T) {
	s := NewTrafficStats(DefaultConfig())
	s.Observe(tcpTrace(alice, 50000, 23, 80))

	alerts := s.GetAlerts(5)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0].Message, "Telnet")
}

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{
		0:       "0 B",
		1023:    "1023 B",
		1024:    "1.0 KB",
		1536:    "1.5 KB",
		1 << 20: "1.0 MB",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatBytes(in), "bytes %d", in)
	}
}
