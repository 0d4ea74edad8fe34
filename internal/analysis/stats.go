package analysis

import (
	"net/netip"
	"sort"
	"sync"
	"time"

	"netsniff/internal/decode"
	"netsniff/internal/models"
)

// IPStat holds stats for a single source address.
type IPStat struct {
	IP      netip.Addr
	Bytes   int64
	Packets int64
}

// ProtocolStat holds the frame count for a protocol label.
type ProtocolStat struct {
	Protocol string
	Count    int64
}

// ClassStat holds the frame count for one classification.
type ClassStat struct {
	Class decode.Class
	Count int64
}

// Totals are the running counters since the stats were created.
type Totals struct {
	Frames    int64
	Bytes     int64
	Malformed int64
}

// TrafficStats aggregates traces. It is safe for concurrent use.
type TrafficStats struct {
	mu             sync.Mutex
	totals         Totals
	windowBytes    int64
	windowPackets  int64
	lastTick       time.Time
	ipStats        map[netip.Addr]*IPStat
	protocolCounts map[string]int64
	serviceCounts  map[string]int64
	classCounts    map[decode.Class]int64

	anomalyDetector *AnomalyDetector
}

// NewTrafficStats creates a new TrafficStats instance.
func NewTrafficStats(cfg Config) *TrafficStats {
	return &TrafficStats{
		lastTick:        time.Now(),
		ipStats:         make(map[netip.Addr]*IPStat),
		protocolCounts:  make(map[string]int64),
		serviceCounts:   make(map[string]int64),
		classCounts:     make(map[decode.Class]int64),
		anomalyDetector: NewAnomalyDetector(cfg),
	}
}

// Observe updates stats with one trace.
func (s *TrafficStats) Observe(t models.Trace) {
	s.mu.Lock()

	s.totals.Frames++
	s.totals.Bytes += int64(t.Length)
	if t.Class.Malformed() {
		s.totals.Malformed++
	}
	s.windowBytes += int64(t.Length)
	s.windowPackets++
	s.classCounts[t.Class]++

	// Top talkers by source address
	if t.SrcIP.IsValid() {
		st, ok := s.ipStats[t.SrcIP]
		if !ok {
			st = &IPStat{IP: t.SrcIP}
			s.ipStats[t.SrcIP] = st
		}
		st.Bytes += int64(t.Length)
		st.Packets++
	}

	proto := t.Protocol
	if proto == "" {
		proto = "Unknown"
	}
	s.protocolCounts[proto]++

	if t.Class == decode.ClassTCP || t.Class == decode.ClassUDP {
		s.serviceCounts[GetServiceName(serverPort(t.SrcPort, t.DstPort))]++
	}

	// detector has its own mutex
	s.mu.Unlock()
	s.anomalyDetector.Observe(t)
}

// serverPort guesses which side of a conversation is the service: the lower
// port number is almost always the well-known one.
func serverPort(src, dst uint16) uint16 {
	if _, ok := commonPorts[dst]; ok {
		return dst
	}
	if _, ok := commonPorts[src]; ok {
		return src
	}
	if src < dst {
		return src
	}
	return dst
}

// GetRates returns the bandwidth (bps) and packet rate (pps) since the last call.
func (s *TrafficStats) GetRates() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	duration := now.Sub(s.lastTick).Seconds()
	if duration == 0 {
		return 0, 0
	}

	bps := (float64(s.windowBytes) * 8) / duration
	pps := float64(s.windowPackets) / duration

	s.windowBytes = 0
	s.windowPackets = 0
	s.lastTick = now

	return bps, pps
}

// GetTotals returns the running counters.
func (s *TrafficStats) GetTotals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals
}

// GetTopTalkers returns the top N source addresses by volume.
func (s *TrafficStats) GetTopTalkers(limit int) []IPStat {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make([]IPStat, 0, len(s.ipStats))
	for _, st := range s.ipStats {
		stats = append(stats, *st)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Bytes != stats[j].Bytes {
			return stats[i].Bytes > stats[j].Bytes
		}
		return stats[i].IP.Less(stats[j].IP)
	})

	limit = max(limit, 0)
	if len(stats) > limit {
		return stats[:limit]
	}
	return stats
}

// GetProtocolStats returns the protocol distribution, largest first.
func (s *TrafficStats) GetProtocolStats() []ProtocolStat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedCounts(s.protocolCounts)
}

// GetServiceStats returns the distribution of TCP and UDP frames by service
// name, largest first.
func (s *TrafficStats) GetServiceStats() []ProtocolStat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedCounts(s.serviceCounts)
}

func sortedCounts(counts map[string]int64) []ProtocolStat {
	stats := make([]ProtocolStat, 0, len(counts))
	for proto, count := range counts {
		stats = append(stats, ProtocolStat{Protocol: proto, Count: count})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Protocol < stats[j].Protocol
	})
	return stats
}

// GetClassStats returns a count for every classification in display order,
// including those not seen yet.
func (s *TrafficStats) GetClassStats() []ClassStat {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make([]ClassStat, 0, len(decode.Classes))
	for _, c := range decode.Classes {
		stats = append(stats, ClassStat{Class: c, Count: s.classCounts[c]})
	}
	return stats
}

// GetAlerts returns recent alerts, newest last.
func (s *TrafficStats) GetAlerts(limit int) []Alert {
	return s.anomalyDetector.GetRecentAlerts(limit)
}
