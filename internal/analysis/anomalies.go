package analysis

import (
	"fmt"
	"net/netip"
	"sync"
	"time"

	"netsniff/internal/decode"
	"netsniff/internal/models"
)

// AnomalyType represents the type of anomaly detected.
type AnomalyType string

const (
	AnomalyBroadcastStorm AnomalyType = "BROADCAST_STORM"
	AnomalyUnsecure       AnomalyType = "UNSECURE_PROTOCOL"
	AnomalyDoS            AnomalyType = "POSSIBLE_DOS"
	AnomalyMalformedBurst AnomalyType = "MALFORMED_BURST"
)

const broadcastMAC = "ff:ff:ff:ff:ff:ff"

// Config holds configuration for the anomaly detector.
type Config struct {
	BroadcastThreshold int           // Broadcasts per second
	DoSThreshold       int           // Packets per second per source address
	MalformedThreshold int           // Malformed frames per second
	UnsecureCooldown   time.Duration // Cooldown for unsecure protocol alerts
	CleanupInterval    time.Duration // Interval for memory cleanup
	DataRetention      time.Duration // How long to keep tracking data
	MaxAlerts          int           // Alert history size
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BroadcastThreshold: 50,
		DoSThreshold:       500,
		MalformedThreshold: 20,
		UnsecureCooldown:   10 * time.Second,
		CleanupInterval:    1 * time.Minute,
		DataRetention:      5 * time.Minute,
		MaxAlerts:          20,
	}
}

// Alert represents a detected anomaly.
type Alert struct {
	Type      AnomalyType
	Source    string // address or source identifier
	Message   string
	Timestamp time.Time
}

type window struct {
	start time.Time
	count int
}

// hit counts one event in a one second window and reports whether the
// count went over threshold. The window restarts after reporting.
func (w *window) hit(now time.Time, threshold int) (int, bool) {
	if now.Sub(w.start) > time.Second {
		w.start = now
		w.count = 0
	}
	w.count++
	if w.count > threshold {
		n := w.count
		w.start = now
		w.count = 0
		return n, true
	}
	return 0, false
}

// AnomalyDetector watches traces for suspicious patterns. Time is taken from
// the trace so replayed captures are judged by their own clock.
type AnomalyDetector struct {
	mu sync.Mutex

	config Config

	broadcasts window
	malformed  window

	// key: "addr:port" -> last alert time
	unsecureAlerts map[string]time.Time
	perSource      map[netip.Addr]*window

	alerts []Alert

	lastCleanup time.Time
}

// NewAnomalyDetector creates a new anomaly detection engine.
func NewAnomalyDetector(cfg Config) *AnomalyDetector {
	if cfg.MaxAlerts <= 0 {
		cfg.MaxAlerts = DefaultConfig().MaxAlerts
	}
	return &AnomalyDetector{
		config:         cfg,
		unsecureAlerts: make(map[string]time.Time),
		perSource:      make(map[netip.Addr]*window),
		alerts:         make([]Alert, 0),
	}
}

// Observe checks one trace against every rule.
func (ad *AnomalyDetector) Observe(t models.Trace) {
	ad.mu.Lock()
	defer ad.mu.Unlock()

	now := t.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	if ad.lastCleanup.IsZero() {
		ad.lastCleanup = now
	} else if now.Sub(ad.lastCleanup) > ad.config.CleanupInterval {
		ad.cleanup(now)
		ad.lastCleanup = now
	}

	ad.detectBroadcastStorm(t, now)
	ad.detectMalformedBurst(t, now)
	ad.detectUnsecureProtocol(t, now)
	ad.detectDoS(t, now)
}

// cleanup removes old entries to bound memory.
func (ad *AnomalyDetector) cleanup(now time.Time) {
	for key, lastAlert := range ad.unsecureAlerts {
		if now.Sub(lastAlert) > ad.config.DataRetention {
			delete(ad.unsecureAlerts, key)
		}
	}
	for addr, w := range ad.perSource {
		if now.Sub(w.start) > ad.config.DataRetention {
			delete(ad.perSource, addr)
		}
	}
}

func (ad *AnomalyDetector) detectBroadcastStorm(t models.Trace, now time.Time) {
	if t.DstMAC != broadcastMAC {
		return
	}
	if n, over := ad.broadcasts.hit(now, ad.config.BroadcastThreshold); over {
		ad.addAlert(Alert{
			Type:      AnomalyBroadcastStorm,
			Source:    t.Interface,
			Message:   fmt.Sprintf("Broadcast storm detected: %d broadcasts in 1 second", n),
			Timestamp: now,
		})
	}
}

func (ad *AnomalyDetector) detectMalformedBurst(t models.Trace, now time.Time) {
	if !t.Class.Malformed() {
		return
	}
	if n, over := ad.malformed.hit(now, ad.config.MalformedThreshold); over {
		ad.addAlert(Alert{
			Type:      AnomalyMalformedBurst,
			Source:    t.Interface,
			Message:   fmt.Sprintf("%d malformed frames in 1 second, last %s", n, t.Class),
			Timestamp: now,
		})
	}
}

var unsecurePorts = map[uint16]bool{
	21: true,
	23: true,
	80: true,
}

func (ad *AnomalyDetector) detectUnsecureProtocol(t models.Trace, now time.Time) {
	if t.Class != decode.ClassTCP || !unsecurePorts[t.DstPort] {
		return
	}

	// Throttle alerts: max 1 per address/port per cooldown period
	key := netip.AddrPortFrom(t.SrcIP, t.DstPort).String()
	if last, exists := ad.unsecureAlerts[key]; exists && now.Sub(last) <= ad.config.UnsecureCooldown {
		return
	}
	ad.addAlert(Alert{
		Type:      AnomalyUnsecure,
		Source:    t.SrcIP.String(),
		Message:   fmt.Sprintf("Plaintext %s traffic on port %d from %s", GetServiceName(t.DstPort), t.DstPort, t.SrcIP),
		Timestamp: now,
	})
	ad.unsecureAlerts[key] = now
}

func (ad *AnomalyDetector) detectDoS(t models.Trace, now time.Time) {
	if !t.SrcIP.IsValid() {
		return
	}

	w, ok := ad.perSource[t.SrcIP]
	if !ok {
		w = &window{start: now}
		ad.perSource[t.SrcIP] = w
	}
	if n, over := w.hit(now, ad.config.DoSThreshold); over {
		ad.addAlert(Alert{
			Type:      AnomalyDoS,
			Source:    t.SrcIP.String(),
			Message:   fmt.Sprintf("High packet rate from %s: %d pps", t.SrcIP, n),
			Timestamp: now,
		})
	}
}

// addAlert appends to the bounded history.
func (ad *AnomalyDetector) addAlert(alert Alert) {
	ad.alerts = append(ad.alerts, alert)
	if len(ad.alerts) > ad.config.MaxAlerts {
		ad.alerts = ad.alerts[len(ad.alerts)-ad.config.MaxAlerts:]
	}
}

// GetRecentAlerts returns the most recent alerts, newest last.
func (ad *AnomalyDetector) GetRecentAlerts(limit int) []Alert {
	ad.mu.Lock()
	defer ad.mu.Unlock()

	limit = max(limit, 0)
	start := 0
	if len(ad.alerts) > limit {
		start = len(ad.alerts) - limit
	}

	result := make([]Alert, len(ad.alerts)-start)
	copy(result, ad.alerts[start:])
	return result
}
