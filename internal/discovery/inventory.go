// Package discovery builds a passive inventory of hosts from observed
// traffic. Nothing is ever sent on the wire.
package discovery

import (
	"net/netip"
	"sort"
	"sync"
	"time"

	"netsniff/internal/models"
)

// Config controls which hosts are recorded.
type Config struct {
	// Networks limits the inventory to these prefixes. Empty means every
	// source address is recorded.
	Networks []netip.Prefix
	// MaxHosts caps the inventory size. Defaults to 4096 if unset or <= 0.
	MaxHosts int
}

func applyDefaults(cfg *Config) Config {
	if cfg == nil {
		return Config{MaxHosts: 4096}
	}
	out := *cfg
	if out.MaxHosts <= 0 {
		out.MaxHosts = 4096
	}
	return out
}

// Inventory maps source addresses to the MAC they were seen behind. It is
// safe for concurrent use.
type Inventory struct {
	mu     sync.Mutex
	config Config
	hosts  map[netip.Addr]*Host
}

// NewInventory returns an empty inventory.
func NewInventory(cfg *Config) *Inventory {
	return &Inventory{
		config: applyDefaults(cfg),
		hosts:  make(map[netip.Addr]*Host),
	}
}

func (inv *Inventory) local(ip netip.Addr) bool {
	if len(inv.config.Networks) == 0 {
		return true
	}
	for _, p := range inv.config.Networks {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

// Observe records the sender of t when it decoded to an IP source address
// on a local network.
func (inv *Inventory) Observe(t models.Trace) {
	if !t.SrcIP.IsValid() || t.SrcMAC == "" {
		return
	}
	ip := t.SrcIP.Unmap()
	if ip.IsUnspecified() || ip.IsMulticast() {
		return
	}

	now := t.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()

	if !inv.local(ip) {
		return
	}

	h, ok := inv.hosts[ip]
	if !ok {
		if len(inv.hosts) >= inv.config.MaxHosts {
			return
		}
		h = &Host{IP: ip, MAC: t.SrcMAC, FirstSeen: now}
		inv.hosts[ip] = h
	}
	if h.MAC != t.SrcMAC {
		h.MAC = t.SrcMAC
		h.MACChanges++
	}
	h.LastSeen = now
	h.Frames++
}

// Hosts returns a copy of the inventory sorted by address.
func (inv *Inventory) Hosts() []Host {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	result := make([]Host, 0, len(inv.hosts))
	for _, h := range inv.hosts {
		result = append(result, *h)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].IP.Less(result[j].IP)
	})
	return result
}

// Len returns the number of hosts recorded.
func (inv *Inventory) Len() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return len(inv.hosts)
}
