package discovery

import (
	"net/netip"
	"time"
)

// Host represents a device seen sending traffic on the local network.
type Host struct {
	IP        netip.Addr
	MAC       string
	FirstSeen time.Time
	LastSeen  time.Time
	Frames    int64
	// MACChanges counts how often the address was seen behind a new MAC.
	MACChanges int
}
