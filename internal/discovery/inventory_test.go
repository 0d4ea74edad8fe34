package discovery

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netsniff/internal/models"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func seen(ip, mac string, at time.Duration) models.Trace {
	return models.Trace{
		Timestamp: t0.Add(at),
		SrcIP:     netip.MustParseAddr(ip),
		SrcMAC:    mac,
	}
}

func TestInventoryRecordsLocalHosts(t *testing.T) {
	inv := NewInventory(&Config{Networks: []netip.Prefix{netip.MustParsePrefix("192.168.1.0/24")}})

	inv.Observe(seen("192.168.1.20", "aa:aa:aa:aa:aa:02", 0))
	inv.Observe(seen("192.168.1.3", "aa:aa:aa:aa:aa:03", time.Second))
	inv.Observe(seen("192.168.1.20", "aa:aa:aa:aa:aa:02", 2*time.Second))
	inv.Observe(seen("8.8.8.8", "00:11:22:33:44:55", 0))
	inv.Observe(models.Trace{SrcMAC: "aa:aa:aa:aa:aa:09"})

	hosts := inv.Hosts()
	require.Len(t, hosts, 2)
	assert.Equal(t, "192.168.1.3", hosts[0].IP.String())
	assert.Equal(t, "192.168.1.20", hosts[1].IP.String())

	h := hosts[1]
	assert.Equal(t, int64(2), h.Frames)
	assert.Equal(t, t0, h.FirstSeen)
	assert.Equal(t, t0.Add(2*time.Second), h.LastSeen)
	assert.Zero(t, h.MACChanges)
}

func TestInventoryTracksMACChanges(t *testing.T) {
	inv := NewInventory(nil)

	inv.Observe(seen("10.0.0.5", "aa:aa:aa:aa:aa:01", 0))
	inv.Observe(seen("10.0.0.5", "bb:bb:bb:bb:bb:01", time.Second))

	hosts := inv.Hosts()
	require.Len(t, hosts, 1)
	assert.Equal(t, "bb:bb:bb:bb:bb:01", hosts[0].MAC)
	assert.Equal(t, 1, hosts[0].MACChanges)
}

func TestInventoryCapAndFilters(t *testing.T) {
	inv := NewInventory(&Config{MaxHosts: 2})

	inv.Observe(seen("10.0.0.1", "aa:aa:aa:aa:aa:01", 0))
	inv.Observe(seen("10.0.0.2", "aa:aa:aa:aa:aa:02", 0))
	inv.Observe(seen("10.0.0.3", "aa:aa:aa:aa:aa:03", 0))
	inv.Observe(seen("0.0.0.0", "aa:aa:aa:aa:aa:04", 0))
	inv.Observe(seen("ff02::fb", "aa:aa:aa:aa:aa:05", 0))
	assert.Equal(t, 2, inv.Len())

	inv.Observe(seen("10.0.0.2", "aa:aa:aa:aa:aa:02", time.Second))
	assert.Equal(t, int64(2), inv.Hosts()[1].Frames, "known hosts still update at the cap")
}

func TestApplyDefaults(t *testing.T) {
	assert.Equal(t, 4096, applyDefaults(nil).MaxHosts)
	assert.Equal(t, 4096, applyDefaults(&Config{MaxHosts: -1}).MaxHosts)
	assert.Equal(t, 10, applyDefaults(&Config{MaxHosts: 10}).MaxHosts)
}
