// Package capture owns the packet source and drives frames through the
// decoder one read at a time.
package capture

import (
	"net/netip"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/pkg/errors"
)

// ErrUnknownInterface is returned when the requested interface is not among
// the devices libpcap can see.
var ErrUnknownInterface = errors.New("no such interface")

// Source is a packet data source that can be terminated. The slice returned
// by ZeroCopyReadPacketData is only valid until the next call.
type Source interface {
	gopacket.ZeroCopyPacketDataSource
	Close()
}

// Config controls how a live source is opened.
type Config struct {
	// Interface is the device name, e.g. eth0.
	Interface string
	// Snaplen is the maximum number of bytes kept per frame.
	// Defaults to 65536 if unset or <= 0.
	Snaplen int32
	// Promisc controls whether the interface is opened in promiscuous mode.
	// Defaults to true if unset.
	Promisc *bool
	// ReadTimeout bounds each blocking read so cancellation can be noticed.
	// Defaults to 250ms if unset or <= 0.
	ReadTimeout time.Duration
}

const (
	defaultSnaplen     = 65536
	defaultReadTimeout = 250 * time.Millisecond
)

func applyDefaults(cfg *Config) Config {
	if cfg == nil {
		return Config{
			Snaplen:     defaultSnaplen,
			Promisc:     ptrBool(true),
			ReadTimeout: defaultReadTimeout,
		}
	}

	out := *cfg
	if out.Snaplen <= 0 {
		out.Snaplen = defaultSnaplen
	}
	if out.Promisc == nil {
		out.Promisc = ptrBool(true)
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = defaultReadTimeout
	}
	return out
}

// Interface is the metadata kept for a network device.
type Interface struct {
	Name        string
	Description string
	// Addresses holds every IPv4 and IPv6 address assigned to the device.
	Addresses []string
	// Networks holds the directly attached prefixes, where a netmask is known.
	Networks []netip.Prefix
}

// findAllDevs is swapped out in tests so no pcap environment is needed.
var findAllDevs = pcap.FindAllDevs

// Interfaces lists every device visible to libpcap.
func Interfaces() ([]Interface, error) {
	devices, err := findAllDevs()
	if err != nil {
		return nil, errors.Wrap(err, "list interfaces")
	}

	ifaces := make([]Interface, 0, len(devices))
	for _, d := range devices {
		addrs := make([]string, 0, len(d.Addresses))
		var nets []netip.Prefix
		for _, a := range d.Addresses {
			if a.IP == nil {
				continue
			}
			addrs = append(addrs, a.IP.String())
			if p, ok := network(a); ok {
				nets = append(nets, p)
			}
		}
		ifaces = append(ifaces, Interface{
			Name:        d.Name,
			Description: d.Description,
			Addresses:   addrs,
			Networks:    nets,
		})
	}
	return ifaces, nil
}

func network(a pcap.InterfaceAddress) (netip.Prefix, bool) {
	ip, ok := netip.AddrFromSlice(a.IP)
	if !ok || a.Netmask == nil {
		return netip.Prefix{}, false
	}
	ip = ip.Unmap()
	ones, bits := a.Netmask.Size()
	if bits == 0 || bits != ip.BitLen() {
		return netip.Prefix{}, false
	}
	return netip.PrefixFrom(ip, ones).Masked(), true
}

// ResolveInterface finds the device with exactly the given name. It fails
// with ErrUnknownInterface before anything is opened.
func ResolveInterface(name string) (Interface, error) {
	ifaces, err := Interfaces()
	if err != nil {
		return Interface{}, err
	}
	for _, iface := range ifaces {
		if iface.Name == name {
			return iface, nil
		}
	}
	return Interface{}, errors.Wrapf(ErrUnknownInterface, "%q", name)
}

// Open starts a live capture on cfg.Interface.
func Open(cfg *Config) (Source, error) {
	config := applyDefaults(cfg)
	if config.Interface == "" {
		return nil, errors.New("open capture: empty interface name")
	}

	handle, err := pcap.OpenLive(config.Interface, config.Snaplen, *config.Promisc, config.ReadTimeout)
	if err != nil {
		return nil, errors.Wrapf(err, "open capture on %s", config.Interface)
	}
	if lt := handle.LinkType(); lt != layers.LinkTypeEthernet {
		handle.Close()
		return nil, errors.Errorf("open capture on %s: link type %v is not Ethernet", config.Interface, lt)
	}
	return handle, nil
}

// OpenFile replays a pcap file through the same read path as a live capture.
func OpenFile(path string) (Source, error) {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open capture file %s", path)
	}
	return handle, nil
}

func ptrBool(v bool) *bool {
	return &v
}
