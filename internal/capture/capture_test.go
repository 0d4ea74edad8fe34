package capture

import (
	"context"
	"io"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netsniff/internal/decode"
	"netsniff/internal/testutil/frames"
)

type read struct {
	data []byte
	err  error
}

// mockSource replays a fixed sequence of reads and then reports io.EOF.
type mockSource struct {
	mtx    sync.Mutex
	reads  []read
	closed bool
}

func newMockSource(reads ...read) *mockSource {
	return &mockSource{reads: reads}
}

func (s *mockSource) ZeroCopyReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed || len(s.reads) == 0 {
		return nil, gopacket.CaptureInfo{}, io.EOF
	}
	r := s.reads[0]
	s.reads = s.reads[1:]
	return r.data, gopacket.CaptureInfo{
		Timestamp:     time.Now(),
		CaptureLength: len(r.data),
		Length:        len(r.data),
	}, r.err
}

func (s *mockSource) Close() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.closed = true
}

type recordingSink struct {
	classes []decode.Class
	lengths []int
	errs    []error
}

func (s *recordingSink) Emit(ci gopacket.CaptureInfo, out decode.FrameOutcome) {
	s.classes = append(s.classes, out.Class())
	s.lengths = append(s.lengths, ci.Length)
}

func (s *recordingSink) ReadError(err error) {
	s.errs = append(s.errs, err)
}

func TestLoopContinuesAfterReadError(t *testing.T) {
	transient := errors.New("interface went away briefly")
	frame := frames.TCP(t, frames.V4(), []byte("payload"))
	src := newMockSource(
		read{err: transient},
		read{data: frame},
	)
	sink := &recordingSink{}

	loop := NewLoop(src, sink, false)
	require.NoError(t, loop.Run(context.Background()))

	require.Len(t, sink.errs, 1)
	assert.ErrorIs(t, sink.errs[0], transient)
	assert.Equal(t, []decode.Class{decode.ClassTCP}, sink.classes)
	assert.Equal(t, []int{len(frame)}, sink.lengths)
	assert.Equal(t, uint64(1), loop.Frames())
	assert.Equal(t, uint64(1), loop.ReadErrors())
	assert.True(t, src.closed, "source closed on exit")
}

func TestLoopTimeoutIsNotAnError(t *testing.T) {
	src := newMockSource(
		read{err: pcap.NextErrorTimeoutExpired},
		read{err: pcap.NextErrorTimeoutExpired},
		read{data: frames.UDP(t, frames.V6(), []byte("q"))},
	)
	sink := &recordingSink{}

	require.NoError(t, NewLoop(src, sink, true).Run(context.Background()))
	assert.Empty(t, sink.errs)
	assert.Equal(t, []decode.Class{decode.ClassUDP}, sink.classes)
}

func TestLoopEmitsInArrivalOrder(t *testing.T) {
	ep := frames.V4()
	src := newMockSource(
		read{data: frames.ARP(t, ep)},
		read{data: []byte{0x01, 0x02}},
		read{data: frames.UDP(t, ep, nil)},
		read{data: frames.Raw(t, ep, 1, make([]byte, 8))},
	)
	sink := &recordingSink{}

	require.NoError(t, NewLoop(src, sink, false).Run(context.Background()))
	assert.Equal(t, []decode.Class{
		decode.ClassOtherEtherType,
		decode.ClassMalformedEthernet,
		decode.ClassUDP,
		decode.ClassOtherTransport,
	}, sink.classes)
}

// endlessSource times out forever, like an idle live interface.
type endlessSource struct{ closed chan struct{} }

func (s *endlessSource) ZeroCopyReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	time.Sleep(time.Millisecond)
	return nil, gopacket.CaptureInfo{}, pcap.NextErrorTimeoutExpired
}

func (s *endlessSource) Close() { close(s.closed) }

func TestLoopStopsOnCancel(t *testing.T) {
	src := &endlessSource{closed: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- NewLoop(src, &recordingSink{}, false).Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop after cancel")
	}
	<-src.closed
}

func TestRetryDelay(t *testing.T) {
	assert.Zero(t, retryDelay(0))
	assert.Zero(t, retryDelay(1))
	assert.Equal(t, 10*time.Millisecond, retryDelay(2))
	assert.Equal(t, 20*time.Millisecond, retryDelay(3))
	assert.Equal(t, 640*time.Millisecond, retryDelay(8))
	assert.Equal(t, time.Second, retryDelay(9))
	assert.Equal(t, time.Second, retryDelay(1000))
}

func TestLoopBacksOffOnRepeatedReadErrors(t *testing.T) {
	down := errors.New("device went down")
	frame := frames.TCP(t, frames.V4(), nil)
	src := newMockSource(
		read{err: down},
		read{err: down},
		read{err: down},
		read{err: down},
		read{data: frame},
		read{err: down},
		read{err: down},
	)
	sink := &recordingSink{}

	var waits []time.Duration
	loop := NewLoop(src, sink, false)
	loop.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	require.NoError(t, loop.Run(context.Background()))
	assert.Len(t, sink.errs, 6, "every failure is still reported")
	assert.Equal(t, []decode.Class{decode.ClassTCP}, sink.classes)
	assert.Equal(t, []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		10 * time.Millisecond,
	}, waits)
}

// failingSource fails every read, like a capture handle on a removed device.
type failingSource struct{ closed chan struct{} }

func (s *failingSource) ZeroCopyReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	return nil, gopacket.CaptureInfo{}, errors.New("read error: device is down")
}

func (s *failingSource) Close() { close(s.closed) }

func TestLoopCancelDuringBackoff(t *testing.T) {
	src := &failingSource{closed: make(chan struct{})}
	sink := &countingSink{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- NewLoop(src, sink, false).Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop after cancel")
	}
	<-src.closed
	assert.Less(t, sink.errs.Load(), int64(20), "read errors are paced")
}

type countingSink struct{ errs atomic.Int64 }

func (s *countingSink) Emit(gopacket.CaptureInfo, decode.FrameOutcome) {}

func (s *countingSink) ReadError(error) { s.errs.Add(1) }

func TestApplyDefaults(t *testing.T) {
	cfg := applyDefaults(nil)
	assert.Equal(t, int32(65536), cfg.Snaplen)
	assert.True(t, *cfg.Promisc)
	assert.Equal(t, 250*time.Millisecond, cfg.ReadTimeout)

	cfg = applyDefaults(&Config{Interface: "eth1", Snaplen: 128, Promisc: ptrBool(false)})
	assert.Equal(t, "eth1", cfg.Interface)
	assert.Equal(t, int32(128), cfg.Snaplen)
	assert.False(t, *cfg.Promisc)
	assert.Equal(t, 250*time.Millisecond, cfg.ReadTimeout)
}

func stubDevices(t *testing.T, devs []pcap.Interface, err error) {
	t.Helper()
	orig := findAllDevs
	findAllDevs = func() ([]pcap.Interface, error) { return devs, err }
	t.Cleanup(func() { findAllDevs = orig })
}

func TestResolveInterface(t *testing.T) {
	stubDevices(t, []pcap.Interface{
		{Name: "lo", Addresses: []pcap.InterfaceAddress{{IP: net.IPv4(127, 0, 0, 1)}}},
		{
			Name:        "eth0",
			Description: "Onboard",
			Addresses: []pcap.InterfaceAddress{
				{IP: net.IPv4(192, 168, 1, 10), Netmask: net.CIDRMask(24, 32)},
				{IP: net.ParseIP("fe80::1"), Netmask: net.CIDRMask(64, 128)},
				{},
			},
		},
	}, nil)

	iface, err := ResolveInterface("eth0")
	require.NoError(t, err)
	assert.Equal(t, "Onboard", iface.Description)
	assert.Equal(t, []string{"192.168.1.10", "fe80::1"}, iface.Addresses)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("192.168.1.0/24"),
		netip.MustParsePrefix("fe80::/64"),
	}, iface.Networks)

	lo, err := ResolveInterface("lo")
	require.NoError(t, err)
	assert.Empty(t, lo.Networks, "no netmask, no network")

	_, err = ResolveInterface("eth")
	assert.ErrorIs(t, err, ErrUnknownInterface)
	assert.Contains(t, err.Error(), `"eth"`)
}

func TestResolveInterfaceListFails(t *testing.T) {
	stubDevices(t, nil, errors.New("permission denied"))

	_, err := ResolveInterface("eth0")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownInterface)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestOpenRejectsEmptyInterface(t *testing.T) {
	_, err := Open(&Config{})
	assert.Error(t, err)
}

func TestOpenFileMissing(t *testing.T) {
	_, err := OpenFile(t.TempDir() + "/missing.pcap")
	assert.Error(t, err)
}
