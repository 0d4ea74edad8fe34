package capture

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"github.com/pkg/errors"

	"netsniff/internal/decode"
)

const (
	retryBase = 10 * time.Millisecond
	retryMax  = time.Second
)

// retryDelay is the pause after the n-th read error in a row. A lone error is
// retried at once; a run of them backs off up to retryMax.
func retryDelay(n int) time.Duration {
	if n < 2 {
		return 0
	}
	return min(retryBase<<min(n-2, 7), retryMax)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Sink receives everything the loop observes, in arrival order. Emit is
// called before the next read, so outcome slices are still valid inside it
// but must not be retained.
type Sink interface {
	Emit(ci gopacket.CaptureInfo, out decode.FrameOutcome)
	ReadError(err error)
}

// Loop reads frames from a Source, decodes them and hands each outcome to a
// Sink. It runs on a single goroutine.
type Loop struct {
	src     Source
	sink    Sink
	wantHex bool
	sleep   func(context.Context, time.Duration) error

	frames     atomic.Uint64
	readErrors atomic.Uint64
}

// NewLoop returns a loop that owns src. Run closes it on exit.
func NewLoop(src Source, sink Sink, wantHex bool) *Loop {
	return &Loop{
		src:     src,
		sink:    sink,
		wantHex: wantHex,
		sleep:   sleepCtx,
	}
}

// Run blocks until the source is exhausted or ctx is cancelled. It returns
// nil at end of input and ctx.Err() on cancellation. Read errors are passed
// to the sink and do not stop the loop, but consecutive ones slow it down.
func (l *Loop) Run(ctx context.Context) error {
	defer l.src.Close()

	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, ci, err := l.src.ZeroCopyReadPacketData()
		if err != nil {
			switch {
			case errors.Is(err, pcap.NextErrorTimeoutExpired):
				failures = 0
				continue
			case errors.Is(err, io.EOF), errors.Is(err, pcap.NextErrorNoMorePackets):
				return nil
			}
			l.readErrors.Add(1)
			l.sink.ReadError(err)
			failures++
			if d := retryDelay(failures); d > 0 {
				if err := l.sleep(ctx, d); err != nil {
					return err
				}
			}
			continue
		}

		failures = 0
		l.frames.Add(1)
		l.sink.Emit(ci, decode.Frame(data, l.wantHex))
	}
}

// Frames returns the number of frames read so far.
func (l *Loop) Frames() uint64 { return l.frames.Load() }

// ReadErrors returns the number of failed reads so far.
func (l *Loop) ReadErrors() uint64 { return l.readErrors.Load() }
