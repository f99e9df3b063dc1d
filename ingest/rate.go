package ingest

import (
	"sync/atomic"
	"time"
)

// Counter tracks accepted frames and samples for one connection. Only the
// owning ingest loop writes the counts; status tickers and the metrics
// publisher read them concurrently, hence the atomics. start never changes
// after construction, so readers touch it freely.
type Counter struct {
	frames       uint64
	samples      uint64
	decodeErrors uint64

	start time.Time
}

func NewCounter(start time.Time) *Counter {
	return &Counter{start: start}
}

func (c *Counter) addFrame(samples int) {
	atomic.AddUint64(&c.frames, 1)
	atomic.AddUint64(&c.samples, uint64(samples))
}

func (c *Counter) addDecodeError() {
	atomic.AddUint64(&c.decodeErrors, 1)
}

func (c *Counter) Frames() uint64       { return atomic.LoadUint64(&c.frames) }
func (c *Counter) Samples() uint64      { return atomic.LoadUint64(&c.samples) }
func (c *Counter) DecodeErrors() uint64 { return atomic.LoadUint64(&c.decodeErrors) }

// SampleRate returns accepted samples per second of wall time since start.
func (c *Counter) SampleRate(now time.Time) float64 {
	return Rate(c.Samples(), now.Sub(c.start))
}

// FrameRate returns accepted frames (batches) per second of wall time.
func (c *Counter) FrameRate(now time.Time) float64 {
	return Rate(c.Frames(), now.Sub(c.start))
}

// Rate divides count by elapsed, returning 0 for a zero or negative window.
func Rate(count uint64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(count) / elapsed.Seconds()
}
