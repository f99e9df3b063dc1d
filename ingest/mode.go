package ingest

import (
	"time"

	"github.com/cardialab/ekgraph/decode"
	"github.com/cardialab/ekgraph/schema"
)

// Mode maps one data line to timestamped samples, split per channel. The
// outer index of the result is the channel index.
type Mode interface {
	// Channels is the number of buffers the mode writes.
	Channels() int

	// Decode parses line received at recv. Protocol errors are returned
	// as-is from the decode package; the loop absorbs them.
	Decode(line string, recv time.Time) ([][]schema.Sample, error)

	// Batch reports whether a decoded line is a timed batch for a single
	// channel (as opposed to one sample per channel).
	Batch() bool
}

// FixedChannels decodes comma-separated hex lines carrying exactly one
// sample per channel, all stamped with the arrival instant.
type FixedChannels struct {
	N int
}

func (m FixedChannels) Channels() int { return m.N }
func (m FixedChannels) Batch() bool   { return false }

func (m FixedChannels) Decode(line string, recv time.Time) ([][]schema.Sample, error) {
	frame, err := decode.DecodeHexFrame(line, m.N)
	if err != nil {
		return nil, err
	}
	return splitPerChannel(frame, recv), nil
}

// DecimalPair decodes the legacy "[a0,a1]" dual-channel serial shape.
type DecimalPair struct{}

func (DecimalPair) Channels() int { return 2 }
func (DecimalPair) Batch() bool   { return false }

func (DecimalPair) Decode(line string, recv time.Time) ([][]schema.Sample, error) {
	frame, err := decode.DecodeDecimalPair(line)
	if err != nil {
		return nil, err
	}
	return splitPerChannel(frame, recv), nil
}

// BatchedSingle decodes a variable-length hex list carrying a 100 ms batch
// of one channel, spreading synthetic timestamps across the batch interval.
type BatchedSingle struct {
	Interval time.Duration
}

func (BatchedSingle) Channels() int { return 1 }
func (BatchedSingle) Batch() bool   { return true }

func (m BatchedSingle) Decode(line string, recv time.Time) ([][]schema.Sample, error) {
	frame, err := decode.DecodeHexBatch(line)
	if err != nil {
		return nil, err
	}

	interval := m.Interval
	if interval == 0 {
		interval = decode.DefaultBatchInterval
	}
	return [][]schema.Sample{decode.SpreadBatch(recv, interval, frame)}, nil
}

func splitPerChannel(frame schema.Frame, recv time.Time) [][]schema.Sample {
	out := make([][]schema.Sample, len(frame))
	for i, v := range frame {
		out[i] = []schema.Sample{{Timestamp: recv, Value: v}}
	}
	return out
}
