package ingest

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/cardialab/ekgraph/broker"
	"github.com/cardialab/ekgraph/ringbuf"
	"github.com/cardialab/ekgraph/schema"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// fakeTransport replays scripted lines, then reports EOF.
type fakeTransport struct {
	lines   []string
	acks    []string
	ackErr  error
	bidi    bool
	closed  bool
	connErr error
}

func (f *fakeTransport) Connect(ctx context.Context) error { return f.connErr }

func (f *fakeTransport) ReadLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(f.lines) == 0 {
		return "", io.EOF
	}
	line := f.lines[0]
	f.lines = f.lines[1:]
	return line, nil
}

func (f *fakeTransport) SendAck(ctx context.Context, ack string) error {
	if f.ackErr != nil {
		return f.ackErr
	}
	f.acks = append(f.acks, ack)
	return nil
}

func (f *fakeTransport) Acks() bool { return f.bidi }

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func (f *fakeTransport) Peer() string { return "test" }

func buffers(n, capacity int) []*ringbuf.Buffer {
	out := make([]*ringbuf.Buffer, n)
	for i := range out {
		out[i] = ringbuf.New(capacity)
	}
	return out
}

func runLoop(t *testing.T, tr *fakeTransport, mode Mode, bufs []*ringbuf.Buffer) (*Loop, error) {
	t.Helper()
	loop, err := NewLoop(tr, mode, bufs, nil)
	require.NoError(t, err)
	return loop, loop.Run(context.Background())
}

func TestFixedChannelsFanOut(t *testing.T) {
	tr := &fakeTransport{
		bidi:  true,
		lines: []string{"800,801,802,803,804,805,806,807,808,809,80A,80B"},
	}
	bufs := buffers(12, 16)

	loop, err := runLoop(t, tr, FixedChannels{N: 12}, bufs)
	require.ErrorIs(t, errors.Cause(err), io.EOF)

	for ch, want := range []int{
		2048, 2049, 2050, 2051, 2052, 2053,
		2054, 2055, 2056, 2057, 2058, 2059,
	} {
		snap := bufs[ch].Snapshot()
		require.Len(t, snap, 1)
		require.Equal(t, want, snap[0].Value)
	}

	require.Equal(t, []string{AckOK}, tr.acks)
	require.Equal(t, uint64(1), loop.Counter().Frames())
	require.Equal(t, uint64(12), loop.Counter().Samples())
	require.True(t, tr.closed)
}

func TestDecimalPairClamps(t *testing.T) {
	tr := &fakeTransport{lines: []string{"[-5,5000]"}}
	bufs := buffers(2, 16)

	_, err := runLoop(t, tr, DecimalPair{}, bufs)
	require.ErrorIs(t, errors.Cause(err), io.EOF)

	require.Equal(t, 0, bufs[0].Snapshot()[0].Value)
	require.Equal(t, 4095, bufs[1].Snapshot()[0].Value)
}

func TestMalformedLineIsAbsorbed(t *testing.T) {
	tr := &fakeTransport{
		bidi: true,
		lines: []string{
			"1,2,xyz,4,5,6,7,8,9,10,11,12",
			"800,801,802,803,804,805,806,807,808,809,80A,80B",
		},
	}
	bufs := buffers(12, 16)

	loop, err := runLoop(t, tr, FixedChannels{N: 12}, bufs)
	require.ErrorIs(t, errors.Cause(err), io.EOF)

	// the bad line left no trace in the buffers, the good one landed
	require.Len(t, bufs[0].Snapshot(), 1)
	require.Equal(t, []string{AckError, AckOK}, tr.acks)
	require.Equal(t, uint64(1), loop.Counter().Frames())
	require.Equal(t, uint64(1), loop.Counter().DecodeErrors())
}

func TestCommentLinesSkipped(t *testing.T) {
	tr := &fakeTransport{
		bidi: true,
		lines: []string{
			"# sampling at 860 SPS",
			"",
			"   ",
		},
	}
	bufs := buffers(1, 16)

	loop, err := runLoop(t, tr, BatchedSingle{}, bufs)
	require.ErrorIs(t, errors.Cause(err), io.EOF)

	require.Equal(t, 0, bufs[0].Len())
	require.Empty(t, tr.acks, "non-data lines are not acknowledged")
	require.Equal(t, uint64(0), loop.Counter().Frames())
}

func TestBatchedSingleSpreadsTimestamps(t *testing.T) {
	tr := &fakeTransport{lines: []string{"800,801,802,803"}}
	bufs := buffers(1, 16)

	loop, err := runLoop(t, tr, BatchedSingle{Interval: 100 * time.Millisecond}, bufs)
	require.ErrorIs(t, errors.Cause(err), io.EOF)

	snap := bufs[0].Snapshot()
	require.Len(t, snap, 4)
	for i := 1; i < len(snap); i++ {
		require.True(t, snap[i].Timestamp.After(snap[i-1].Timestamp))
	}
	require.Equal(t, uint64(1), loop.Counter().Frames())
	require.Equal(t, uint64(4), loop.Counter().Samples())
}

func TestAckFailureClosesConnection(t *testing.T) {
	tr := &fakeTransport{
		bidi:   true,
		ackErr: errors.New("broken pipe"),
		lines: []string{
			"800,801",
			"900,901",
		},
	}
	bufs := buffers(2, 16)

	_, err := runLoop(t, tr, FixedChannels{N: 2}, bufs)
	require.Error(t, err)
	require.Contains(t, err.Error(), "send ack")
	require.True(t, tr.closed)

	// the loop stopped after the first line
	require.Len(t, bufs[0].Snapshot(), 1)
}

func TestConnectFailureIsTerminal(t *testing.T) {
	tr := &fakeTransport{connErr: errors.New("no such port")}

	_, err := runLoop(t, tr, FixedChannels{N: 2}, buffers(2, 16))
	require.Error(t, err)
	require.Contains(t, err.Error(), "connect")
}

func TestStopRequestDrainsCleanly(t *testing.T) {
	tr := &fakeTransport{lines: []string{"[1,2]"}}
	bufs := buffers(2, 16)

	loop, err := NewLoop(tr, DecimalPair{}, bufs, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, loop.Run(ctx), "cancellation is a clean stop, not an error")
	require.True(t, tr.closed)
}

type fakePublisher struct {
	msgs []broker.Message
}

func (p *fakePublisher) Publish(msg broker.Message) {
	p.msgs = append(p.msgs, msg)
}

func TestPublishedFramesCarryPayload(t *testing.T) {
	pub := &fakePublisher{}
	line := "800,801,802,803"
	tr := &fakeTransport{lines: []string{line}}

	loop, err := NewLoop(tr, BatchedSingle{Interval: 100 * time.Millisecond}, buffers(1, 16), pub)
	require.NoError(t, err)
	require.ErrorIs(t, errors.Cause(loop.Run(context.Background())), io.EOF)

	var frames []*schema.FrameEvent
	for _, msg := range pub.msgs {
		if f, ok := msg.(*schema.FrameEvent); ok {
			frames = append(frames, f)
		}
	}
	require.Len(t, frames, 1)
	require.True(t, frames[0].Batch)
	require.Len(t, frames[0].Values, 4)
	require.Equal(t, len(line), frames[0].Payload)
}

func TestRateReadsDuringRun(t *testing.T) {
	lines := make([]string, 500)
	for i := range lines {
		lines[i] = "800,801"
	}
	tr := &fakeTransport{lines: lines}

	loop, err := NewLoop(tr, FixedChannels{N: 2}, buffers(2, 16), nil)
	require.NoError(t, err)

	// concurrent rate reads while the loop runs must be safe
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_ = loop.Counter().SampleRate(time.Now())
			}
		}
	}()

	require.ErrorIs(t, errors.Cause(loop.Run(context.Background())), io.EOF)
	close(stop)
	wg.Wait()

	require.Equal(t, uint64(500), loop.Counter().Frames())
}

func TestBufferCountMismatch(t *testing.T) {
	_, err := NewLoop(&fakeTransport{}, FixedChannels{N: 12}, buffers(3, 16), nil)
	require.Error(t, err)
}
