package ekgraph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cardialab/ekgraph/decode"
	"github.com/cardialab/ekgraph/messages"
	"github.com/cardialab/ekgraph/ringbuf"
	"github.com/cardialab/ekgraph/schema"
	"github.com/cardialab/ekgraph/window"
	"github.com/chrispappas/golang-generics-set/set"
	"github.com/pkg/errors"
)

// ViewRequest is what a view client sends: the channel it wants to watch
// and, optionally, a window override. Sending another request on the same
// connection switches channels.
type ViewRequest struct {
	Channel       int     `json:"channel"`
	WindowSeconds float64 `json:"windowSeconds"`
}

// Subscription tracks one view client. It keeps its own display buffer fed
// from broker frames so switching channels can discard stale data without
// touching the shared ingest buffers.
type Subscription struct {
	g       *Graph
	allowed set.Set[int]
	opts    window.Options

	mu      sync.Mutex
	channel int
	buf     *ringbuf.Buffer
	// seeded is the newest timestamp taken from the shared ingest buffer
	// on the last reseed; broker events at or before it are already in the
	// display buffer and must not be applied again.
	seeded time.Time

	lastBatch      int
	lastBatchBytes int
}

func (g *Graph) NewSubscription(req *ViewRequest) (*Subscription, error) {
	channels := make([]int, len(g.buffers))
	for i := range channels {
		channels[i] = i
	}

	sub := &Subscription{
		g:       g,
		allowed: set.FromSlice(channels),
		opts:    g.viewOptions(req),
		buf:     ringbuf.New(g.cfg.Stream.BufferSize),
	}

	if err := sub.SetChannel(req.Channel); err != nil {
		return nil, err
	}
	return sub, nil
}

// SetChannel switches the watched channel, clearing the display buffer and
// reseeding it from the shared ingest buffer.
func (sub *Subscription) SetChannel(ch int) error {
	if !sub.allowed.Has(ch) {
		return errors.Errorf("unknown channel %d", ch)
	}

	sub.mu.Lock()
	defer sub.mu.Unlock()

	sub.channel = ch
	sub.buf.Clear()

	snap := sub.g.buffers[ch].Snapshot()
	sub.buf.PushAll(snap)
	sub.seeded = time.Time{}
	if len(snap) > 0 {
		sub.seeded = snap[len(snap)-1].Timestamp
	}
	return nil
}

func (sub *Subscription) Channel() int {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.channel
}

// Run pushes window frames to callback on the render cadence and status
// lines as they happen, until ctx is canceled or callback fails.
func (sub *Subscription) Run(
	ctx context.Context,
	callback func(data *messages.Data) error,
) error {
	msgCh := sub.g.broker.Subscribe()
	defer sub.g.broker.Unsubscribe(msgCh)

	// reseed after attaching so frames accepted between construction and
	// the subscribe are picked up from the shared buffer; anything already
	// queued on msgCh is deduplicated by timestamp in ingestFrame
	if err := sub.SetChannel(sub.Channel()); err != nil {
		return errors.Wrap(err, "reseed")
	}

	interval := sub.g.cfg.View.RenderInterval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := callback(&messages.Data{Now: time.Now().UnixMilli()}); err != nil {
		return errors.Wrap(err, "initial callback")
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case msg := <-msgCh:
			switch m := msg.(type) {
			case *schema.FrameEvent:
				sub.ingestFrame(m)
			case *schema.StatusEvent:
				data := &messages.Data{
					Status: statusLine(m),
					Now:    m.Timestamp.UnixMilli(),
				}
				if err := callback(data); err != nil {
					return errors.Wrap(err, "status callback")
				}
			}

		case <-ticker.C:
			frame, ok := sub.windowFrame()
			if !ok {
				continue
			}
			if err := callback(&messages.Data{Frame: frame}); err != nil {
				return errors.Wrap(err, "frame callback")
			}
		}
	}
}

func (sub *Subscription) ingestFrame(m *schema.FrameEvent) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	// events from before the last reseed are already in the display buffer
	if !m.Timestamp.After(sub.seeded) {
		return
	}

	if m.Batch {
		// batched frames only exist in the single-channel variant
		if sub.channel != 0 {
			return
		}
		interval := sub.g.cfg.Stream.BatchInterval
		if interval <= 0 {
			interval = decode.DefaultBatchInterval
		}
		sub.buf.PushAll(decode.SpreadBatch(m.Timestamp, interval, m.Values))
		sub.lastBatch = len(m.Values)
		sub.lastBatchBytes = m.Payload
		return
	}

	if sub.channel >= len(m.Values) {
		return
	}
	sub.buf.Push(schema.Sample{
		Timestamp: m.Timestamp,
		Value:     m.Values[sub.channel],
	})
}

func (sub *Subscription) windowFrame() (*messages.Frame, bool) {
	sub.mu.Lock()
	snap := sub.buf.Snapshot()
	channel := sub.channel
	lastBatch := sub.lastBatch
	lastBatchBytes := sub.lastBatchBytes
	sub.mu.Unlock()

	view, ok := window.Compute(snap, sub.g.origin, sub.opts)
	if !ok {
		return nil, false
	}

	frame := &messages.Frame{
		Channel:        channel,
		XRange:         view.XRange,
		YRange:         view.YRange,
		X:              view.X,
		Y:              view.Y,
		LastBatch:      lastBatch,
		LastBatchBytes: lastBatchBytes,
	}

	if c := sub.g.Counter(); c != nil {
		frame.Samples = c.Samples()
		frame.SampleRate = c.SampleRate(time.Now())
	}
	return frame, true
}

func statusLine(m *schema.StatusEvent) string {
	if m.Detail == "" {
		return fmt.Sprintf("%s: %s", m.Peer, m.State)
	}
	return fmt.Sprintf("%s: %s (%s)", m.Peer, m.State, m.Detail)
}
