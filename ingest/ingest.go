// Package ingest runs the per-connection read loop: pull raw lines from a
// transport, decode them, and feed the rolling buffers. Transport failures
// end the loop; protocol failures are absorbed so a single garbled line
// never drops the stream.
package ingest

import (
	"context"
	"log"
	"time"

	"github.com/cardialab/ekgraph/broker"
	"github.com/cardialab/ekgraph/decode"
	"github.com/cardialab/ekgraph/ringbuf"
	"github.com/cardialab/ekgraph/schema"
	"github.com/pkg/errors"
)

// Acknowledgment strings for bidirectional transports.
const (
	AckOK    = "OK"
	AckError = "ERROR"
)

// Transport is the capability the loop needs from a serial port or an
// accepted websocket connection. ReadLine blocks until the next line, a
// transport error, or context cancellation. SendAck is only called when
// Acks reports true.
type Transport interface {
	Connect(ctx context.Context) error
	ReadLine(ctx context.Context) (string, error)
	SendAck(ctx context.Context, ack string) error
	Acks() bool
	Close() error
	Peer() string
}

// Loop drives one connection from Connecting through Active to Closed.
// It is the sole writer of its buffers.
type Loop struct {
	transport Transport
	mode      Mode
	buffers   []*ringbuf.Buffer
	pub       broker.Publisher
	counter   *Counter
}

func NewLoop(
	transport Transport,
	mode Mode,
	buffers []*ringbuf.Buffer,
	pub broker.Publisher,
) (*Loop, error) {
	if len(buffers) != mode.Channels() {
		return nil, errors.Errorf(
			"mode writes %d channels but %d buffers given",
			mode.Channels(), len(buffers),
		)
	}

	return &Loop{
		transport: transport,
		mode:      mode,
		buffers:   buffers,
		pub:       pub,
		counter:   NewCounter(time.Now()),
	}, nil
}

func (l *Loop) Counter() *Counter {
	return l.counter
}

// Run connects and reads until the transport fails or ctx is canceled.
// A connect failure is returned to the caller; retrying is the caller's
// policy, not the loop's. A nil return means a clean stop.
func (l *Loop) Run(ctx context.Context) error {
	l.status(schema.StateConnecting, "")

	if err := l.transport.Connect(ctx); err != nil {
		l.status(schema.StateClosed, err.Error())
		return errors.Wrap(err, "connect")
	}

	l.status(schema.StateActive, "")

	defer func() {
		_ = l.transport.Close()
		l.status(schema.StateClosed, "")
	}()

	for {
		if err := ctx.Err(); err != nil {
			l.status(schema.StateDraining, "stop requested")
			return nil
		}

		line, err := l.transport.ReadLine(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.status(schema.StateDraining, "stop requested")
				return nil
			}
			return errors.Wrap(err, "read line")
		}

		if decode.IsComment(line) {
			continue
		}

		if err := l.handleLine(ctx, line); err != nil {
			return err
		}
	}
}

// handleLine decodes and buffers one data line. The only error it returns
// is a failed acknowledgment send, which means the remote end is gone.
func (l *Loop) handleLine(ctx context.Context, line string) error {
	recv := time.Now()

	perChannel, err := l.mode.Decode(line, recv)
	if err != nil {
		l.counter.addDecodeError()
		log.Printf("ingest %s: dropping line: %v", l.transport.Peer(), err)
		return l.ack(ctx, AckError)
	}

	total := 0
	var values schema.Frame
	for ch, samples := range perChannel {
		l.buffers[ch].PushAll(samples)
		total += len(samples)
		for _, s := range samples {
			values = append(values, s.Value)
		}
	}
	l.counter.addFrame(total)

	if l.pub != nil {
		l.pub.Publish(&schema.FrameEvent{
			Timestamp: recv,
			Values:    values,
			Batch:     l.mode.Batch(),
			Payload:   len(line),
		})
	}

	return l.ack(ctx, AckOK)
}

func (l *Loop) ack(ctx context.Context, ack string) error {
	if !l.transport.Acks() {
		return nil
	}
	if err := l.transport.SendAck(ctx, ack); err != nil {
		return errors.Wrap(err, "send ack")
	}
	return nil
}

func (l *Loop) status(state schema.ConnState, detail string) {
	if l.pub == nil {
		return
	}
	l.pub.Publish(&schema.StatusEvent{
		Timestamp: time.Now(),
		State:     state,
		Peer:      l.transport.Peer(),
		Detail:    detail,
	})
}
