// Package ekgraph wires the streaming EKG pipeline together: transports feed
// per-connection ingest loops, accepted samples land in per-channel rolling
// buffers and on the broker, and view clients pull rolling-window frames.
package ekgraph

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cardialab/ekgraph/broker"
	"github.com/cardialab/ekgraph/config"
	"github.com/cardialab/ekgraph/database"
	"github.com/cardialab/ekgraph/ingest"
	"github.com/cardialab/ekgraph/ringbuf"
	"github.com/cardialab/ekgraph/storage"
	"github.com/cardialab/ekgraph/transport/serialport"
	"github.com/cardialab/ekgraph/transport/wsocket"
	"github.com/cardialab/ekgraph/window"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

type Graph struct {
	cfg    *config.Config
	mode   ingest.Mode
	errCh  chan error
	origin time.Time

	broker  *broker.Broker
	buffers []*ringbuf.Buffer
	names   []string

	backend storage.Backend
	writer  *database.Writer

	server *gin.Engine
	wsrv   *wsocket.Server

	mu      sync.Mutex
	counter *ingest.Counter
}

// New builds the pipeline for one variant, described by mode. backend may be
// nil when recording is disabled. Background goroutines report fatal errors
// on errCh.
func New(
	cfg *config.Config,
	mode ingest.Mode,
	backend storage.Backend,
	errCh chan error,
) (*Graph, error) {
	buffers := make([]*ringbuf.Buffer, mode.Channels())
	names := make([]string, mode.Channels())
	for i := range buffers {
		buffers[i] = ringbuf.New(cfg.Stream.BufferSize)
		names[i] = channelName(i)
	}

	g := &Graph{
		cfg:     cfg,
		mode:    mode,
		errCh:   errCh,
		origin:  time.Now(),
		broker:  broker.NewBroker(0),
		buffers: buffers,
		names:   names,
		backend: backend,
		server:  gin.Default(),
		wsrv: wsocket.NewServer(wsocket.Config{
			PingInterval: cfg.Server.PingInterval,
			PongTimeout:  cfg.Server.PongTimeout,
			CloseTimeout: cfg.Server.CloseTimeout,
		}),
	}

	if backend != nil {
		if err := backend.CreateChannels(names); err != nil {
			return nil, errors.Wrap(err, "create channels")
		}
		g.writer = database.NewWriter(backend, errCh, 100*time.Millisecond)
		go g.writer.Run()
		go g.record()
	}

	if err := g.setupServer(); err != nil {
		return nil, errors.Wrap(err, "setup server")
	}

	go g.broker.Start()
	go g.publishMetrics()

	return g, nil
}

func channelName(i int) string {
	return fmt.Sprintf("ch%d", i)
}

func (g *Graph) Engine() *gin.Engine {
	return g.server
}

func (g *Graph) Broker() *broker.Broker {
	return g.broker
}

// Counter exposes the rate counter of the current connection, nil when no
// device has connected yet.
func (g *Graph) Counter() *ingest.Counter {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counter
}

func (g *Graph) setCounter(c *ingest.Counter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter = c
}

// runLoop drives one connection's ingest loop. Transport-level failures are
// logged as status, never fatal to the process: the device reconnects and a
// fresh loop starts.
func (g *Graph) runLoop(ctx context.Context, transport ingest.Transport) {
	loop, err := ingest.NewLoop(transport, g.mode, g.buffers, g.broker)
	if err != nil {
		g.errCh <- errors.Wrap(err, "new loop")
		return
	}
	g.setCounter(loop.Counter())

	if err := loop.Run(ctx); err != nil {
		log.Printf("connection %s ended: %v", transport.Peer(), err)
	}
}

// RunSerial ingests from the configured serial port until ctx is canceled.
// Used by the dual-channel serial variant instead of a websocket device.
func (g *Graph) RunSerial(ctx context.Context) error {
	transport := serialport.New(serialport.Config{
		Port:        g.cfg.Serial.Port,
		Baud:        g.cfg.Serial.Baud,
		ReadTimeout: g.cfg.Serial.ReadTimeout,
	})

	loop, err := ingest.NewLoop(transport, g.mode, g.buffers, g.broker)
	if err != nil {
		return errors.Wrap(err, "new loop")
	}
	g.setCounter(loop.Counter())

	return loop.Run(ctx)
}

// RunServer serves the ingest endpoint, the view endpoint, metrics and
// export until the listener fails.
func (g *Graph) RunServer() error {
	if err := g.server.Run(g.cfg.Server.Addr); err != nil {
		return errors.Wrap(err, "run server")
	}
	return nil
}

func (g *Graph) viewOptions(req *ViewRequest) window.Options {
	opts := window.Options{
		Window:        g.cfg.View.Window,
		YMarginAbs:    g.cfg.View.YMarginAbs,
		YMarginFrac:   g.cfg.View.YMarginFrac,
		XScrollMargin: g.cfg.View.XScrollMargin,
	}

	if req.WindowSeconds > 0 {
		opts.Window = time.Duration(req.WindowSeconds * float64(time.Second))
	}

	switch g.cfg.View.XPolicy {
	case "scrolling":
		opts.XPolicy = window.XScrolling
	default:
		opts.XPolicy = window.XRightAligned
	}

	switch g.cfg.View.YPolicy {
	case "fixed":
		opts.YPolicy = window.YFixed
	default:
		opts.YPolicy = window.YAuto
	}

	return opts
}
