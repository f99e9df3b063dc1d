// Package wsocket adapts an accepted websocket session (the device pushes
// data to us; we are the server) to the ingest transport interface.
package wsocket

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"nhooyr.io/websocket"
)

type Config struct {
	// Keepalive settings of the robust variant. Zero values disable
	// pinging, matching the simplest variant.
	PingInterval time.Duration
	PongTimeout  time.Duration
	CloseTimeout time.Duration
}

// Conn is one accepted device connection. Messages may carry several
// newline-separated lines; ReadLine returns them one at a time.
type Conn struct {
	conn    *websocket.Conn
	peer    string
	cfg     Config
	pending []string
}

// Connect is a no-op: the websocket handshake already happened in the
// accept handler.
func (c *Conn) Connect(ctx context.Context) error { return nil }

func (c *Conn) ReadLine(ctx context.Context) (string, error) {
	for len(c.pending) == 0 {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			return "", errors.Wrap(err, "read message")
		}
		if typ != websocket.MessageText {
			continue
		}
		for _, line := range strings.Split(string(data), "\n") {
			if strings.TrimSpace(line) != "" {
				c.pending = append(c.pending, line)
			}
		}
		if len(c.pending) == 0 {
			// blank message, report one empty line so the loop
			// can notice cancellation between messages
			return "", nil
		}
	}

	line := c.pending[0]
	c.pending = c.pending[1:]
	return line, nil
}

func (c *Conn) SendAck(ctx context.Context, ack string) error {
	return c.conn.Write(ctx, websocket.MessageText, []byte(ack))
}

func (c *Conn) Acks() bool { return true }

func (c *Conn) Peer() string { return c.peer }

func (c *Conn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "done")
}

// keepalive pings the device on the configured cadence and cancels the
// connection context when a pong does not come back in time.
func (c *Conn) keepalive(ctx context.Context, cancel context.CancelFunc) {
	if c.cfg.PingInterval <= 0 {
		return
	}

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, pingCancel := context.WithTimeout(ctx, c.cfg.PongTimeout)
			err := c.conn.Ping(pingCtx)
			pingCancel()
			if err != nil {
				cancel()
				return
			}
		}
	}
}

// Server accepts device connections on a gin route. At most one connection
// is active at a time: the acquisition device is a single physical unit, so
// a second concurrent client is turned away.
type Server struct {
	cfg Config

	mu     sync.Mutex
	active bool
}

func NewServer(cfg Config) *Server {
	return &Server{cfg: cfg}
}

// Handler upgrades the request and hands the connection to handle, which
// blocks for the life of the connection (typically an ingest loop Run).
func (s *Server) Handler(handle func(ctx context.Context, conn *Conn)) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			_ = c.AbortWithError(http.StatusInternalServerError, err)
			return
		}

		if !s.acquire() {
			_ = ws.Close(websocket.StatusTryAgainLater, "another device is connected")
			return
		}
		defer s.release()

		conn := &Conn{
			conn: ws,
			peer: c.ClientIP(),
			cfg:  s.cfg,
		}

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		go conn.keepalive(ctx, cancel)

		defer func() {
			_ = ws.Close(websocket.StatusInternalError, "closed unexpectedly")
		}()

		handle(ctx, conn)
	}
}

func (s *Server) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return false
	}
	s.active = true
	return true
}

func (s *Server) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}
