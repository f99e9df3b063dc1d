package ekgraph

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/cardialab/ekgraph/export"
	"github.com/cardialab/ekgraph/messages"
	"github.com/cardialab/ekgraph/transport/wsocket"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func (g *Graph) setupServer() error {
	r := g.server

	r.GET("/", func(c *gin.Context) {
		status := gin.H{
			"channels":   len(g.buffers),
			"bufferSize": g.cfg.Stream.BufferSize,
		}
		if counter := g.Counter(); counter != nil {
			status["frames"] = counter.Frames()
			status["samples"] = counter.Samples()
			status["decodeErrors"] = counter.DecodeErrors()
			status["sampleRate"] = counter.SampleRate(time.Now())
		}
		c.JSON(http.StatusOK, status)
	})

	// the acquisition device pushes sample lines here
	r.GET("/ingest", g.wsrv.Handler(func(ctx context.Context, conn *wsocket.Conn) {
		g.runLoop(ctx, conn)
	}))

	// view clients subscribe here and receive window frames
	r.GET("/view", g.handleView)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/export.csv", g.handleExport)

	return nil
}

func (g *Graph) handleView(c *gin.Context) {
	ctx := c.Request.Context()

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	defer func() {
		_ = conn.Close(websocket.StatusInternalError, "closed unexpectedly")
	}()

	var req ViewRequest
	if err := wsjson.Read(ctx, conn, &req); err != nil {
		log.Println("view: read request:", err)
		return
	}

	sub, err := g.NewSubscription(&req)
	if err != nil {
		_ = wsjson.Write(ctx, conn, &messages.Data{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// subsequent requests on the same socket switch channels
	go func() {
		defer cancel()
		for {
			var next ViewRequest
			if err := wsjson.Read(ctx, conn, &next); err != nil {
				return
			}
			if err := sub.SetChannel(next.Channel); err != nil {
				_ = wsjson.Write(ctx, conn, &messages.Data{Error: err.Error()})
			}
		}
	}()

	err = sub.Run(ctx, func(data *messages.Data) error {
		return wsjson.Write(ctx, conn, data)
	})
	if err != nil {
		log.Println("view: subscription ended:", errors.Cause(err))
	}
}

func (g *Graph) handleExport(c *gin.Context) {
	if g.backend == nil {
		c.String(http.StatusNotFound, "recording disabled")
		return
	}

	start := time.Time{}
	if since := c.Query("since"); since != "" {
		secs, err := strconv.ParseFloat(since, 64)
		if err != nil {
			c.String(http.StatusBadRequest, "bad since: %v", err)
			return
		}
		start = time.Now().Add(-time.Duration(secs * float64(time.Second)))
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="ekg.csv"`)

	if err := export.WriteCSV(c.Writer, g.backend, g.names, start); err != nil {
		log.Println("export:", err)
	}
}
