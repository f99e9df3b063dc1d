package ekgraph

import (
	"time"

	"github.com/cardialab/ekgraph/schema"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// publishMetrics mirrors broker traffic into prometheus: accepted frame and
// sample totals, the current connection state, and a once-per-second sample
// rate refresh.
func (g *Graph) publishMetrics() {
	frames := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ekgraph_frames_accepted_total",
	})
	samples := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ekgraph_samples_accepted_total",
	})
	connected := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ekgraph_connection_active",
	})
	sampleRate := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ekgraph_sample_rate_hz",
	})
	lastBatch := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ekgraph_last_batch_samples",
	})
	decodeErrors := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "ekgraph_decode_errors",
	}, func() float64 {
		if c := g.Counter(); c != nil {
			return float64(c.DecodeErrors())
		}
		return 0
	})
	dropped := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "ekgraph_dropped_messages",
	}, func() float64 {
		return float64(g.broker.DropCount())
	})

	for _, m := range []prometheus.Collector{
		frames, samples, connected, sampleRate, lastBatch,
		decodeErrors, dropped,
	} {
		if err := prometheus.Register(m); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			g.errCh <- errors.Wrap(err, "register prometheus metric")
			return
		}
	}

	msgCh := g.broker.Subscribe()
	defer g.broker.Unsubscribe(msgCh)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			switch m := msg.(type) {
			case *schema.FrameEvent:
				frames.Inc()
				samples.Add(float64(len(m.Values)))
				if m.Batch {
					lastBatch.Set(float64(len(m.Values)))
				}
			case *schema.StatusEvent:
				if m.State == schema.StateActive {
					connected.Set(1)
				} else {
					connected.Set(0)
				}
			}
		case <-ticker.C:
			if c := g.Counter(); c != nil {
				sampleRate.Set(c.SampleRate(time.Now()))
			}
		}
	}
}
