package ekgraph

import (
	"github.com/cardialab/ekgraph/decode"
	"github.com/cardialab/ekgraph/schema"
	"github.com/cardialab/ekgraph/storage"
)

// record forwards accepted frames from the broker into the batching
// database writer. Batched single-channel frames are written with their
// interpolated timestamps so the recording matches what was displayed.
func (g *Graph) record() {
	msgCh := g.broker.Subscribe(schema.FrameEventName)
	defer g.broker.Unsubscribe(msgCh)

	for msg := range msgCh {
		m, ok := msg.(*schema.FrameEvent)
		if !ok {
			continue
		}

		if m.Batch {
			interval := g.cfg.Stream.BatchInterval
			if interval <= 0 {
				interval = decode.DefaultBatchInterval
			}
			for _, s := range decode.SpreadBatch(m.Timestamp, interval, m.Values) {
				g.writer.Insert(storage.Row{
					Channel:   g.names[0],
					Timestamp: s.Timestamp,
					Value:     s.Value,
				})
			}
			continue
		}

		for ch, v := range m.Values {
			if ch >= len(g.names) {
				break
			}
			g.writer.Insert(storage.Row{
				Channel:   g.names[ch],
				Timestamp: m.Timestamp,
				Value:     v,
			})
		}
	}
}
