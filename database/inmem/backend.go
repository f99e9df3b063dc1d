// Package inmem is a map-backed storage backend for tests and for running
// without a recording database.
package inmem

import (
	"sync"
	"time"

	"github.com/cardialab/ekgraph/schema"
	"github.com/cardialab/ekgraph/storage"
)

type Backend struct {
	lock    sync.Mutex
	samples map[string][]schema.Sample
}

func NewBackend() *Backend {
	return &Backend{
		samples: map[string][]schema.Sample{},
	}
}

func (b *Backend) CreateChannels(names []string) error {
	return nil
}

func (b *Backend) Insert(rows []storage.Row) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	for _, row := range rows {
		b.samples[row.Channel] = append(b.samples[row.Channel], schema.Sample{
			Timestamp: row.Timestamp,
			Value:     row.Value,
		})
	}
	return nil
}

func (b *Backend) LoadWindow(channel string, start time.Time) ([]schema.Sample, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	var out []schema.Sample
	for _, s := range b.samples[channel] {
		if s.Timestamp.Before(start) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
