package storage

import (
	"time"

	"github.com/cardialab/ekgraph/schema"
)

// Row is one recorded sample, addressed by channel name.
type Row struct {
	Channel   string
	Timestamp time.Time
	Value     int
}

// Backend persists accepted samples and serves them back for export.
type Backend interface {
	CreateChannels(names []string) error

	Insert(rows []Row) error

	// LoadWindow returns a channel's samples at or after start, in
	// timestamp order.
	LoadWindow(channel string, start time.Time) ([]schema.Sample, error)
}
