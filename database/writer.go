package database

import (
	"time"

	"github.com/cardialab/ekgraph/storage"
	"github.com/pkg/errors"
)

// Writer batches inserts so a fast stream does not issue one transaction
// per sample.
type Writer struct {
	backend storage.Backend
	rows    chan storage.Row
	errCh   chan error
	flush   time.Duration
}

func NewWriter(backend storage.Backend, errCh chan error, flush time.Duration) *Writer {
	if flush <= 0 {
		flush = 100 * time.Millisecond
	}
	return &Writer{
		backend: backend,
		rows:    make(chan storage.Row, 4096),
		errCh:   errCh,
		flush:   flush,
	}
}

func (w *Writer) Insert(row storage.Row) {
	w.rows <- row
}

func (w *Writer) Run() {
	ticker := time.NewTicker(w.flush)
	defer ticker.Stop()

	var pending []storage.Row

	for {
		select {
		case row := <-w.rows:
			pending = append(pending, row)
		case <-ticker.C:
			if len(pending) == 0 {
				continue
			}

			err := w.backend.Insert(pending)
			pending = nil

			if err != nil {
				w.errCh <- errors.Wrap(err, "insert batch")
				return
			}
		}
	}
}
