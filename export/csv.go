// Package export writes recorded sessions as CSV: one time column followed
// by one column per channel.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/cardialab/ekgraph/storage"
	"github.com/pkg/errors"
)

// WriteCSV dumps every sample at or after start for the named channels.
// Samples from different channels that share a timestamp (the fixed-frame
// variants stamp a whole frame with one arrival instant) land on one row;
// missing cells stay empty.
func WriteCSV(
	w io.Writer,
	backend storage.Backend,
	channels []string,
	start time.Time,
) error {
	type key = int64 // UnixMicro

	rows := map[key][]string{}

	for idx, name := range channels {
		samples, err := backend.LoadWindow(name, start)
		if err != nil {
			return errors.Wrapf(err, "load %s", name)
		}
		for _, s := range samples {
			k := s.Timestamp.UnixMicro()
			cells, ok := rows[k]
			if !ok {
				cells = make([]string, len(channels))
				rows[k] = cells
			}
			cells[idx] = fmt.Sprintf("%d", s.Value)
		}
	}

	keys := make([]key, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	cw := csv.NewWriter(w)

	header := append([]string{"time"}, channels...)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "write header")
	}

	for _, k := range keys {
		t := time.UnixMicro(k)
		record := append(
			[]string{t.Format(time.RFC3339Nano)},
			rows[k]...,
		)
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "write row")
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "flush")
}
