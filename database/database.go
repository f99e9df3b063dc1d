// Package database records accepted samples in sqlite so sessions can be
// exported after the device disconnects.
package database

import (
	"crypto/rand"
	"crypto/sha256"
	"time"

	"github.com/cardialab/ekgraph/schema"
	"github.com/cardialab/ekgraph/storage"
	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

func Get(filename string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(filename), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}

	for _, table := range []any{
		&Channel{},
		&Sample{},
	} {
		if err := db.AutoMigrate(table); err != nil {
			return nil, errors.Wrap(err, "migrate")
		}
	}
	return db, nil
}

func RandomID() []byte {
	var result [16]byte
	_, err := rand.Read(result[:])
	if err != nil {
		panic(err)
	}
	return result[:]
}

// HashedID derives a stable 16-byte ID from a channel name.
func HashedID(s string) []byte {
	var result [16]byte
	h := sha256.New()
	h.Write([]byte(s))
	sum := h.Sum(nil)
	copy(result[:], sum[:16])
	return result[:]
}

type Backend struct {
	db *gorm.DB
}

func NewBackend(db *gorm.DB) *Backend {
	return &Backend{db: db}
}

func (b *Backend) CreateChannels(names []string) error {
	var existing []*Channel
	tx := b.db.Find(&existing)
	if tx.Error != nil {
		return errors.Wrap(tx.Error, "find channels")
	}

	known := map[string]bool{}
	for _, ch := range existing {
		known[ch.Name] = true
	}

	for _, name := range names {
		if known[name] {
			continue
		}
		tx := b.db.Create(&Channel{
			ID:   HashedID(name),
			Name: name,
		})
		if tx.Error != nil {
			return errors.Wrapf(tx.Error, "create channel %s", name)
		}
	}
	return nil
}

func (b *Backend) Insert(rows []storage.Row) error {
	return b.db.Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			res := tx.Create(&Sample{
				ID:        RandomID(),
				Timestamp: row.Timestamp,
				Value:     row.Value,
				ChannelID: HashedID(row.Channel),
			})
			if res.Error != nil {
				return errors.Wrap(res.Error, "create sample")
			}
		}
		return nil
	})
}

func (b *Backend) LoadWindow(channel string, start time.Time) ([]schema.Sample, error) {
	var rows []Sample
	tx := b.db.Where(
		"channel_id = ? and timestamp >= ?",
		HashedID(channel),
		start,
	).Order("timestamp asc").Find(&rows)
	if tx.Error != nil {
		return nil, errors.Wrap(tx.Error, "find")
	}

	result := make([]schema.Sample, len(rows))
	for idx, row := range rows {
		result[idx] = schema.Sample{
			Timestamp: row.Timestamp,
			Value:     row.Value,
		}
	}
	return result, nil
}
