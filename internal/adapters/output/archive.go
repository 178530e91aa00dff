package output

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"

	"github.com/xoelrdgz/ransomradar/internal/domain"
)

// EventBucket holds every archived event keyed by time.
var EventBucket = []byte("events")

// ArchiveQuery filters List. Zero fields match everything.
type ArchiveQuery struct {
	SessionID string
	Channel   domain.Channel
	Since     time.Time
	Limit     int // Most recent N after filtering; 0 means no limit
}

// EventArchive persists events in a bbolt file so logs survive restarts and
// can be exported later.
//
// Keys are the big-endian event timestamp in nanoseconds followed by the
// event ID, so a cursor walk yields events in time order.
type EventArchive struct {
	db     *bolt.DB
	dbPath string
	count  atomic.Int64
}

// OpenEventArchive opens or creates the archive at path.
func OpenEventArchive(path string) (*EventArchive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout:    time.Second,
		NoGrowSync: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open event archive: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(EventBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	a := &EventArchive{db: db, dbPath: path}

	var count int64
	db.View(func(tx *bolt.Tx) error {
		count = int64(tx.Bucket(EventBucket).Stats().KeyN)
		return nil
	})
	a.count.Store(count)

	log.Info().
		Str("db_path", path).
		Int64("entries", count).
		Msg("Event archive opened")

	return a, nil
}

func archiveKey(event *domain.Event) []byte {
	key := make([]byte, 8, 8+len(event.ID))
	binary.BigEndian.PutUint64(key, uint64(event.Timestamp.UnixNano()))
	return append(key, event.ID...)
}

// Send implements ports.Alerter.
func (a *EventArchive) Send(ctx context.Context, event *domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return a.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(EventBucket)
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		if err := b.Put(archiveKey(event), data); err != nil {
			return err
		}
		a.count.Add(1)
		return nil
	})
}

// List returns archived events matching q, oldest first.
func (a *EventArchive) List(q ArchiveQuery) ([]*domain.Event, error) {
	var result []*domain.Event

	err := a.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(EventBucket)
		if b == nil {
			return nil
		}

		c := b.Cursor()
		var k, v []byte
		if q.Since.IsZero() {
			k, v = c.First()
		} else {
			seek := make([]byte, 8)
			binary.BigEndian.PutUint64(seek, uint64(q.Since.UnixNano()))
			k, v = c.Seek(seek)
		}

		for ; k != nil; k, v = c.Next() {
			event := &domain.Event{}
			if err := json.Unmarshal(v, event); err != nil {
				log.Debug().Err(err).Msg("Skipping unreadable archived event")
				continue
			}
			if q.SessionID != "" && event.SessionID != q.SessionID {
				continue
			}
			if q.Channel != "" && event.Channel != q.Channel {
				continue
			}
			result = append(result, event)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if q.Limit > 0 && len(result) > q.Limit {
		result = result[len(result)-q.Limit:]
	}
	return result, nil
}

// Purge deletes every archived event.
func (a *EventArchive) Purge() error {
	err := a.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(EventBucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(EventBucket)
		return err
	})
	if err == nil {
		a.count.Store(0)
	}
	return err
}

func (a *EventArchive) Count() int64 {
	return a.count.Load()
}

func (a *EventArchive) Path() string {
	return a.dbPath
}

// Flush is a no-op; every Send commits its own transaction.
func (a *EventArchive) Flush() error {
	return nil
}

func (a *EventArchive) Close() error {
	if a.db != nil {
		log.Info().Int64("entries", a.count.Load()).Msg("Closing event archive")
		return a.db.Close()
	}
	return nil
}
