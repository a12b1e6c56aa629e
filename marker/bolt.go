package marker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"

	"github.com/arloliu/presplit/types"
)

// BoltBucket is the bucket Bolt stores markers in.
const BoltBucket = "presplit-markers"

// Bolt is a MarkerStore backed by a local BoltDB file.
//
// Bolt holds an exclusive file lock, so only one process can use a marker
// file at a time.
type Bolt struct {
	db *bolt.DB
}

var _ types.MarkerStore = (*Bolt)(nil)

// OpenBolt opens or creates the marker file at path, creating parent
// directories as needed.
func OpenBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create marker directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open marker file %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BoltBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	return &Bolt{db: db}, nil
}

// Close releases the marker file.
func (s *Bolt) Close() error {
	return s.db.Close()
}

// IsMarked reports whether a processed marker exists for id.
func (s *Bolt) IsMarked(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var m types.Marker
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(BoltBucket)).Get([]byte(id))
		if raw == nil {
			return nil
		}
		found = true

		return json.Unmarshal(raw, &m)
	})
	if err != nil {
		return false, fmt.Errorf("read marker %s: %w", id, err)
	}

	return found && m.Processed, nil
}

// Mark writes the marker for id unless one already exists.
func (s *Bolt) Mark(ctx context.Context, id string, count int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(types.Marker{
		ID:          id,
		Processed:   true,
		ProcessedAt: time.Now().UTC(),
		Count:       count,
	})
	if err != nil {
		return fmt.Errorf("encode marker %s: %w", id, err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BoltBucket))
		if b.Get([]byte(id)) != nil {
			return nil
		}

		return b.Put([]byte(id), value)
	})
	if err != nil {
		return fmt.Errorf("write marker %s: %w", id, err)
	}

	return nil
}

// Get returns the stored marker for id.
func (s *Bolt) Get(id string) (types.Marker, bool, error) {
	var m types.Marker
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(BoltBucket)).Get([]byte(id))
		if raw == nil {
			return nil
		}
		found = true

		return json.Unmarshal(raw, &m)
	})

	return m, found, err
}
