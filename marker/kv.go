package marker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/presplit/internal/kvutil"
	"github.com/arloliu/presplit/internal/logging"
	"github.com/arloliu/presplit/internal/natsutil"
	"github.com/arloliu/presplit/types"
)

// DefaultBucket is the KV bucket OpenKV uses when none is configured.
const DefaultBucket = "presplit-markers"

const (
	kvAttempts = 3
	kvBackoff  = 50 * time.Millisecond
)

// KV is a MarkerStore backed by a NATS JetStream KeyValue bucket.
//
// Each marker is one key holding the JSON encoded types.Marker. Keys are the
// marker ids run through kvutil.EncodeKey. Writes use kv.Create, so the first
// Mark for an id wins and later ones are ignored.
type KV struct {
	kv     jetstream.KeyValue
	logger types.Logger
	now    func() time.Time
}

var _ types.MarkerStore = (*KV)(nil)

// NewKV wraps an existing KV bucket.
//
// Parameters:
//   - kv: Bucket to store markers in
//   - logger: Logger for debug output (nil for nop)
//
// Returns:
//   - *KV: Marker store
func NewKV(kv jetstream.KeyValue, logger types.Logger) *KV {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &KV{kv: kv, logger: logger, now: time.Now}
}

// OpenKV creates or opens the bucket and wraps it.
//
// Example:
//
//	js, _ := jetstream.New(nc)
//	store, err := marker.OpenKV(ctx, js, "presplit-markers", logger)
func OpenKV(ctx context.Context, js jetstream.JetStream, bucket string, logger types.Logger) (*KV, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}

	kv, err := kvutil.EnsureBucket(ctx, js, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "presplit idempotency markers",
		History:     1,
	}, kvAttempts)
	if err != nil {
		return nil, fmt.Errorf("open marker bucket: %w", err)
	}

	return NewKV(kv, logger), nil
}

// IsMarked reports whether a processed marker exists for id.
func (s *KV) IsMarked(ctx context.Context, id string) (bool, error) {
	key := kvutil.EncodeKey(id)

	var entry jetstream.KeyValueEntry
	err := natsutil.Retry(ctx, kvAttempts, kvBackoff, func(ctx context.Context) error {
		var err error
		entry, err = s.kv.Get(ctx, key)

		return err
	})
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get marker %s: %w", id, err)
	}

	var m types.Marker
	if err := json.Unmarshal(entry.Value(), &m); err != nil {
		return false, fmt.Errorf("decode marker %s: %w", id, err)
	}

	return m.Processed, nil
}

// Mark writes the marker for id unless one already exists.
func (s *KV) Mark(ctx context.Context, id string, count int64) error {
	key := kvutil.EncodeKey(id)

	value, err := json.Marshal(types.Marker{
		ID:          id,
		Processed:   true,
		ProcessedAt: s.now().UTC(),
		Count:       count,
	})
	if err != nil {
		return fmt.Errorf("encode marker %s: %w", id, err)
	}

	var revision uint64
	err = natsutil.Retry(ctx, kvAttempts, kvBackoff, func(ctx context.Context) error {
		var err error
		revision, err = s.kv.Create(ctx, key, value)

		return err
	})
	if errors.Is(err, jetstream.ErrKeyExists) {
		s.logger.Debug("marker already written", "id", id, "key", key)
		return nil
	}
	if err != nil {
		return fmt.Errorf("create marker %s: %w", id, err)
	}

	s.logger.Debug("marker written", "id", id, "key", key, "revision", revision, "count", count)

	return nil
}
