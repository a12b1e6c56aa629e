// Package kvutil provides utilities for working with NATS JetStream KeyValue stores.
package kvutil

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// EnsureBucket creates or opens a KV bucket with retry logic.
//
// Several presplit runs may start at once (one per namespace), all racing to
// create the marker bucket. A losing CreateKeyValue returns ErrBucketExists,
// in which case the existing bucket is opened instead.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - js: JetStream context
//   - config: KV bucket configuration
//   - maxRetries: Maximum number of attempts (default: 3)
//
// Returns:
//   - jetstream.KeyValue: The KV bucket instance
//   - error: Last error after all attempts
//
// Example:
//
//	kv, err := kvutil.EnsureBucket(ctx, js, jetstream.KeyValueConfig{
//	    Bucket:  "presplit-markers",
//	    History: 1,
//	}, 3)
func EnsureBucket(
	ctx context.Context,
	js jetstream.JetStream,
	config jetstream.KeyValueConfig,
	maxRetries int,
) (jetstream.KeyValue, error) {
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		kv, err := js.CreateKeyValue(ctx, config)
		if err == nil {
			return kv, nil
		}

		if errors.Is(err, jetstream.ErrBucketExists) {
			kv, err := js.KeyValue(ctx, config.Bucket)
			if err == nil {
				return kv, nil
			}
			lastErr = fmt.Errorf("bucket exists but failed to open: %w", err)
		} else {
			lastErr = err
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("context cancelled during KV bucket creation: %w", ctx.Err())
		}

		// Exponential backoff: 10ms, 20ms, 40ms...
		if attempt < maxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * 10 * time.Millisecond //nolint:gosec // attempt is bounded by maxRetries
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("failed to create/open KV bucket %s after %d attempts: %w",
		config.Bucket, maxRetries, lastErr)
}

// EncodeKey maps s onto the KV key alphabet [-/_=.a-zA-Z0-9].
//
// Each '/'-separated segment is base64url encoded without padding, so the
// mapping is reversible and distinct inputs never share a key. The
// separators are kept, and the result never contains the '.' JetStream
// rejects at the edges of a key.
func EncodeKey(s string) string {
	segments := strings.Split(s, "/")
	for i, seg := range segments {
		segments[i] = base64.RawURLEncoding.EncodeToString([]byte(seg))
	}

	return strings.Join(segments, "/")
}

// DecodeKey reverses EncodeKey.
func DecodeKey(key string) (string, error) {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		raw, err := base64.RawURLEncoding.DecodeString(seg)
		if err != nil {
			return "", fmt.Errorf("decode key segment %d of %q: %w", i, key, err)
		}
		segments[i] = string(raw)
	}

	return strings.Join(segments, "/"), nil
}
