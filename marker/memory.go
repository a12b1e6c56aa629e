package marker

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/presplit/types"
)

// Memory is an in-process MarkerStore. It is safe for concurrent use.
type Memory struct {
	markers *xsync.Map[string, types.Marker]
}

var _ types.MarkerStore = (*Memory)(nil)

// NewMemory creates an empty in-memory marker store.
func NewMemory() *Memory {
	return &Memory{markers: xsync.NewMap[string, types.Marker]()}
}

// IsMarked reports whether id has been marked.
func (s *Memory) IsMarked(_ context.Context, id string) (bool, error) {
	m, ok := s.markers.Load(id)

	return ok && m.Processed, nil
}

// Mark stores the marker for id unless one already exists.
func (s *Memory) Mark(_ context.Context, id string, count int64) error {
	s.markers.LoadOrStore(id, types.Marker{
		ID:          id,
		Processed:   true,
		ProcessedAt: time.Now().UTC(),
		Count:       count,
	})

	return nil
}

// Get returns the stored marker for id.
func (s *Memory) Get(id string) (types.Marker, bool) {
	return s.markers.Load(id)
}

// Len returns the number of stored markers.
func (s *Memory) Len() int {
	return s.markers.Size()
}
