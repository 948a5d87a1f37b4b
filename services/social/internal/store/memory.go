package store

import (
	"context"
	"sync"
	"time"

	"github.com/example/study-spots/services/social/internal/thread"
)

// InMemoryThreadStore is a development-only ThreadStore. Records are kept in
// append order, which is also creation order.
type InMemoryThreadStore struct {
	mu      sync.RWMutex
	nextID  int64
	records []thread.Record
	byID    map[int64]int
	now     func() time.Time
}

func NewInMemoryThreadStore() *InMemoryThreadStore {
	return &InMemoryThreadStore{byID: make(map[int64]int), now: time.Now}
}

func (s *InMemoryThreadStore) Append(_ context.Context, r thread.Record) (thread.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ParentID != 0 {
		i, ok := s.byID[r.ParentID]
		if !ok || s.records[i].LocationID != r.LocationID {
			return thread.Record{}, ErrParentNotFound
		}
	}
	s.nextID++
	r.ID = s.nextID
	r.CreatedAt = s.now().UTC()
	s.byID[r.ID] = len(s.records)
	s.records = append(s.records, r)
	return r, nil
}

func (s *InMemoryThreadStore) ListByLocation(_ context.Context, locationID int64) ([]thread.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []thread.Record{}
	for _, r := range s.records {
		if r.LocationID == locationID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *InMemoryThreadStore) ListByParent(_ context.Context, locationID, parentID int64) ([]thread.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []thread.Record{}
	for _, r := range s.records {
		if r.ParentID != parentID {
			continue
		}
		if locationID != 0 && r.LocationID != locationID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *InMemoryThreadStore) ReplyCounts(_ context.Context, ids []int64) (map[int64]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make(map[int64]int, len(ids))
	for _, r := range s.records {
		if r.ParentID != 0 && want[r.ParentID] {
			out[r.ParentID]++
		}
	}
	return out, nil
}
