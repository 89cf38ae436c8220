package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/fogcast-backend/internal/weather"
)

// ErrNotFound is returned when no snapshot is available for a key.
var ErrNotFound = errors.New("no cached data for key")

// MemoryStore is a concurrency-safe in-memory implementation of weather.Store.
// Snapshots of a key are kept in the order they were saved.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]weather.Snapshot

	maxHistory int           // per key, <= 0 keeps everything
	maxAge     time.Duration // <= 0 keeps everything

	now func() time.Time
}

// NewMemoryStore creates a store bounded by count and age.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		snapshots:  make(map[string][]weather.Snapshot),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// SaveSnapshot appends snapshot to key and drops what retention no longer
// allows. The snapshot just saved always survives.
func (s *MemoryStore) SaveSnapshot(key string, snapshot weather.Snapshot) {
	s.mu.Lock()
	s.snapshots[key] = s.retain(append(s.snapshots[key], snapshot))
	s.mu.Unlock()
}

func (s *MemoryStore) retain(list []weather.Snapshot) []weather.Snapshot {
	if s.maxHistory > 0 && len(list) > s.maxHistory {
		list = list[len(list)-s.maxHistory:]
	}
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		keep := 0
		for keep < len(list)-1 && list[keep].FetchedAt.Before(cutoff) {
			keep++
		}
		list = list[keep:]
	}
	return list
}

// GetLatest returns the snapshot saved last for key.
func (s *MemoryStore) GetLatest(key string) (weather.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.snapshots[key]
	if len(list) == 0 {
		return weather.Snapshot{}, ErrNotFound
	}
	return list[len(list)-1], nil
}

// GetRange returns the snapshots of key fetched within [from, to].
func (s *MemoryStore) GetRange(key string, from, to time.Time) ([]weather.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []weather.Snapshot
	for _, snap := range s.snapshots[key] {
		if snap.FetchedAt.Before(from) || snap.FetchedAt.After(to) {
			continue
		}
		out = append(out, snap)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}
