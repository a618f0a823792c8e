package store

import (
	"context"
	"sync"

	"petsphere/services/sysinfo/internal/collector"
)

// SnapshotStore persists host snapshots append-only.
type SnapshotStore interface {
	Insert(ctx context.Context, snap collector.Snapshot) error
	// List returns all recorded snapshots, oldest first, without any
	// store-internal identifier.
	List(ctx context.Context) ([]collector.Snapshot, error)
}

// MemoryStore keeps snapshots in memory for tests and local development.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps []collector.Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(_ context.Context, snap collector.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]collector.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]collector.Snapshot, len(s.snaps))
	copy(out, s.snaps)
	return out, nil
}
