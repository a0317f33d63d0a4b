// Package store persists board snapshots. Snapshots are opaque versioned
// JSON blobs; callers validate them with scene.DecodeSnapshot.
package store

import (
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("snapshot not found")

// Store loads and saves the latest snapshot of a room.
type Store interface {
	Load(ctx context.Context, roomID string) ([]byte, error)
	Save(ctx context.Context, roomID string, data []byte) error
}

// Memory keeps snapshots in process. Used by tests and by servers started
// without a database.
type Memory struct {
	mu    sync.RWMutex
	rooms map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{rooms: make(map[string][]byte)}
}

func (m *Memory) Load(_ context.Context, roomID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Save(_ context.Context, roomID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rooms[roomID] = append([]byte(nil), data...)
	return nil
}
