/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package storage

import (
	"context"
	"sync"

	"github.com/Seednode/gamenight/internal/models"
)

// InMemoryStore keeps the snapshot in process memory. It is safe for
// concurrent use and is what tests and single-instance deployments use.
type InMemoryStore struct {
	mu   sync.RWMutex
	snap *models.Snapshot
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{snap: &models.Snapshot{}}
}

func (s *InMemoryStore) Load(_ context.Context) (*models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snap.Clone(), nil
}

func (s *InMemoryStore) Commit(_ context.Context, expected uint64, next *models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap.Version != expected {
		return ErrConflict
	}

	stored := next.Clone()
	stored.Version = expected + 1
	s.snap = stored
	next.Version = stored.Version

	return nil
}

func (s *InMemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
