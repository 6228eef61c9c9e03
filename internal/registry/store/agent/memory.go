// Package agent provides the agent record store implementations: an
// in-memory fake for unit tests and a PostgreSQL store for production.
// Both enforce public-id uniqueness and the append-only contract.
package agent

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AstraSyncAI/astrasync-api/internal/registry/models"
	"github.com/AstraSyncAI/astrasync-api/pkg/domain"
	"github.com/AstraSyncAI/astrasync-api/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded fake of the agent record store.
type InMemory struct {
	mu      sync.RWMutex
	records map[domain.AgentID]*models.AgentRecord
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{records: make(map[domain.AgentID]*models.AgentRecord)}
}

// Create inserts a record. Returns sentinel.ErrConflict if the public id is
// already taken.
func (s *InMemory) Create(_ context.Context, record *models.AgentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.PublicID]; exists {
		return sentinel.ErrConflict
	}
	s.records[record.PublicID] = clone(record)
	return nil
}

// FindByPublicID returns the record or sentinel.ErrNotFound.
func (s *InMemory) FindByPublicID(_ context.Context, id domain.AgentID) (*models.AgentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(record), nil
}

// ListRecent returns up to limit records ordered by registration time,
// most recent first.
func (s *InMemory) ListRecent(_ context.Context, limit int) ([]*models.AgentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*models.AgentRecord, 0, len(s.records))
	for _, record := range s.records {
		all = append(all, clone(record))
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].RegisteredAt.After(all[j].RegisteredAt)
	})

	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// Count returns the total number of records.
func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// CountSince returns the number of records registered at or after cutoff.
func (s *InMemory) CountSince(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, record := range s.records {
		if !record.RegisteredAt.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

func clone(record *models.AgentRecord) *models.AgentRecord {
	copied := *record
	copied.Agent.Capabilities = append([]string(nil), record.Agent.Capabilities...)
	return &copied
}
