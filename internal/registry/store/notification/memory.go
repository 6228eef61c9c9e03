// Package notification provides the outbox store implementations. The
// outbox holds one job per successful registration; rows are immutable
// apart from the published_at stamp set by the relay.
package notification

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AstraSyncAI/astrasync-api/internal/registry/models"
	"github.com/AstraSyncAI/astrasync-api/pkg/domain"
	"github.com/AstraSyncAI/astrasync-api/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded fake of the notification outbox.
type InMemory struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*models.NotificationJob
}

// NewInMemory constructs an empty in-memory outbox.
func NewInMemory() *InMemory {
	return &InMemory{jobs: make(map[uuid.UUID]*models.NotificationJob)}
}

// Enqueue appends a job to the outbox.
func (s *InMemory) Enqueue(_ context.Context, job *models.NotificationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return sentinel.ErrConflict
	}
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// CountPending returns the number of jobs not yet handed to the mailer.
func (s *InMemory) CountPending(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, job := range s.jobs {
		if job.PublishedAt == nil {
			n++
		}
	}
	return n, nil
}

// ListUnpublished returns up to limit pending jobs, oldest first.
func (s *InMemory) ListUnpublished(_ context.Context, limit int) ([]*models.NotificationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []*models.NotificationJob
	for _, job := range s.jobs {
		if job.PublishedAt == nil {
			pending = append(pending, cloneJob(job))
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if limit < len(pending) {
		pending = pending[:limit]
	}
	return pending, nil
}

// MarkPublished stamps a job as handed off.
func (s *InMemory) MarkPublished(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	job.PublishedAt = &at
	return nil
}

// ListByAgent returns all jobs referencing the given public id.
func (s *InMemory) ListByAgent(_ context.Context, agentID domain.AgentID) ([]*models.NotificationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.NotificationJob
	for _, job := range s.jobs {
		if job.AgentPublicID == agentID {
			matched = append(matched, cloneJob(job))
		}
	}
	return matched, nil
}

func cloneJob(job *models.NotificationJob) *models.NotificationJob {
	copied := *job
	if job.Payload != nil {
		copied.Payload = make(map[string]string, len(job.Payload))
		for k, v := range job.Payload {
			copied.Payload[k] = v
		}
	}
	if job.PublishedAt != nil {
		at := *job.PublishedAt
		copied.PublishedAt = &at
	}
	return &copied
}
