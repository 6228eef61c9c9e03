// Package notification moves queued notification jobs out of the outbox and
// into the message broker the external mailer consumes. Delivery is
// at-least-once: a job is only marked published after the broker accepts it,
// so a crash between publish and mark re-sends on the next pass.
package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AstraSyncAI/astrasync-api/internal/registry/models"
)

//go:generate mockgen -source=relay.go -destination=mocks/mocks.go -package=mocks Store,Publisher

const (
	defaultPollInterval = 5 * time.Second
	defaultBatchSize    = 50
)

// Store is the outbox side the relay drains.
type Store interface {
	ListUnpublished(ctx context.Context, limit int) ([]*models.NotificationJob, error)
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Publisher hands one job to the downstream broker.
type Publisher interface {
	Publish(ctx context.Context, job *models.NotificationJob) error
}

// Relay polls the outbox and publishes pending jobs in order.
type Relay struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// Option customizes a Relay.
type Option func(*Relay)

// WithPollInterval overrides how often the outbox is polled.
func WithPollInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithBatchSize bounds how many jobs one pass publishes.
func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithLogger sets the relay logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

// WithClock overrides the published-at timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) { r.now = now }
}

// NewRelay constructs a Relay.
func NewRelay(store Store, publisher Publisher, opts ...Option) *Relay {
	r := &Relay{
		store:     store,
		publisher: publisher,
		logger:    slog.New(slog.DiscardHandler),
		interval:  defaultPollInterval,
		batchSize: defaultBatchSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until the context is cancelled. A failing pass is logged and
// retried on the next tick; jobs stay queued until the broker accepts them.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Drain(ctx); err != nil {
				r.logger.WarnContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

// Drain publishes one batch of unpublished jobs, oldest first. It stops at
// the first publish failure so ordering holds across retries.
func (r *Relay) Drain(ctx context.Context) error {
	jobs, err := r.store.ListUnpublished(ctx, r.batchSize)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if err := r.publisher.Publish(ctx, job); err != nil {
			return err
		}
		if err := r.store.MarkPublished(ctx, job.ID, r.now()); err != nil {
			// The broker has the job but the outbox still shows it pending;
			// the next pass re-publishes. Consumers dedupe on job id.
			return err
		}
		r.logger.InfoContext(ctx, "notification published",
			"job_id", job.ID.String(),
			"agent_id", job.AgentPublicID.String(),
			"template", job.Template,
		)
	}
	return nil
}
