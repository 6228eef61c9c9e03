// Package service orchestrates the agent registration lifecycle: input
// validation, identifier allocation, the atomic record+notification write,
// and the read-side projections.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	registrymetrics "github.com/AstraSyncAI/astrasync-api/internal/registry/metrics"
	"github.com/AstraSyncAI/astrasync-api/internal/registry/models"
	"github.com/AstraSyncAI/astrasync-api/pkg/domain"
)

// AgentStore is the durable agent record table.
type AgentStore interface {
	Create(ctx context.Context, record *models.AgentRecord) error
	FindByPublicID(ctx context.Context, id domain.AgentID) (*models.AgentRecord, error)
	ListRecent(ctx context.Context, limit int) ([]*models.AgentRecord, error)
	Count(ctx context.Context) (int, error)
	CountSince(ctx context.Context, cutoff time.Time) (int, error)
}

// NotificationStore is the append-only outbox of pending notification jobs.
type NotificationStore interface {
	Enqueue(ctx context.Context, job *models.NotificationJob) error
	CountPending(ctx context.Context) (int, error)
}

// StoreTx runs fn atomically against the backing store. Implementations
// carry the transaction in the context so stores can join it.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// IDGenerator allocates public and internal agent identifiers.
type IDGenerator interface {
	PublicID() (domain.AgentID, error)
	InternalID() domain.InternalID
}

// VerifyCache caches public verify views. Records are immutable, so a hit
// can never be stale; a nil cache disables caching.
type VerifyCache interface {
	Get(ctx context.Context, id domain.AgentID) (*PublicView, bool)
	Set(ctx context.Context, id domain.AgentID, view *PublicView)
}

// Service exposes registration and the read-only query operations.
type Service struct {
	agents        AgentStore
	notifications NotificationStore
	tx            StoreTx
	ids           IDGenerator
	cache         VerifyCache
	logger        *slog.Logger
	metrics       *registrymetrics.Metrics
	tracer        trace.Tracer
}

// Option customizes a Service.
type Option func(*Service)

// WithTx sets the transaction runner. Defaults to a pass-through runner
// suitable for the in-memory stores.
func WithTx(tx StoreTx) Option {
	return func(s *Service) { s.tx = tx }
}

// WithIDGenerator overrides the identifier generator.
func WithIDGenerator(ids IDGenerator) Option {
	return func(s *Service) { s.ids = ids }
}

// WithCache enables the verify-view cache.
func WithCache(cache VerifyCache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics enables registry metrics.
func WithMetrics(m *registrymetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs a Service.
func New(agents AgentStore, notifications NotificationStore, ids IDGenerator, opts ...Option) *Service {
	s := &Service{
		agents:        agents,
		notifications: notifications,
		ids:           ids,
		logger:        slog.New(slog.DiscardHandler),
		tracer:        otel.Tracer("registry"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = passthroughTx{}
	}
	return s
}

// passthroughTx runs the callback directly. The in-memory stores have no
// transaction concept; unit tests exercise atomicity through fault
// injection instead.
type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}
