package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AstraSyncAI/astrasync-api/internal/registry/models"
	"github.com/AstraSyncAI/astrasync-api/pkg/domain"
	dErrors "github.com/AstraSyncAI/astrasync-api/pkg/domain-errors"
	"github.com/AstraSyncAI/astrasync-api/pkg/platform/sentinel"
	"github.com/AstraSyncAI/astrasync-api/pkg/requestcontext"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100

	recentWindow = 24 * time.Hour
)

// Verify returns the public projection of a record. A malformed or unknown
// id is NotFound; only a degraded store produces an internal error, so
// callers can tell "never existed" from "server broken".
func (s *Service) Verify(ctx context.Context, rawID string) (*PublicView, error) {
	ctx, span := s.tracer.Start(ctx, "registry.verify")
	defer span.End()
	start := time.Now()

	id, err := domain.ParseAgentID(rawID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "no agent registered under this id")
	}
	span.SetAttributes(attribute.String("agent.public_id", id.String()))

	if s.cache != nil {
		if view, ok := s.cache.Get(ctx, id); ok {
			return view, nil
		}
	}

	record, err := s.findRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	view := publicView(record)
	if s.cache != nil {
		s.cache.Set(ctx, id, view)
	}
	if s.metrics != nil {
		s.metrics.ObserveVerify(start)
	}
	return view, nil
}

// GetDetails returns the full projection, gated on the caller-supplied
// email matching the stored owner. A mismatch is Forbidden rather than
// NotFound: the id's existence leaks, which is an accepted trade-off in
// the preview tier.
func (s *Service) GetDetails(ctx context.Context, rawID, email string) (*FullView, error) {
	ctx, span := s.tracer.Start(ctx, "registry.get_details")
	defer span.End()

	if strings.TrimSpace(email) == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "email query parameter is required")
	}

	id, err := domain.ParseAgentID(rawID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "no agent registered under this id")
	}
	span.SetAttributes(attribute.String("agent.public_id", id.String()))

	record, err := s.findRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	if !record.OwnedBy(email) {
		s.logger.WarnContext(ctx, "detail access denied",
			"request_id", requestcontext.RequestID(ctx),
			"agent_id", id.String(),
		)
		return nil, dErrors.New(dErrors.CodeForbidden, "email does not match the registered owner")
	}
	return fullView(record), nil
}

// ListRecent returns the newest registrations. The limit is defaulted to 10
// when absent or non-positive and clamped to 100.
func (s *Service) ListRecent(ctx context.Context, limit int) (*RecentList, error) {
	ctx, span := s.tracer.Start(ctx, "registry.list_recent")
	defer span.End()

	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	records, err := s.agents.ListRecent(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list agents")
	}
	total, err := s.agents.Count(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count agents")
	}

	list := &RecentList{Agents: make([]Summary, 0, len(records)), Total: total}
	for _, record := range records {
		list.Agents = append(list.Agents, summary(record))
	}
	return list, nil
}

// Stats aggregates registry counters. Derived entirely from the stores so
// it stays consistent with the record count.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	ctx, span := s.tracer.Start(ctx, "registry.stats")
	defer span.End()

	total, err := s.agents.Count(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count agents")
	}
	recent, err := s.agents.CountSince(ctx, requestcontext.Now(ctx).Add(-recentWindow))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count recent agents")
	}
	pending, err := s.notifications.CountPending(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count pending notifications")
	}

	return &Stats{
		TotalAgents:          total,
		RegisteredLast24h:    recent,
		PendingNotifications: pending,
	}, nil
}

func (s *Service) findRecord(ctx context.Context, id domain.AgentID) (*models.AgentRecord, error) {
	record, err := s.agents.FindByPublicID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no agent registered under this id")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load agent record")
	}
	return record, nil
}
