package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AstraSyncAI/astrasync-api/internal/registry/models"
	dErrors "github.com/AstraSyncAI/astrasync-api/pkg/domain-errors"
	"github.com/AstraSyncAI/astrasync-api/pkg/platform/sentinel"
	"github.com/AstraSyncAI/astrasync-api/pkg/requestcontext"
)

// AgentInput is the caller-supplied agent payload. Optional fields default
// during record construction.
type AgentInput struct {
	Name         string
	Description  string
	Owner        string
	OwnerURL     string
	Capabilities []string
	Version      string
}

// Register validates the input, allocates identifiers, and persists the
// record together with its welcome notification in one transaction. Either
// both rows become visible or neither does; a reader can never observe a
// record without its queued notification.
func (s *Service) Register(ctx context.Context, email string, input AgentInput) (*models.AgentRecord, error) {
	ctx, span := s.tracer.Start(ctx, "registry.register")
	defer span.End()
	start := time.Now()

	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validateAgentInput(input); err != nil {
		return nil, err
	}

	publicID, err := s.ids.PublicID()
	if err != nil {
		return nil, s.persistenceFailure(ctx, span, err, "allocate public id")
	}
	internalID := s.ids.InternalID()
	span.SetAttributes(attribute.String("agent.public_id", publicID.String()))

	now := requestcontext.Now(ctx)
	record, err := models.NewAgentRecord(publicID, internalID, email,
		models.AgentData{
			Name:         strings.TrimSpace(input.Name),
			Description:  input.Description,
			Owner:        strings.TrimSpace(input.Owner),
			OwnerURL:     input.OwnerURL,
			Capabilities: input.Capabilities,
			Version:      input.Version,
		},
		buildMetadata(ctx), now)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.agents.Create(txCtx, record); err != nil {
			return err
		}
		return s.notifications.Enqueue(txCtx, models.NewRegistrationNotification(record, now))
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Identifiers carry timestamp+randomness; a collision is rare
			// enough that the caller retries with a fresh id.
			if s.metrics != nil {
				s.metrics.IncrementRegistrationConflict()
			}
			span.RecordError(err)
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "agent id already taken, retry the registration")
		}
		return nil, s.persistenceFailure(ctx, span, err, "persist registration")
	}

	if s.metrics != nil {
		s.metrics.IncrementAgentsRegistered()
		s.metrics.ObserveRegister(start)
	}
	s.logger.InfoContext(ctx, "agent registered",
		"request_id", requestcontext.RequestID(ctx),
		"agent_id", record.PublicID.String(),
		"source", record.Metadata.Source,
	)
	return record, nil
}

// persistenceFailure logs the root cause server-side and returns a generic
// internal error carrying only a fresh correlation id.
func (s *Service) persistenceFailure(ctx context.Context, span trace.Span, err error, op string) error {
	correlationID := uuid.NewString()
	span.RecordError(err)
	s.logger.ErrorContext(ctx, "registration persistence failure",
		"request_id", requestcontext.RequestID(ctx),
		"correlation_id", correlationID,
		"op", op,
		"error", err.Error(),
	)
	return dErrors.Wrap(err, dErrors.CodeInternal, "registration could not be completed").
		WithCorrelation(correlationID)
}

// validateEmail applies the minimal syntactic check: non-empty and contains
// an @. Full RFC validation is out of scope; the address is only ever used
// for the welcome mail and the ownership compare.
func validateEmail(email string) error {
	if email == "" || !strings.Contains(email, "@") {
		return dErrors.New(dErrors.CodeInvalidEmail, "a valid email address is required")
	}
	return nil
}

func validateAgentInput(input AgentInput) error {
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.Owner) == "" {
		return dErrors.New(dErrors.CodeIncompleteAgentData, "agent name and owner are required")
	}
	return nil
}

// buildMetadata captures write-once provenance from the request context.
// Nothing here is validated; it exists for audit only.
func buildMetadata(ctx context.Context) models.Metadata {
	ua := requestcontext.UserAgent(ctx)
	return models.Metadata{
		Source:        requestcontext.Source(ctx),
		ClientIP:      requestcontext.ClientIP(ctx),
		UserAgent:     ua,
		DeviceSummary: deviceSummary(ua),
	}
}

// deviceSummary condenses the raw User-Agent into a short label so audit
// queries don't have to parse UA strings.
func deviceSummary(raw string) string {
	if raw == "" {
		return ""
	}
	parsed := useragent.New(raw)
	if parsed.Bot() {
		return "bot"
	}
	name, version := parsed.Browser()
	if name == "" {
		return "unknown"
	}
	summary := name
	if version != "" {
		summary += " " + version
	}
	if os := parsed.OS(); os != "" {
		summary += " (" + os + ")"
	}
	return summary
}
