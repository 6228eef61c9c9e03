package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/AstraSyncAI/astrasync-api/pkg/domain"
)

// TemplateAgentRegistered identifies the welcome message rendered by the
// external mailer.
const TemplateAgentRegistered = "agent-registered"

// NotificationJob is one pending outbound message in the outbox. Created
// exactly once per successful registration, in the same transaction as the
// agent record; consumed asynchronously by the external mailer.
type NotificationJob struct {
	ID            uuid.UUID
	AgentPublicID domain.AgentID
	Recipient     string
	Subject       string
	Template      string
	Payload       map[string]string
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

// NewRegistrationNotification builds the welcome job for a freshly
// registered agent.
func NewRegistrationNotification(record *AgentRecord, now time.Time) *NotificationJob {
	return &NotificationJob{
		ID:            uuid.New(),
		AgentPublicID: record.PublicID,
		Recipient:     record.OwnerEmail,
		Subject:       "Your AstraSync agent is registered",
		Template:      TemplateAgentRegistered,
		Payload: map[string]string{
			"agentId":    record.PublicID.String(),
			"agentName":  record.Agent.Name,
			"owner":      record.Agent.Owner,
			"trustScore": record.TrustScore,
		},
		CreatedAt: now,
	}
}
