package models

import (
	"strings"
	"time"

	"github.com/AstraSyncAI/astrasync-api/pkg/domain"
	dErrors "github.com/AstraSyncAI/astrasync-api/pkg/domain-errors"
)

// Status is the lifecycle state of an agent record. Currently single-valued:
// registered is both initial and terminal. The enum exists so verified /
// revoked / transferred states can be added without a schema change.
type Status string

const StatusRegistered Status = "registered"

// BlockchainStatus is a forward-compatibility placeholder for the on-chain
// immutability guarantee. No transition trigger exists; confirmed is
// unreachable in this version.
type BlockchainStatus string

const (
	BlockchainPending   BlockchainStatus = "pending"
	BlockchainConfirmed BlockchainStatus = "confirmed"
)

// trustScorePercent is fixed until real reputation scoring lands.
const trustScorePercent = "95%"

// TrustScoreFor returns the static trust score label for a tier, combining
// the lifecycle marker with the fixed percentage (e.g. "TEMP-95%").
func TrustScoreFor(tier domain.Tier) string {
	return string(tier) + "-" + trustScorePercent
}

// AgentData is the caller-supplied description of the agent. Immutable
// after creation; there is no update endpoint.
type AgentData struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Owner        string   `json:"owner"`
	OwnerURL     string   `json:"ownerUrl"`
	Capabilities []string `json:"capabilities"`
	Version      string   `json:"version"`
}

// Metadata records registration provenance. Write-once, audit-only; never
// validated and never part of the public view.
type Metadata struct {
	Source        string `json:"source"`
	ClientIP      string `json:"clientIp"`
	UserAgent     string `json:"userAgent"`
	DeviceSummary string `json:"deviceSummary"`
}

// AgentRecord is the registry's append-only ledger entry for one agent.
//
// Invariants:
//   - PublicID unique across all records, immutable once assigned
//   - InternalID never serialized into API responses
//   - OwnerEmail, Agent.Name, Agent.Owner non-empty
//   - RegisteredAt set once at creation
type AgentRecord struct {
	PublicID         domain.AgentID
	InternalID       domain.InternalID
	OwnerEmail       string
	Status           Status
	BlockchainStatus BlockchainStatus
	TrustScore       string
	Agent            AgentData
	Metadata         Metadata
	RegisteredAt     time.Time
}

// NewAgentRecord constructs a record with invariants enforced and optional
// agent fields defaulted. Email and agent-field validation happens in the
// service before ids are generated; this re-checks so a record can never be
// built in an invalid state.
func NewAgentRecord(publicID domain.AgentID, internalID domain.InternalID, ownerEmail string, agent AgentData, meta Metadata, now time.Time) (*AgentRecord, error) {
	if strings.TrimSpace(ownerEmail) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidEmail, "owner email is required")
	}
	if strings.TrimSpace(agent.Name) == "" || strings.TrimSpace(agent.Owner) == "" {
		return nil, dErrors.New(dErrors.CodeIncompleteAgentData, "agent name and owner are required")
	}

	if agent.Capabilities == nil {
		agent.Capabilities = []string{}
	}
	if agent.Version == "" {
		agent.Version = "1.0.0"
	}

	return &AgentRecord{
		PublicID:         publicID,
		InternalID:       internalID,
		OwnerEmail:       ownerEmail,
		Status:           StatusRegistered,
		BlockchainStatus: BlockchainPending,
		TrustScore:       TrustScoreFor(publicID.Tier()),
		Agent:            agent,
		Metadata:         meta,
		RegisteredAt:     now,
	}, nil
}

// OwnedBy reports whether the supplied email matches the record owner.
// Case-insensitive; this string compare is the entire authorization model
// for detail access in the preview tier.
func (r *AgentRecord) OwnedBy(email string) bool {
	return strings.EqualFold(strings.TrimSpace(email), r.OwnerEmail)
}
