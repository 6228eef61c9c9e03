package service

import (
	"time"

	"github.com/AstraSyncAI/astrasync-api/internal/registry/models"
)

// PublicAgentData is the subset of agent data exposed without ownership
// proof: name, owner and version only.
type PublicAgentData struct {
	Name    string `json:"name"`
	Owner   string `json:"owner"`
	Version string `json:"version"`
}

// PublicView is the verify projection. It never carries the owner email,
// the internal id, or provenance metadata.
type PublicView struct {
	AgentID          string          `json:"agentId"`
	Status           string          `json:"status"`
	BlockchainStatus string          `json:"blockchainStatus"`
	TrustScore       string          `json:"trustScore"`
	Agent            PublicAgentData `json:"agent"`
	RegisteredAt     time.Time       `json:"registeredAt"`
}

// FullView is the owner-gated detail projection. The internal id stays
// private even here.
type FullView struct {
	AgentID          string           `json:"agentId"`
	Status           string           `json:"status"`
	BlockchainStatus string           `json:"blockchainStatus"`
	TrustScore       string           `json:"trustScore"`
	OwnerEmail       string           `json:"ownerEmail"`
	Agent            models.AgentData `json:"agent"`
	Metadata         models.Metadata  `json:"metadata"`
	RegisteredAt     time.Time        `json:"registeredAt"`
}

// Summary is one row of the recent listing; public fields only.
type Summary struct {
	AgentID      string    `json:"agentId"`
	Name         string    `json:"name"`
	Owner        string    `json:"owner"`
	TrustScore   string    `json:"trustScore"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// RecentList pairs a page of summaries with the total record count.
type RecentList struct {
	Agents []Summary `json:"agents"`
	Total  int       `json:"total"`
}

// Stats aggregates registry counters for the dashboard endpoint.
type Stats struct {
	TotalAgents          int `json:"totalAgents"`
	RegisteredLast24h    int `json:"registeredLast24h"`
	PendingNotifications int `json:"pendingNotifications"`
}

func publicView(record *models.AgentRecord) *PublicView {
	return &PublicView{
		AgentID:          record.PublicID.String(),
		Status:           string(record.Status),
		BlockchainStatus: string(record.BlockchainStatus),
		TrustScore:       record.TrustScore,
		Agent: PublicAgentData{
			Name:    record.Agent.Name,
			Owner:   record.Agent.Owner,
			Version: record.Agent.Version,
		},
		RegisteredAt: record.RegisteredAt,
	}
}

func fullView(record *models.AgentRecord) *FullView {
	return &FullView{
		AgentID:          record.PublicID.String(),
		Status:           string(record.Status),
		BlockchainStatus: string(record.BlockchainStatus),
		TrustScore:       record.TrustScore,
		OwnerEmail:       record.OwnerEmail,
		Agent:            record.Agent,
		Metadata:         record.Metadata,
		RegisteredAt:     record.RegisteredAt,
	}
}

func summary(record *models.AgentRecord) Summary {
	return Summary{
		AgentID:      record.PublicID.String(),
		Name:         record.Agent.Name,
		Owner:        record.Agent.Owner,
		TrustScore:   record.TrustScore,
		RegisteredAt: record.RegisteredAt,
	}
}
