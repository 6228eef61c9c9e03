package handler

import (
	"time"

	"github.com/AstraSyncAI/astrasync-api/internal/registry/models"
	"github.com/AstraSyncAI/astrasync-api/internal/registry/service"
)

// registerRequest is the POST /v1/register body.
type registerRequest struct {
	Email string       `json:"email"`
	Agent agentPayload `json:"agent"`
}

type agentPayload struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Owner        string   `json:"owner"`
	OwnerURL     string   `json:"ownerUrl"`
	Capabilities []string `json:"capabilities"`
	Version      string   `json:"version"`
}

func (p agentPayload) toInput() service.AgentInput {
	return service.AgentInput{
		Name:         p.Name,
		Description:  p.Description,
		Owner:        p.Owner,
		OwnerURL:     p.OwnerURL,
		Capabilities: p.Capabilities,
		Version:      p.Version,
	}
}

// blockchainInfo pairs the placeholder status with a human explanation so
// clients don't have to special-case "pending".
type blockchainInfo struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func blockchainFor(status string) blockchainInfo {
	info := blockchainInfo{Status: status}
	switch models.BlockchainStatus(status) {
	case models.BlockchainConfirmed:
		info.Message = "Registration is anchored on chain."
	default:
		info.Message = "Blockchain anchoring is pending; the registration is already authoritative."
	}
	return info
}

type registerLinks struct {
	Verify  string `json:"verify"`
	Details string `json:"details"`
}

type registerResponse struct {
	AgentID      string         `json:"agentId"`
	Status       string         `json:"status"`
	Blockchain   blockchainInfo `json:"blockchain"`
	TrustScore   string         `json:"trustScore"`
	Message      string         `json:"message"`
	Links        registerLinks  `json:"links"`
	RegisteredAt time.Time      `json:"registeredAt"`
}

func newRegisterResponse(record *models.AgentRecord, baseURL string) registerResponse {
	id := record.PublicID.String()
	return registerResponse{
		AgentID:      id,
		Status:       string(record.Status),
		Blockchain:   blockchainFor(string(record.BlockchainStatus)),
		TrustScore:   record.TrustScore,
		Message:      "Agent registered successfully.",
		Links: registerLinks{
			Verify:  baseURL + "/v1/verify/" + id,
			Details: baseURL + "/v1/agent/" + id,
		},
		RegisteredAt: record.RegisteredAt,
	}
}

type verifyResponse struct {
	AgentID      string                  `json:"agentId"`
	Status       string                  `json:"status"`
	Blockchain   blockchainInfo          `json:"blockchain"`
	TrustScore   string                  `json:"trustScore"`
	Agent        service.PublicAgentData `json:"agent"`
	RegisteredAt time.Time               `json:"registeredAt"`
}

func newVerifyResponse(view *service.PublicView) verifyResponse {
	return verifyResponse{
		AgentID:      view.AgentID,
		Status:       view.Status,
		Blockchain:   blockchainFor(view.BlockchainStatus),
		TrustScore:   view.TrustScore,
		Agent:        view.Agent,
		RegisteredAt: view.RegisteredAt,
	}
}

type recentResponse struct {
	Agents   []service.Summary `json:"agents"`
	Total    int               `json:"total"`
	Returned int               `json:"returned"`
}
