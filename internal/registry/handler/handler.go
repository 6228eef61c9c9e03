// Package handler exposes the registry over HTTP. It owns the JSON contract
// only; all rules live in the service.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AstraSyncAI/astrasync-api/internal/registry/models"
	"github.com/AstraSyncAI/astrasync-api/internal/registry/service"
	dErrors "github.com/AstraSyncAI/astrasync-api/pkg/domain-errors"
	"github.com/AstraSyncAI/astrasync-api/pkg/platform/httputil"
	"github.com/AstraSyncAI/astrasync-api/pkg/requestcontext"
)

// sourceHeader names the channel a registration arrived through; absent
// means the public API.
const (
	sourceHeader  = "X-AstraSync-Source"
	defaultSource = "api"
)

// Service defines the registry operations the handler depends on.
type Service interface {
	Register(ctx context.Context, email string, input service.AgentInput) (*models.AgentRecord, error)
	Verify(ctx context.Context, rawID string) (*service.PublicView, error)
	GetDetails(ctx context.Context, rawID, email string) (*service.FullView, error)
	ListRecent(ctx context.Context, limit int) (*service.RecentList, error)
	Stats(ctx context.Context) (*service.Stats, error)
}

// Handler wires registry endpoints to the registry service.
type Handler struct {
	service Service
	logger  *slog.Logger
	baseURL string
}

// New constructs a registry handler. baseURL is used to build the links
// block in registration responses.
func New(svc Service, logger *slog.Logger, baseURL string) *Handler {
	return &Handler{
		service: svc,
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Register mounts registry endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/register", h.HandleRegister)
	r.Get("/v1/verify/{agentId}", h.HandleVerify)
	r.Get("/v1/agent/{agentId}", h.HandleDetails)
	r.Get("/v1/agents/recent", h.HandleRecent)
	r.Get("/v1/stats", h.HandleStats)
}

// HandleRegister handles POST /v1/register requests.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, err := httputil.Decode[registerRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	ctx = requestcontext.WithSource(ctx, sourceFrom(r))

	record, err := h.service.Register(ctx, req.Email, req.Agent.toInput())
	if err != nil {
		h.logger.ErrorContext(ctx, "registration failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "registration accepted",
		"request_id", requestID,
		"agent_id", record.PublicID.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, newRegisterResponse(record, h.baseURL))
}

// HandleVerify handles GET /v1/verify/{agentId} requests.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	view, err := h.service.Verify(ctx, chi.URLParam(r, "agentId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newVerifyResponse(view))
}

// HandleDetails handles GET /v1/agent/{agentId}?email= requests.
func (h *Handler) HandleDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	view, err := h.service.GetDetails(ctx, chi.URLParam(r, "agentId"), r.URL.Query().Get("email"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// HandleRecent handles GET /v1/agents/recent?limit= requests. A limit that
// does not parse falls back to the default rather than erroring.
func (h *Handler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be an integer"))
			return
		}
		limit = parsed
	}

	list, err := h.service.ListRecent(ctx, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, recentResponse{
		Agents:   list.Agents,
		Total:    list.Total,
		Returned: len(list.Agents),
	})
}

// HandleStats handles GET /v1/stats requests.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func sourceFrom(r *http.Request) string {
	if src := strings.TrimSpace(r.Header.Get(sourceHeader)); src != "" {
		return src
	}
	return defaultSource
}
