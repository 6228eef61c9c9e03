// Package cache provides a Redis-backed cache of public verify views.
// Records are immutable after registration, so cached views never go stale;
// the TTL only bounds memory.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	platformredis "github.com/AstraSyncAI/astrasync-api/internal/platform/redis"
	"github.com/AstraSyncAI/astrasync-api/internal/registry/service"
	"github.com/AstraSyncAI/astrasync-api/pkg/domain"
)

const (
	keyPrefix  = "registry:verify:"
	defaultTTL = time.Hour
)

// VerifyCache caches verify projections in Redis. All failures degrade to a
// miss; the cache is best-effort and must never fail a lookup.
type VerifyCache struct {
	client *platformredis.Client
	logger *slog.Logger
	ttl    time.Duration
}

// Option customizes a VerifyCache.
type Option func(*VerifyCache)

// WithTTL overrides the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *VerifyCache) { c.ttl = ttl }
}

// WithLogger sets the cache logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *VerifyCache) { c.logger = logger }
}

// New constructs a VerifyCache over the given Redis client.
func New(client *platformredis.Client, opts ...Option) *VerifyCache {
	c := &VerifyCache{
		client: client,
		logger: slog.New(slog.DiscardHandler),
		ttl:    defaultTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached view for id, or a miss.
func (c *VerifyCache) Get(ctx context.Context, id domain.AgentID) (*service.PublicView, bool) {
	raw, err := c.client.Get(ctx, keyPrefix+id.String()).Bytes()
	if err != nil {
		return nil, false
	}
	var view service.PublicView
	if err := json.Unmarshal(raw, &view); err != nil {
		// Corrupt entry; drop it so the next lookup repopulates.
		c.client.Del(ctx, keyPrefix+id.String())
		return nil, false
	}
	return &view, true
}

// Set stores the view under its agent id.
func (c *VerifyCache) Set(ctx context.Context, id domain.AgentID, view *service.PublicView) {
	raw, err := json.Marshal(view)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, keyPrefix+id.String(), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "verify cache write failed",
			"agent_id", id.String(),
			"error", err,
		)
	}
}

var _ service.VerifyCache = (*VerifyCache)(nil)
