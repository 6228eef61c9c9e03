// Package idgen produces agent identifiers. Public ids combine a tier
// prefix, a millisecond timestamp and a random suffix so concurrent
// generators need no coordination; the store's uniqueness constraint is the
// backstop for the (rare) collision.
package idgen

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"time"

	"github.com/AstraSyncAI/astrasync-api/pkg/domain"
)

const (
	suffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	suffixLength   = 6
)

// Generator allocates public and internal agent identifiers.
type Generator struct {
	tier domain.Tier
	now  func() time.Time
}

// Option customizes a Generator.
type Option func(*Generator)

// WithTier overrides the default preview tier. Reserved for the future
// conversion path that issues production-grade ids.
func WithTier(tier domain.Tier) Option {
	return func(g *Generator) {
		g.tier = tier
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// New constructs a Generator issuing preview-tier ids.
func New(opts ...Option) *Generator {
	g := &Generator{tier: domain.TierPreview, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// PublicID allocates a caller-facing agent id: <tier>-<unix-ms>-<suffix>.
// URL-safe by construction (uppercase alphanumerics and hyphens only).
func (g *Generator) PublicID() (domain.AgentID, error) {
	suffix, err := randomSuffix(suffixLength)
	if err != nil {
		return "", fmt.Errorf("generate id suffix: %w", err)
	}
	ms := g.now().UnixMilli()
	return domain.AgentID(string(g.tier) + "-" + strconv.FormatInt(ms, 10) + "-" + suffix), nil
}

// InternalID allocates the opaque record identifier.
func (g *Generator) InternalID() domain.InternalID {
	return domain.NewInternalID()
}

func randomSuffix(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = suffixAlphabet[int(b)%len(suffixAlphabet)]
	}
	return string(buf), nil
}
