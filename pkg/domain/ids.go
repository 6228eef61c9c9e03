// Package domain holds typed identifiers shared across modules. Typed IDs
// keep public agent ids and internal record ids from being swapped at
// compile time, which matters because only one of them may ever leave the
// service.
package domain

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	dErrors "github.com/AstraSyncAI/astrasync-api/pkg/domain-errors"
)

// Tier is the lifecycle-stage prefix carried by a public agent id. It
// doubles as the trust-tier marker in trust score labels.
type Tier string

const (
	// TierPreview marks ids issued before blockchain conversion.
	TierPreview Tier = "TEMP"
	// TierProduction marks ids issued after conversion. No conversion
	// trigger exists yet; the tier is reserved for that path.
	TierProduction Tier = "ASTRAS"
)

// AgentID is the caller-facing public identifier:
// <tier>-<unix-ms>-<random suffix>. URL-safe by construction.
type AgentID string

var agentIDPattern = regexp.MustCompile(`^(TEMP|ASTRAS)-\d{10,16}-[A-Z0-9]{6,12}$`)

// ParseAgentID validates an externally supplied agent id. Rejects anything
// that could not have been issued by the generator, which shields the store
// layer from junk lookups at the trust boundary.
func ParseAgentID(raw string) (AgentID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "agent id is required")
	}
	if !agentIDPattern.MatchString(raw) {
		return "", dErrors.New(dErrors.CodeBadRequest, "malformed agent id")
	}
	return AgentID(raw), nil
}

func (a AgentID) String() string {
	return string(a)
}

// Tier returns the lifecycle-stage prefix of the id. Callers should only
// invoke this on ids that passed ParseAgentID.
func (a AgentID) Tier() Tier {
	if idx := strings.IndexByte(string(a), '-'); idx > 0 {
		return Tier(a[:idx])
	}
	return ""
}

// InternalID is the opaque record identifier used for internal joins and
// audit. It is never serialized into API responses.
type InternalID uuid.UUID

// NewInternalID allocates a random internal identifier.
func NewInternalID() InternalID {
	return InternalID(uuid.New())
}

// ParseInternalID validates a stored internal id string.
func ParseInternalID(raw string) (InternalID, error) {
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return InternalID{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed internal id")
	}
	if parsed == uuid.Nil {
		return InternalID{}, dErrors.New(dErrors.CodeBadRequest, "internal id cannot be nil")
	}
	return InternalID(parsed), nil
}

func (i InternalID) String() string {
	return uuid.UUID(i).String()
}

// IsNil reports whether the id is the zero value.
func (i InternalID) IsNil() bool {
	return uuid.UUID(i) == uuid.Nil
}
