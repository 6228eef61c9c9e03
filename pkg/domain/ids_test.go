package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "github.com/AstraSyncAI/astrasync-api/pkg/domain-errors"
)

// TestParseAgentID_Invariants validates the parsing invariant: public ids
// must match the generator's format at trust boundaries.
func TestParseAgentID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseAgentID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("accepts preview id", func(t *testing.T) {
		id, err := ParseAgentID("TEMP-1735689600000-A1B2C3")
		require.NoError(t, err)
		assert.Equal(t, TierPreview, id.Tier())
	})

	t.Run("accepts production id", func(t *testing.T) {
		id, err := ParseAgentID("ASTRAS-1735689600000-ZZ99XX")
		require.NoError(t, err)
		assert.Equal(t, TierProduction, id.Tier())
	})

	t.Run("trims surrounding whitespace", func(t *testing.T) {
		id, err := ParseAgentID("  TEMP-1735689600000-A1B2C3  ")
		require.NoError(t, err)
		assert.Equal(t, AgentID("TEMP-1735689600000-A1B2C3"), id)
	})
}

// TestParseAgentID_SecurityInvariants validates that lookup input cannot
// smuggle attack vectors past the trust boundary.
func TestParseAgentID_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE agents;--", true},
		{"path traversal", "../../../etc/passwd", true},
		{"null byte injection", "TEMP-1735689600000\x00-A1B2C3", true},
		{"oversized input", "TEMP-" + strings.Repeat("9", 500) + "-A1B2C3", true},
		{"unknown tier", "FAKE-1735689600000-A1B2C3", true},
		{"lowercase suffix", "TEMP-1735689600000-a1b2c3", true},
		{"missing suffix", "TEMP-1735689600000", true},
		{"valid", "TEMP-1735689600000-A1B2C3", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseAgentID(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseInternalID(t *testing.T) {
	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseInternalID(uuid.Nil.String())
		require.Error(t, err)
	})

	t.Run("round trips", func(t *testing.T) {
		id := NewInternalID()
		parsed, err := ParseInternalID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
		assert.False(t, parsed.IsNil())
	})
}
