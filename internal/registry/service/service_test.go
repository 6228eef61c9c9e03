package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AstraSyncAI/astrasync-api/internal/registry/idgen"
	"github.com/AstraSyncAI/astrasync-api/internal/registry/models"
	agentstore "github.com/AstraSyncAI/astrasync-api/internal/registry/store/agent"
	notificationstore "github.com/AstraSyncAI/astrasync-api/internal/registry/store/notification"
	"github.com/AstraSyncAI/astrasync-api/pkg/domain"
	dErrors "github.com/AstraSyncAI/astrasync-api/pkg/domain-errors"
	"github.com/AstraSyncAI/astrasync-api/pkg/requestcontext"
)

type fixture struct {
	svc           *Service
	agents        *agentstore.InMemory
	notifications *notificationstore.InMemory
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	agents := agentstore.NewInMemory()
	notifications := notificationstore.NewInMemory()
	svc := New(agents, notifications, idgen.New(), opts...)
	return &fixture{svc: svc, agents: agents, notifications: notifications}
}

func validInput() AgentInput {
	return AgentInput{Name: "Bot", Owner: "Acme"}
}

func TestRegister_HappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := requestcontext.WithClientMetadata(context.Background(), "203.0.113.9",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	ctx = requestcontext.WithSource(ctx, "api")

	record, err := f.svc.Register(ctx, "a@b.com", validInput())
	require.NoError(t, err)

	assert.Regexp(t, `^TEMP-\d+-[A-Z0-9]{6}$`, record.PublicID.String())
	assert.Equal(t, models.StatusRegistered, record.Status)
	assert.Equal(t, models.BlockchainPending, record.BlockchainStatus)
	assert.Equal(t, "TEMP-95%", record.TrustScore)
	assert.Equal(t, "1.0.0", record.Agent.Version)
	assert.Equal(t, "api", record.Metadata.Source)
	assert.Equal(t, "203.0.113.9", record.Metadata.ClientIP)
	assert.Contains(t, record.Metadata.DeviceSummary, "Chrome")
	assert.False(t, record.InternalID.IsNil())
}

func TestRegister_VerifyRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.svc.Register(ctx, "a@b.com", validInput())
	require.NoError(t, err)

	view, err := f.svc.Verify(ctx, record.PublicID.String())
	require.NoError(t, err)
	assert.Equal(t, record.PublicID.String(), view.AgentID)
	assert.Equal(t, "registered", view.Status)
	assert.Equal(t, "Bot", view.Agent.Name)
	assert.Equal(t, "Acme", view.Agent.Owner)
}

func TestRegister_ExactlyOneNotificationJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.svc.Register(ctx, "a@b.com", validInput())
	require.NoError(t, err)

	jobs, err := f.notifications.ListByAgent(ctx, record.PublicID)
	require.NoError(t, err)
	require.Len(t, jobs, 1, "exactly one notification job per registration")
	assert.Equal(t, "a@b.com", jobs[0].Recipient)
	assert.Equal(t, models.TemplateAgentRegistered, jobs[0].Template)
}

func TestRegister_ValidationFailsFast(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		input    AgentInput
		wantCode dErrors.Code
	}{
		{"empty email", "", validInput(), dErrors.CodeInvalidEmail},
		{"email without at sign", "not-an-email", validInput(), dErrors.CodeInvalidEmail},
		{"missing name", "a@b.com", AgentInput{Owner: "Acme"}, dErrors.CodeIncompleteAgentData},
		{"missing owner", "a@b.com", AgentInput{Name: "Bot"}, dErrors.CodeIncompleteAgentData},
		{"blank owner", "a@b.com", AgentInput{Name: "Bot", Owner: "   "}, dErrors.CodeIncompleteAgentData},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Register(context.Background(), tc.email, tc.input)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, tc.wantCode), "got %v", err)

			// Fail fast: nothing may have been written.
			count, err := f.agents.Count(context.Background())
			require.NoError(t, err)
			assert.Zero(t, count)
			pending, err := f.notifications.CountPending(context.Background())
			require.NoError(t, err)
			assert.Zero(t, pending)
		})
	}
}

// fixedIDs always returns the same public id, forcing a store conflict on
// the second registration.
type fixedIDs struct{ id domain.AgentID }

func (f fixedIDs) PublicID() (domain.AgentID, error) { return f.id, nil }
func (f fixedIDs) InternalID() domain.InternalID     { return domain.NewInternalID() }

func TestRegister_ConflictSurfacesAsTypedError(t *testing.T) {
	agents := agentstore.NewInMemory()
	notifications := notificationstore.NewInMemory()
	svc := New(agents, notifications, fixedIDs{id: "TEMP-1735689600000-AAAAAA"})
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@b.com", validInput())
	require.NoError(t, err)

	_, err = svc.Register(ctx, "c@d.com", validInput())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict), "got %v", err)
}

type failingNotifications struct{ notificationstore.InMemory }

func (f *failingNotifications) Enqueue(context.Context, *models.NotificationJob) error {
	return errors.New("disk full")
}

func TestRegister_PersistenceFailureIsOpaque(t *testing.T) {
	agents := agentstore.NewInMemory()
	svc := New(agents, &failingNotifications{}, idgen.New())

	_, err := svc.Register(context.Background(), "a@b.com", validInput())
	require.Error(t, err)
	require.True(t, dErrors.HasCode(err, dErrors.CodeInternal), "got %v", err)

	de := dErrors.From(err)
	require.NotNil(t, de)
	assert.NotEmpty(t, de.Correlation, "internal errors must carry a correlation id")
	assert.NotContains(t, de.Message, "disk full", "root cause must not leak to callers")
}

func TestVerify_UnknownAndMalformedAreNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Verify(ctx, "TEMP-1735689600000-ZZZZZZ")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = f.svc.Verify(ctx, "not-an-agent-id")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestGetDetails_AuthorizationBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.svc.Register(ctx, "Owner@Example.com", validInput())
	require.NoError(t, err)
	id := record.PublicID.String()

	t.Run("matching email, case-insensitive", func(t *testing.T) {
		view, err := f.svc.GetDetails(ctx, id, "owner@example.COM")
		require.NoError(t, err)
		assert.Equal(t, "Owner@Example.com", view.OwnerEmail)
		assert.Equal(t, id, view.AgentID)
	})

	t.Run("mismatched email is forbidden, not not-found", func(t *testing.T) {
		_, err := f.svc.GetDetails(ctx, id, "other@example.com")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden), "got %v", err)
	})

	t.Run("missing email is a bad request", func(t *testing.T) {
		_, err := f.svc.GetDetails(ctx, id, "  ")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest), "got %v", err)
	})

	t.Run("unknown id is not-found regardless of email", func(t *testing.T) {
		_, err := f.svc.GetDetails(ctx, "TEMP-1735689600000-ZZZZZZ", "other@example.com")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound), "got %v", err)
	})
}

func TestListRecent_LimitRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 120; i++ {
		// Spread registration times so ordering is deterministic.
		regCtx := requestcontext.WithTime(ctx, time.Now().Add(time.Duration(i)*time.Millisecond))
		input := validInput()
		input.Name = fmt.Sprintf("Bot %d", i)
		_, err := f.svc.Register(regCtx, "a@b.com", input)
		require.NoError(t, err)
	}

	t.Run("defaults to 10", func(t *testing.T) {
		list, err := f.svc.ListRecent(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, list.Agents, 10)
		assert.Equal(t, 120, list.Total)
	})

	t.Run("negative limit defaults to 10", func(t *testing.T) {
		list, err := f.svc.ListRecent(ctx, -5)
		require.NoError(t, err)
		assert.Len(t, list.Agents, 10)
	})

	t.Run("clamps to 100", func(t *testing.T) {
		list, err := f.svc.ListRecent(ctx, 500)
		require.NoError(t, err)
		assert.Len(t, list.Agents, 100)
	})

	t.Run("most recent first", func(t *testing.T) {
		list, err := f.svc.ListRecent(ctx, 3)
		require.NoError(t, err)
		require.Len(t, list.Agents, 3)
		assert.Equal(t, "Bot 119", list.Agents[0].Name)
		assert.Equal(t, "Bot 118", list.Agents[1].Name)
	})
}

func TestStats_ConsistentWithStores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old := requestcontext.WithTime(ctx, time.Now().Add(-48*time.Hour))
	_, err := f.svc.Register(old, "a@b.com", validInput())
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, "a@b.com", validInput())
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalAgents)
	assert.Equal(t, 1, stats.RegisteredLast24h)
	assert.Equal(t, 2, stats.PendingNotifications)
}

func TestRegister_ConcurrentRegistrationsAreIndependent(t *testing.T) {
	f := newFixture(t)
	const goroutines = 50

	var wg sync.WaitGroup
	ids := make(chan domain.AgentID, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			input := validInput()
			input.Name = fmt.Sprintf("Bot %d", n)
			record, err := f.svc.Register(context.Background(), "a@b.com", input)
			if err == nil {
				ids <- record.PublicID
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[domain.AgentID]struct{})
	for id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "duplicate public id issued: %s", id)
		seen[id] = struct{}{}
	}
	require.Len(t, seen, goroutines)

	pending, err := f.notifications.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, goroutines, pending, "one job per registration")
}

// recordingCache observes cache traffic for the verify path.
type recordingCache struct {
	mu    sync.Mutex
	store map[domain.AgentID]*PublicView
	hits  int
}

func (c *recordingCache) Get(_ context.Context, id domain.AgentID) (*PublicView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	view, ok := c.store[id]
	if ok {
		c.hits++
	}
	return view, ok
}

func (c *recordingCache) Set(_ context.Context, id domain.AgentID, view *PublicView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[id] = view
}

func TestVerify_UsesCache(t *testing.T) {
	cache := &recordingCache{store: make(map[domain.AgentID]*PublicView)}
	f := newFixture(t, WithCache(cache))
	ctx := context.Background()

	record, err := f.svc.Register(ctx, "a@b.com", validInput())
	require.NoError(t, err)

	_, err = f.svc.Verify(ctx, record.PublicID.String())
	require.NoError(t, err)
	view, err := f.svc.Verify(ctx, record.PublicID.String())
	require.NoError(t, err)

	assert.Equal(t, 1, cache.hits, "second verify must hit the cache")
	assert.Equal(t, record.PublicID.String(), view.AgentID)
}
