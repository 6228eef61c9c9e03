package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/AstraSyncAI/astrasync-api/internal/notification/mocks"
	"github.com/AstraSyncAI/astrasync-api/internal/registry/models"
	notificationstore "github.com/AstraSyncAI/astrasync-api/internal/registry/store/notification"
	"github.com/AstraSyncAI/astrasync-api/pkg/domain"
)

func queueJob(t *testing.T, store *notificationstore.InMemory, agentID string, createdAt time.Time) *models.NotificationJob {
	t.Helper()
	job := &models.NotificationJob{
		ID:            uuid.New(),
		AgentPublicID: domain.AgentID(agentID),
		Recipient:     "a@b.com",
		Subject:       "Your AstraSync agent is registered",
		Template:      models.TemplateAgentRegistered,
		Payload:       map[string]string{"agentId": agentID},
		CreatedAt:     createdAt,
	}
	require.NoError(t, store.Enqueue(context.Background(), job))
	return job
}

func TestDrain_PublishesOldestFirst(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := notificationstore.NewInMemory()
	base := time.Now().Add(-time.Minute)

	first := queueJob(t, store, "TEMP-1735689600000-AAAAAA", base)
	second := queueJob(t, store, "TEMP-1735689600000-BBBBBB", base.Add(time.Second))
	third := queueJob(t, store, "TEMP-1735689600000-CCCCCC", base.Add(2*time.Second))

	publisher := mocks.NewMockPublisher(ctrl)
	gomock.InOrder(
		publisher.EXPECT().Publish(gomock.Any(), jobWithID(first.ID)).Return(nil),
		publisher.EXPECT().Publish(gomock.Any(), jobWithID(second.ID)).Return(nil),
		publisher.EXPECT().Publish(gomock.Any(), jobWithID(third.ID)).Return(nil),
	)

	relay := NewRelay(store, publisher)
	require.NoError(t, relay.Drain(context.Background()))

	pending, err := store.CountPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pending, "all published jobs must be marked")
}

func TestDrain_StopsAtFirstPublishFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := notificationstore.NewInMemory()
	base := time.Now().Add(-time.Minute)

	first := queueJob(t, store, "TEMP-1735689600000-AAAAAA", base)
	queueJob(t, store, "TEMP-1735689600000-BBBBBB", base.Add(time.Second))
	queueJob(t, store, "TEMP-1735689600000-CCCCCC", base.Add(2*time.Second))

	publisher := mocks.NewMockPublisher(ctrl)
	gomock.InOrder(
		publisher.EXPECT().Publish(gomock.Any(), jobWithID(first.ID)).Return(nil),
		publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker down")),
	)

	relay := NewRelay(store, publisher)
	err := relay.Drain(context.Background())
	require.Error(t, err)

	// The first job is gone; the failed one and everything behind it wait
	// for the next pass.
	pending, err2 := store.CountPending(context.Background())
	require.NoError(t, err2)
	assert.Equal(t, 2, pending)
}

func TestDrain_MarkFailureSurfaces(t *testing.T) {
	ctrl := gomock.NewController(t)
	job := &models.NotificationJob{ID: uuid.New(), AgentPublicID: "TEMP-1735689600000-AAAAAA"}

	store := mocks.NewMockStore(ctrl)
	store.EXPECT().ListUnpublished(gomock.Any(), gomock.Any()).
		Return([]*models.NotificationJob{job}, nil)
	store.EXPECT().MarkPublished(gomock.Any(), job.ID, gomock.Any()).
		Return(errors.New("write failed"))

	publisher := mocks.NewMockPublisher(ctrl)
	publisher.EXPECT().Publish(gomock.Any(), job).Return(nil)

	relay := NewRelay(store, publisher)
	assert.Error(t, relay.Drain(context.Background()))
}

func TestDrain_RespectsBatchSize(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := notificationstore.NewInMemory()
	base := time.Now().Add(-time.Minute)
	for i := 0; i < 5; i++ {
		queueJob(t, store, "TEMP-1735689600000-AAAAAA", base.Add(time.Duration(i)*time.Second))
	}

	publisher := mocks.NewMockPublisher(ctrl)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	relay := NewRelay(store, publisher, WithBatchSize(2))
	require.NoError(t, relay.Drain(context.Background()))

	pending, err := store.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, pending)
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	relay := NewRelay(notificationstore.NewInMemory(), mocks.NewMockPublisher(ctrl),
		WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := relay.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// jobWithID matches a notification job by its id.
func jobWithID(id uuid.UUID) gomock.Matcher {
	return gomock.Cond(func(job *models.NotificationJob) bool {
		return job != nil && job.ID == id
	})
}
