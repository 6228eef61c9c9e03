//go:build integration

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/AstraSyncAI/astrasync-api/internal/registry/models"
	agentstore "github.com/AstraSyncAI/astrasync-api/internal/registry/store/agent"
	notificationstore "github.com/AstraSyncAI/astrasync-api/internal/registry/store/notification"
	"github.com/AstraSyncAI/astrasync-api/pkg/domain"
	"github.com/AstraSyncAI/astrasync-api/pkg/platform/sentinel"
	"github.com/AstraSyncAI/astrasync-api/pkg/testutil/containers"
)

type PostgresTxSuite struct {
	suite.Suite
	tx            *PostgresTx
	agents        *agentstore.Postgres
	notifications *notificationstore.Postgres
	ctx           context.Context
}

func TestPostgresTxSuite(t *testing.T) {
	suite.Run(t, new(PostgresTxSuite))
}

func (s *PostgresTxSuite) SetupSuite() {
	pg := containers.GetManager().GetPostgres(s.T())
	s.tx = NewPostgresTx(pg.DB)
	s.agents = agentstore.NewPostgres(pg.DB)
	s.notifications = notificationstore.NewPostgres(pg.DB)
	s.ctx = context.Background()
}

func (s *PostgresTxSuite) SetupTest() {
	pg := containers.GetManager().GetPostgres(s.T())
	s.Require().NoError(pg.TruncateTables(s.ctx, "notification_jobs", "agents"))
}

func (s *PostgresTxSuite) newRecord(publicID string) *models.AgentRecord {
	record, err := models.NewAgentRecord(
		domain.AgentID(publicID),
		domain.NewInternalID(),
		"owner@example.com",
		models.AgentData{Name: "Bot", Owner: "Acme"},
		models.Metadata{Source: "api"},
		time.Now().UTC(),
	)
	s.Require().NoError(err)
	return record
}

func (s *PostgresTxSuite) TestCommitMakesBothRowsVisible() {
	record := s.newRecord("TEMP-1735689600000-AAAAAA")
	job := models.NewRegistrationNotification(record, record.RegisteredAt)

	err := s.tx.RunInTx(s.ctx, func(txCtx context.Context) error {
		if err := s.agents.Create(txCtx, record); err != nil {
			return err
		}
		return s.notifications.Enqueue(txCtx, job)
	})
	s.Require().NoError(err)

	_, err = s.agents.FindByPublicID(s.ctx, record.PublicID)
	s.Require().NoError(err)

	pending, err := s.notifications.CountPending(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, pending)
}

func (s *PostgresTxSuite) TestCallbackErrorRollsBackEverything() {
	record := s.newRecord("TEMP-1735689600000-AAAAAA")

	err := s.tx.RunInTx(s.ctx, func(txCtx context.Context) error {
		if err := s.agents.Create(txCtx, record); err != nil {
			return err
		}
		return errors.New("enqueue failed")
	})
	s.Require().Error(err)

	// The agent insert must not survive the failed enqueue.
	_, err = s.agents.FindByPublicID(s.ctx, record.PublicID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	total, err := s.agents.Count(s.ctx)
	s.Require().NoError(err)
	s.Zero(total)
}

func (s *PostgresTxSuite) TestConflictInsideTxRollsBackOutboxRow() {
	existing := s.newRecord("TEMP-1735689600000-AAAAAA")
	s.Require().NoError(s.agents.Create(s.ctx, existing))

	dup := s.newRecord("TEMP-1735689600000-AAAAAA")
	job := models.NewRegistrationNotification(dup, dup.RegisteredAt)

	err := s.tx.RunInTx(s.ctx, func(txCtx context.Context) error {
		if err := s.notifications.Enqueue(txCtx, job); err != nil {
			return err
		}
		return s.agents.Create(txCtx, dup)
	})
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	pending, err := s.notifications.CountPending(s.ctx)
	s.Require().NoError(err)
	s.Zero(pending, "outbox row from the failed registration must roll back")
}

func (s *PostgresTxSuite) TestCancelledContextAborts() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	called := false
	err := s.tx.RunInTx(ctx, func(context.Context) error {
		called = true
		return nil
	})
	require.Error(s.T(), err)
	require.False(s.T(), called)
}
