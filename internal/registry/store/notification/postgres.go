package notification

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AstraSyncAI/astrasync-api/internal/registry/models"
	"github.com/AstraSyncAI/astrasync-api/pkg/domain"
	"github.com/AstraSyncAI/astrasync-api/pkg/platform/sentinel"
	txcontext "github.com/AstraSyncAI/astrasync-api/pkg/platform/tx"
)

// Postgres persists notification jobs in the notification_jobs outbox
// table. Enqueue participates in the registration transaction via the
// context-carried *sql.Tx.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed outbox store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Enqueue appends a job to the outbox.
func (s *Postgres) Enqueue(ctx context.Context, job *models.NotificationJob) error {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}

	query := `
		INSERT INTO notification_jobs (id, agent_public_id, recipient, subject, template, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		job.ID,
		job.AgentPublicID.String(),
		job.Recipient,
		job.Subject,
		job.Template,
		payload,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification job: %w", err)
	}
	return nil
}

// CountPending returns the number of jobs not yet handed to the mailer.
func (s *Postgres) CountPending(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notification_jobs WHERE published_at IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending notifications: %w", err)
	}
	return count, nil
}

const jobColumns = `id, agent_public_id, recipient, subject, template, payload, created_at, published_at`

// ListUnpublished returns up to limit pending jobs, oldest first.
func (s *Postgres) ListUnpublished(ctx context.Context, limit int) ([]*models.NotificationJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM notification_jobs
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query unpublished notifications: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

// MarkPublished stamps a job as handed off.
func (s *Postgres) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notification_jobs SET published_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark notification published: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification published: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// ListByAgent returns all jobs referencing the given public id.
func (s *Postgres) ListByAgent(ctx context.Context, agentID domain.AgentID) ([]*models.NotificationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM notification_jobs WHERE agent_public_id = $1 ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, agentID.String())
	if err != nil {
		return nil, fmt.Errorf("query notifications by agent: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

func scanJobs(rows *sql.Rows) ([]*models.NotificationJob, error) {
	var jobs []*models.NotificationJob
	for rows.Next() {
		var (
			job           models.NotificationJob
			agentPublicID string
			payload       []byte
			publishedAt   sql.NullTime
		)
		err := rows.Scan(
			&job.ID,
			&agentPublicID,
			&job.Recipient,
			&job.Subject,
			&job.Template,
			&payload,
			&job.CreatedAt,
			&publishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan notification job: %w", err)
		}

		job.AgentPublicID = domain.AgentID(agentPublicID)
		if err := json.Unmarshal(payload, &job.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal notification payload: %w", err)
		}
		if publishedAt.Valid {
			at := publishedAt.Time
			job.PublishedAt = &at
		}
		jobs = append(jobs, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notification jobs: %w", err)
	}
	return jobs, nil
}
