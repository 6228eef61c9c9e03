package agent

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/AstraSyncAI/astrasync-api/internal/registry/models"
	"github.com/AstraSyncAI/astrasync-api/pkg/domain"
	"github.com/AstraSyncAI/astrasync-api/pkg/platform/sentinel"
	txcontext "github.com/AstraSyncAI/astrasync-api/pkg/platform/tx"
)

// uniqueViolation is the PostgreSQL error code for unique constraint hits.
const uniqueViolation = "23505"

// Postgres persists agent records in the agents table.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed agent store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// execer returns the context-carried transaction when the registration
// service runs inside one, and the pool otherwise.
func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const agentColumns = `internal_id, public_id, owner_email, status, blockchain_status, trust_score,
	name, description, owner, owner_url, capabilities, version,
	source, client_ip, user_agent, device_summary, registered_at`

// Create inserts a record. A public-id unique violation maps to
// sentinel.ErrConflict so the service can surface a typed conflict.
func (s *Postgres) Create(ctx context.Context, record *models.AgentRecord) error {
	capabilities, err := json.Marshal(record.Agent.Capabilities)
	if err != nil {
		return fmt.Errorf("marshal capabilities: %w", err)
	}

	query := `
		INSERT INTO agents (` + agentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		record.InternalID.String(),
		record.PublicID.String(),
		record.OwnerEmail,
		string(record.Status),
		string(record.BlockchainStatus),
		record.TrustScore,
		record.Agent.Name,
		record.Agent.Description,
		record.Agent.Owner,
		record.Agent.OwnerURL,
		capabilities,
		record.Agent.Version,
		record.Metadata.Source,
		record.Metadata.ClientIP,
		record.Metadata.UserAgent,
		record.Metadata.DeviceSummary,
		record.RegisteredAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("insert agent %s: %w", record.PublicID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}

// FindByPublicID returns the record or sentinel.ErrNotFound.
func (s *Postgres) FindByPublicID(ctx context.Context, id domain.AgentID) (*models.AgentRecord, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE public_id = $1`
	record, err := scanAgent(s.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find agent by public id: %w", err)
	}
	return record, nil
}

// ListRecent returns up to limit records, most recently registered first.
func (s *Postgres) ListRecent(ctx context.Context, limit int) ([]*models.AgentRecord, error) {
	query := `SELECT ` + agentColumns + ` FROM agents ORDER BY registered_at DESC LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent agents: %w", err)
	}
	defer rows.Close()

	var records []*models.AgentRecord
	for rows.Next() {
		record, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agents: %w", err)
	}
	return records, nil
}

// Count returns the total number of records.
func (s *Postgres) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM agents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count agents: %w", err)
	}
	return count, nil
}

// CountSince returns the number of records registered at or after cutoff.
func (s *Postgres) CountSince(ctx context.Context, cutoff time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM agents WHERE registered_at >= $1`, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count agents since: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*models.AgentRecord, error) {
	var (
		record       models.AgentRecord
		internalID   string
		publicID     string
		status       string
		chainStatus  string
		capabilities []byte
	)

	err := row.Scan(
		&internalID,
		&publicID,
		&record.OwnerEmail,
		&status,
		&chainStatus,
		&record.TrustScore,
		&record.Agent.Name,
		&record.Agent.Description,
		&record.Agent.Owner,
		&record.Agent.OwnerURL,
		&capabilities,
		&record.Agent.Version,
		&record.Metadata.Source,
		&record.Metadata.ClientIP,
		&record.Metadata.UserAgent,
		&record.Metadata.DeviceSummary,
		&record.RegisteredAt,
	)
	if err != nil {
		return nil, err
	}

	parsedInternal, err := domain.ParseInternalID(internalID)
	if err != nil {
		return nil, fmt.Errorf("stored internal id: %w", err)
	}
	record.InternalID = parsedInternal
	record.PublicID = domain.AgentID(publicID)
	record.Status = models.Status(status)
	record.BlockchainStatus = models.BlockchainStatus(chainStatus)

	if err := json.Unmarshal(capabilities, &record.Agent.Capabilities); err != nil {
		return nil, fmt.Errorf("unmarshal capabilities: %w", err)
	}
	if record.Agent.Capabilities == nil {
		record.Agent.Capabilities = []string{}
	}
	return &record, nil
}
