package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	audit "custos/pkg/platform/audit"
)

// Store persists execution records append-only. The body is stored as JSONB
// so the per-account action log keeps its shape without a wide table.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS enforcement_executions (
	id             UUID PRIMARY KEY,
	started_at     TIMESTAMPTZ NOT NULL,
	finished_at    TIMESTAMPTZ NOT NULL,
	trigger_kind   TEXT NOT NULL,
	policy_version INT NOT NULL,
	body           JSONB NOT NULL
)`

// Migrate creates the executions table. Idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) AppendExecutionRecord(ctx context.Context, record audit.ExecutionRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode execution record: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO enforcement_executions (id, started_at, finished_at, trigger_kind, policy_version, body)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		uuid.UUID(record.ID), record.StartedAt, record.FinishedAt,
		record.Trigger, record.Policy.Version, body)
	if err != nil {
		return fmt.Errorf("insert execution record: %w", err)
	}
	return nil
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.ExecutionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT body FROM enforcement_executions
		ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list execution records: %w", err)
	}
	defer rows.Close()

	var out []audit.ExecutionRecord
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan execution record: %w", err)
		}
		var record audit.ExecutionRecord
		if err := json.Unmarshal(body, &record); err != nil {
			return nil, fmt.Errorf("decode execution record: %w", err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}
