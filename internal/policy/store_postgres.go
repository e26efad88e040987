package policy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"custos/pkg/platform/sentinel"
)

// PostgresStore persists policy versions; the highest version is active.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const policySchema = `
CREATE TABLE IF NOT EXISTS policies (
	version    INT PRIMARY KEY,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	body       JSONB NOT NULL
)`

// Migrate creates the policies table. Idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, policySchema)
	return err
}

func (s *PostgresStore) GetActivePolicy(ctx context.Context) (Policy, error) {
	var body []byte
	row := s.db.QueryRowContext(ctx,
		`SELECT body FROM policies ORDER BY version DESC LIMIT 1`)
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Policy{}, sentinel.ErrUnavailable
		}
		return Policy{}, fmt.Errorf("query active policy: %w", err)
	}

	var p Policy
	if err := json.Unmarshal(body, &p); err != nil {
		return Policy{}, fmt.Errorf("decode policy body: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) SetActivePolicy(ctx context.Context, p Policy) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode policy body: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO policies (version, updated_at, body) VALUES ($1, $2, $3)
		 ON CONFLICT (version) DO UPDATE SET updated_at = $2, body = $3`,
		p.Version, p.UpdatedAt, body)
	if err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}
	return nil
}
