package flagging

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "custos/pkg/domain"
	"custos/pkg/platform/sentinel"
)

// PostgresStore persists rules, flags, and review items.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const flaggingSchema = `
CREATE TABLE IF NOT EXISTS rules (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	category    TEXT NOT NULL,
	enabled     BOOLEAN NOT NULL DEFAULT TRUE,
	severity    TEXT NOT NULL,
	auto_review BOOLEAN NOT NULL DEFAULT FALSE,
	conditions  JSONB NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS flags (
	id                UUID PRIMARY KEY,
	transaction_id    UUID NOT NULL,
	triggered_rules   JSONB NOT NULL DEFAULT '[]',
	highest_severity  TEXT NOT NULL,
	review_spawned    BOOLEAN NOT NULL DEFAULT FALSE,
	review_id         UUID,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	resolved          BOOLEAN NOT NULL DEFAULT FALSE,
	resolved_at       TIMESTAMPTZ,
	resolved_by       TEXT NOT NULL DEFAULT '',
	resolution_action TEXT NOT NULL DEFAULT '',
	resolution_notes  TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS reviews (
	id             UUID PRIMARY KEY,
	flag_id        UUID NOT NULL REFERENCES flags(id),
	transaction_id UUID NOT NULL,
	open           BOOLEAN NOT NULL DEFAULT TRUE,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_reviews_open_tx ON reviews(transaction_id) WHERE open`

// Migrate creates the flagging tables. Idempotent. The partial unique index
// on open reviews enforces the one-open-review-per-transaction invariant at
// the storage layer.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, flaggingSchema)
	return err
}

func (s *PostgresStore) ListEnabledRules(ctx context.Context) ([]Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, enabled, severity, auto_review, conditions
		FROM rules WHERE enabled`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		var (
			rule Rule
			cond []byte
		)
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Category, &rule.Enabled,
			&rule.Severity, &rule.AutoReview, &cond); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		conditions, err := DecodeConditions(rule.Category, cond)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		rule.Conditions = conditions
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveRule(ctx context.Context, rule Rule) error {
	if err := ValidateRule(rule); err != nil {
		return err
	}
	cond, err := EncodeConditions(rule.Conditions)
	if err != nil {
		return fmt.Errorf("encode conditions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rules (id, name, category, enabled, severity, auto_review, conditions)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET
			name = $2, category = $3, enabled = $4, severity = $5,
			auto_review = $6, conditions = $7`,
		rule.ID, rule.Name, rule.Category, rule.Enabled, rule.Severity,
		rule.AutoReview, cond)
	if err != nil {
		return fmt.Errorf("save rule: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateFlag(ctx context.Context, flag *Flag) error {
	if flag.CreatedAt.IsZero() {
		flag.CreatedAt = time.Now()
	}
	rules, err := json.Marshal(flag.TriggeredRules)
	if err != nil {
		return fmt.Errorf("encode triggered rules: %w", err)
	}
	var reviewID any
	if flag.ReviewID != nil {
		reviewID = uuid.UUID(*flag.ReviewID)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO flags (id, transaction_id, triggered_rules, highest_severity,
			review_spawned, review_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		uuid.UUID(flag.ID), uuid.UUID(flag.TransactionID), rules,
		flag.HighestSeverity, flag.ReviewSpawned, reviewID, flag.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert flag: %w", err)
	}
	return nil
}

const flagColumns = `
	id, transaction_id, triggered_rules, highest_severity, review_spawned,
	review_id, created_at, resolved, resolved_at, resolved_by,
	resolution_action, resolution_notes`

func (s *PostgresStore) GetFlag(ctx context.Context, flagID id.FlagID) (*Flag, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+flagColumns+` FROM flags WHERE id = $1`, uuid.UUID(flagID))
	flag, err := scanFlag(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("query flag: %w", err)
	}
	return flag, nil
}

// Resolve uses a conditional update so two concurrent resolutions cannot both
// succeed: the second sees zero rows affected and reports the conflict.
func (s *PostgresStore) Resolve(ctx context.Context, flagID id.FlagID, action ResolutionAction, resolvedBy, notes string) (*Flag, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE flags SET resolved = TRUE, resolved_at = now(), resolved_by = $1,
			resolution_action = $2, resolution_notes = $3
		WHERE id = $4 AND NOT resolved`,
		resolvedBy, action, notes, uuid.UUID(flagID))
	if err != nil {
		return nil, fmt.Errorf("resolve flag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("resolve flag rows: %w", err)
	}
	if n == 0 {
		if _, getErr := s.GetFlag(ctx, flagID); errors.Is(getErr, sentinel.ErrNotFound) {
			return nil, sentinel.ErrNotFound
		}
		return nil, sentinel.ErrAlreadyResolved
	}
	return s.GetFlag(ctx, flagID)
}

func (s *PostgresStore) CreateReview(ctx context.Context, review *ReviewItem) error {
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reviews (id, flag_id, transaction_id, open, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		uuid.UUID(review.ID), uuid.UUID(review.FlagID),
		uuid.UUID(review.TransactionID), review.Open, review.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

func (s *PostgresStore) OpenReviewByTransaction(ctx context.Context, txID id.TransactionID) (*ReviewItem, error) {
	var (
		review   ReviewItem
		reviewID uuid.UUID
		flagID   uuid.UUID
		tid      uuid.UUID
	)
	row := s.db.QueryRowContext(ctx, `
		SELECT id, flag_id, transaction_id, open, created_at
		FROM reviews WHERE transaction_id = $1 AND open`, uuid.UUID(txID))
	if err := row.Scan(&reviewID, &flagID, &tid, &review.Open, &review.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("query open review: %w", err)
	}
	review.ID = id.ReviewID(reviewID)
	review.FlagID = id.FlagID(flagID)
	review.TransactionID = id.TransactionID(tid)
	return &review, nil
}

func (s *PostgresStore) CloseReview(ctx context.Context, reviewID id.ReviewID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reviews SET open = FALSE WHERE id = $1`, uuid.UUID(reviewID))
	if err != nil {
		return fmt.Errorf("close review: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close review rows: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type flagScanner interface {
	Scan(dest ...any) error
}

func scanFlag(row flagScanner) (*Flag, error) {
	var (
		flag       Flag
		flagID     uuid.UUID
		txID       uuid.UUID
		rules      []byte
		reviewID   uuid.NullUUID
		resolvedAt sql.NullTime
	)
	if err := row.Scan(&flagID, &txID, &rules, &flag.HighestSeverity,
		&flag.ReviewSpawned, &reviewID, &flag.CreatedAt, &flag.Resolved,
		&resolvedAt, &flag.ResolvedBy, &flag.ResolutionAction,
		&flag.ResolutionNotes); err != nil {
		return nil, err
	}
	flag.ID = id.FlagID(flagID)
	flag.TransactionID = id.TransactionID(txID)
	if err := json.Unmarshal(rules, &flag.TriggeredRules); err != nil {
		return nil, fmt.Errorf("decode triggered rules: %w", err)
	}
	if reviewID.Valid {
		r := id.ReviewID(reviewID.UUID)
		flag.ReviewID = &r
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		flag.ResolvedAt = &t
	}
	return &flag, nil
}
