package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "custos/pkg/domain"
	"custos/pkg/platform/sentinel"
	ptx "custos/pkg/platform/tx"
)

// PostgresStore persists accounts and assets. Compliance-field writes use a
// version column as the optimistic-concurrency token.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q joins an ambient SQL transaction when the caller started one, so
// multi-store workflows commit or roll back as a unit.
func (s *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := ptx.From(ctx); ok {
		return tx
	}
	return s.db
}

const accountSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id                   UUID PRIMARY KEY,
	kind                 TEXT NOT NULL,
	name                 TEXT NOT NULL,
	contact_email        TEXT NOT NULL DEFAULT '',
	license_status       TEXT NOT NULL,
	license_expires_at   TIMESTAMPTZ,
	fee_status           TEXT NOT NULL,
	fee_due_at           TIMESTAMPTZ,
	accumulated_late_fee DOUBLE PRECISION NOT NULL DEFAULT 0,
	warning_count        INT NOT NULL DEFAULT 0,
	last_warning_day     INT NOT NULL DEFAULT 0,
	services_blocked     BOOLEAN NOT NULL DEFAULT FALSE,
	violation_count      INT NOT NULL DEFAULT 0,
	training_modules_done INT NOT NULL DEFAULT 0,
	version              INT NOT NULL DEFAULT 1,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS assets (
	id                       UUID PRIMARY KEY,
	account_id               UUID NOT NULL REFERENCES accounts(id),
	description              TEXT NOT NULL DEFAULT '',
	active                   BOOLEAN NOT NULL DEFAULT TRUE,
	repossession_flagged     BOOLEAN NOT NULL DEFAULT FALSE,
	repossession_flagged_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_assets_account ON assets(account_id) WHERE active`

// Migrate creates the account tables. Idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, accountSchema)
	return err
}

func (s *PostgresStore) Create(ctx context.Context, a *Account) error {
	if a.Version == 0 {
		a.Version = 1
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO accounts (
			id, kind, name, contact_email, license_status, license_expires_at,
			fee_status, fee_due_at, accumulated_late_fee, warning_count,
			last_warning_day, services_blocked, violation_count,
			training_modules_done, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		uuid.UUID(a.ID), a.Kind, a.Name, a.ContactEmail, a.LicenseStatus,
		nullTime(a.LicenseExpiresAt), a.FeeStatus, nullTime(a.FeeDueAt),
		a.AccumulatedLateFee, a.WarningCount,
		a.LastWarningDay, a.ServicesBlocked, a.ViolationCount,
		a.TrainingModulesDone, a.Version, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

const accountColumns = `
	id, kind, name, contact_email, license_status, license_expires_at,
	fee_status, fee_due_at, accumulated_late_fee, warning_count,
	last_warning_day, services_blocked, violation_count,
	training_modules_done, version, created_at, updated_at`

func (s *PostgresStore) Get(ctx context.Context, accountID id.AccountID) (*Account, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, uuid.UUID(accountID))
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("query account: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) Update(ctx context.Context, a *Account, expectedVersion int) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE accounts SET
			license_status = $1, fee_status = $2, fee_due_at = $3,
			accumulated_late_fee = $4, warning_count = $5, last_warning_day = $6,
			services_blocked = $7, license_expires_at = $8,
			version = version + 1, updated_at = now()
		WHERE id = $9 AND version = $10`,
		a.LicenseStatus, a.FeeStatus, nullTime(a.FeeDueAt), a.AccumulatedLateFee,
		a.WarningCount, a.LastWarningDay, a.ServicesBlocked,
		nullTime(a.LicenseExpiresAt), uuid.UUID(a.ID), expectedVersion)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account rows: %w", err)
	}
	if n == 0 {
		// Either the row is gone or the version moved under us.
		if _, getErr := s.Get(ctx, a.ID); errors.Is(getErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	a.Version = expectedVersion + 1
	return nil
}

func (s *PostgresStore) ListNeedingEnforcement(ctx context.Context) ([]*Account, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE license_status <> $1 AND fee_due_at IS NOT NULL`,
		LicenseRevoked)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// nullTime maps the zero time to SQL NULL so "no due date" stays queryable.
func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func scanAccount(row rowScanner) (*Account, error) {
	var (
		a         Account
		uid       uuid.UUID
		expiresAt sql.NullTime
		dueAt     sql.NullTime
	)
	if err := row.Scan(&uid, &a.Kind, &a.Name, &a.ContactEmail, &a.LicenseStatus, &expiresAt,
		&a.FeeStatus, &dueAt, &a.AccumulatedLateFee, &a.WarningCount,
		&a.LastWarningDay, &a.ServicesBlocked, &a.ViolationCount,
		&a.TrainingModulesDone, &a.Version, &a.CreatedAt,
		&a.UpdatedAt); err != nil {
		return nil, err
	}
	a.ID = id.AccountID(uid)
	if expiresAt.Valid {
		a.LicenseExpiresAt = expiresAt.Time
	}
	if dueAt.Valid {
		a.FeeDueAt = dueAt.Time
	}
	return &a, nil
}

func (s *PostgresStore) CreateAsset(ctx context.Context, asset *Asset) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO assets (id, account_id, description, active, repossession_flagged, repossession_flagged_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		uuid.UUID(asset.ID), uuid.UUID(asset.AccountID), asset.Description,
		asset.Active, asset.RepossessionFlagged, asset.RepossessionFlaggedAt)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListActiveByAccount(ctx context.Context, accountID id.AccountID) ([]*Asset, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, account_id, description, active, repossession_flagged, repossession_flagged_at
		FROM assets WHERE account_id = $1 AND active`, uuid.UUID(accountID))
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var out []*Asset
	for rows.Next() {
		var (
			asset     Asset
			assetID   uuid.UUID
			ownerID   uuid.UUID
			flaggedAt sql.NullTime
		)
		if err := rows.Scan(&assetID, &ownerID, &asset.Description, &asset.Active,
			&asset.RepossessionFlagged, &flaggedAt); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		asset.ID = id.AssetID(assetID)
		asset.AccountID = id.AccountID(ownerID)
		if flaggedAt.Valid {
			t := flaggedAt.Time
			asset.RepossessionFlaggedAt = &t
		}
		out = append(out, &asset)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FlagRepossession(ctx context.Context, assetIDs []id.AssetID) error {
	if len(assetIDs) == 0 {
		return nil
	}
	// Join the caller's transaction when there is one; otherwise the batch
	// gets its own so a partial flagging never commits.
	if ambient, ok := ptx.From(ctx); ok {
		return flagRepossession(ctx, ambient, assetIDs)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin flag repossession: %w", err)
	}
	defer tx.Rollback()

	if err := flagRepossession(ctx, tx, assetIDs); err != nil {
		return err
	}
	return tx.Commit()
}

func flagRepossession(ctx context.Context, q querier, assetIDs []id.AssetID) error {
	for _, assetID := range assetIDs {
		if _, err := q.ExecContext(ctx, `
			UPDATE assets SET repossession_flagged = TRUE, repossession_flagged_at = now()
			WHERE id = $1`, uuid.UUID(assetID)); err != nil {
			return fmt.Errorf("flag repossession %s: %w", assetID, err)
		}
	}
	return nil
}
