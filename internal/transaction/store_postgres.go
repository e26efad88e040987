package transaction

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

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const transactionSchema = `
CREATE TABLE IF NOT EXISTS transactions (
	id            UUID PRIMARY KEY,
	seller_id     UUID NOT NULL,
	buyer_id      UUID NOT NULL,
	item_type     TEXT NOT NULL,
	item_category TEXT NOT NULL DEFAULT '',
	quantity      INT NOT NULL,
	risk_score    DOUBLE PRECISION NOT NULL DEFAULT 0,
	risk_level    TEXT NOT NULL DEFAULT 'green',
	risk_factors  JSONB NOT NULL DEFAULT '[]',
	location      TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	flag_id       UUID,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_transactions_seller ON transactions(seller_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_transactions_buyer ON transactions(buyer_id, created_at DESC)`

// Migrate creates the transactions table. Idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, transactionSchema)
	return err
}

func (s *PostgresStore) Create(ctx context.Context, tx *Transaction) error {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	factors, err := json.Marshal(tx.RiskFactors)
	if err != nil {
		return fmt.Errorf("encode risk factors: %w", err)
	}
	var flagID any
	if tx.FlagID != nil {
		flagID = uuid.UUID(*tx.FlagID)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, seller_id, buyer_id, item_type, item_category, quantity,
			risk_score, risk_level, risk_factors, location, status, flag_id, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		uuid.UUID(tx.ID), uuid.UUID(tx.SellerID), uuid.UUID(tx.BuyerID),
		tx.ItemType, tx.ItemCategory, tx.Quantity, tx.RiskScore, tx.RiskLevel,
		factors, tx.Location, tx.Status, flagID, tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

const txColumns = `
	id, seller_id, buyer_id, item_type, item_category, quantity, risk_score,
	risk_level, risk_factors, location, status, flag_id, created_at`

func (s *PostgresStore) Get(ctx context.Context, txID id.TransactionID) (*Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE id = $1`, uuid.UUID(txID))
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("query transaction: %w", err)
	}
	return tx, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, txID id.TransactionID, status Status, flagID *id.FlagID) error {
	var fid any
	if flagID != nil {
		fid = uuid.UUID(*flagID)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET status = $1, flag_id = COALESCE($2, flag_id)
		WHERE id = $3`, status, fid, uuid.UUID(txID))
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction rows: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByAccount(ctx context.Context, accountID id.AccountID, limit int) ([]*Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+txColumns+` FROM transactions
		WHERE seller_id = $1 OR buyer_id = $1
		ORDER BY created_at DESC LIMIT $2`, uuid.UUID(accountID), limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*Transaction, error) {
	var (
		tx       Transaction
		txID     uuid.UUID
		sellerID uuid.UUID
		buyerID  uuid.UUID
		factors  []byte
		flagID   uuid.NullUUID
	)
	if err := row.Scan(&txID, &sellerID, &buyerID, &tx.ItemType, &tx.ItemCategory,
		&tx.Quantity, &tx.RiskScore, &tx.RiskLevel, &factors, &tx.Location,
		&tx.Status, &flagID, &tx.CreatedAt); err != nil {
		return nil, err
	}
	tx.ID = id.TransactionID(txID)
	tx.SellerID = id.AccountID(sellerID)
	tx.BuyerID = id.AccountID(buyerID)
	if err := json.Unmarshal(factors, &tx.RiskFactors); err != nil {
		return nil, fmt.Errorf("decode risk factors: %w", err)
	}
	if flagID.Valid {
		f := id.FlagID(flagID.UUID)
		tx.FlagID = &f
	}
	return &tx, nil
}
