package transaction

import (
	"context"

	id "custos/pkg/domain"
)

// Store persists transactions. Only Status and FlagID are writable after
// creation, which UpdateStatus enforces by construction.
type Store interface {
	Create(ctx context.Context, tx *Transaction) error
	Get(ctx context.Context, txID id.TransactionID) (*Transaction, error)
	UpdateStatus(ctx context.Context, txID id.TransactionID, status Status, flagID *id.FlagID) error
	// ListByAccount returns transactions where the account is either party,
	// newest first. Feeds subject history for scoring and prediction.
	ListByAccount(ctx context.Context, accountID id.AccountID, limit int) ([]*Transaction, error)
}
