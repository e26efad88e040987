package account

import (
	"context"

	id "custos/pkg/domain"
)

// Store is interface-driven to keep the enforcement logic testable and to
// allow swapping in-memory and postgres persistence without rewiring
// business code.
type Store interface {
	Create(ctx context.Context, a *Account) error
	Get(ctx context.Context, accountID id.AccountID) (*Account, error)

	// Update writes compliance fields conditionally: the write fails with
	// sentinel.ErrConflict unless the stored Version equals expectedVersion.
	// On success the stored Version is incremented. This is what lets a fee
	// payment landing mid-run win over a stale overdue transition.
	Update(ctx context.Context, a *Account, expectedVersion int) error

	// ListNeedingEnforcement returns accounts whose fee state may require a
	// transition: anything not revoked with a fee due date set.
	ListNeedingEnforcement(ctx context.Context) ([]*Account, error)
}

// AssetStore manages owned assets for repossession flagging.
type AssetStore interface {
	CreateAsset(ctx context.Context, asset *Asset) error
	ListActiveByAccount(ctx context.Context, accountID id.AccountID) ([]*Asset, error)
	// FlagRepossession marks every given asset in one batch.
	FlagRepossession(ctx context.Context, assetIDs []id.AssetID) error
}
