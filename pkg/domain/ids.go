package domain

import (
	"github.com/google/uuid"

	dErrors "custos/pkg/domain-errors"
)

// Typed identifiers keep account, transaction, and flag references from being
// mixed up at compile time. Construct via the Parse helpers at trust
// boundaries; direct casting bypasses validation.
type (
	AccountID     uuid.UUID
	TransactionID uuid.UUID
	FlagID        uuid.UUID
	ReviewID      uuid.UUID
	AssetID       uuid.UUID
	ExecutionID   uuid.UUID
)

// RuleID names a flagging rule. Rules are data keyed by a stable string
// identifier (e.g. "high_quantity"), not a UUID.
type RuleID string

func (r RuleID) String() string { return string(r) }
func (r RuleID) IsNil() bool    { return r == "" }

func NewAccountID() AccountID         { return AccountID(uuid.New()) }
func NewTransactionID() TransactionID { return TransactionID(uuid.New()) }
func NewFlagID() FlagID               { return FlagID(uuid.New()) }
func NewReviewID() ReviewID           { return ReviewID(uuid.New()) }
func NewAssetID() AssetID             { return AssetID(uuid.New()) }
func NewExecutionID() ExecutionID     { return ExecutionID(uuid.New()) }

func (id AccountID) String() string     { return uuid.UUID(id).String() }
func (id TransactionID) String() string { return uuid.UUID(id).String() }
func (id FlagID) String() string        { return uuid.UUID(id).String() }
func (id ReviewID) String() string      { return uuid.UUID(id).String() }
func (id AssetID) String() string       { return uuid.UUID(id).String() }
func (id ExecutionID) String() string   { return uuid.UUID(id).String() }

// Text marshalling keeps IDs as canonical UUID strings in JSON payloads and
// audit records instead of raw byte arrays.
func (id AccountID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id TransactionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id FlagID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id ReviewID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id AssetID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }
func (id ExecutionID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }

func (id *AccountID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = AccountID(u)
	return err
}

func (id *TransactionID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = TransactionID(u)
	return err
}

func (id *FlagID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = FlagID(u)
	return err
}

func (id *ReviewID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = ReviewID(u)
	return err
}

func (id *AssetID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = AssetID(u)
	return err
}

func (id *ExecutionID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = ExecutionID(u)
	return err
}

func (id AccountID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id TransactionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id FlagID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id ReviewID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id AssetID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id ExecutionID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// parseUUID enforces the shared invariant: valid, non-empty, non-nil UUIDs.
func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind+" id")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id must not be nil")
	}
	return u, nil
}

func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID(s, "account")
	return AccountID(u), err
}

func ParseTransactionID(s string) (TransactionID, error) {
	u, err := parseUUID(s, "transaction")
	return TransactionID(u), err
}

func ParseFlagID(s string) (FlagID, error) {
	u, err := parseUUID(s, "flag")
	return FlagID(u), err
}

func ParseAssetID(s string) (AssetID, error) {
	u, err := parseUUID(s, "asset")
	return AssetID(u), err
}
