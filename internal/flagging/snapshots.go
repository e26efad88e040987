package flagging

import (
	"time"

	id "custos/pkg/domain"
)

// TransactionSnapshot is the slice of a transaction the predicates read.
// Snapshots keep the engine a pure function of its arguments.
type TransactionSnapshot struct {
	ID           id.TransactionID
	Quantity     int
	ItemType     string
	ItemCategory string
	Location     string
	RiskScore    float64
	CreatedAt    time.Time
}

// SubjectSnapshot captures the relevant ledger state for one party.
type SubjectSnapshot struct {
	AccountID           id.AccountID
	Suspended           bool
	ViolationCount      int
	LicenseExpiresAt    time.Time
	UsualLocation       string
	TransactionsLastDay int
}
