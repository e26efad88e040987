package transaction

import (
	"time"

	id "custos/pkg/domain"
)

// Status is the single mutable field on a transaction after creation.
type Status string

const (
	StatusPending        Status = "pending"
	StatusApproved       Status = "approved"
	StatusReviewRequired Status = "review_required"
	StatusRejected       Status = "rejected"
	StatusCompleted      Status = "completed"
)

// RiskLevel is a deterministic function of the risk score: green < 40,
// amber 40-69, red >= 70.
type RiskLevel string

const (
	RiskGreen RiskLevel = "green"
	RiskAmber RiskLevel = "amber"
	RiskRed   RiskLevel = "red"
)

// Transaction is a proposed transfer between two regulated subjects. It is
// immutable once created except for Status and FlagID: the citizen-approval
// step updates Status once, and an admin review may update it at most once
// more.
type Transaction struct {
	ID           id.TransactionID
	SellerID     id.AccountID
	BuyerID      id.AccountID
	ItemType     string
	ItemCategory string
	Quantity     int

	RiskScore   float64
	RiskLevel   RiskLevel
	RiskFactors []string

	// Location is optional; empty means not reported.
	Location string

	Status    Status
	FlagID    *id.FlagID
	CreatedAt time.Time
}
