package account

import (
	"time"

	id "custos/pkg/domain"
)

// LicenseStatus tracks where an account sits in the compliance lifecycle.
type LicenseStatus string

const (
	LicenseActive       LicenseStatus = "active"
	LicenseOverdueGrace LicenseStatus = "overdue_grace"
	LicenseOverdueWarn  LicenseStatus = "overdue_warned"
	LicenseSuspended    LicenseStatus = "suspended"
	LicenseRevoked      LicenseStatus = "revoked"
)

// FeeStatus tracks the current licensing fee.
type FeeStatus string

const (
	FeePending FeeStatus = "pending"
	FeePaid    FeeStatus = "paid"
	FeeOverdue FeeStatus = "overdue"
)

// Kind distinguishes citizen and dealer accounts; some service blocks only
// apply to dealers.
type Kind string

const (
	KindCitizen Kind = "citizen"
	KindDealer  Kind = "dealer"
)

// Account is one regulated subject's license/fee state. Compliance fields are
// mutated only by the enforcement service or an explicit reinstatement;
// Version is the optimistic-concurrency token for those writes.
type Account struct {
	ID   id.AccountID
	Kind Kind
	Name string
	// ContactEmail is where compliance notices are addressed. Optional.
	ContactEmail string

	LicenseStatus      LicenseStatus
	LicenseExpiresAt   time.Time
	FeeStatus          FeeStatus
	FeeDueAt           time.Time
	AccumulatedLateFee float64
	WarningCount       int
	// LastWarningDay is the warning interval (days past grace) most recently
	// notified, 0 if none. Guards against duplicate warnings across runs.
	LastWarningDay  int
	ServicesBlocked bool

	// ViolationCount and TrainingModulesDone are maintained by review and
	// training collaborators; the risk scorer and trajectory estimator only
	// read them.
	ViolationCount      int
	TrainingModulesDone int

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Suspended reports whether the account is currently suspended.
func (a Account) Suspended() bool { return a.LicenseStatus == LicenseSuspended }

// Asset is an owned item that may be flagged for repossession when its
// owner's license is suspended.
type Asset struct {
	ID                    id.AssetID
	AccountID             id.AccountID
	Description           string
	Active                bool
	RepossessionFlagged   bool
	RepossessionFlaggedAt *time.Time
}
