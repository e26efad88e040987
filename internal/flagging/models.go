package flagging

import (
	"time"

	id "custos/pkg/domain"
)

// Severity orders rule outcomes: low < medium < high < critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the ordering value; unknown severities rank below low.
func (s Severity) Rank() int { return severityRank[s] }

// Valid reports whether s is one of the four known severities.
func (s Severity) Valid() bool { return severityRank[s] > 0 }

// Category ties a rule to the predicate family that can evaluate it.
// Conditions are validated against the category at load time.
type Category string

const (
	CategoryQuantity     Category = "quantity"
	CategoryVelocity     Category = "velocity"
	CategoryGeo          Category = "geo"
	CategoryCounterparty Category = "counterparty"
	CategoryExpiry       Category = "expiry"
	CategoryRestricted   Category = "restricted"
)

// Rule is data, not code. The predicate implementations are fixed and keyed
// by rule identifier; Conditions only parameterize thresholds.
type Rule struct {
	ID         id.RuleID
	Name       string
	Category   Category
	Enabled    bool
	Severity   Severity
	AutoReview bool
	Conditions Conditions
}

// Conditions is the closed set of rule-specific typed condition structs.
// Adding a rule kind means adding a new variant here, not new untrusted code.
type Conditions interface {
	category() Category
}

// HighQuantityConditions triggers when quantity exceeds a threshold.
type HighQuantityConditions struct {
	Threshold int `json:"threshold"`
}

// RapidSuccessionConditions triggers when the subject exceeds a daily
// transaction count.
type RapidSuccessionConditions struct {
	MaxPerDay int `json:"max_per_day"`
}

// GeoMismatchConditions triggers when the transaction location differs from
// the subject's usual area. No thresholds.
type GeoMismatchConditions struct{}

// CounterpartyRiskConditions triggers when the counterparty is suspended or
// carries at least MinViolations violations.
type CounterpartyRiskConditions struct {
	MinViolations int `json:"min_violations"`
}

// LicenseExpiryConditions triggers when the subject's license expires within
// WithinDays of the transaction.
type LicenseExpiryConditions struct {
	WithinDays int `json:"within_days"`
}

// RestrictedCategoryConditions triggers when the item category is on the
// restricted list.
type RestrictedCategoryConditions struct {
	Categories []string `json:"categories"`
}

func (HighQuantityConditions) category() Category       { return CategoryQuantity }
func (RapidSuccessionConditions) category() Category    { return CategoryVelocity }
func (GeoMismatchConditions) category() Category        { return CategoryGeo }
func (CounterpartyRiskConditions) category() Category   { return CategoryCounterparty }
func (LicenseExpiryConditions) category() Category      { return CategoryExpiry }
func (RestrictedCategoryConditions) category() Category { return CategoryRestricted }

// ResolutionAction is what a reviewer decided about a flag.
type ResolutionAction string

const (
	// ActionCleared returns the transaction to pending.
	ActionCleared ResolutionAction = "cleared"
	// ActionBlocked marks the transaction rejected.
	ActionBlocked ResolutionAction = "blocked"
)

// Flag is a derived, append-only record marking a transaction as
// rule-triggered. Resolution is the only allowed mutation: open -> resolved.
type Flag struct {
	ID              id.FlagID
	TransactionID   id.TransactionID
	TriggeredRules  []id.RuleID
	HighestSeverity Severity
	ReviewSpawned   bool
	ReviewID        *id.ReviewID
	CreatedAt       time.Time

	Resolved         bool
	ResolvedAt       *time.Time
	ResolvedBy       string
	ResolutionAction ResolutionAction
	ResolutionNotes  string
}

// ReviewItem is the mandatory human-review work item spawned for a flag.
// At most one open review exists per transaction.
type ReviewItem struct {
	ID            id.ReviewID
	FlagID        id.FlagID
	TransactionID id.TransactionID
	Open          bool
	CreatedAt     time.Time
}
