package audit

import (
	"time"

	id "custos/pkg/domain"
)

// ActionKind classifies what the enforcement run did to one account.
type ActionKind string

const (
	ActionNone          ActionKind = "none"
	ActionResetCurrent  ActionKind = "reset_current"
	ActionLateFee       ActionKind = "late_fee"
	ActionWarning       ActionKind = "warning"
	ActionSuspension    ActionKind = "suspension"
	ActionRepossession  ActionKind = "repossession_flag"
	ActionReinstatement ActionKind = "reinstatement"
)

// AccountAction is one entry in a run's per-account action log.
type AccountAction struct {
	AccountID id.AccountID `json:"account_id"`
	Kind      ActionKind   `json:"kind"`
	Detail    string       `json:"detail,omitempty"`
}

// AccountError records one account whose transition failed. The run continues
// past it; failures are isolated, never fatal to the sweep.
type AccountError struct {
	AccountID id.AccountID `json:"account_id"`
	Cause     string       `json:"cause"`
}

// Counts aggregates what one run did across all accounts.
type Counts struct {
	Processed           int `json:"processed"`
	Warned              int `json:"warned"`
	LateFeesApplied     int `json:"late_fees_applied"`
	Suspended           int `json:"suspended"`
	RepossessionFlagged int `json:"repossession_flagged"`
	Errors              int `json:"errors"`
}

// PolicySnapshot freezes the fee and escalation thresholds a run enforced.
// Policy bodies can be replaced under a reused version, so the record keeps
// the thresholds themselves, not just the version number.
type PolicySnapshot struct {
	Version               int     `json:"version"`
	BaseFee               float64 `json:"base_fee"`
	PenaltyPercent        float64 `json:"penalty_percent"`
	GracePeriodDays       int     `json:"grace_period_days"`
	WarningIntervals      []int   `json:"warning_intervals"`
	SuspensionTriggerDays int     `json:"suspension_trigger_days"`
	AutoSuspendEnabled    bool    `json:"auto_suspend_enabled"`
	FlagRepossession      bool    `json:"flag_repossession"`
}

// ExecutionRecord is the immutable audit trail for one enforcement run. One
// record is appended per run even when nothing transitioned, so that
// "nothing happened" is itself auditable.
type ExecutionRecord struct {
	ID         id.ExecutionID  `json:"id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Trigger    string          `json:"trigger"` // "scheduled" or "manual"
	Policy     PolicySnapshot  `json:"policy"`
	Counts     Counts          `json:"counts"`
	Actions    []AccountAction `json:"actions"`
	Errors     []AccountError  `json:"errors"`
}
