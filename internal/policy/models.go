package policy

import "time"

// Policy is the single active configuration every other component reads.
// It is versioned so enforcement executions can record the exact snapshot
// they ran against.
type Policy struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`

	Fees       FeeSchedule `json:"fees"`
	Escalation Escalation  `json:"escalation"`
	Training   Training    `json:"training"`
}

// FeeSchedule drives late-fee accrual.
type FeeSchedule struct {
	BaseFee        float64 `json:"base_fee"`
	PenaltyPercent float64 `json:"penalty_percent"`
}

// Escalation holds the compliance state-machine thresholds. WarningIntervals
// are days past grace, ascending.
type Escalation struct {
	GracePeriodDays         int   `json:"grace_period_days"`
	WarningIntervals        []int `json:"warning_intervals"`
	SuspensionTriggerDays   int   `json:"suspension_trigger_days"`
	AutoSuspendEnabled      bool  `json:"auto_suspend_enabled"`
	BlockDealerServices     bool  `json:"block_dealer_services"`
	BlockGovernmentServices bool  `json:"block_government_services"`
	FlagRepossession        bool  `json:"flag_repossession"`
}

// Training parameterizes the trajectory estimator's training signals.
type Training struct {
	RequiredModules   int `json:"required_modules"`
	RenewalWindowDays int `json:"renewal_window_days"`
}

// LastWarningInterval returns the highest configured warning interval, or 0
// when no intervals are configured.
func (e Escalation) LastWarningInterval() int {
	if len(e.WarningIntervals) == 0 {
		return 0
	}
	return e.WarningIntervals[len(e.WarningIntervals)-1]
}

// Default returns the development policy used when no store is configured.
func Default() Policy {
	return Policy{
		Version:   1,
		UpdatedAt: time.Now(),
		Fees: FeeSchedule{
			BaseFee:        100,
			PenaltyPercent: 10,
		},
		Escalation: Escalation{
			GracePeriodDays:         30,
			WarningIntervals:        []int{3, 5, 10},
			SuspensionTriggerDays:   15,
			AutoSuspendEnabled:      true,
			BlockDealerServices:     true,
			BlockGovernmentServices: true,
			FlagRepossession:        true,
		},
		Training: Training{
			RequiredModules:   4,
			RenewalWindowDays: 60,
		},
	}
}
