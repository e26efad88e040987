package enforcement

import (
	"time"

	"custos/internal/account"
	"custos/internal/policy"
)

// Transition is the outcome of evaluating one account against the active
// policy at a point in time. Account holds the resulting state; the flags
// tell the caller which side effects (notices, asset flagging) to perform.
type Transition struct {
	Account account.Account
	Changed bool

	// ResetToCurrent is set when a previously overdue account became
	// current again.
	ResetToCurrent bool

	// LateFeeDelta is the amount newly charged this evaluation, zero when
	// the recomputed total does not exceed what was already accumulated.
	LateFeeDelta float64

	// WarningInterval is the interval (days past grace) whose warning should
	// be sent now, zero when no warning is due.
	WarningInterval int

	// Suspend is set when this evaluation suspended the account.
	Suspend bool

	// FlagAssets is set when the account's active assets should be flagged
	// for repossession (only alongside Suspend).
	FlagAssets bool
}

// Evaluate applies the compliance state machine to one account. It is pure:
// no I/O, no clocks, fully determined by its arguments. The late fee is
// always recomputed from daysPastGrace and applied as max(existing, computed),
// so re-evaluating the same account on the same day changes nothing.
func Evaluate(a account.Account, p policy.Policy, now time.Time) Transition {
	t := Transition{Account: a}
	next := &t.Account

	daysOverdue := daysBetween(a.FeeDueAt, now)

	// Current: fee paid, or due date not yet passed.
	if a.FeeStatus == account.FeePaid || daysOverdue <= 0 {
		if a.Suspended() {
			// Reinstatement is an explicit administrative action, never a
			// side effect of the sweep.
			return t
		}
		if a.LicenseStatus != account.LicenseActive || a.FeeStatus == account.FeeOverdue {
			next.LicenseStatus = account.LicenseActive
			if next.FeeStatus == account.FeeOverdue {
				next.FeeStatus = account.FeePending
			}
			next.LastWarningDay = 0
			t.ResetToCurrent = true
			t.Changed = true
		}
		return t
	}

	// Grace: overdue but inside the grace window. Boundary is inclusive,
	// daysOverdue == GracePeriodDays is still grace.
	if next.FeeStatus != account.FeeOverdue {
		next.FeeStatus = account.FeeOverdue
		t.Changed = true
	}
	if daysOverdue <= p.Escalation.GracePeriodDays {
		if !a.Suspended() && next.LicenseStatus != account.LicenseOverdueGrace && next.LicenseStatus != account.LicenseOverdueWarn {
			next.LicenseStatus = account.LicenseOverdueGrace
			t.Changed = true
		}
		return t
	}

	daysPastGrace := daysOverdue - p.Escalation.GracePeriodDays

	if !a.Suspended() && next.LicenseStatus == account.LicenseActive {
		next.LicenseStatus = account.LicenseOverdueGrace
		t.Changed = true
	}

	// Late fee, recomputed from scratch every evaluation. The integer
	// division steps the multiplier up at each 30-day boundary past grace.
	computed := lateFee(p.Fees, daysPastGrace)
	if computed > next.AccumulatedLateFee {
		t.LateFeeDelta = computed - next.AccumulatedLateFee
		next.AccumulatedLateFee = computed
		t.Changed = true
	}

	// Warnings: at most one per evaluation, the highest crossed interval not
	// yet notified. Suspended accounts have crossed every interval already.
	if !a.Suspended() {
		if interval := dueWarning(p.Escalation.WarningIntervals, daysPastGrace, a.LastWarningDay); interval > 0 {
			t.WarningInterval = interval
			next.LastWarningDay = interval
			next.WarningCount++
			next.LicenseStatus = account.LicenseOverdueWarn
			t.Changed = true
		}
	}

	// Suspension fires once the account has outlasted the final warning by
	// the configured trigger.
	suspendAt := p.Escalation.LastWarningInterval() + p.Escalation.SuspensionTriggerDays
	if p.Escalation.AutoSuspendEnabled && !a.Suspended() && daysPastGrace >= suspendAt {
		next.LicenseStatus = account.LicenseSuspended
		next.ServicesBlocked = blockServices(p.Escalation, a.Kind)
		t.Suspend = true
		t.FlagAssets = p.Escalation.FlagRepossession
		t.Changed = true
	}

	return t
}

// lateFee computes the total owed at daysPastGrace. The multiplier floors at
// one month so any time past grace charges at least one penalty unit.
func lateFee(fees policy.FeeSchedule, daysPastGrace int) float64 {
	months := daysPastGrace / 30
	if months < 1 {
		months = 1
	}
	return fees.BaseFee * fees.PenaltyPercent / 100 * float64(months)
}

// dueWarning returns the highest interval at or below daysPastGrace that has
// not been notified yet, or zero.
func dueWarning(intervals []int, daysPastGrace, lastNotified int) int {
	due := 0
	for _, w := range intervals {
		if w <= daysPastGrace && w > lastNotified && w > due {
			due = w
		}
	}
	return due
}

func blockServices(e policy.Escalation, kind account.Kind) bool {
	if e.BlockGovernmentServices {
		return true
	}
	return e.BlockDealerServices && kind == account.KindDealer
}

// daysBetween counts whole days from due to now, negative when due is in the
// future.
func daysBetween(due, now time.Time) int {
	return int(now.Sub(due).Hours() / 24)
}
