package prediction

import (
	"fmt"
	"time"

	"custos/internal/risk"
)

// Confidence bounds. Confidence grows with the number of activity points the
// estimate is based on.
const (
	confidenceFloor    = 50
	confidenceCap      = 95
	confidencePerPoint = 5
)

const velocityWindow = 30 * 24 * time.Hour

// Predict projects where an account's compliance risk is heading over the
// next 30 days. Pure and advisory: same input, same output, no ledger writes.
func Predict(in Input) Result {
	if in.Now.IsZero() {
		in.Now = time.Now()
	}

	current := currentRisk(in)

	var (
		trend   float64
		factors []string
		recs    []string
	)

	adjust := func(points float64, factor, recommendation string) {
		if points == 0 {
			return
		}
		trend += points
		factors = append(factors, factor)
		if points < 0 && recommendation != "" {
			recs = append(recs, recommendation)
		}
	}

	// Training completion is the only purely positive signal.
	if in.TrainingRequired > 0 {
		ratio := float64(in.TrainingCompleted) / float64(in.TrainingRequired)
		if ratio > 1 {
			ratio = 1
		}
		if ratio == 1 {
			adjust(10, "all required training completed", "")
		} else {
			missing := in.TrainingRequired - in.TrainingCompleted
			adjust(ratio*10-5,
				fmt.Sprintf("%d training modules outstanding", missing),
				"complete the outstanding training modules")
		}
	}

	if in.ViolationCount > 0 {
		penalty := float64(in.ViolationCount) * 8
		if penalty > 25 {
			penalty = 25
		}
		adjust(-penalty,
			fmt.Sprintf("%d prior compliance violations", in.ViolationCount),
			"review past violations with a compliance officer")
	}

	if delta := velocityTrend(in); delta != 0 {
		if delta > 0 {
			adjust(-clampF(delta*2, 0, 15), "transaction velocity rising", "")
		} else {
			adjust(clampF(-delta, 0, 5), "transaction velocity falling", "")
		}
	}

	if points, factor := expiryPressure(in); points != 0 {
		adjust(points, factor, "renew the license before it expires")
	}

	if in.FeeOverdue || in.AccumulatedLateFee > 0 {
		adjust(-5, "outstanding late fees", "settle accumulated late fees")
	}

	if in.Suspended {
		adjust(-10, "license currently suspended", "apply for reinstatement once fees are settled")
	}

	predicted := clampF(current-trend, 0, 100)

	return Result{
		CurrentRisk:      current,
		PredictedRisk30d: predicted,
		CurrentLevel:     risk.LevelFor(current),
		PredictedLevel:   risk.LevelFor(predicted),
		Trajectory:       trajectoryFor(trend),
		Confidence:       confidence(len(in.Activity)),
		Factors:          factors,
		Recommendations:  recs,
	}
}

// currentRisk composes the account's standing compliance signals into the
// same 0-100 scale the transaction scorer uses.
func currentRisk(in Input) float64 {
	var score float64
	score += clampF(float64(in.ViolationCount)*20, 0, 50)
	score += clampF(float64(in.WarningCount)*10, 0, 20)
	if in.FeeOverdue || in.AccumulatedLateFee > 0 {
		score += 10
	}
	if in.Suspended {
		score += 30
	}
	if !in.LicenseExpiresAt.IsZero() && !in.LicenseExpiresAt.After(in.Now) {
		score += 15
	}
	return clampF(score, 0, 100)
}

// velocityTrend compares the last 30 days of activity against the 30 days
// before that. Positive means activity is accelerating.
func velocityTrend(in Input) float64 {
	if len(in.Activity) == 0 {
		return 0
	}
	var recent, prior int
	for _, p := range in.Activity {
		age := in.Now.Sub(p.OccurredAt)
		switch {
		case age <= velocityWindow:
			recent++
		case age <= 2*velocityWindow:
			prior++
		}
	}
	return float64(recent - prior)
}

// expiryPressure penalizes an approaching or passed expiry date. An account
// with no recorded expiry contributes nothing.
func expiryPressure(in Input) (float64, string) {
	if in.LicenseExpiresAt.IsZero() {
		return 0, ""
	}
	until := in.LicenseExpiresAt.Sub(in.Now)
	if until < 0 {
		return -15, "license already expired"
	}
	window := time.Duration(in.RenewalWindowDays) * 24 * time.Hour
	if window > 0 && until <= window {
		return -10, fmt.Sprintf("license expires in %d days", int(until.Hours()/24))
	}
	return 0, ""
}

func confidence(points int) int {
	c := confidenceFloor + points*confidencePerPoint
	if c > confidenceCap {
		return confidenceCap
	}
	return c
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
