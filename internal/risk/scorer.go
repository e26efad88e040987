package risk

import (
	"fmt"
	"time"
)

// Signal weights. They sum to 1.0 so the final score stays in [0,100] when
// every per-signal contribution is clamped to [0,100].
const (
	weightFrequency    = 0.20
	weightQuantity     = 0.20
	weightLocation     = 0.15
	weightExpiry       = 0.10
	weightHistory      = 0.15
	weightTimeOfDay    = 0.10
	weightCounterparty = 0.10
)

const recentWindow = 7 * 24 * time.Hour

// Score combines independently weighted signals into a 0-100 score, its tier,
// and the ordered list of contributing factors. Deterministic and
// side-effect-free.
func Score(input ScoreInput) Result {
	var (
		score   float64
		factors []string
	)

	add := func(points, weight float64, factor string) {
		points = clamp(points, 0, 100)
		if points > 0 {
			score += points * weight
			factors = append(factors, factor)
		}
	}

	add(frequencySpike(input), weightFrequency, "transaction frequency spike")
	add(quantityAnomaly(input), weightQuantity,
		fmt.Sprintf("quantity %d above historical average", input.Quantity))
	add(locationMismatch(input), weightLocation, "location differs from usual area")
	add(expiryProximity(input), weightExpiry, "license expiry approaching")
	add(complianceHistory(input), weightHistory, "prior compliance violations")
	add(timeOfDayAnomaly(input), weightTimeOfDay, "unusual transaction hour")
	add(counterpartyRisk(input), weightCounterparty, "elevated counterparty risk")

	score = clamp(score, 0, 100)
	return Result{
		Score:   score,
		Level:   LevelFor(score),
		Factors: factors,
	}
}

// frequencySpike compares the last 7 days of activity against the subject's
// weekly baseline over the whole history window.
func frequencySpike(input ScoreInput) float64 {
	h := input.History
	if h == nil || len(h.Transactions) == 0 {
		return 0
	}

	var recent int
	oldest := input.ProposedAt
	for _, tx := range h.Transactions {
		if input.ProposedAt.Sub(tx.OccurredAt) <= recentWindow {
			recent++
		}
		if tx.OccurredAt.Before(oldest) {
			oldest = tx.OccurredAt
		}
	}

	weeks := input.ProposedAt.Sub(oldest).Hours() / (24 * 7)
	if weeks < 1 {
		weeks = 1
	}
	baseline := float64(len(h.Transactions)) / weeks
	if baseline <= 0 {
		return 0
	}
	ratio := float64(recent) / baseline
	if ratio <= 1 {
		return 0
	}
	return (ratio - 1) * 40
}

// quantityAnomaly scores how far the proposed quantity sits above the
// subject's historical average quantity.
func quantityAnomaly(input ScoreInput) float64 {
	h := input.History
	if h == nil || len(h.Transactions) == 0 || input.Quantity <= 0 {
		return 0
	}
	var total int
	for _, tx := range h.Transactions {
		total += tx.Quantity
	}
	avg := float64(total) / float64(len(h.Transactions))
	if avg <= 0 {
		return 0
	}
	ratio := float64(input.Quantity) / avg
	if ratio <= 1 {
		return 0
	}
	return (ratio - 1) * 30
}

func locationMismatch(input ScoreInput) float64 {
	h := input.History
	// Location is optional on the transaction; absence is not a signal.
	if h == nil || h.UsualLocation == "" || input.Location == "" {
		return 0
	}
	if input.Location != h.UsualLocation {
		return 60
	}
	return 0
}

func expiryProximity(input ScoreInput) float64 {
	h := input.History
	if h == nil || h.LicenseExpiresAt.IsZero() {
		return 0
	}
	daysLeft := h.LicenseExpiresAt.Sub(input.ProposedAt).Hours() / 24
	switch {
	case daysLeft < 0:
		return 100
	case daysLeft <= 30:
		return (30 - daysLeft) / 30 * 100
	default:
		return 0
	}
}

func complianceHistory(input ScoreInput) float64 {
	h := input.History
	if h == nil {
		return 0
	}
	return float64(h.ViolationCount) * 25
}

// timeOfDayAnomaly flags transactions proposed between midnight and 05:59.
func timeOfDayAnomaly(input ScoreInput) float64 {
	if input.ProposedAt.IsZero() {
		return 0
	}
	if input.ProposedAt.Hour() < 6 {
		return 60
	}
	return 0
}

func counterpartyRisk(input ScoreInput) float64 {
	cp := input.Counterparty
	if cp == nil || !cp.Known {
		return 0
	}
	if cp.Suspended {
		return 100
	}
	return float64(cp.ViolationCount) * 25
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
