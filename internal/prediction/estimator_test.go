package prediction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// =============================================================================
// Estimator Test Suite
// =============================================================================
// Justification for unit tests: the trajectory bands and confidence bounds are
// exact contracts consumed by dashboards; they are pinned here against the
// pure function with no stores involved.

type EstimatorSuite struct {
	suite.Suite
	now time.Time
}

func TestEstimatorSuite(t *testing.T) {
	suite.Run(t, new(EstimatorSuite))
}

func (s *EstimatorSuite) SetupTest() {
	s.now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func (s *EstimatorSuite) TestTrajectoryBands() {
	s.Run("completed training trends improving", func() {
		r := Predict(Input{
			TrainingCompleted: 4,
			TrainingRequired:  4,
			Now:               s.now,
		})
		s.Equal(TrajectoryImproving, r.Trajectory)
	})

	s.Run("no signals is stable", func() {
		r := Predict(Input{Now: s.now})
		s.Equal(TrajectoryStable, r.Trajectory)
		s.Empty(r.Factors)
		s.Empty(r.Recommendations)
	})

	s.Run("a single violation trends declining", func() {
		r := Predict(Input{ViolationCount: 1, Now: s.now})
		s.Equal(TrajectoryDeclining, r.Trajectory)
	})

	s.Run("stacked violations trend critical", func() {
		r := Predict(Input{ViolationCount: 3, Now: s.now})
		s.Equal(TrajectoryCriticalDecline, r.Trajectory)
	})

	s.Run("minus fifteen exactly is still declining", func() {
		// late fees -5 and suspension -10
		r := Predict(Input{FeeOverdue: true, Suspended: true, Now: s.now})
		s.Equal(TrajectoryDeclining, r.Trajectory)
	})
}

func (s *EstimatorSuite) TestConfidenceBounds() {
	s.Run("no activity floors at fifty", func() {
		r := Predict(Input{Now: s.now})
		s.Equal(50, r.Confidence)
	})

	s.Run("confidence grows with activity", func() {
		activity := make([]ActivityPoint, 5)
		for i := range activity {
			activity[i] = ActivityPoint{OccurredAt: s.now.AddDate(0, 0, -i)}
		}
		r := Predict(Input{Activity: activity, Now: s.now})
		s.Equal(75, r.Confidence)
	})

	s.Run("confidence caps at ninety five", func() {
		activity := make([]ActivityPoint, 40)
		for i := range activity {
			activity[i] = ActivityPoint{OccurredAt: s.now.AddDate(0, 0, -i)}
		}
		r := Predict(Input{Activity: activity, Now: s.now})
		s.Equal(95, r.Confidence)
	})
}

func (s *EstimatorSuite) TestRiskProjection() {
	s.Run("declining accounts project higher risk", func() {
		r := Predict(Input{ViolationCount: 2, WarningCount: 1, FeeOverdue: true, Now: s.now})
		s.Greater(r.PredictedRisk30d, r.CurrentRisk)
		s.NotEmpty(r.Recommendations)
	})

	s.Run("improving accounts project lower or equal risk", func() {
		r := Predict(Input{
			TrainingCompleted: 4,
			TrainingRequired:  4,
			WarningCount:      1,
			Now:               s.now,
		})
		s.LessOrEqual(r.PredictedRisk30d, r.CurrentRisk)
	})

	s.Run("projection stays inside the scale", func() {
		r := Predict(Input{
			ViolationCount:     10,
			WarningCount:       10,
			Suspended:          true,
			FeeOverdue:         true,
			AccumulatedLateFee: 1000,
			Now:                s.now,
		})
		s.LessOrEqual(r.PredictedRisk30d, 100.0)
		s.GreaterOrEqual(r.PredictedRisk30d, 0.0)
		s.LessOrEqual(r.CurrentRisk, 100.0)
	})
}

func (s *EstimatorSuite) TestSignals() {
	s.Run("rising velocity is penalized", func() {
		var activity []ActivityPoint
		for i := 0; i < 10; i++ {
			activity = append(activity, ActivityPoint{OccurredAt: s.now.AddDate(0, 0, -i)})
		}
		r := Predict(Input{Activity: activity, Now: s.now})
		s.Contains(r.Factors, "transaction velocity rising")
	})

	s.Run("expired license is flagged with a renewal recommendation", func() {
		r := Predict(Input{
			LicenseExpiresAt: s.now.AddDate(0, 0, -1),
			Now:              s.now,
		})
		s.Contains(r.Factors, "license already expired")
		s.Contains(r.Recommendations, "renew the license before it expires")
	})

	s.Run("expiry inside the renewal window is flagged", func() {
		r := Predict(Input{
			LicenseExpiresAt:  s.now.AddDate(0, 0, 20),
			RenewalWindowDays: 60,
			Now:               s.now,
		})
		s.NotEmpty(r.Factors)
		s.Equal(TrajectoryDeclining, r.Trajectory)
	})
}
