package prediction

import (
	"time"

	"custos/internal/transaction"
)

// Trajectory is the projected compliance direction of an account.
type Trajectory string

const (
	TrajectoryImproving       Trajectory = "improving"
	TrajectoryStable          Trajectory = "stable"
	TrajectoryDeclining       Trajectory = "declining"
	TrajectoryCriticalDecline Trajectory = "critical_decline"
)

// trajectoryFor maps the signed adjustment to its band. Positive scores mean
// the account is trending safer.
func trajectoryFor(score float64) Trajectory {
	switch {
	case score >= 10:
		return TrajectoryImproving
	case score >= 0:
		return TrajectoryStable
	case score >= -15:
		return TrajectoryDeclining
	default:
		return TrajectoryCriticalDecline
	}
}

// ActivityPoint is one past transaction of the subject, newest first.
type ActivityPoint struct {
	OccurredAt time.Time
	Quantity   int
}

// Input is everything the pure estimator sees about one account.
type Input struct {
	Activity []ActivityPoint

	ViolationCount     int
	WarningCount       int
	TrainingCompleted  int
	TrainingRequired   int
	LicenseExpiresAt   time.Time
	RenewalWindowDays  int
	FeeOverdue         bool
	AccumulatedLateFee float64
	Suspended          bool

	Now time.Time
}

// Result is the estimator's advisory output. It is never persisted by the
// estimator itself.
type Result struct {
	CurrentRisk      float64               `json:"current_risk"`
	PredictedRisk30d float64               `json:"predicted_risk_30d"`
	CurrentLevel     transaction.RiskLevel `json:"current_level"`
	PredictedLevel   transaction.RiskLevel `json:"predicted_level"`
	Trajectory       Trajectory            `json:"trajectory"`
	Confidence       int                   `json:"confidence"`
	Factors          []string              `json:"factors"`
	Recommendations  []string              `json:"recommendations"`
}
