package risk

import (
	"time"

	"custos/internal/transaction"
)

// HistoryPoint is one past transaction of the subject, newest first.
type HistoryPoint struct {
	OccurredAt time.Time
	Quantity   int
	Location   string
}

// SubjectHistory is everything the scorer knows about the subject. A nil
// history means an unknown subject: every history-dependent signal then
// contributes zero, never a penalty, so incomplete data cannot inflate risk.
type SubjectHistory struct {
	Transactions      []HistoryPoint
	ViolationCount    int
	TrainingCompleted int
	TrainingRequired  int
	UsualLocation     string
	LicenseExpiresAt  time.Time
}

// CounterpartyProfile summarizes the other party to the proposed transaction.
type CounterpartyProfile struct {
	Known          bool
	ViolationCount int
	Suspended      bool
}

// ScoreInput is the full input to the pure scorer.
type ScoreInput struct {
	History      *SubjectHistory
	Counterparty *CounterpartyProfile
	Quantity     int
	ItemType     string
	Location     string
	ProposedAt   time.Time
}

// Result is the scoring outcome. Advisory is best-effort enrichment: empty
// means absent, which is never an error.
type Result struct {
	Score    float64                 `json:"score"`
	Level    transaction.RiskLevel   `json:"level"`
	Factors  []string                `json:"factors"`
	Advisory string                  `json:"advisory,omitempty"`
}

// LevelFor maps a score to its tier: green < 40, amber 40-69, red >= 70.
func LevelFor(score float64) transaction.RiskLevel {
	switch {
	case score < 40:
		return transaction.RiskGreen
	case score < 70:
		return transaction.RiskAmber
	default:
		return transaction.RiskRed
	}
}
