package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"custos/internal/transaction"
)

// =============================================================================
// Risk Scorer Test Suite
// =============================================================================
// Justification for unit tests: the scorer is a pure function whose score
// range, tier thresholds, and missing-data defaults are contracts consumed by
// the flagging engine and the approval flow.

type ScorerSuite struct {
	suite.Suite
	now time.Time
}

func TestScorerSuite(t *testing.T) {
	suite.Run(t, new(ScorerSuite))
}

func (s *ScorerSuite) SetupTest() {
	// Midday, far from the early-hours window.
	s.now = time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC)
}

// steadyHistory builds a subject with one transaction of qty 10 per week in
// the given location.
func (s *ScorerSuite) steadyHistory(weeks int, location string) *SubjectHistory {
	h := &SubjectHistory{
		UsualLocation:    location,
		LicenseExpiresAt: s.now.AddDate(1, 0, 0),
	}
	for i := 0; i < weeks; i++ {
		h.Transactions = append(h.Transactions, HistoryPoint{
			OccurredAt: s.now.AddDate(0, 0, -7*(i+1)),
			Quantity:   10,
			Location:   location,
		})
	}
	return h
}

func (s *ScorerSuite) baseInput() ScoreInput {
	return ScoreInput{
		History:    s.steadyHistory(10, "stockholm"),
		Quantity:   10,
		ItemType:   "firearm",
		Location:   "stockholm",
		ProposedAt: s.now,
	}
}

// =============================================================================
// Range and Tier Invariants
// =============================================================================

func (s *ScorerSuite) TestScoreRange() {
	s.Run("baseline behavior scores zero", func() {
		r := Score(s.baseInput())
		s.Zero(r.Score)
		s.Equal(transaction.RiskGreen, r.Level)
		s.Empty(r.Factors)
	})

	s.Run("worst case input stays at or below one hundred", func() {
		h := s.steadyHistory(1, "stockholm")
		h.ViolationCount = 10
		h.LicenseExpiresAt = s.now.AddDate(0, 0, -10)
		input := ScoreInput{
			History:      h,
			Counterparty: &CounterpartyProfile{Known: true, Suspended: true},
			Quantity:     10000,
			ItemType:     "firearm",
			Location:     "elsewhere",
			ProposedAt:   time.Date(2025, 6, 15, 3, 0, 0, 0, time.UTC),
		}
		r := Score(input)
		s.LessOrEqual(r.Score, 100.0)
		s.Equal(transaction.RiskRed, r.Level)
	})
}

func (s *ScorerSuite) TestLevelThresholds() {
	s.Run("thirty nine point nine is green", func() {
		s.Equal(transaction.RiskGreen, LevelFor(39.9))
	})
	s.Run("forty is amber", func() {
		s.Equal(transaction.RiskAmber, LevelFor(40))
	})
	s.Run("sixty nine point nine is amber", func() {
		s.Equal(transaction.RiskAmber, LevelFor(69.9))
	})
	s.Run("seventy is red", func() {
		s.Equal(transaction.RiskRed, LevelFor(70))
	})
}

// =============================================================================
// Missing Data Defaults
// =============================================================================

func (s *ScorerSuite) TestUnknownSubject() {
	// An unknown subject contributes zero from every history-backed signal,
	// never a penalty.
	input := ScoreInput{
		Quantity:   500,
		ItemType:   "firearm",
		Location:   "anywhere",
		ProposedAt: s.now,
	}
	r := Score(input)
	s.Zero(r.Score)
	s.Equal(transaction.RiskGreen, r.Level)
}

func (s *ScorerSuite) TestUnknownCounterparty() {
	input := s.baseInput()
	input.Counterparty = &CounterpartyProfile{Known: false, Suspended: true, ViolationCount: 9}
	r := Score(input)
	s.Zero(r.Score)
}

// =============================================================================
// Individual Signals
// =============================================================================

func (s *ScorerSuite) TestSignals() {
	s.Run("quantity far above average raises the score", func() {
		input := s.baseInput()
		input.Quantity = 100 // 10x the historical average
		r := Score(input)
		s.Positive(r.Score)
		s.Contains(r.Factors, "quantity 100 above historical average")
	})

	s.Run("location mismatch contributes its weighted points", func() {
		input := s.baseInput()
		input.Location = "gothenburg"
		r := Score(input)
		s.InDelta(60*0.15, r.Score, 1e-9)
		s.Contains(r.Factors, "location differs from usual area")
	})

	s.Run("missing transaction location is not a signal", func() {
		input := s.baseInput()
		input.Location = ""
		s.Zero(Score(input).Score)
	})

	s.Run("expired license maxes the expiry signal", func() {
		input := s.baseInput()
		input.History.LicenseExpiresAt = s.now.AddDate(0, 0, -1)
		r := Score(input)
		s.InDelta(100*0.10, r.Score, 1e-9)
		s.Contains(r.Factors, "license expiry approaching")
	})

	s.Run("violations weigh in at twenty five points each", func() {
		input := s.baseInput()
		input.History.ViolationCount = 2
		r := Score(input)
		s.InDelta(50*0.15, r.Score, 1e-9)
	})

	s.Run("early morning hours are anomalous", func() {
		input := s.baseInput()
		input.ProposedAt = time.Date(2025, 6, 15, 4, 30, 0, 0, time.UTC)
		r := Score(input)
		s.InDelta(60*0.10, r.Score, 1e-9)
		s.Contains(r.Factors, "unusual transaction hour")
	})

	s.Run("suspended counterparty maxes the counterparty signal", func() {
		input := s.baseInput()
		input.Counterparty = &CounterpartyProfile{Known: true, Suspended: true}
		r := Score(input)
		s.InDelta(100*0.10, r.Score, 1e-9)
		s.Contains(r.Factors, "elevated counterparty risk")
	})

	s.Run("frequency spike scales with the recent ratio", func() {
		h := s.steadyHistory(10, "stockholm")
		// Five extra transactions inside the last week: recent 5+... vs a
		// weekly baseline around 1.4 pushes the ratio well above 1.
		for i := 0; i < 5; i++ {
			h.Transactions = append(h.Transactions, HistoryPoint{
				OccurredAt: s.now.Add(-time.Duration(i+1) * 24 * time.Hour),
				Quantity:   10,
				Location:   "stockholm",
			})
		}
		input := s.baseInput()
		input.History = h
		r := Score(input)
		s.Positive(r.Score)
		s.Contains(r.Factors, "transaction frequency spike")
	})
}

// =============================================================================
// Determinism
// =============================================================================

func (s *ScorerSuite) TestDeterminism() {
	input := s.baseInput()
	input.Quantity = 75
	input.Location = "gothenburg"
	first := Score(input)
	for i := 0; i < 5; i++ {
		s.Equal(first, Score(input))
	}
}
