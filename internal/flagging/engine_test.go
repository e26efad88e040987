package flagging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "custos/pkg/domain"
)

// =============================================================================
// Flagging Engine Test Suite
// =============================================================================
// Justification for unit tests: the engine's isolation guarantee (one broken
// rule never silences the others) and severity aggregation are pure logic and
// cheapest to pin down without stores.

type EngineSuite struct {
	suite.Suite
	engine *Engine
	now    time.Time
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.engine = NewEngine(nil)
	s.now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func (s *EngineSuite) tx(quantity int) TransactionSnapshot {
	return TransactionSnapshot{
		ID:        id.NewTransactionID(),
		Quantity:  quantity,
		ItemType:  "firearm",
		Location:  "stockholm",
		CreatedAt: s.now,
	}
}

func (s *EngineSuite) subject() *SubjectSnapshot {
	return &SubjectSnapshot{
		AccountID:        id.NewAccountID(),
		LicenseExpiresAt: s.now.AddDate(1, 0, 0),
		UsualLocation:    "stockholm",
	}
}

// =============================================================================
// Rule Triggering
// =============================================================================

func (s *EngineSuite) TestEvaluate() {
	s.Run("quantity sixty against threshold fifty triggers high quantity", func() {
		result := s.engine.Evaluate(s.tx(60), s.subject(), nil, DefaultRules())
		s.True(result.Flagged)
		s.Contains(result.TriggeredRules, RuleHighQuantity)
		s.Equal(SeverityHigh, result.HighestSeverity)
		s.True(result.AutoReviewRequired)
	})

	s.Run("quantity at the threshold does not trigger", func() {
		result := s.engine.Evaluate(s.tx(50), s.subject(), nil, DefaultRules())
		s.False(result.Flagged)
		s.Empty(result.TriggeredRules)
	})

	s.Run("clean transaction against the full default set passes", func() {
		result := s.engine.Evaluate(s.tx(1), s.subject(), s.subject(), DefaultRules())
		s.False(result.Flagged)
		s.False(result.AutoReviewRequired)
		s.Empty(result.HighestSeverity)
	})

	s.Run("disabled rules are skipped", func() {
		rules := DefaultRules()
		for i := range rules {
			rules[i].Enabled = false
		}
		result := s.engine.Evaluate(s.tx(999), s.subject(), nil, rules)
		s.False(result.Flagged)
	})

	s.Run("suspended counterparty triggers regardless of violations", func() {
		cp := s.subject()
		cp.Suspended = true
		result := s.engine.Evaluate(s.tx(1), s.subject(), cp, DefaultRules())
		s.True(result.Flagged)
		s.Contains(result.TriggeredRules, RuleCounterpartyRisk)
		s.Equal(SeverityCritical, result.HighestSeverity)
	})

	s.Run("restricted item type triggers by type or category", func() {
		tx := s.tx(1)
		tx.ItemCategory = "explosive"
		result := s.engine.Evaluate(tx, s.subject(), nil, DefaultRules())
		s.Contains(result.TriggeredRules, RuleRestrictedCategory)
	})

	s.Run("missing subject snapshot never triggers subject rules", func() {
		tx := s.tx(1)
		tx.Location = "gothenburg"
		result := s.engine.Evaluate(tx, nil, nil, DefaultRules())
		s.False(result.Flagged)
	})
}

// =============================================================================
// Severity Aggregation
// =============================================================================

func (s *EngineSuite) TestHighestSeverityWins() {
	// Trigger high_quantity (high) and counterparty_risk (critical) together.
	cp := s.subject()
	cp.Suspended = true
	result := s.engine.Evaluate(s.tx(60), s.subject(), cp, DefaultRules())
	s.Len(result.TriggeredRules, 2)
	s.Equal(SeverityCritical, result.HighestSeverity)
}

// =============================================================================
// Failure Isolation
// =============================================================================

func (s *EngineSuite) TestPredicateIsolation() {
	s.Run("mismatched conditions leave the rule not triggered", func() {
		rules := []Rule{
			{
				ID:       RuleHighQuantity,
				Enabled:  true,
				Severity: SeverityHigh,
				// Wrong conditions type for this predicate.
				Conditions: GeoMismatchConditions{},
			},
			{
				ID:         RuleRestrictedCategory,
				Enabled:    true,
				Severity:   SeverityCritical,
				AutoReview: true,
				Conditions: RestrictedCategoryConditions{Categories: []string{"firearm"}},
			},
		}

		result := s.engine.Evaluate(s.tx(999), s.subject(), nil, rules)
		s.True(result.Flagged)
		s.NotContains(result.TriggeredRules, RuleHighQuantity)
		s.Contains(result.TriggeredRules, RuleRestrictedCategory)
	})

	s.Run("unknown rule identifier is not triggered", func() {
		rules := append(DefaultRules(), Rule{
			ID:         id.RuleID("bogus_rule"),
			Enabled:    true,
			Severity:   SeverityCritical,
			Conditions: GeoMismatchConditions{},
		})
		result := s.engine.Evaluate(s.tx(60), s.subject(), nil, rules)
		s.NotContains(result.TriggeredRules, id.RuleID("bogus_rule"))
		s.Contains(result.TriggeredRules, RuleHighQuantity)
	})

	s.Run("nil conditions fail the rule, not the evaluation", func() {
		rules := []Rule{
			{ID: RuleHighQuantity, Enabled: true, Severity: SeverityHigh},
			{ID: RuleGeoMismatch, Enabled: true, Severity: SeverityLow, Conditions: GeoMismatchConditions{}},
		}
		tx := s.tx(999)
		tx.Location = "gothenburg"
		result := s.engine.Evaluate(tx, s.subject(), nil, rules)
		s.Contains(result.TriggeredRules, RuleGeoMismatch)
		s.NotContains(result.TriggeredRules, RuleHighQuantity)
	})
}

// =============================================================================
// Determinism
// =============================================================================

func (s *EngineSuite) TestDeterminism() {
	tx := s.tx(60)
	cp := s.subject()
	cp.ViolationCount = 3
	first := s.engine.Evaluate(tx, s.subject(), cp, DefaultRules())
	for i := 0; i < 5; i++ {
		again := s.engine.Evaluate(tx, s.subject(), cp, DefaultRules())
		s.Equal(first, again)
	}
}
