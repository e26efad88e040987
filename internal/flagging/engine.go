package flagging

import (
	"fmt"
	"log/slog"

	id "custos/pkg/domain"
)

// EvalResult is the engine's verdict. It is a pure function of the snapshots
// and the rule set: same inputs, same output.
type EvalResult struct {
	Flagged            bool        `json:"flagged"`
	TriggeredRules     []id.RuleID `json:"triggered_rules"`
	HighestSeverity    Severity    `json:"highest_severity,omitempty"`
	AutoReviewRequired bool        `json:"auto_review_required"`
}

// Engine evaluates a transaction snapshot against the active rule set. The
// goal is to keep the rules centralized and testable; all persistence side
// effects belong to the Service.
type Engine struct {
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger}
}

// Evaluate runs every enabled rule independently. A failing or panicking
// predicate is logged with its rule identifier and treated as "not
// triggered"; it never aborts evaluation of the remaining rules.
func (e *Engine) Evaluate(tx TransactionSnapshot, subject, counterparty *SubjectSnapshot, rules []Rule) EvalResult {
	var result EvalResult

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		triggered, err := e.evalOne(tx, subject, counterparty, rule)
		if err != nil {
			if e.logger != nil {
				e.logger.Warn("rule predicate failed, treating as not triggered",
					"rule_id", rule.ID,
					"transaction_id", tx.ID,
					"error", err,
				)
			}
			continue
		}
		if !triggered {
			continue
		}

		result.Flagged = true
		result.TriggeredRules = append(result.TriggeredRules, rule.ID)
		if rule.Severity.Rank() > result.HighestSeverity.Rank() {
			result.HighestSeverity = rule.Severity
		}
		if rule.AutoReview {
			result.AutoReviewRequired = true
		}
	}

	return result
}

// evalOne isolates a single predicate call, converting panics to errors.
func (e *Engine) evalOne(tx TransactionSnapshot, subject, counterparty *SubjectSnapshot, rule Rule) (triggered bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			triggered = false
			err = fmt.Errorf("predicate panicked: %v", r)
		}
	}()

	pred, ok := predicates[rule.ID]
	if !ok {
		return false, fmt.Errorf("no predicate registered for rule %s", rule.ID)
	}
	return pred(tx, subject, counterparty, rule)
}
