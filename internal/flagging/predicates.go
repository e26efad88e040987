package flagging

import (
	"fmt"

	id "custos/pkg/domain"
)

// Built-in rule identifiers. The predicate set is closed: each identifier
// selects a fixed implementation below, and rule conditions only move its
// thresholds.
const (
	RuleHighQuantity       id.RuleID = "high_quantity"
	RuleRapidSuccession    id.RuleID = "rapid_succession"
	RuleGeoMismatch        id.RuleID = "geo_mismatch"
	RuleCounterpartyRisk   id.RuleID = "counterparty_risk"
	RuleLicenseExpiring    id.RuleID = "license_expiring"
	RuleRestrictedCategory id.RuleID = "restricted_category"
)

// predicate evaluates one rule against the snapshots. Returning an error
// counts as "not triggered" after logging; it never aborts the other rules.
type predicate func(tx TransactionSnapshot, subject, counterparty *SubjectSnapshot, rule Rule) (bool, error)

var predicates = map[id.RuleID]predicate{
	RuleHighQuantity:       evalHighQuantity,
	RuleRapidSuccession:    evalRapidSuccession,
	RuleGeoMismatch:        evalGeoMismatch,
	RuleCounterpartyRisk:   evalCounterpartyRisk,
	RuleLicenseExpiring:    evalLicenseExpiring,
	RuleRestrictedCategory: evalRestrictedCategory,
}

func evalHighQuantity(tx TransactionSnapshot, _, _ *SubjectSnapshot, rule Rule) (bool, error) {
	cond, ok := rule.Conditions.(HighQuantityConditions)
	if !ok {
		return false, fmt.Errorf("rule %s: expected quantity conditions, got %T", rule.ID, rule.Conditions)
	}
	if cond.Threshold <= 0 {
		return false, fmt.Errorf("rule %s: threshold must be positive", rule.ID)
	}
	return tx.Quantity > cond.Threshold, nil
}

func evalRapidSuccession(_ TransactionSnapshot, subject, _ *SubjectSnapshot, rule Rule) (bool, error) {
	cond, ok := rule.Conditions.(RapidSuccessionConditions)
	if !ok {
		return false, fmt.Errorf("rule %s: expected velocity conditions, got %T", rule.ID, rule.Conditions)
	}
	if cond.MaxPerDay <= 0 {
		return false, fmt.Errorf("rule %s: max_per_day must be positive", rule.ID)
	}
	if subject == nil {
		return false, nil
	}
	return subject.TransactionsLastDay >= cond.MaxPerDay, nil
}

func evalGeoMismatch(tx TransactionSnapshot, subject, _ *SubjectSnapshot, rule Rule) (bool, error) {
	if _, ok := rule.Conditions.(GeoMismatchConditions); !ok {
		return false, fmt.Errorf("rule %s: expected geo conditions, got %T", rule.ID, rule.Conditions)
	}
	if subject == nil || subject.UsualLocation == "" || tx.Location == "" {
		return false, nil
	}
	return tx.Location != subject.UsualLocation, nil
}

func evalCounterpartyRisk(_ TransactionSnapshot, _, counterparty *SubjectSnapshot, rule Rule) (bool, error) {
	cond, ok := rule.Conditions.(CounterpartyRiskConditions)
	if !ok {
		return false, fmt.Errorf("rule %s: expected counterparty conditions, got %T", rule.ID, rule.Conditions)
	}
	if counterparty == nil {
		return false, nil
	}
	if counterparty.Suspended {
		return true, nil
	}
	return cond.MinViolations > 0 && counterparty.ViolationCount >= cond.MinViolations, nil
}

func evalLicenseExpiring(tx TransactionSnapshot, subject, _ *SubjectSnapshot, rule Rule) (bool, error) {
	cond, ok := rule.Conditions.(LicenseExpiryConditions)
	if !ok {
		return false, fmt.Errorf("rule %s: expected expiry conditions, got %T", rule.ID, rule.Conditions)
	}
	if cond.WithinDays <= 0 {
		return false, fmt.Errorf("rule %s: within_days must be positive", rule.ID)
	}
	if subject == nil || subject.LicenseExpiresAt.IsZero() {
		return false, nil
	}
	days := subject.LicenseExpiresAt.Sub(tx.CreatedAt).Hours() / 24
	return days < float64(cond.WithinDays), nil
}

func evalRestrictedCategory(tx TransactionSnapshot, _, _ *SubjectSnapshot, rule Rule) (bool, error) {
	cond, ok := rule.Conditions.(RestrictedCategoryConditions)
	if !ok {
		return false, fmt.Errorf("rule %s: expected restricted conditions, got %T", rule.ID, rule.Conditions)
	}
	for _, c := range cond.Categories {
		if c == tx.ItemCategory || c == tx.ItemType {
			return true, nil
		}
	}
	return false, nil
}
