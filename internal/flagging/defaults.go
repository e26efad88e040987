package flagging

// DefaultRules is the built-in rule set used when the external rule store is
// empty (first-run bootstrap). The engine must tolerate an empty store.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:         RuleHighQuantity,
			Name:       "High quantity",
			Category:   CategoryQuantity,
			Enabled:    true,
			Severity:   SeverityHigh,
			AutoReview: true,
			Conditions: HighQuantityConditions{Threshold: 50},
		},
		{
			ID:         RuleRapidSuccession,
			Name:       "Rapid succession",
			Category:   CategoryVelocity,
			Enabled:    true,
			Severity:   SeverityMedium,
			AutoReview: false,
			Conditions: RapidSuccessionConditions{MaxPerDay: 5},
		},
		{
			ID:         RuleGeoMismatch,
			Name:       "Location mismatch",
			Category:   CategoryGeo,
			Enabled:    true,
			Severity:   SeverityLow,
			AutoReview: false,
			Conditions: GeoMismatchConditions{},
		},
		{
			ID:         RuleCounterpartyRisk,
			Name:       "Risky counterparty",
			Category:   CategoryCounterparty,
			Enabled:    true,
			Severity:   SeverityCritical,
			AutoReview: true,
			Conditions: CounterpartyRiskConditions{MinViolations: 2},
		},
		{
			ID:         RuleLicenseExpiring,
			Name:       "License expiring",
			Category:   CategoryExpiry,
			Enabled:    true,
			Severity:   SeverityMedium,
			AutoReview: false,
			Conditions: LicenseExpiryConditions{WithinDays: 14},
		},
		{
			ID:         RuleRestrictedCategory,
			Name:       "Restricted category",
			Category:   CategoryRestricted,
			Enabled:    true,
			Severity:   SeverityCritical,
			AutoReview: true,
			Conditions: RestrictedCategoryConditions{Categories: []string{"explosive", "automatic"}},
		},
	}
}
