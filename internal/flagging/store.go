package flagging

import (
	"context"
	"encoding/json"
	"fmt"

	id "custos/pkg/domain"
)

// RuleStore is the external rule source. An empty result is not an error;
// the service falls back to DefaultRules.
type RuleStore interface {
	ListEnabledRules(ctx context.Context) ([]Rule, error)
	SaveRule(ctx context.Context, rule Rule) error
}

// FlagStore persists flags and their review items. Flags are append-only;
// resolution is the single permitted mutation.
type FlagStore interface {
	CreateFlag(ctx context.Context, flag *Flag) error
	GetFlag(ctx context.Context, flagID id.FlagID) (*Flag, error)
	// Resolve transitions open -> resolved. Returns sentinel.ErrAlreadyResolved
	// when the flag was resolved before, so callers can report a conflict
	// instead of silently accepting the second resolution.
	Resolve(ctx context.Context, flagID id.FlagID, action ResolutionAction, resolvedBy, notes string) (*Flag, error)

	CreateReview(ctx context.Context, review *ReviewItem) error
	OpenReviewByTransaction(ctx context.Context, txID id.TransactionID) (*ReviewItem, error)
	CloseReview(ctx context.Context, reviewID id.ReviewID) error
}

// DecodeConditions parses stored condition JSON into the typed variant for
// the rule's declared category. Load-time validation: unknown categories and
// malformed bodies are rejected here, not at evaluation time.
func DecodeConditions(category Category, data []byte) (Conditions, error) {
	if len(data) == 0 {
		data = []byte("{}")
	}
	switch category {
	case CategoryQuantity:
		var c HighQuantityConditions
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("decode quantity conditions: %w", err)
		}
		return c, nil
	case CategoryVelocity:
		var c RapidSuccessionConditions
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("decode velocity conditions: %w", err)
		}
		return c, nil
	case CategoryGeo:
		return GeoMismatchConditions{}, nil
	case CategoryCounterparty:
		var c CounterpartyRiskConditions
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("decode counterparty conditions: %w", err)
		}
		return c, nil
	case CategoryExpiry:
		var c LicenseExpiryConditions
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("decode expiry conditions: %w", err)
		}
		return c, nil
	case CategoryRestricted:
		var c RestrictedCategoryConditions
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("decode restricted conditions: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown rule category %q", category)
	}
}

// EncodeConditions serializes the typed conditions for storage.
func EncodeConditions(c Conditions) ([]byte, error) {
	return json.Marshal(c)
}

// ValidateRule checks invariants a rule must satisfy before it can be stored
// or evaluated: known severity, and conditions matching the declared category.
func ValidateRule(rule Rule) error {
	if rule.ID.IsNil() {
		return fmt.Errorf("rule id is required")
	}
	if !rule.Severity.Valid() {
		return fmt.Errorf("rule %s: unknown severity %q", rule.ID, rule.Severity)
	}
	if rule.Conditions == nil {
		return fmt.Errorf("rule %s: conditions are required", rule.ID)
	}
	if rule.Conditions.category() != rule.Category {
		return fmt.Errorf("rule %s: conditions type %T does not match category %q",
			rule.ID, rule.Conditions, rule.Category)
	}
	return nil
}
