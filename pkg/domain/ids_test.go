package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "custos/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
//
// Justification: these are pure functions enforcing a domain invariant at
// trust boundaries, so unit tests are the right level.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseAccountID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseAccountID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseAccountID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseAccountID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, AccountID(validUUID), id)
	})
}

// TestTypeDistinction verifies the compiler enforces type safety.
// This is a compile-time check: if this compiles, the invariant holds.
func TestTypeDistinction(t *testing.T) {
	accountID := AccountID(uuid.New())
	txID := TransactionID(uuid.New())

	// These would fail to compile if types were interchangeable:
	// var _ AccountID = txID          // compile error
	// var _ TransactionID = accountID // compile error

	assert.NotEqual(t, uuid.UUID(accountID), uuid.UUID(txID))
}

// TestParseID_SecurityInvariants validates security-critical parsing rules.
//
// Justification: these are trust boundary invariants. Parsing must reject
// attack vectors at API entry points.
func TestParseID_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		// Attack vectors
		{"SQL injection attempt", "'; DROP TABLE accounts;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Unicode zero-width space", "550e8400​-e29b-41d4-a716-446655440000", true},

		// Edge cases
		{"Empty string", "", true},
		{"Nil UUID", uuid.Nil.String(), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},

		// Valid
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAccountID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// TestAllIDTypes_ConsistentBehavior ensures all ID types have identical
// parsing behavior.
//
// Justification: inconsistent validation across ID types could create
// security holes.
func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	validUUID := uuid.New().String()
	invalidInputs := []string{"", "invalid", uuid.Nil.String()}

	t.Run("all accept valid UUID", func(t *testing.T) {
		_, errAccount := ParseAccountID(validUUID)
		_, errTx := ParseTransactionID(validUUID)
		_, errFlag := ParseFlagID(validUUID)
		_, errAsset := ParseAssetID(validUUID)

		require.NoError(t, errAccount)
		require.NoError(t, errTx)
		require.NoError(t, errFlag)
		require.NoError(t, errAsset)
	})

	for _, input := range invalidInputs {
		t.Run("all reject: "+input, func(t *testing.T) {
			_, errAccount := ParseAccountID(input)
			_, errTx := ParseTransactionID(input)
			_, errFlag := ParseFlagID(input)
			_, errAsset := ParseAssetID(input)

			require.Error(t, errAccount)
			require.Error(t, errTx)
			require.Error(t, errFlag)
			require.Error(t, errAsset)
		})
	}
}

// TestJSONRoundTrip pins the wire representation: canonical UUID strings,
// never raw byte arrays.
func TestJSONRoundTrip(t *testing.T) {
	original := NewTransactionID()

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Equal(t, `"`+original.String()+`"`, string(data))

	var decoded TransactionID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, decoded)
}

func TestIsNil(t *testing.T) {
	var zero AccountID
	assert.True(t, zero.IsNil())
	assert.False(t, NewAccountID().IsNil())

	var rule RuleID
	assert.True(t, rule.IsNil())
	assert.False(t, RuleID("high_quantity").IsNil())
}
