package flagging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"custos/internal/account"
	"custos/internal/transaction"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
)

// =============================================================================
// Flagging Service Test Suite
// =============================================================================
// Justification for unit tests: the service owns the side effects the engine
// must not perform. Flag persistence, the at-most-one-open-review guarantee,
// and the resolution state machine are what break in refactors, so they are
// pinned here against in-memory stores.

type FlaggingServiceSuite struct {
	suite.Suite
	ctx      context.Context
	store    *InMemoryStore
	accounts *account.InMemoryStore
	txs      *transaction.InMemoryStore
	svc      *Service
	now      time.Time
}

func TestFlaggingServiceSuite(t *testing.T) {
	suite.Run(t, new(FlaggingServiceSuite))
}

func (s *FlaggingServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
	s.accounts = account.NewInMemoryStore()
	s.txs = transaction.NewInMemoryStore()
	s.now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	svc, err := New(s.store, s.store, s.accounts, s.txs)
	s.Require().NoError(err)
	s.svc = svc
}

func (s *FlaggingServiceSuite) newAccount(kind account.Kind) id.AccountID {
	a := &account.Account{
		ID:               id.NewAccountID(),
		Kind:             kind,
		Name:             "test subject",
		LicenseStatus:    account.LicenseActive,
		LicenseExpiresAt: s.now.AddDate(1, 0, 0),
		FeeStatus:        account.FeePaid,
	}
	s.Require().NoError(s.accounts.Create(s.ctx, a))
	return a.ID
}

func (s *FlaggingServiceSuite) newTransaction(seller, buyer id.AccountID, quantity int) id.TransactionID {
	tx := &transaction.Transaction{
		ID:        id.NewTransactionID(),
		SellerID:  seller,
		BuyerID:   buyer,
		ItemType:  "firearm",
		Quantity:  quantity,
		Status:    transaction.StatusPending,
		CreatedAt: s.now,
	}
	s.Require().NoError(s.txs.Create(s.ctx, tx))
	return tx.ID
}

// =============================================================================
// EvaluateTransaction
// =============================================================================

func (s *FlaggingServiceSuite) TestEvaluateTransaction() {
	seller := s.newAccount(account.KindDealer)
	buyer := s.newAccount(account.KindCitizen)

	s.Run("quantity above threshold flags and forces review", func() {
		txID := s.newTransaction(seller, buyer, 60)

		result, flag, err := s.svc.EvaluateTransaction(s.ctx, txID)
		s.Require().NoError(err)
		s.True(result.Flagged)
		s.Require().NotNil(flag)
		s.Equal(txID, flag.TransactionID)
		s.Contains(flag.TriggeredRules, RuleHighQuantity)
		s.True(flag.ReviewSpawned)
		s.Require().NotNil(flag.ReviewID)

		tx, err := s.txs.Get(s.ctx, txID)
		s.Require().NoError(err)
		s.Equal(transaction.StatusReviewRequired, tx.Status)
		s.Require().NotNil(tx.FlagID)
		s.Equal(flag.ID, *tx.FlagID)

		review, err := s.store.OpenReviewByTransaction(s.ctx, txID)
		s.Require().NoError(err)
		s.Equal(*flag.ReviewID, review.ID)
	})

	s.Run("re-evaluating a flagged transaction reuses the open review", func() {
		txID := s.newTransaction(seller, buyer, 60)

		_, first, err := s.svc.EvaluateTransaction(s.ctx, txID)
		s.Require().NoError(err)
		_, second, err := s.svc.EvaluateTransaction(s.ctx, txID)
		s.Require().NoError(err)

		s.Require().NotNil(first.ReviewID)
		s.Require().NotNil(second.ReviewID)
		s.Equal(*first.ReviewID, *second.ReviewID)
		s.NotEqual(first.ID, second.ID)
	})

	s.Run("clean transaction is not flagged and keeps its status", func() {
		txID := s.newTransaction(seller, buyer, 5)

		result, flag, err := s.svc.EvaluateTransaction(s.ctx, txID)
		s.Require().NoError(err)
		s.False(result.Flagged)
		s.Nil(flag)

		tx, err := s.txs.Get(s.ctx, txID)
		s.Require().NoError(err)
		s.Equal(transaction.StatusPending, tx.Status)
		s.Nil(tx.FlagID)
	})

	s.Run("unknown transaction is not found", func() {
		_, _, err := s.svc.EvaluateTransaction(s.ctx, id.NewTransactionID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *FlaggingServiceSuite) TestStoredRulesOverrideDefaults() {
	seller := s.newAccount(account.KindDealer)
	buyer := s.newAccount(account.KindCitizen)

	// With a single lax rule in the store the built-in defaults must not
	// apply; quantity 60 would trip the default threshold of 50.
	err := s.store.SaveRule(s.ctx, Rule{
		ID:         RuleHighQuantity,
		Name:       "High quantity, relaxed",
		Category:   CategoryQuantity,
		Enabled:    true,
		Severity:   SeverityHigh,
		AutoReview: true,
		Conditions: HighQuantityConditions{Threshold: 1000},
	})
	s.Require().NoError(err)

	txID := s.newTransaction(seller, buyer, 60)
	result, flag, err := s.svc.EvaluateTransaction(s.ctx, txID)
	s.Require().NoError(err)
	s.False(result.Flagged)
	s.Nil(flag)
}

// =============================================================================
// Evaluate (snapshots in, verdict out)
// =============================================================================

func (s *FlaggingServiceSuite) TestEvaluateIsSideEffectFree() {
	seller := s.newAccount(account.KindDealer)
	buyer := s.newAccount(account.KindCitizen)
	txID := s.newTransaction(seller, buyer, 60)

	snap := TransactionSnapshot{
		ID:        txID,
		Quantity:  60,
		ItemType:  "firearm",
		CreatedAt: s.now,
	}
	subject := &SubjectSnapshot{AccountID: seller, LicenseExpiresAt: s.now.AddDate(1, 0, 0)}
	counterparty := &SubjectSnapshot{AccountID: buyer, LicenseExpiresAt: s.now.AddDate(1, 0, 0)}

	first, err := s.svc.Evaluate(s.ctx, snap, subject, counterparty)
	s.Require().NoError(err)
	s.True(first.Flagged)
	s.Contains(first.TriggeredRules, RuleHighQuantity)
	s.True(first.AutoReviewRequired)

	// Same inputs and rule set, same verdict.
	second, err := s.svc.Evaluate(s.ctx, snap, subject, counterparty)
	s.Require().NoError(err)
	s.Equal(first, second)

	// No flag persisted, no review spawned, transaction untouched.
	tx, err := s.txs.Get(s.ctx, txID)
	s.Require().NoError(err)
	s.Equal(transaction.StatusPending, tx.Status)
	s.Nil(tx.FlagID)
	_, err = s.store.OpenReviewByTransaction(s.ctx, txID)
	s.Require().Error(err)
}

// =============================================================================
// ResolveFlag
// =============================================================================

func (s *FlaggingServiceSuite) flaggedTransaction() (id.TransactionID, *Flag) {
	seller := s.newAccount(account.KindDealer)
	buyer := s.newAccount(account.KindCitizen)
	txID := s.newTransaction(seller, buyer, 60)
	_, flag, err := s.svc.EvaluateTransaction(s.ctx, txID)
	s.Require().NoError(err)
	s.Require().NotNil(flag)
	return txID, flag
}

func (s *FlaggingServiceSuite) TestResolveFlag() {
	s.Run("cleared returns the transaction to pending and closes the review", func() {
		txID, flag := s.flaggedTransaction()

		resolved, err := s.svc.ResolveFlag(s.ctx, flag.ID, ActionCleared, "inspector.k", "false positive")
		s.Require().NoError(err)
		s.True(resolved.Resolved)
		s.Equal(ActionCleared, resolved.ResolutionAction)
		s.Equal("inspector.k", resolved.ResolvedBy)
		s.Require().NotNil(resolved.ResolvedAt)

		tx, err := s.txs.Get(s.ctx, txID)
		s.Require().NoError(err)
		s.Equal(transaction.StatusPending, tx.Status)

		_, err = s.store.OpenReviewByTransaction(s.ctx, txID)
		s.Require().Error(err)
	})

	s.Run("blocked marks the transaction rejected", func() {
		txID, flag := s.flaggedTransaction()

		_, err := s.svc.ResolveFlag(s.ctx, flag.ID, ActionBlocked, "inspector.k", "straw purchase pattern")
		s.Require().NoError(err)

		tx, err := s.txs.Get(s.ctx, txID)
		s.Require().NoError(err)
		s.Equal(transaction.StatusRejected, tx.Status)
	})

	s.Run("resolving twice is a conflict", func() {
		_, flag := s.flaggedTransaction()

		_, err := s.svc.ResolveFlag(s.ctx, flag.ID, ActionCleared, "inspector.k", "")
		s.Require().NoError(err)

		_, err = s.svc.ResolveFlag(s.ctx, flag.ID, ActionBlocked, "inspector.k", "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unknown flag is not found", func() {
		_, err := s.svc.ResolveFlag(s.ctx, id.NewFlagID(), ActionCleared, "inspector.k", "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown action is rejected", func() {
		_, flag := s.flaggedTransaction()
		_, err := s.svc.ResolveFlag(s.ctx, flag.ID, ResolutionAction("escalated"), "inspector.k", "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("resolver identity is required", func() {
		_, flag := s.flaggedTransaction()
		_, err := s.svc.ResolveFlag(s.ctx, flag.ID, ActionCleared, "", "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// =============================================================================
// Constructor
// =============================================================================

func (s *FlaggingServiceSuite) TestNewRequiresStores() {
	_, err := New(nil, s.store, s.accounts, s.txs)
	s.Require().Error(err)
	_, err = New(s.store, nil, s.accounts, s.txs)
	s.Require().Error(err)
	_, err = New(s.store, s.store, nil, s.txs)
	s.Require().Error(err)
	_, err = New(s.store, s.store, s.accounts, nil)
	s.Require().Error(err)
}
