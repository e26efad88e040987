package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"custos/internal/account"
	"custos/internal/transaction"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
)

// =============================================================================
// Risk Service Test Suite
// =============================================================================
// Justification for unit tests: the service's contracts around missing data
// (unknown subject, unknown counterparty) and around advisory enrichment
// (always skippable, never fatal) sit above the pure scorer and need stores.

type RiskServiceSuite struct {
	suite.Suite
	accounts *account.InMemoryStore
	txs      *transaction.InMemoryStore
	service  *Service
}

func TestRiskServiceSuite(t *testing.T) {
	suite.Run(t, new(RiskServiceSuite))
}

func (s *RiskServiceSuite) SetupTest() {
	s.accounts = account.NewInMemoryStore()
	s.txs = transaction.NewInMemoryStore()

	var err error
	s.service, err = New(s.accounts, s.txs)
	s.Require().NoError(err)
}

func (s *RiskServiceSuite) seedAccount(violations int) *account.Account {
	a := &account.Account{
		ID:               id.NewAccountID(),
		Kind:             account.KindCitizen,
		LicenseStatus:    account.LicenseActive,
		FeeStatus:        account.FeePaid,
		LicenseExpiresAt: time.Now().AddDate(1, 0, 0),
		ViolationCount:   violations,
	}
	s.Require().NoError(s.accounts.Create(context.Background(), a))
	return a
}

func (s *RiskServiceSuite) validRequest(subjectID id.AccountID) ScoreRequest {
	return ScoreRequest{
		SubjectID:  subjectID,
		Quantity:   5,
		ItemType:   "firearm",
		ProposedAt: time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC),
	}
}

func (s *RiskServiceSuite) TestNew() {
	s.Run("nil account store returns error", func() {
		_, err := New(nil, s.txs)
		s.Error(err)
		s.Contains(err.Error(), "account store is required")
	})

	s.Run("nil transaction store returns error", func() {
		_, err := New(s.accounts, nil)
		s.Error(err)
		s.Contains(err.Error(), "transaction store is required")
	})
}

func (s *RiskServiceSuite) TestScoreTransactionValidation() {
	ctx := context.Background()
	a := s.seedAccount(0)

	s.Run("non-positive quantity is rejected", func() {
		req := s.validRequest(a.ID)
		req.Quantity = 0
		_, err := s.service.ScoreTransaction(ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("missing item type is rejected", func() {
		req := s.validRequest(a.ID)
		req.ItemType = ""
		_, err := s.service.ScoreTransaction(ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("missing subject is rejected", func() {
		req := s.validRequest(id.AccountID{})
		_, err := s.service.ScoreTransaction(ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *RiskServiceSuite) TestScoreTransaction() {
	ctx := context.Background()

	s.Run("unknown subject scores with zero history contribution", func() {
		result, err := s.service.ScoreTransaction(ctx, s.validRequest(id.NewAccountID()))
		s.NoError(err)
		s.Zero(result.Score)
		s.Equal(transaction.RiskGreen, result.Level)
	})

	s.Run("violations on the subject raise the score", func() {
		a := s.seedAccount(3)
		result, err := s.service.ScoreTransaction(ctx, s.validRequest(a.ID))
		s.NoError(err)
		s.Positive(result.Score)
		s.Contains(result.Factors, "prior compliance violations")
	})

	s.Run("suspended counterparty raises the score", func() {
		a := s.seedAccount(0)
		cp := s.seedAccount(0)
		cp.LicenseStatus = account.LicenseSuspended
		s.Require().NoError(s.accounts.Update(ctx, cp, cp.Version))

		req := s.validRequest(a.ID)
		req.CounterpartyID = cp.ID
		result, err := s.service.ScoreTransaction(ctx, req)
		s.NoError(err)
		s.Contains(result.Factors, "elevated counterparty risk")
	})
}

// =============================================================================
// Advisory Enrichment
// =============================================================================

type stubAdvisor struct {
	text  string
	err   error
	delay time.Duration
}

func (a *stubAdvisor) Advise(ctx context.Context, _ ScoreInput, _ Result) (string, error) {
	if a.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(a.delay):
		}
	}
	return a.text, a.err
}

func (s *RiskServiceSuite) TestAdvisory() {
	ctx := context.Background()
	a := s.seedAccount(0)

	s.Run("advisor text is attached when it answers in time", func() {
		svc, err := New(s.accounts, s.txs, WithAdvisor(&stubAdvisor{text: "looks routine"}))
		s.Require().NoError(err)

		result, err := svc.ScoreTransaction(ctx, s.validRequest(a.ID))
		s.NoError(err)
		s.Equal("looks routine", result.Advisory)
	})

	s.Run("advisor failure yields absent advisory, not an error", func() {
		svc, err := New(s.accounts, s.txs, WithAdvisor(&stubAdvisor{err: errors.New("model offline")}))
		s.Require().NoError(err)

		result, err := svc.ScoreTransaction(ctx, s.validRequest(a.ID))
		s.NoError(err)
		s.Empty(result.Advisory)
	})

	s.Run("slow advisor is cut off at the timeout", func() {
		svc, err := New(s.accounts, s.txs, WithAdvisor(&stubAdvisor{text: "late", delay: 2 * time.Second}))
		s.Require().NoError(err)

		start := time.Now()
		result, err := svc.ScoreTransaction(ctx, s.validRequest(a.ID))
		s.NoError(err)
		s.Empty(result.Advisory)
		s.Less(time.Since(start), 1500*time.Millisecond)
	})
}
