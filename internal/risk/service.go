package risk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"custos/internal/account"
	"custos/internal/risk/metrics"
	"custos/internal/transaction"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/sentinel"
	pstrings "custos/pkg/platform/strings"
)

// advisoryTimeout bounds the optional enrichment call so scoring latency
// stays predictable on the transaction-creation path.
const advisoryTimeout = 750 * time.Millisecond

const historyDepth = 50

var tracer = otel.Tracer("custos/risk")

// Advisor produces optional human-readable advisory text for a scored
// transaction. Implementations may call slow generative backends; failures
// and timeouts are absorbed, never surfaced to the caller.
type Advisor interface {
	Advise(ctx context.Context, input ScoreInput, result Result) (string, error)
}

// ScoreRequest identifies the proposed transaction to score.
type ScoreRequest struct {
	SubjectID      id.AccountID
	CounterpartyID id.AccountID
	Quantity       int
	ItemType       string
	Location       string
	ProposedAt     time.Time
}

// Service wraps the pure scorer with history loading, metrics, tracing, and
// best-effort advisory enrichment. It is read-only with respect to ledger
// state; results are returned for the caller to persist.
type Service struct {
	accounts account.Store
	txs      transaction.Store
	advisor  Advisor
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithAdvisor(a Advisor) Option {
	return func(s *Service) { s.advisor = a }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(accounts account.Store, txs transaction.Store, opts ...Option) (*Service, error) {
	if accounts == nil {
		return nil, fmt.Errorf("account store is required")
	}
	if txs == nil {
		return nil, fmt.Errorf("transaction store is required")
	}
	svc := &Service{accounts: accounts, txs: txs}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ScoreTransaction loads the subject's history, scores the proposal, and
// attaches advisory text when the advisor answers in time.
func (s *Service) ScoreTransaction(ctx context.Context, req ScoreRequest) (*Result, error) {
	ctx, span := tracer.Start(ctx, "risk.ScoreTransaction")
	defer span.End()

	start := time.Now()

	if req.Quantity <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "quantity must be positive")
	}
	if req.ItemType == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "item type is required")
	}
	if req.SubjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "subject account is required")
	}
	if req.ProposedAt.IsZero() {
		req.ProposedAt = time.Now()
	}

	history, err := s.loadHistory(ctx, req.SubjectID)
	if err != nil {
		return nil, err
	}
	counterparty, err := s.loadCounterparty(ctx, req.CounterpartyID)
	if err != nil {
		return nil, err
	}

	input := ScoreInput{
		History:      history,
		Counterparty: counterparty,
		Quantity:     req.Quantity,
		ItemType:     req.ItemType,
		Location:     req.Location,
		ProposedAt:   req.ProposedAt,
	}
	result := Score(input)
	result.Factors = pstrings.DedupeAndTrim(result.Factors)

	span.SetAttributes(
		attribute.Float64("risk.score", result.Score),
		attribute.String("risk.level", string(result.Level)),
	)

	result.Advisory = s.advise(ctx, input, result)

	s.metrics.ObserveScore(result.Score, string(result.Level), time.Since(start))
	return &result, nil
}

// loadHistory returns nil (not an error) for an unknown subject so missing
// data never inflates risk.
func (s *Service) loadHistory(ctx context.Context, subjectID id.AccountID) (*SubjectHistory, error) {
	acct, err := s.accounts.Get(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load subject account")
	}

	txs, err := s.txs.ListByAccount(ctx, subjectID, historyDepth)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load subject history")
	}

	history := &SubjectHistory{
		ViolationCount:    acct.ViolationCount,
		TrainingCompleted: acct.TrainingModulesDone,
		LicenseExpiresAt:  acct.LicenseExpiresAt,
	}

	locations := make([]string, 0, len(txs))
	for _, tx := range txs {
		history.Transactions = append(history.Transactions, HistoryPoint{
			OccurredAt: tx.CreatedAt,
			Quantity:   tx.Quantity,
			Location:   tx.Location,
		})
		locations = append(locations, tx.Location)
	}
	history.UsualLocation = pstrings.MostFrequent(locations)
	return history, nil
}

func (s *Service) loadCounterparty(ctx context.Context, counterpartyID id.AccountID) (*CounterpartyProfile, error) {
	if counterpartyID.IsNil() {
		return nil, nil
	}
	acct, err := s.accounts.Get(ctx, counterpartyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &CounterpartyProfile{Known: false}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load counterparty")
	}
	return &CounterpartyProfile{
		Known:          true,
		ViolationCount: acct.ViolationCount,
		Suspended:      acct.Suspended(),
	}, nil
}

// advise runs the optional enrichment under its own timeout. Any failure is
// reported as absent advisory, not as an error.
func (s *Service) advise(ctx context.Context, input ScoreInput, result Result) string {
	if s.advisor == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, advisoryTimeout)
	defer cancel()

	text, err := s.advisor.Advise(ctx, input, result)
	if err != nil {
		s.metrics.IncAdvisorySkipped()
		if s.logger != nil {
			s.logger.DebugContext(ctx, "advisory enrichment skipped", "error", err)
		}
		return ""
	}
	return text
}
