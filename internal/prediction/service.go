package prediction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"custos/internal/account"
	"custos/internal/policy"
	"custos/internal/prediction/metrics"
	"custos/internal/transaction"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/sentinel"
)

const activityDepth = 100

var tracer = otel.Tracer("custos/prediction")

// Service loads an account's standing and recent activity and runs the pure
// estimator over them. Read-only end to end.
type Service struct {
	accounts account.Store
	txs      transaction.Store
	policies policy.Reader
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(accounts account.Store, txs transaction.Store, policies policy.Reader, opts ...Option) (*Service, error) {
	if accounts == nil {
		return nil, fmt.Errorf("account store is required")
	}
	if txs == nil {
		return nil, fmt.Errorf("transaction store is required")
	}
	if policies == nil {
		return nil, fmt.Errorf("policy reader is required")
	}
	svc := &Service{accounts: accounts, txs: txs, policies: policies, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc, nil
}

// Predict estimates the account's 30 day risk trajectory.
func (s *Service) Predict(ctx context.Context, accountID id.AccountID) (*Result, error) {
	ctx, span := tracer.Start(ctx, "prediction.Predict")
	defer span.End()

	acct, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return nil, err
	}

	pol, err := s.policies.GetActivePolicy(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "active policy unavailable")
	}

	history, err := s.txs.ListByAccount(ctx, accountID, activityDepth)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}

	activity := make([]ActivityPoint, 0, len(history))
	for _, tx := range history {
		activity = append(activity, ActivityPoint{
			OccurredAt: tx.CreatedAt,
			Quantity:   tx.Quantity,
		})
	}

	result := Predict(Input{
		Activity:           activity,
		ViolationCount:     acct.ViolationCount,
		WarningCount:       acct.WarningCount,
		TrainingCompleted:  acct.TrainingModulesDone,
		TrainingRequired:   pol.Training.RequiredModules,
		LicenseExpiresAt:   acct.LicenseExpiresAt,
		RenewalWindowDays:  pol.Training.RenewalWindowDays,
		FeeOverdue:         acct.FeeStatus == account.FeeOverdue,
		AccumulatedLateFee: acct.AccumulatedLateFee,
		Suspended:          acct.Suspended(),
		Now:                s.now(),
	})

	span.SetAttributes(
		attribute.String("prediction.trajectory", string(result.Trajectory)),
		attribute.Float64("prediction.risk_30d", result.PredictedRisk30d),
		attribute.Int("prediction.confidence", result.Confidence),
	)
	s.metrics.ObservePrediction(string(result.Trajectory), result.PredictedRisk30d)
	return &result, nil
}
