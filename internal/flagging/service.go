package flagging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"custos/internal/account"
	"custos/internal/flagging/metrics"
	"custos/internal/transaction"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/sentinel"
	pstrings "custos/pkg/platform/strings"
)

const velocityWindow = 24 * time.Hour

// Service wraps the pure engine with snapshot loading and the caller-side
// effects the engine itself must not perform: persisting the flag, spawning
// at most one review item, and forcing the transaction into review.
type Service struct {
	engine   *Engine
	rules    RuleStore
	flags    FlagStore
	accounts account.Store
	txs      transaction.Store
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(rules RuleStore, flags FlagStore, accounts account.Store, txs transaction.Store, opts ...Option) (*Service, error) {
	if rules == nil {
		return nil, fmt.Errorf("rule store is required")
	}
	if flags == nil {
		return nil, fmt.Errorf("flag store is required")
	}
	if accounts == nil {
		return nil, fmt.Errorf("account store is required")
	}
	if txs == nil {
		return nil, fmt.Errorf("transaction store is required")
	}
	svc := &Service{rules: rules, flags: flags, accounts: accounts, txs: txs}
	for _, opt := range opts {
		opt(svc)
	}
	svc.engine = NewEngine(svc.logger)
	return svc, nil
}

// Evaluate is the side-effect-free contract: snapshots in, verdict out.
func (s *Service) Evaluate(ctx context.Context, tx TransactionSnapshot, subject, counterparty *SubjectSnapshot) (EvalResult, error) {
	rules, err := s.activeRules(ctx)
	if err != nil {
		return EvalResult{}, err
	}
	return s.engine.Evaluate(tx, subject, counterparty, rules), nil
}

// EvaluateTransaction loads the stored transaction, evaluates the active rule
// set against it, and applies the side effects when flagged. Returns the
// verdict and the created flag (nil when not flagged).
func (s *Service) EvaluateTransaction(ctx context.Context, txID id.TransactionID) (EvalResult, *Flag, error) {
	tx, err := s.txs.Get(ctx, txID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return EvalResult{}, nil, dErrors.New(dErrors.CodeNotFound, "transaction not found")
		}
		return EvalResult{}, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load transaction")
	}

	snapshot := TransactionSnapshot{
		ID:           tx.ID,
		Quantity:     tx.Quantity,
		ItemType:     tx.ItemType,
		ItemCategory: tx.ItemCategory,
		Location:     tx.Location,
		RiskScore:    tx.RiskScore,
		CreatedAt:    tx.CreatedAt,
	}

	subject, err := s.loadSnapshot(ctx, tx.SellerID, tx.CreatedAt)
	if err != nil {
		return EvalResult{}, nil, err
	}
	counterparty, err := s.loadSnapshot(ctx, tx.BuyerID, tx.CreatedAt)
	if err != nil {
		return EvalResult{}, nil, err
	}

	rules, err := s.activeRules(ctx)
	if err != nil {
		return EvalResult{}, nil, err
	}

	result := s.engine.Evaluate(snapshot, subject, counterparty, rules)
	for _, ruleID := range result.TriggeredRules {
		s.metrics.IncRuleTriggered(ruleID.String())
	}
	if !result.Flagged {
		return result, nil, nil
	}

	flag, err := s.applyFlag(ctx, tx, result)
	if err != nil {
		return result, nil, err
	}
	return result, flag, nil
}

// activeRules falls back to the built-in default set when the external store
// is empty (first-run bootstrap).
func (s *Service) activeRules(ctx context.Context) ([]Rule, error) {
	rules, err := s.rules.ListEnabledRules(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load rules")
	}
	if len(rules) == 0 {
		return DefaultRules(), nil
	}
	return rules, nil
}

func (s *Service) loadSnapshot(ctx context.Context, accountID id.AccountID, at time.Time) (*SubjectSnapshot, error) {
	if accountID.IsNil() {
		return nil, nil
	}
	acct, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}

	txs, err := s.txs.ListByAccount(ctx, accountID, 100)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account history")
	}

	snap := &SubjectSnapshot{
		AccountID:        acct.ID,
		Suspended:        acct.Suspended(),
		ViolationCount:   acct.ViolationCount,
		LicenseExpiresAt: acct.LicenseExpiresAt,
	}

	locations := make([]string, 0, len(txs))
	for _, tx := range txs {
		if at.Sub(tx.CreatedAt) <= velocityWindow && tx.CreatedAt.Before(at) {
			snap.TransactionsLastDay++
		}
		locations = append(locations, tx.Location)
	}
	snap.UsualLocation = pstrings.MostFrequent(locations)
	return snap, nil
}

// applyFlag persists the flag, spawns the review when required, and forces
// the transaction into review_required. At most one open review may exist
// per transaction; an existing one is reused, never duplicated.
func (s *Service) applyFlag(ctx context.Context, tx *transaction.Transaction, result EvalResult) (*Flag, error) {
	flag := &Flag{
		ID:              id.NewFlagID(),
		TransactionID:   tx.ID,
		TriggeredRules:  result.TriggeredRules,
		HighestSeverity: result.HighestSeverity,
		CreatedAt:       time.Now(),
	}

	if result.AutoReviewRequired {
		existing, err := s.flags.OpenReviewByTransaction(ctx, tx.ID)
		switch {
		case err == nil:
			flag.ReviewSpawned = true
			flag.ReviewID = &existing.ID
		case errors.Is(err, sentinel.ErrNotFound):
			review := &ReviewItem{
				ID:            id.NewReviewID(),
				FlagID:        flag.ID,
				TransactionID: tx.ID,
				Open:          true,
				CreatedAt:     time.Now(),
			}
			if err := s.flags.CreateReview(ctx, review); err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create review item")
			}
			flag.ReviewSpawned = true
			flag.ReviewID = &review.ID
			s.metrics.IncReviewSpawned()
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check open reviews")
		}
	}

	if err := s.flags.CreateFlag(ctx, flag); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist flag")
	}
	s.metrics.IncFlagCreated(string(flag.HighestSeverity))

	// Only a mandatory review forces the status; otherwise the transaction
	// proceeds untouched.
	if result.AutoReviewRequired {
		if err := s.txs.UpdateStatus(ctx, tx.ID, transaction.StatusReviewRequired, &flag.ID); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update transaction status")
		}
	} else if err := s.txs.UpdateStatus(ctx, tx.ID, tx.Status, &flag.ID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to link flag to transaction")
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "transaction flagged",
			"transaction_id", tx.ID,
			"severity", flag.HighestSeverity,
			"rules", flag.TriggeredRules,
			"review_spawned", flag.ReviewSpawned,
		)
	}
	return flag, nil
}

// ResolveFlag transitions a flag open -> resolved and applies the reviewer's
// decision to the transaction: cleared returns it to pending, blocked marks
// it rejected. Resolving twice is a conflict, not a silent no-op.
func (s *Service) ResolveFlag(ctx context.Context, flagID id.FlagID, action ResolutionAction, resolvedBy, notes string) (*Flag, error) {
	if action != ActionCleared && action != ActionBlocked {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown resolution action %q", action)
	}
	if resolvedBy == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "resolver identity is required")
	}

	flag, err := s.flags.Resolve(ctx, flagID, action, resolvedBy, notes)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "flag not found")
		case errors.Is(err, sentinel.ErrAlreadyResolved):
			return nil, dErrors.New(dErrors.CodeConflict, "flag already resolved")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve flag")
		}
	}

	status := transaction.StatusPending
	if action == ActionBlocked {
		status = transaction.StatusRejected
	}
	if err := s.txs.UpdateStatus(ctx, flag.TransactionID, status, nil); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update transaction status")
	}

	if flag.ReviewID != nil {
		if err := s.flags.CloseReview(ctx, *flag.ReviewID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to close review item")
		}
	}

	s.metrics.IncFlagResolved(string(action))
	if s.logger != nil {
		s.logger.InfoContext(ctx, "flag resolved",
			"flag_id", flag.ID,
			"action", action,
			"resolved_by", resolvedBy,
		)
	}
	return flag, nil
}
