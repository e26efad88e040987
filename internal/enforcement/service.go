package enforcement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"custos/internal/account"
	"custos/internal/enforcement/metrics"
	"custos/internal/notify"
	"custos/internal/policy"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/audit"
	"custos/pkg/platform/sentinel"
)

const (
	defaultConcurrency = 8

	// updateAttempts bounds the optimistic-concurrency retry loop. A payment
	// or manual action landing mid-run bumps the account version; the worker
	// re-reads and re-evaluates rather than overwriting it.
	updateAttempts = 3

	// TriggerScheduled and TriggerManual label who started a run in the
	// execution record.
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// Service sweeps the account ledger and applies the compliance state machine.
// It is the only writer of account compliance fields besides Reinstate.
type Service struct {
	accounts account.Store
	assets   account.AssetStore
	policies policy.Reader
	audits   audit.Store
	notifier notify.Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics

	concurrency int
	now         func() time.Time
}

type Option func(*Service)

func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithConcurrency caps the number of accounts processed in parallel.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(accounts account.Store, assets account.AssetStore, policies policy.Reader, audits audit.Store, opts ...Option) (*Service, error) {
	if accounts == nil {
		return nil, fmt.Errorf("account store is required")
	}
	if assets == nil {
		return nil, fmt.Errorf("asset store is required")
	}
	if policies == nil {
		return nil, fmt.Errorf("policy reader is required")
	}
	if audits == nil {
		return nil, fmt.Errorf("audit store is required")
	}
	svc := &Service{
		accounts:    accounts,
		assets:      assets,
		policies:    policies,
		audits:      audits,
		concurrency: defaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.notifier == nil {
		svc.notifier = notify.NewLogNotifier(svc.logger)
	}
	return svc, nil
}

// accountOutcome is what one worker reports back to the sweep.
type accountOutcome struct {
	actions     []audit.AccountAction
	warned      bool
	feeApplied  bool
	suspended   bool
	repossessed int
}

// RunOnce performs one full enforcement sweep. Per-account failures are
// collected into the execution record and never abort the run; only a missing
// policy or an unlistable ledger does. Exactly one execution record is
// appended for every sweep that starts, including no-op sweeps.
func (s *Service) RunOnce(ctx context.Context, trigger string) (*audit.ExecutionRecord, error) {
	started := s.now()

	pol, err := s.policies.GetActivePolicy(ctx)
	if err != nil {
		s.metrics.ObserveRun(trigger, "policy_unavailable", s.now().Sub(started))
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "active policy unavailable, enforcement aborted")
	}

	accounts, err := s.accounts.ListNeedingEnforcement(ctx)
	if err != nil {
		s.metrics.ObserveRun(trigger, "list_failed", s.now().Sub(started))
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "listing accounts for enforcement")
	}

	record := &audit.ExecutionRecord{
		ID:        id.NewExecutionID(),
		StartedAt: started,
		Trigger:   trigger,
		Policy:    policySnapshot(pol),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, acct := range accounts {
		g.Go(func() error {
			outcome, err := s.processAccount(gctx, acct.ID, pol)

			mu.Lock()
			defer mu.Unlock()
			record.Counts.Processed++
			// A failure can follow committed effects (a suspension whose asset
			// flagging then failed); the partial outcome is recorded alongside
			// the error, never discarded.
			record.Actions = append(record.Actions, outcome.actions...)
			if outcome.warned {
				record.Counts.Warned++
			}
			if outcome.feeApplied {
				record.Counts.LateFeesApplied++
			}
			if outcome.suspended {
				record.Counts.Suspended++
			}
			record.Counts.RepossessionFlagged += outcome.repossessed
			if err != nil {
				record.Counts.Errors++
				record.Errors = append(record.Errors, audit.AccountError{
					AccountID: acct.ID,
					Cause:     err.Error(),
				})
				s.metrics.IncAccountError()
				s.logger.Warn("account transition failed",
					"account_id", acct.ID.String(),
					"error", err,
				)
			}
			return nil
		})
	}
	// Workers always return nil; Wait only orders the sweep's completion.
	_ = g.Wait()

	record.FinishedAt = s.now()
	s.metrics.AddProcessed(record.Counts.Processed)
	s.metrics.ObserveRun(trigger, "completed", record.FinishedAt.Sub(started))

	if err := s.audits.AppendExecutionRecord(ctx, *record); err != nil {
		s.logger.Error("append execution record", "execution_id", record.ID.String(), "error", err)
		return record, dErrors.Wrap(err, dErrors.CodeInternal, "appending execution record")
	}

	s.logger.Info("enforcement run finished",
		"execution_id", record.ID.String(),
		"trigger", trigger,
		"policy_version", pol.Version,
		"processed", record.Counts.Processed,
		"warned", record.Counts.Warned,
		"suspended", record.Counts.Suspended,
		"errors", record.Counts.Errors,
	)
	return record, nil
}

// policySnapshot copies the thresholds the run enforced into the record, so
// the audit trail stays reconstructable after the active policy changes.
func policySnapshot(pol policy.Policy) audit.PolicySnapshot {
	return audit.PolicySnapshot{
		Version:               pol.Version,
		BaseFee:               pol.Fees.BaseFee,
		PenaltyPercent:        pol.Fees.PenaltyPercent,
		GracePeriodDays:       pol.Escalation.GracePeriodDays,
		WarningIntervals:      pol.Escalation.WarningIntervals,
		SuspensionTriggerDays: pol.Escalation.SuspensionTriggerDays,
		AutoSuspendEnabled:    pol.Escalation.AutoSuspendEnabled,
		FlagRepossession:      pol.Escalation.FlagRepossession,
	}
}

// processAccount re-reads the account, evaluates the transition, and commits
// it with a version-conditional write. On conflict it retries from a fresh
// read so a concurrent payment wins over the stale transition.
func (s *Service) processAccount(ctx context.Context, accountID id.AccountID, pol policy.Policy) (accountOutcome, error) {
	var out accountOutcome
	for attempt := 0; attempt < updateAttempts; attempt++ {
		current, err := s.accounts.Get(ctx, accountID)
		if err != nil {
			return out, err
		}

		t := Evaluate(*current, pol, s.now())
		if !t.Changed {
			return out, nil
		}

		err = s.accounts.Update(ctx, &t.Account, current.Version)
		if errors.Is(err, sentinel.ErrConflict) {
			continue
		}
		if err != nil {
			return out, err
		}
		return s.applyEffects(ctx, t)
	}
	return out, dErrors.New(dErrors.CodeConflict, "account kept changing concurrently")
}

// applyEffects performs the committed transition's side effects: audit
// actions, notices, repossession flagging.
func (s *Service) applyEffects(ctx context.Context, t Transition) (accountOutcome, error) {
	var out accountOutcome
	acct := t.Account

	if t.ResetToCurrent {
		out.actions = append(out.actions, audit.AccountAction{
			AccountID: acct.ID,
			Kind:      audit.ActionResetCurrent,
		})
		s.metrics.IncTransition(string(audit.ActionResetCurrent))
	}

	if t.LateFeeDelta > 0 {
		out.feeApplied = true
		out.actions = append(out.actions, audit.AccountAction{
			AccountID: acct.ID,
			Kind:      audit.ActionLateFee,
			Detail:    fmt.Sprintf("charged %.2f, accumulated %.2f", t.LateFeeDelta, acct.AccumulatedLateFee),
		})
		s.metrics.IncTransition(string(audit.ActionLateFee))
		s.notifier.Notify(ctx, notify.Notice{
			AccountID:  acct.ID,
			Kind:       notify.KindLateFee,
			Recipient:  notify.RecipientFor(acct.ContactEmail),
			Message:    fmt.Sprintf("A late fee of %.2f has been applied to your license.", t.LateFeeDelta),
			OccurredAt: s.now(),
		})
	}

	if t.WarningInterval > 0 {
		out.warned = true
		out.actions = append(out.actions, audit.AccountAction{
			AccountID: acct.ID,
			Kind:      audit.ActionWarning,
			Detail:    fmt.Sprintf("day %d warning", t.WarningInterval),
		})
		s.metrics.IncTransition(string(audit.ActionWarning))
		s.notifier.Notify(ctx, notify.Notice{
			AccountID:  acct.ID,
			Kind:       notify.KindWarning,
			Recipient:  notify.RecipientFor(acct.ContactEmail),
			Message:    fmt.Sprintf("Day %d payment warning: your license fee is overdue.", t.WarningInterval),
			OccurredAt: s.now(),
		})
	}

	if t.Suspend {
		out.suspended = true
		out.actions = append(out.actions, audit.AccountAction{
			AccountID: acct.ID,
			Kind:      audit.ActionSuspension,
		})
		s.metrics.IncTransition(string(audit.ActionSuspension))
		s.notifier.Notify(ctx, notify.Notice{
			AccountID:  acct.ID,
			Kind:       notify.KindSuspension,
			Recipient:  notify.RecipientFor(acct.ContactEmail),
			Message:    "Your license has been suspended for non-payment.",
			OccurredAt: s.now(),
		})
	}

	if t.FlagAssets {
		flagged, err := s.flagAssets(ctx, acct.ID)
		if err != nil {
			// The suspension itself is already committed; only the asset
			// flagging is reported as this account's failure.
			return out, dErrors.Wrap(err, dErrors.CodeInternal, "flagging assets for repossession")
		}
		if flagged > 0 {
			out.repossessed = flagged
			out.actions = append(out.actions, audit.AccountAction{
				AccountID: acct.ID,
				Kind:      audit.ActionRepossession,
				Detail:    fmt.Sprintf("%d assets flagged", flagged),
			})
			s.metrics.IncTransition(string(audit.ActionRepossession))
		}
	}

	return out, nil
}

func (s *Service) flagAssets(ctx context.Context, accountID id.AccountID) (int, error) {
	assets, err := s.assets.ListActiveByAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	var ids []id.AssetID
	for _, asset := range assets {
		if !asset.RepossessionFlagged {
			ids = append(ids, asset.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.assets.FlagRepossession(ctx, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Reinstate lifts a suspension. It is the only path out of the suspended
// state; the sweep never reinstates automatically.
func (s *Service) Reinstate(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	current, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return nil, err
	}
	if !current.Suspended() {
		return nil, dErrors.New(dErrors.CodeInvalidState, "account is not suspended")
	}

	next := *current
	next.LicenseStatus = account.LicenseActive
	next.ServicesBlocked = false
	next.LastWarningDay = 0

	if err := s.accounts.Update(ctx, &next, current.Version); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "account changed concurrently")
		}
		return nil, err
	}

	s.metrics.IncTransition(string(audit.ActionReinstatement))
	s.notifier.Notify(ctx, notify.Notice{
		AccountID:  next.ID,
		Kind:       notify.KindReinstatement,
		Recipient:  notify.RecipientFor(next.ContactEmail),
		Message:    "Your license has been reinstated.",
		OccurredAt: s.now(),
	})
	s.logger.Info("account reinstated", "account_id", next.ID.String())
	return &next, nil
}
