package enforcement

import (
	"context"
	"log/slog"
	"sync"
	"time"

	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/audit"
)

// DefaultInterval is how often the background loop sweeps when not
// configured otherwise.
const DefaultInterval = 6 * time.Hour

// SchedulerStatus is the externally observable scheduler state.
type SchedulerStatus struct {
	Running       bool          `json:"running"`
	RunInProgress bool          `json:"run_in_progress"`
	Interval      time.Duration `json:"interval"`
	LastRunAt     *time.Time    `json:"last_run_at,omitempty"`
	LastRunError  string        `json:"last_run_error,omitempty"`
	NextRunAt     *time.Time    `json:"next_run_at,omitempty"`
}

// Scheduler owns the enforcement heartbeat. One instance runs per deployment;
// scheduled ticks and manual triggers are serialized through a single
// run-in-progress guard so two sweeps never overlap. Stop is graceful: an
// in-flight run finishes, no new run starts.
type Scheduler struct {
	svc      *Service
	interval time.Duration
	logger   *slog.Logger

	mu         sync.Mutex
	running    bool
	quit       chan struct{}
	done       chan struct{}
	inProgress bool
	lastRunAt  *time.Time
	lastErr    string
	nextRunAt  *time.Time

	// runMu serializes sweeps between the loop and RunNow.
	runMu sync.Mutex
}

func NewScheduler(svc *Service, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{svc: svc, interval: interval, logger: logger}
}

// Start launches the background loop. Starting an already running scheduler
// is an invalid-state error.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return dErrors.New(dErrors.CodeInvalidState, "scheduler already running")
	}
	s.running = true
	s.quit = make(chan struct{})
	s.done = make(chan struct{})
	next := time.Now().Add(s.interval)
	s.nextRunAt = &next

	go s.loop(s.quit, s.done)
	s.logger.Info("enforcement scheduler started", "interval", s.interval.String())
	return nil
}

// Stop signals the loop and waits for it to exit. An in-flight run completes
// before Stop returns.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return dErrors.New(dErrors.CodeInvalidState, "scheduler is not running")
	}
	quit, done := s.quit, s.done
	s.mu.Unlock()

	close(quit)
	<-done

	s.mu.Lock()
	s.running = false
	s.nextRunAt = nil
	s.mu.Unlock()

	s.logger.Info("enforcement scheduler stopped")
	return nil
}

// Status reports the current scheduler state.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := SchedulerStatus{
		Running:       s.running,
		RunInProgress: s.inProgress,
		Interval:      s.interval,
		LastRunError:  s.lastErr,
	}
	if s.lastRunAt != nil {
		t := *s.lastRunAt
		st.LastRunAt = &t
	}
	if s.running && s.nextRunAt != nil {
		t := *s.nextRunAt
		st.NextRunAt = &t
	}
	return st
}

// RunNow triggers one manual sweep, serialized with the scheduled loop. It
// works whether or not the loop is running.
func (s *Scheduler) RunNow(ctx context.Context) (*audit.ExecutionRecord, error) {
	return s.run(ctx, TriggerManual)
}

func (s *Scheduler) loop(quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			// The loop never dies on a failed run; a missing policy or a
			// storage outage is retried at the next tick.
			if _, err := s.run(context.Background(), TriggerScheduled); err != nil {
				s.logger.Error("scheduled enforcement run failed", "error", err)
			}
			s.mu.Lock()
			next := time.Now().Add(s.interval)
			s.nextRunAt = &next
			s.mu.Unlock()
		}
	}
}

func (s *Scheduler) run(ctx context.Context, trigger string) (*audit.ExecutionRecord, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.mu.Lock()
	s.inProgress = true
	s.mu.Unlock()

	record, err := s.svc.RunOnce(ctx, trigger)

	now := time.Now()
	s.mu.Lock()
	s.inProgress = false
	s.lastRunAt = &now
	if err != nil {
		s.lastErr = err.Error()
	} else {
		s.lastErr = ""
	}
	s.mu.Unlock()

	return record, err
}
