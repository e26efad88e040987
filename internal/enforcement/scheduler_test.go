package enforcement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"custos/internal/account"
	"custos/internal/notify"
	"custos/internal/policy"
	dErrors "custos/pkg/domain-errors"
	auditmem "custos/pkg/platform/audit/store/memory"
)

// =============================================================================
// Scheduler Test Suite
// =============================================================================

type SchedulerSuite struct {
	suite.Suite
	audits    *auditmem.InMemoryStore
	scheduler *Scheduler
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerSuite))
}

func (s *SchedulerSuite) SetupTest() {
	accounts := account.NewInMemoryStore()
	s.audits = auditmem.NewInMemoryStore()

	svc, err := New(accounts, accounts, policy.NewInMemoryStore(), s.audits,
		WithNotifier(notify.NewRecorder()),
	)
	s.Require().NoError(err)
	s.scheduler = NewScheduler(svc, 25*time.Millisecond, nil)
}

func (s *SchedulerSuite) TestStartStopStatus() {
	s.Run("fresh scheduler is stopped", func() {
		st := s.scheduler.Status()
		s.False(st.Running)
		s.False(st.RunInProgress)
		s.Nil(st.NextRunAt)
	})

	s.Run("start flips state and double start is rejected", func() {
		s.Require().NoError(s.scheduler.Start())
		st := s.scheduler.Status()
		s.True(st.Running)
		s.NotNil(st.NextRunAt)

		err := s.scheduler.Start()
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("stop returns to stopped and double stop is rejected", func() {
		s.Require().NoError(s.scheduler.Stop())
		s.False(s.scheduler.Status().Running)

		err := s.scheduler.Stop()
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *SchedulerSuite) TestScheduledTicksAppendRecords() {
	s.Require().NoError(s.scheduler.Start())
	defer func() { _ = s.scheduler.Stop() }()

	deadline := time.Now().Add(2 * time.Second)
	for s.audits.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	s.Positive(s.audits.Len())

	st := s.scheduler.Status()
	s.NotNil(st.LastRunAt)
	s.Empty(st.LastRunError)
}

func (s *SchedulerSuite) TestRunNow() {
	s.Run("manual run works while the loop is stopped", func() {
		record, err := s.scheduler.RunNow(context.Background())
		s.NoError(err)
		s.Equal(TriggerManual, record.Trigger)
		s.Equal(1, s.audits.Len())

		st := s.scheduler.Status()
		s.False(st.Running)
		s.NotNil(st.LastRunAt)
	})

	s.Run("manual runs are serialized, never concurrent", func() {
		const runs = 5
		done := make(chan error, runs)
		for i := 0; i < runs; i++ {
			go func() {
				_, err := s.scheduler.RunNow(context.Background())
				done <- err
			}()
		}
		for i := 0; i < runs; i++ {
			s.NoError(<-done)
		}
		s.Equal(1+runs, s.audits.Len())
	})
}
