package jobs

import (
	"context"
	"fmt"
	"time"

	"anoa.com/schoolportal/pkg/metrics"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a named unit of housekeeping. An empty Spec registers it as on-demand only.
type Job struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

type Scheduler struct {
	cron *cron.Cron
	jobs map[string]Job
	log  *zap.Logger
}

func NewScheduler(log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger))),
		jobs: make(map[string]Job),
		log:  log,
	}
}

// Register adds the job and schedules it when it carries a cron spec.
func (s *Scheduler) Register(j Job) error {
	if j.Name == "" || j.Run == nil {
		return fmt.Errorf("job needs a name and a run func")
	}
	if _, dup := s.jobs[j.Name]; dup {
		return fmt.Errorf("job %q already registered", j.Name)
	}
	if j.Spec != "" {
		if _, err := s.cron.AddFunc(j.Spec, func() { _ = s.execute(context.Background(), j) }); err != nil {
			return fmt.Errorf("schedule %s: %w", j.Name, err)
		}
		s.log.Info("job scheduled", zap.String("job", j.Name), zap.String("spec", j.Spec))
	}
	s.jobs[j.Name] = j
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
}

// Stop prevents new runs and waits for running ones until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out")
	}
}

// RunNow executes a registered job synchronously.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	j, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("job %q not registered", name)
	}
	return s.execute(ctx, j)
}

func (s *Scheduler) execute(ctx context.Context, j Job) error {
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := j.Run(ctx)
	if err != nil {
		metrics.JobRuns.WithLabelValues(j.Name, "error").Inc()
		s.log.Error("job failed", zap.String("job", j.Name), zap.Duration("took", time.Since(start)), zap.Error(err))
		return err
	}
	metrics.JobRuns.WithLabelValues(j.Name, "ok").Inc()
	s.log.Info("job completed", zap.String("job", j.Name), zap.Duration("took", time.Since(start)))
	return nil
}
