// internal/app/system/workers/scheduler.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/memberhub/internal/app/system/locks"
	"github.com/dalemusser/memberhub/internal/app/system/tasks"
	"github.com/dalemusser/memberhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Scheduler runs periodic jobs in the background, one goroutine per job.
//
// Exclusive jobs take a lease from the Locker before each run and keep it
// for most of the interval, so across instances such a job runs at most
// once per interval. A failed run gives the lease back so another instance
// can retry on its next tick.
type Scheduler struct {
	jobs     []tasks.Job
	locker   locks.Locker
	log      *zap.Logger
	timeout  func() time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler for jobs. Jobs with a non-positive
// interval are skipped.
//
// Parameters:
//   - jobs: the jobs to run
//   - locker: lease provider for exclusive jobs
//   - logger: zap logger for logging
func NewScheduler(jobs []tasks.Job, locker locks.Locker, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		jobs:    jobs,
		locker:  locker,
		log:     logger,
		timeout: timeouts.Sweep,
		stopCh:  make(chan struct{}),
	}
}

// Start launches every job loop.
func (s *Scheduler) Start() {
	for _, job := range s.jobs {
		if job.Interval <= 0 {
			s.log.Info("job disabled", zap.String("job", job.Name))
			continue
		}
		s.wg.Add(1)
		go s.loop(job)
		s.log.Info("job scheduled",
			zap.String("job", job.Name),
			zap.Duration("interval", job.Interval),
			zap.Bool("exclusive", job.Exclusive))
	}
}

// Stop signals every loop to stop and waits for running jobs to finish.
// It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		s.log.Info("scheduler stopped")
	})
}

func (s *Scheduler) loop(job tasks.Job) {
	defer s.wg.Done()

	if job.RunOnStart {
		s.runOnce(job)
	}

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runOnce(job)
		}
	}
}

func (s *Scheduler) runOnce(job tasks.Job) {
	log := s.log.With(zap.String("job", job.Name))

	var release func()
	if job.Exclusive {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.Short())
		rel, ok, err := s.locker.Acquire(ctx, job.Name, job.Interval*9/10)
		cancel()
		if err != nil {
			log.Warn("lease acquire failed", zap.Error(err))
			return
		}
		if !ok {
			log.Debug("lease held elsewhere; skipping run")
			return
		}
		release = rel
	}

	ctx, cancel := timeouts.WithTimeout(context.Background(), s.timeout(), log, job.Name)
	defer cancel()

	// Stop cancels an in-flight run.
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		log.Error("job failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		if release != nil {
			release()
		}
		return
	}
	log.Debug("job finished", zap.Duration("took", time.Since(start)))
}
