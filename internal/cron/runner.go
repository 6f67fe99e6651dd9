package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mercadito-app/mercadito-backend/pkg/logger"
	"github.com/mercadito-app/mercadito-backend/pkg/metrics"
)

// Job is a named unit of periodic work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

type jobLocker interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(name string) string
}

// Runner ticks through its registered jobs, taking a Redis lock per job so
// only one worker replica runs each job per tick.
type Runner struct {
	jobs     []Job
	locker   jobLocker
	logg     *logger.Logger
	metrics  *metrics.JobMetrics
	interval time.Duration
	ownerID  string
}

// NewRunner builds a job runner. Metrics may be nil.
func NewRunner(locker jobLocker, logg *logger.Logger, jobMetrics *metrics.JobMetrics, interval time.Duration) (*Runner, error) {
	if locker == nil {
		return nil, fmt.Errorf("job locker required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("tick interval must be positive")
	}
	return &Runner{
		locker:   locker,
		logg:     logg,
		metrics:  jobMetrics,
		interval: interval,
		ownerID:  uuid.NewString(),
	}, nil
}

// Register adds a job to the schedule. Not safe to call after Start.
func (r *Runner) Register(job Job) error {
	if job.Name == "" {
		return fmt.Errorf("job name required")
	}
	if job.Run == nil {
		return fmt.Errorf("job %s has no run function", job.Name)
	}
	for _, existing := range r.jobs {
		if existing.Name == job.Name {
			return fmt.Errorf("job %s already registered", job.Name)
		}
	}
	r.jobs = append(r.jobs, job)
	return nil
}

// Start blocks, running every job once per tick until the context ends.
func (r *Runner) Start(ctx context.Context) {
	r.logg.Info(r.logg.WithField(ctx, "jobs", len(r.jobs)), "cron runner started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logg.Info(ctx, "cron runner stopped")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	for _, job := range r.jobs {
		r.runLocked(ctx, job)
	}
}

// runLocked runs the job under a Redis lock sized to the tick interval, so a
// crashed worker's lock expires on its own.
func (r *Runner) runLocked(ctx context.Context, job Job) {
	key := r.locker.LockKey(job.Name)
	acquired, err := r.locker.SetNX(ctx, key, r.ownerID, r.interval)
	if err != nil {
		r.logg.Error(r.logg.WithField(ctx, "job", job.Name), "acquiring job lock", err)
		return
	}
	if !acquired {
		r.logg.Debug(r.logg.WithField(ctx, "job", job.Name), "job lock held elsewhere, skipping")
		return
	}
	defer r.release(ctx, job.Name, key)

	jobCtx := r.logg.WithField(ctx, "job", job.Name)
	started := time.Now()
	runErr := job.Run(jobCtx)
	elapsed := time.Since(started)

	r.metrics.ObserveDuration(job.Name, elapsed)
	if runErr != nil {
		r.metrics.IncFailure(job.Name)
		r.logg.Error(jobCtx, "job failed", runErr)
		return
	}
	r.metrics.IncSuccess(job.Name)
	r.logg.Info(r.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds()), "job finished")
}

// release drops the lock only if this runner still owns it; an expired lock
// may have been re-acquired by another replica.
func (r *Runner) release(ctx context.Context, jobName, key string) {
	owner, err := r.locker.Get(ctx, key)
	if err != nil || owner != r.ownerID {
		return
	}
	if err := r.locker.Del(ctx, key); err != nil {
		r.logg.Error(r.logg.WithField(ctx, "job", jobName), "releasing job lock", err)
	}
}
