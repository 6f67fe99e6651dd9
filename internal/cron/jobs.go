package cron

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/mercadito-app/mercadito-backend/pkg/logger"
	"github.com/mercadito-app/mercadito-backend/pkg/metrics"
)

type publishedPruner interface {
	DeletePublishedBefore(cutoff time.Time) (int64, error)
	CountStuck(maxAttempts int) (int64, error)
}

type locationSweeper interface {
	DeactivateStaleLocations(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewOutboxRetentionJob prunes published outbox rows past the retention
// horizon and reports how many unpublished rows have run out of attempts.
// The two steps are independent; a prune failure must not hide the backlog.
func NewOutboxRetentionJob(repo publishedPruner, retention time.Duration, maxAttempts int, logg *logger.Logger, jobMetrics *metrics.JobMetrics) Job {
	const name = "outbox_retention"
	return Job{
		Name: name,
		Run: func(ctx context.Context) error {
			var errs error

			deleted, err := repo.DeletePublishedBefore(time.Now().Add(-retention))
			if err != nil {
				errs = multierr.Append(errs, err)
			} else if deleted > 0 {
				logg.Info(logg.WithField(ctx, "deleted", deleted), "pruned published outbox events")
			}

			stuck, err := repo.CountStuck(maxAttempts)
			if err != nil {
				errs = multierr.Append(errs, err)
			} else {
				jobMetrics.SetBacklog(name, float64(stuck))
				if stuck > 0 {
					logg.Warn(logg.WithFields(ctx, map[string]any{
						"stuck": stuck,
					}), "outbox events exhausted their publish attempts")
				}
			}

			return errs
		},
	}
}

// NewStaleLocationJob flips is_active off for vendors whose last location
// ping is older than the staleness window, so they drop out of discovery.
func NewStaleLocationJob(repo locationSweeper, staleAfter time.Duration, logg *logger.Logger) Job {
	return Job{
		Name: "stale_location_sweep",
		Run: func(ctx context.Context) error {
			flipped, err := repo.DeactivateStaleLocations(ctx, time.Now().Add(-staleAfter))
			if err != nil {
				return err
			}
			if flipped > 0 {
				logg.Info(logg.WithField(ctx, "deactivated", flipped), "deactivated stale vendor locations")
			}
			return nil
		},
	}
}
