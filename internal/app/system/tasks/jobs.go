// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"github.com/dalemusser/memberhub/internal/app/lifecycle"
	metricsstore "github.com/dalemusser/memberhub/internal/app/store/metrics"
	"github.com/dalemusser/memberhub/internal/app/system/metrics"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Sweeper runs one renewal sweep.
type Sweeper interface {
	Sweep(ctx context.Context) (lifecycle.SweepReport, error)
}

// IntentCleaner removes expired pay-first registration orders.
type IntentCleaner interface {
	CleanupExpired(ctx context.Context, now time.Time) (int64, error)
}

// RenewalSweepJob sends renewal reminders and expires lapsed memberships.
// It is exclusive: with several instances only one sweeps per interval.
func RenewalSweepJob(sweeper Sweeper, interval time.Duration) Job {
	return Job{
		Name:       "renewal-sweep",
		Interval:   interval,
		Exclusive:  true,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			_, err := sweeper.Sweep(ctx)
			return err
		},
	}
}

// IntentCleanupJob removes pending payment intents past their expiry.
// This is a backup for when MongoDB's TTL index cleanup is delayed.
func IntentCleanupJob(intents IntentCleaner, logger *zap.Logger) Job {
	return Job{
		Name:     "payment-intent-cleanup",
		Interval: 1 * time.Hour, // Run hourly
		Run: func(ctx context.Context) error {
			count, err := intents.CleanupExpired(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Debug("cleaned up expired payment intents", zap.Int64("count", count))
			}
			return nil
		},
	}
}

// MemberGaugesJob refreshes the membership gauges from the database.
func MemberGaugesJob(db *mongo.Database, m *metrics.Metrics, interval time.Duration) Job {
	return Job{
		Name:       "member-gauges",
		Interval:   interval,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			counts := metricsstore.FetchCounts(ctx, db)
			for tier, tc := range counts.Tiers {
				m.SetMemberCount(string(tier), "active", tc.Active)
				m.SetMemberCount(string(tier), "inactive", tc.Inactive)
			}
			m.SetPendingFees(counts.PendingFees)
			return nil
		},
	}
}
