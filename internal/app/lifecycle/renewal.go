// internal/app/lifecycle/renewal.go
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/memberhub/internal/app/system/auditlog"
	"github.com/dalemusser/memberhub/internal/app/system/metrics"
	"github.com/dalemusser/memberhub/internal/domain/feeschedule"
	"github.com/dalemusser/memberhub/internal/domain/models"
	"go.uber.org/zap"
)

// SweepReport summarises one renewal sweep.
type SweepReport struct {
	Scanned   int `json:"scanned"`
	Reminded  int `json:"reminded"`
	Expired   int `json:"expired"`
	Recovered int `json:"recovered"`
	Failed    int `json:"failed"`
}

// Sweeper sends renewal reminders and expires lapsed memberships.
//
// Expiry runs in two steps: BeginExpiry deactivates the user and marks them
// mid-expiry, then the renewal fee is reopened and the marker cleared. A
// sweep that dies between the steps leaves the marker set; the next sweep
// picks those users up and finishes the job. Activation refuses to run on a
// marked user, so a user is never active with a reopened fee.
type Sweeper struct {
	users    UserStore
	ledger   *Ledger
	fees     FeeStore
	schedule *feeschedule.Schedule
	notifier Notifier
	notices  *notices
	audit    *auditlog.Logger
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time
	window   time.Duration
}

// Sweep processes every user due within the reminder window. Per-user
// failures are logged and counted; the sweep continues with the next user.
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	start := time.Now()
	now := s.now().UTC()

	users, err := s.users.ListDueForSweep(ctx, now.Add(s.window))
	if err != nil {
		return SweepReport{}, fmt.Errorf("list due users: %w", err)
	}

	var rep SweepReport
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Scanned++
		if err := s.sweepOne(ctx, u, now, &rep); err != nil {
			rep.Failed++
			s.log.Error("renewal sweep: user failed",
				zap.String("user_id", u.ID.Hex()),
				zap.Error(err))
		}
	}

	s.metrics.ObserveSweep(time.Since(start), rep.Reminded, rep.Expired)
	s.log.Info("renewal sweep complete",
		zap.Int("scanned", rep.Scanned),
		zap.Int("reminded", rep.Reminded),
		zap.Int("expired", rep.Expired),
		zap.Int("recovered", rep.Recovered),
		zap.Int("failed", rep.Failed),
		zap.Duration("took", time.Since(start)))
	return rep, nil
}

func (s *Sweeper) sweepOne(ctx context.Context, u models.User, now time.Time, rep *SweepReport) error {
	due, ok := u.RenewalDue()

	if u.Expiring {
		if err := s.finishExpiry(ctx, u, due); err != nil {
			return err
		}
		rep.Recovered++
		return nil
	}
	if !ok || !u.IsActive {
		return nil
	}

	if !now.Before(due) {
		won, err := s.users.BeginExpiry(ctx, u.ID, now)
		if err != nil {
			return fmt.Errorf("begin expiry: %w", err)
		}
		if !won {
			// Renewed or expired by another sweep since the listing.
			return nil
		}
		if err := s.finishExpiry(ctx, u, due); err != nil {
			return err
		}
		rep.Expired++
		return nil
	}

	dayStart := now.Truncate(24 * time.Hour)
	won, err := s.users.ClaimReminder(ctx, u.ID, dayStart, now)
	if err != nil {
		return fmt.Errorf("claim reminder: %w", err)
	}
	if won {
		s.notifier.Notify(ctx, s.notices.reminder(u, due))
		rep.Reminded++
	}
	return nil
}

// finishExpiry reopens the renewal fee and clears the mid-expiry marker.
// It is safe to repeat.
func (s *Sweeper) finishExpiry(ctx context.Context, u models.User, due time.Time) error {
	ft := s.schedule.RenewalFeeType(u.MembershipTier)
	amount, _ := s.schedule.Amount(u.MembershipTier, ft)

	reopened, err := s.fees.Reopen(ctx, u.ID, ft, amount, s.now().UTC())
	if err != nil {
		return fmt.Errorf("reopen %s fee: %w", ft, err)
	}
	if reopened {
		s.audit.FeeReopened(ctx, u.ID, ft)
	} else if _, err := s.ledger.OpenFee(ctx, u.ID, u.MembershipTier, ft); err != nil {
		// Already pending from an earlier attempt, or never opened.
		return err
	}

	if err := s.users.FinishExpiry(ctx, u.ID); err != nil {
		return fmt.Errorf("finish expiry: %w", err)
	}
	s.audit.UserExpired(ctx, u.ID, due)
	s.notifier.Notify(ctx, s.notices.expired(u, due))
	s.log.Info("membership expired",
		zap.String("user_id", u.ID.Hex()),
		zap.Time("renewal_date", due))
	return nil
}
