// internal/app/lifecycle/activation.go
package lifecycle

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	userstore "github.com/dalemusser/memberhub/internal/app/store/users"
	"github.com/dalemusser/memberhub/internal/app/system/auditlog"
	"github.com/dalemusser/memberhub/internal/app/system/metrics"
	"github.com/dalemusser/memberhub/internal/app/system/sentinel"
	"github.com/dalemusser/memberhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ActivationState is where a user ended up after an activation attempt.
type ActivationState string

const (
	StateActivated     ActivationState = "activated"
	StateRenewed       ActivationState = "renewed"
	StateAlreadyActive ActivationState = "already_active"
	StateAwaitingFees  ActivationState = "awaiting_fees"
	StateExpiring      ActivationState = "expiring"
	StateBlocked       ActivationState = "blocked"
)

// ActivationResult reports an activation attempt.
type ActivationResult struct {
	State       ActivationState  `json:"state"`
	Outstanding []models.FeeType `json:"outstanding,omitempty"`
	Assignment  *Assignment      `json:"assignment,omitempty"`
	RenewalDate *time.Time       `json:"renewal_date,omitempty"`
	// Blocked carries the reason when State is StateBlocked.
	Blocked Code `json:"blocked,omitempty"`
}

// Active reports whether the user is active after the attempt.
func (r ActivationResult) Active() bool {
	switch r.State {
	case StateActivated, StateRenewed, StateAlreadyActive:
		return true
	}
	return false
}

const (
	passwordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"
	passwordLength   = 12
)

// Activator moves fully paid users to active. The flip is a single
// conditional update on the user, so concurrent callers produce exactly one
// activation and exactly one notification.
type Activator struct {
	users      UserStore
	ledger     *Ledger
	assigner   *Assigner
	notifier   Notifier
	notices    *notices
	audit      *auditlog.Logger
	metrics    *metrics.Metrics
	log        *zap.Logger
	now        func() time.Time
	bcryptCost int
}

// Activate re-evaluates userID. It is idempotent and safe to call after any
// payment, renewal or administrative reconcile. A mid-tier user whose
// referral is not core-connected stays inactive and the result carries
// StateBlocked together with ErrReferralNotCoreConnected.
func (a *Activator) Activate(ctx context.Context, userID primitive.ObjectID) (ActivationResult, error) {
	u, err := a.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return ActivationResult{}, &Error{Code: CodeNotFound, Message: "user not found", Err: err}
		}
		return ActivationResult{}, err
	}
	if u.IsActive {
		return ActivationResult{State: StateAlreadyActive, RenewalDate: u.RenewalDate}, nil
	}
	if u.Expiring {
		return ActivationResult{State: StateExpiring}, nil
	}

	sum, err := a.ledger.Summary(ctx, u.ID, u.MembershipTier)
	if err != nil {
		return ActivationResult{}, err
	}
	if !sum.IsFullyPaid {
		return ActivationResult{State: StateAwaitingFees, Outstanding: sum.Outstanding}, nil
	}

	asg, err := a.assigner.Assign(ctx, u.ID)
	switch {
	case err == nil, errors.Is(err, ErrAlreadyAssigned):
	case errors.Is(err, ErrReferralNotCoreConnected):
		return ActivationResult{State: StateBlocked, Blocked: CodeReferralNotCoreConnected}, err
	default:
		return ActivationResult{}, err
	}

	now := a.now().UTC()
	renewal := now.Add(models.MembershipTerm)
	res := ActivationResult{RenewalDate: &renewal}
	if !asg.Skipped {
		res.Assignment = &asg
	}

	if u.CredentialIssuedAt == nil {
		password, hash, err := a.newCredential()
		if err != nil {
			return ActivationResult{}, err
		}
		won, err := a.users.Activate(ctx, u.ID, userstore.Activation{RenewalDate: renewal, PasswordHash: hash, IssuedAt: now})
		if err != nil {
			return ActivationResult{}, fmt.Errorf("activate user: %w", err)
		}
		if !won {
			return a.lost(ctx, u.ID)
		}
		res.State = StateActivated
		a.metrics.IncActivation("first")
		a.audit.UserActivated(ctx, u.ID, renewal, false)
		a.notifier.Notify(ctx, a.notices.credentials(*u, password, renewal))
	} else {
		won, err := a.users.Activate(ctx, u.ID, userstore.Activation{RenewalDate: renewal})
		if err != nil {
			return ActivationResult{}, fmt.Errorf("activate user: %w", err)
		}
		if !won {
			return a.lost(ctx, u.ID)
		}
		res.State = StateRenewed
		a.metrics.IncActivation("renewal")
		a.audit.UserActivated(ctx, u.ID, renewal, true)
		a.notifier.Notify(ctx, a.notices.renewed(*u, renewal))
	}

	a.log.Info("user activated",
		zap.String("user_id", u.ID.Hex()),
		zap.String("state", string(res.State)),
		zap.Time("renewal_date", renewal))
	return res, nil
}

// lost reports the state left by a concurrent winner.
func (a *Activator) lost(ctx context.Context, userID primitive.ObjectID) (ActivationResult, error) {
	u, err := a.users.GetByID(ctx, userID)
	if err != nil {
		return ActivationResult{}, err
	}
	switch {
	case u.IsActive:
		return ActivationResult{State: StateAlreadyActive, RenewalDate: u.RenewalDate}, nil
	case u.Expiring:
		return ActivationResult{State: StateExpiring}, nil
	}
	return ActivationResult{}, fmt.Errorf("activate user %s: guard failed", userID.Hex())
}

func (a *Activator) newCredential() (password, hash string, err error) {
	password, err = randomPassword(passwordLength)
	if err != nil {
		return "", "", fmt.Errorf("generate password: %w", err)
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), a.bcryptCost)
	if err != nil {
		return "", "", fmt.Errorf("hash password: %w", err)
	}
	return password, string(b), nil
}

func randomPassword(n int) (string, error) {
	limit := big.NewInt(int64(len(passwordAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		out[i] = passwordAlphabet[idx.Int64()]
	}
	return string(out), nil
}
