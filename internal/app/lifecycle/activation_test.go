package lifecycle_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/dalemusser/memberhub/internal/app/lifecycle"
	"github.com/dalemusser/memberhub/internal/app/system/gateway"
	"github.com/dalemusser/memberhub/internal/app/system/notify"
	"github.com/dalemusser/memberhub/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestActivate_CoreWithoutCommunityFoundsOne(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser("founder", models.TierCore, nil)

	out := h.payAll(t, u)
	assert.Equal(t, lifecycle.StateActivated, out.Activation.State)
	require.NotNil(t, out.Activation.Assignment)
	assert.True(t, out.Activation.Assignment.Created)

	got := h.user(t, u.ID)
	assert.True(t, got.IsActive)
	require.NotNil(t, got.CommunityID)
	assert.Equal(t, models.RoleCoreMember, got.CommunityRole)
	require.NotNil(t, got.RenewalDate)
	assert.Equal(t, t0.Add(models.MembershipTerm), *got.RenewalDate)

	c, err := h.communities.GetByID(context.Background(), *got.CommunityID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, *c.FounderID)
	assert.Contains(t, c.CoreMembers, u.ID)
}

func TestActivate_MidTierJoinsReferrersCommunity(t *testing.T) {
	h := newHarness(t)
	founder := h.seedUser("head", models.TierCore, nil)
	comm := h.seedCommunity("south", founder)
	u := h.seedUser("joiner", models.TierIndustria, &founder.ID)

	out := h.payAll(t, u)
	assert.Equal(t, lifecycle.StateActivated, out.Activation.State)

	got := h.user(t, u.ID)
	require.NotNil(t, got.CommunityID)
	assert.Equal(t, comm.ID, *got.CommunityID)
	assert.Equal(t, models.RoleMember, got.CommunityRole)

	c, err := h.communities.GetByID(context.Background(), comm.ID)
	require.NoError(t, err)
	assert.Contains(t, c.Members, u.ID)
	assert.NotContains(t, c.CoreMembers, u.ID)
}

func TestActivate_CoreJoinsReferrersCommunityAsCore(t *testing.T) {
	h := newHarness(t)
	founder := h.seedUser("lead", models.TierCore, nil)
	comm := h.seedCommunity("east", founder)
	u := h.seedUser("second", models.TierCore, &founder.ID)

	h.payAll(t, u)

	c, err := h.communities.GetByID(context.Background(), comm.ID)
	require.NoError(t, err)
	assert.Contains(t, c.CoreMembers, u.ID)
	assert.Len(t, h.communities.m, 1, "no new community founded")
}

func TestActivate_IssuesHashedCredential(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser("creds", models.TierIndustria, nil)
	founder := h.seedUser("boss", models.TierCore, nil)
	h.seedCommunity("west", founder)
	h.users.update(u.ID, func(x *models.User) { x.ReferredBy = &founder.ID })

	h.payAll(t, u)

	got := h.user(t, u.ID)
	require.NotNil(t, got.CredentialIssuedAt)
	require.NotEmpty(t, got.PasswordHash)

	h.notifier.mu.Lock()
	var ev notify.Event
	for _, e := range h.notifier.events {
		if e.Kind == notify.KindCredentialsIssued {
			ev = e
		}
	}
	h.notifier.mu.Unlock()
	assert.Equal(t, u.ID.Hex(), ev.UserID)
	assert.Contains(t, ev.TextBody, got.Username)
	assert.NotContains(t, ev.TextBody, got.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte(passwordFrom(t, ev.TextBody))))
}

func TestActivate_ConcurrentConfirmationsActivateOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.seedUser("racer", models.TierCore, nil)

	_, err := h.engine.RecordManualPayment(ctx, lifecycle.ManualPayment{
		UserID: u.ID, FeeType: models.FeeRegistration, Amount: 2_500_000, Method: models.MethodCheck,
	})
	require.NoError(t, err)
	due, err := h.engine.CreateOrder(ctx, u.ID, models.FeeAnnual)
	require.NoError(t, err)

	conf := lifecycle.PaymentConfirmation{
		UserID:    u.ID,
		FeeType:   models.FeeAnnual,
		OrderID:   due.OrderID,
		PaymentID: "pay_race",
		Signature: gateway.Sign(due.OrderID, "pay_race", testSecret),
	}

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.ConfirmPayment(ctx, conf)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, lifecycle.ErrAlreadyCompleted):
				dupes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, dupes)
	assert.True(t, h.user(t, u.ID).IsActive)
	assert.Equal(t, 1, h.notifier.count(notify.KindCredentialsIssued))
}

func TestActivate_ConcurrentActivateCallsNotifyOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	founder := h.seedUser("anchor", models.TierCore, nil)
	h.seedCommunity("hub", founder)
	u := h.seedUser("many", models.TierFlagship, &founder.ID)

	// Settle fees without triggering activation.
	for _, ft := range []models.FeeType{models.FeeRegistration, models.FeeAnnual} {
		rec, err := h.engine.Ledger.OpenFee(ctx, u.ID, u.MembershipTier, ft)
		require.NoError(t, err)
		_, err = h.engine.Ledger.CompleteManual(ctx, rec.ID, models.MethodCash, "r-"+string(ft))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	states := make(chan lifecycle.ActivationState, 6)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.engine.Activator.Activate(ctx, u.ID)
			if err != nil {
				t.Errorf("activate: %v", err)
				return
			}
			states <- res.State
		}()
	}
	wg.Wait()
	close(states)

	activated := 0
	for s := range states {
		if s == lifecycle.StateActivated {
			activated++
		} else {
			assert.Equal(t, lifecycle.StateAlreadyActive, s)
		}
	}
	assert.Equal(t, 1, activated)
	assert.Equal(t, 1, h.notifier.count(notify.KindCredentialsIssued))
}

func TestReconcile_RepairsMissingMembership(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	founder := h.seedUser("root", models.TierCore, nil)
	comm := h.seedCommunity("central", founder)
	u := h.seedUser("stray", models.TierIndustria, &founder.ID)
	h.payAll(t, u)

	// Simulate a crash between claiming the community and appending.
	h.communities.mu.Lock()
	c := h.communities.m[comm.ID]
	c.Members = nil
	h.communities.m[comm.ID] = c
	h.communities.mu.Unlock()

	res, err := h.engine.Reconcile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateAlreadyActive, res.State)

	got, err := h.communities.GetByID(ctx, comm.ID)
	require.NoError(t, err)
	assert.Contains(t, got.Members, u.ID)
}

func TestAssign_SecondCallReportsAlreadyAssigned(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser("once", models.TierCore, nil)
	h.payAll(t, u)

	asg, err := h.engine.Assigner.Assign(context.Background(), u.ID)
	assert.True(t, errors.Is(err, lifecycle.ErrAlreadyAssigned))
	require.NotNil(t, asg.CommunityID)
	assert.Equal(t, *h.user(t, u.ID).CommunityID, *asg.CommunityID)
}

// passwordFrom extracts the plaintext password from a credentials email.
func passwordFrom(t *testing.T, body string) string {
	t.Helper()
	for _, line := range strings.Split(body, "\n") {
		if v, ok := strings.CutPrefix(line, "Password: "); ok {
			return v
		}
	}
	t.Fatal("no password line in credentials email")
	return ""
}
