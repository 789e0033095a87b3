package lifecycle_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/memberhub/internal/app/lifecycle"
	feestore "github.com/dalemusser/memberhub/internal/app/store/fees"
	userstore "github.com/dalemusser/memberhub/internal/app/store/users"
	"github.com/dalemusser/memberhub/internal/app/system/gateway"
	"github.com/dalemusser/memberhub/internal/app/system/normalize"
	"github.com/dalemusser/memberhub/internal/app/system/notify"
	"github.com/dalemusser/memberhub/internal/app/system/sentinel"
	"github.com/dalemusser/memberhub/internal/domain/feeschedule"
	"github.com/dalemusser/memberhub/internal/domain/models"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// The fakes below keep every record in memory behind one mutex and apply
// the same guards as the MongoDB stores' conditional updates.

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// --- users ---

type fakeUsers struct {
	mu            sync.Mutex
	m             map[primitive.ObjectID]models.User
	referrerCalls int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{m: make(map[primitive.ObjectID]models.User)}
}

func (f *fakeUsers) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.m[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &u, nil
}

func (f *fakeUsers) GetByIdentity(_ context.Context, email, mobile, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email, mobile, username = normalize.Email(email), normalize.Mobile(mobile), normalize.Username(username)
	for _, u := range f.m {
		if (email != "" && u.Email == email) || (mobile != "" && u.Mobile == mobile) || (username != "" && u.Username == username) {
			return &u, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (f *fakeUsers) FieldTaken(_ context.Context, field, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.m {
		switch field {
		case "email":
			if u.Email == value {
				return true, nil
			}
		case "mobile":
			if u.Mobile == value {
				return true, nil
			}
		case "username":
			if u.Username == value {
				return true, nil
			}
		default:
			return false, fmt.Errorf("unknown field %q", field)
		}
	}
	return false, nil
}

func (f *fakeUsers) Create(_ context.Context, u models.User) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.Email = normalize.Email(u.Email)
	u.Mobile = normalize.Mobile(u.Mobile)
	u.Username = normalize.Username(u.Username)
	for _, o := range f.m {
		if o.Email == u.Email || o.Mobile == u.Mobile || o.Username == u.Username {
			return models.User{}, fmt.Errorf("create user: %w", sentinel.ErrDuplicate)
		}
	}
	u.IsActive = false
	u.CreatedAt = time.Now().UTC()
	f.m[u.ID] = u
	return u, nil
}

// seed stores u exactly as given.
func (f *fakeUsers) seed(u models.User) models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	f.m[u.ID] = u
	return u
}

func (f *fakeUsers) update(id primitive.ObjectID, fn func(*models.User)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.m[id]
	fn(&u)
	f.m[id] = u
}

func (f *fakeUsers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.m)
}

func (f *fakeUsers) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.m, id)
	return nil
}

func (f *fakeUsers) ReferrerOf(_ context.Context, id primitive.ObjectID) (*primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.referrerCalls++
	u, ok := f.m[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return u.ReferredBy, nil
}

func (f *fakeUsers) ClaimCommunity(_ context.Context, userID, communityID primitive.ObjectID, role models.CommunityRole) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.m[userID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if u.CommunityID != nil {
		return *u.CommunityID == communityID, nil
	}
	cid := communityID
	u.CommunityID = &cid
	u.CommunityRole = role
	f.m[userID] = u
	return true, nil
}

func (f *fakeUsers) Activate(_ context.Context, userID primitive.ObjectID, a userstore.Activation) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.m[userID]
	if !ok || u.IsActive || u.Expiring {
		return false, nil
	}
	if a.PasswordHash != "" {
		if u.CredentialIssuedAt != nil {
			return false, nil
		}
		issued := a.IssuedAt
		u.CredentialIssuedAt = &issued
		u.PasswordHash = a.PasswordHash
	}
	renewal := a.RenewalDate
	u.RenewalDate = &renewal
	u.IsActive = true
	f.m[userID] = u
	return true, nil
}

func (f *fakeUsers) ListDueForSweep(_ context.Context, horizon time.Time) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, u := range f.m {
		if u.Expiring {
			out = append(out, u)
			continue
		}
		if due, ok := u.RenewalDue(); ok && u.IsActive && !due.After(horizon) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsers) ClaimReminder(_ context.Context, userID primitive.ObjectID, dayStart, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.m[userID]
	if !ok || !u.IsActive {
		return false, nil
	}
	if u.LastReminderAt != nil && !u.LastReminderAt.Before(dayStart) {
		return false, nil
	}
	at := now
	u.LastReminderAt = &at
	f.m[userID] = u
	return true, nil
}

func (f *fakeUsers) BeginExpiry(_ context.Context, userID primitive.ObjectID, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.m[userID]
	if !ok || !u.IsActive {
		return false, nil
	}
	if due, ok := u.RenewalDue(); !ok || due.After(now) {
		return false, nil
	}
	u.IsActive = false
	u.Expiring = true
	f.m[userID] = u
	return true, nil
}

func (f *fakeUsers) FinishExpiry(_ context.Context, userID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.m[userID]
	if !ok || !u.Expiring {
		return nil
	}
	u.Expiring = false
	u.LastReminderAt = nil
	f.m[userID] = u
	return nil
}

// --- profiles ---

type fakeProfiles struct {
	mu sync.Mutex
	m  map[primitive.ObjectID]models.Profile // by user id
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{m: make(map[primitive.ObjectID]models.Profile)}
}

func (f *fakeProfiles) Create(_ context.Context, p models.Profile) (models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.Email = normalize.Email(p.Email)
	for _, o := range f.m {
		if o.Email == p.Email {
			return models.Profile{}, fmt.Errorf("create profile: %w", sentinel.ErrDuplicate)
		}
	}
	p.ID = primitive.NewObjectID()
	f.m[p.UserID] = p
	return p, nil
}

func (f *fakeProfiles) EmailTaken(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.m {
		if o.Email == normalize.Email(email) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeProfiles) DeleteByUser(_ context.Context, userID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.m, userID)
	return nil
}

func (f *fakeProfiles) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.m)
}

// --- communities ---

type fakeCommunities struct {
	mu sync.Mutex
	m  map[primitive.ObjectID]models.Community
}

func newFakeCommunities() *fakeCommunities {
	return &fakeCommunities{m: make(map[primitive.ObjectID]models.Community)}
}

func (f *fakeCommunities) seed(c models.Community) models.Community {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	f.m[c.ID] = c
	return c
}

func (f *fakeCommunities) GetByID(_ context.Context, id primitive.ObjectID) (*models.Community, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.m[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &c, nil
}

func (f *fakeCommunities) FindByMember(_ context.Context, userID primitive.ObjectID) (*models.Community, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.m {
		if _, ok := c.RoleOf(userID); ok {
			return &c, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (f *fakeCommunities) CreateFounded(_ context.Context, c models.Community) (models.Community, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.m {
		if o.FounderID != nil && *o.FounderID == *c.FounderID {
			return o, false, nil
		}
	}
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	c.CoreMembers = []primitive.ObjectID{*c.FounderID}
	f.m[c.ID] = c
	return c, true, nil
}

func (f *fakeCommunities) AddCoreMember(_ context.Context, communityID, userID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.m[communityID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if role, ok := c.RoleOf(userID); !ok || role != models.RoleCoreMember {
		c.CoreMembers = append(c.CoreMembers, userID)
	}
	c.Members = without(c.Members, userID)
	f.m[communityID] = c
	return nil
}

func (f *fakeCommunities) AddMember(_ context.Context, communityID, userID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.m[communityID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if _, ok := c.RoleOf(userID); !ok {
		c.Members = append(c.Members, userID)
	}
	f.m[communityID] = c
	return nil
}

func without(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// --- fees ---

type fakeFees struct {
	mu      sync.Mutex
	m       map[primitive.ObjectID]models.FeeRecord
	order   []primitive.ObjectID
	failOn  models.FeeType
	failErr error
}

func newFakeFees() *fakeFees {
	return &fakeFees{m: make(map[primitive.ObjectID]models.FeeRecord)}
}

func (f *fakeFees) GetByID(_ context.Context, id primitive.ObjectID) (*models.FeeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.m[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &r, nil
}

func (f *fakeFees) GetByUserAndType(_ context.Context, userID primitive.ObjectID, ft models.FeeType) (*models.FeeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.m {
		if r.UserID == userID && r.FeeType == ft {
			return &r, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (f *fakeFees) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.FeeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.FeeRecord
	for _, id := range f.order {
		if r, ok := f.m[id]; ok && r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeFees) Open(_ context.Context, rec models.FeeRecord) (models.FeeRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil && rec.FeeType == f.failOn {
		return models.FeeRecord{}, false, f.failErr
	}
	for _, r := range f.m {
		if r.UserID == rec.UserID && r.FeeType == rec.FeeType {
			return r, false, nil
		}
	}
	rec.ID = primitive.NewObjectID()
	rec.Status = models.FeePending
	f.m[rec.ID] = rec
	f.order = append(f.order, rec.ID)
	return rec, true, nil
}

func (f *fakeFees) SetOrder(_ context.Context, id primitive.ObjectID, orderID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.m[id]
	if !ok || r.Status != models.FeePending {
		return false, nil
	}
	r.GatewayOrderID = orderID
	f.m[id] = r
	return true, nil
}

func (f *fakeFees) Complete(_ context.Context, id primitive.ObjectID, c feestore.Completion) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.m[id]
	if !ok || r.Status != models.FeePending {
		return false, nil
	}
	if c.ExpectOrderID != "" && r.GatewayOrderID != c.ExpectOrderID {
		return false, nil
	}
	if c.PaymentID != "" {
		if r.UsedPayment(c.PaymentID) {
			return false, nil
		}
		for oid, o := range f.m {
			if oid != id && o.UsedPayment(c.PaymentID) {
				return false, fmt.Errorf("payment %s: %w", c.PaymentID, sentinel.ErrDuplicate)
			}
		}
		r.UsedPaymentIDs = append(append([]string(nil), r.UsedPaymentIDs...), c.PaymentID)
	}
	at := c.At
	r.Status = models.FeeCompleted
	r.Method = c.Method
	r.CompletedAt = &at
	if c.OrderID != "" {
		r.GatewayOrderID = c.OrderID
	}
	r.GatewayPaymentID = c.PaymentID
	r.GatewaySignature = c.Signature
	r.ReferenceID = c.ReferenceID
	f.m[id] = r
	return true, nil
}

func (f *fakeFees) Reopen(_ context.Context, userID primitive.ObjectID, ft models.FeeType, amount int64, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range f.m {
		if r.UserID == userID && r.FeeType == ft && r.Status == models.FeeCompleted {
			reopened := at
			f.m[id] = models.FeeRecord{
				ID: r.ID, UserID: r.UserID, MembershipTier: r.MembershipTier, FeeType: r.FeeType,
				Amount: amount, Currency: r.Currency, Status: models.FeePending,
				UsedPaymentIDs: r.UsedPaymentIDs, ReopenedAt: &reopened, CreatedAt: r.CreatedAt,
			}
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeFees) DeleteByUser(_ context.Context, userID primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, r := range f.m {
		if r.UserID == userID {
			delete(f.m, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeFees) get(t *testing.T, userID primitive.ObjectID, ft models.FeeType) models.FeeRecord {
	t.Helper()
	r, err := f.GetByUserAndType(context.Background(), userID, ft)
	require.NoError(t, err)
	return *r
}

func (f *fakeFees) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.m)
}

// --- intents ---

type fakeIntents struct {
	mu sync.Mutex
	m  map[string]models.PaymentIntent
}

func newFakeIntents() *fakeIntents {
	return &fakeIntents{m: make(map[string]models.PaymentIntent)}
}

func (f *fakeIntents) Create(_ context.Context, in models.PaymentIntent) (models.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.m[in.OrderID]; ok {
		return models.PaymentIntent{}, sentinel.ErrDuplicate
	}
	in.ID = primitive.NewObjectID()
	in.Status = models.IntentPending
	in.CreatedAt = time.Now().UTC()
	f.m[in.OrderID] = in
	return in, nil
}

func (f *fakeIntents) GetByOrderID(_ context.Context, orderID string) (*models.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in, ok := f.m[orderID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &in, nil
}

func (f *fakeIntents) LatestPendingByEmail(_ context.Context, email string, now time.Time) (*models.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *models.PaymentIntent
	for _, in := range f.m {
		if in.Email != normalize.Email(email) || in.Status != models.IntentPending || in.ExpiresAt == nil || !in.ExpiresAt.After(now) {
			continue
		}
		if best == nil || in.CreatedAt.After(best.CreatedAt) {
			cp := in
			best = &cp
		}
	}
	if best == nil {
		return nil, sentinel.ErrNotFound
	}
	return best, nil
}

func (f *fakeIntents) Consume(_ context.Context, orderID string, userID primitive.ObjectID, now time.Time) (*models.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in, ok := f.m[orderID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if in.Status == models.IntentConsumed {
		return &in, sentinel.ErrConflict
	}
	if in.ExpiresAt == nil || !in.ExpiresAt.After(now) {
		return nil, sentinel.ErrNotFound
	}
	uid := userID
	at := now
	in.Status = models.IntentConsumed
	in.UserID = &uid
	in.ConsumedAt = &at
	in.ExpiresAt = nil
	f.m[orderID] = in
	return &in, nil
}

func (f *fakeIntents) Release(_ context.Context, orderID string, userID primitive.ObjectID, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	in, ok := f.m[orderID]
	if !ok || in.Status != models.IntentConsumed || in.UserID == nil || *in.UserID != userID {
		return nil
	}
	exp := time.Now().UTC().Add(ttl)
	in.Status = models.IntentPending
	in.UserID = nil
	in.ConsumedAt = nil
	in.ExpiresAt = &exp
	f.m[orderID] = in
	return nil
}

// --- gateway and notifier ---

const testSecret = "test-secret"

type fakeGateway struct {
	mu      sync.Mutex
	n       int
	failErr error
}

func (g *fakeGateway) CreateOrder(_ context.Context, amount int64, currency, receipt string) (gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failErr != nil {
		return gateway.Order{}, g.failErr
	}
	g.n++
	return gateway.Order{ID: fmt.Sprintf("order_%d", g.n), Amount: amount, Currency: currency, Receipt: receipt, Status: "created"}, nil
}

func (g *fakeGateway) Verify(orderID, paymentID, signature string) bool {
	return gateway.VerifySignature(orderID, paymentID, signature, testSecret)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Notify(_ context.Context, ev notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) count(kind notify.Kind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, ev := range n.events {
		if ev.Kind == kind {
			c++
		}
	}
	return c
}

// --- harness ---

type harness struct {
	users       *fakeUsers
	profiles    *fakeProfiles
	communities *fakeCommunities
	fees        *fakeFees
	intents     *fakeIntents
	gateway     *fakeGateway
	notifier    *recordingNotifier
	clock       *clock
	engine      *lifecycle.Engine
}

var t0 = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		users:       newFakeUsers(),
		profiles:    newFakeProfiles(),
		communities: newFakeCommunities(),
		fees:        newFakeFees(),
		intents:     newFakeIntents(),
		gateway:     &fakeGateway{},
		notifier:    &recordingNotifier{},
		clock:       &clock{t: t0},
	}
	eng, err := lifecycle.New(lifecycle.Deps{
		Users:       h.users,
		Profiles:    h.profiles,
		Communities: h.communities,
		Fees:        h.fees,
		Intents:     h.intents,
		Gateway:     h.gateway,
		Notifier:    h.notifier,
		Schedule:    feeschedule.Default("INR"),
		Log:         zap.NewNop(),
	}, lifecycle.Config{
		SiteName:       "Test Hub",
		ReminderWindow: 30 * 24 * time.Hour,
		IntentTTL:      time.Hour,
		BcryptCost:     bcrypt.MinCost,
		Now:            h.clock.Now,
	})
	require.NoError(t, err)
	h.engine = eng
	return h
}

var seq int

// seedUser stores an inactive user of tier with unique identity fields.
func (h *harness) seedUser(name string, tier models.Tier, referredBy *primitive.ObjectID) models.User {
	seq++
	return h.users.seed(models.User{
		FullName:       name,
		Email:          fmt.Sprintf("%s%d@example.com", name, seq),
		Mobile:         fmt.Sprintf("+9198765%05d", seq),
		Username:       fmt.Sprintf("%s%d", name, seq),
		MembershipTier: tier,
		ReferredBy:     referredBy,
	})
}

// seedCommunity stores a community with founder as core member and links
// the founder to it.
func (h *harness) seedCommunity(name string, founder models.User) models.Community {
	fid := founder.ID
	c := h.communities.seed(models.Community{
		Name:        name,
		FounderID:   &fid,
		CoreMembers: []primitive.ObjectID{fid},
	})
	h.users.update(fid, func(u *models.User) {
		u.CommunityID = &c.ID
		u.CommunityRole = models.RoleCoreMember
	})
	return c
}

// payAll settles every mandatory fee of the user in cash.
func (h *harness) payAll(t *testing.T, u models.User) lifecycle.PaymentOutcome {
	t.Helper()
	sched := feeschedule.Default("INR")
	var out lifecycle.PaymentOutcome
	for _, ft := range sched.MandatoryFeeTypes(u.MembershipTier) {
		amount, _ := sched.Amount(u.MembershipTier, ft)
		var err error
		out, err = h.engine.RecordManualPayment(context.Background(), lifecycle.ManualPayment{
			UserID:  u.ID,
			FeeType: ft,
			Amount:  amount,
			Method:  models.MethodCash,
		})
		if err != nil && lifecycle.CodeOf(err) != lifecycle.CodeAlreadyCompleted {
			require.NoError(t, err)
		}
	}
	return out
}

func (h *harness) user(t *testing.T, id primitive.ObjectID) models.User {
	t.Helper()
	u, err := h.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return *u
}
