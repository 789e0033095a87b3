// Package lifecycle implements the membership and payment lifecycle:
// registration, fee settlement, referral-based community assignment,
// activation and the renewal sweep.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/memberhub/internal/app/system/auditlog"
	"github.com/dalemusser/memberhub/internal/app/system/metrics"
	"github.com/dalemusser/memberhub/internal/app/system/sentinel"
	"github.com/dalemusser/memberhub/internal/domain/feeschedule"
	"github.com/dalemusser/memberhub/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Deps are the engine's collaborators. Audit and Metrics may be nil.
type Deps struct {
	Users       UserStore
	Profiles    ProfileStore
	Communities CommunityStore
	Fees        FeeStore
	Intents     IntentStore
	Gateway     Gateway
	Notifier    Notifier
	Schedule    *feeschedule.Schedule
	Audit       *auditlog.Logger
	Metrics     *metrics.Metrics
	Log         *zap.Logger
}

// Config tunes the engine.
type Config struct {
	SiteName       string
	ReminderWindow time.Duration // default 30 days
	IntentTTL      time.Duration // default 24 hours
	BcryptCost     int           // default bcrypt.DefaultCost
	Now            func() time.Time
}

// Engine ties the lifecycle components together and is what the HTTP
// features and background jobs call.
type Engine struct {
	users    UserStore
	fees     FeeStore
	intents  IntentStore
	gateway  Gateway
	schedule *feeschedule.Schedule
	log      *zap.Logger
	now      func() time.Time

	Ledger    *Ledger
	Resolver  *Resolver
	Assigner  *Assigner
	Activator *Activator
	Registrar *Registrar
	Sweeper   *Sweeper
}

var errMissingDep = errors.New("lifecycle: missing dependency")

// New builds an Engine.
func New(d Deps, cfg Config) (*Engine, error) {
	if d.Users == nil || d.Profiles == nil || d.Communities == nil || d.Fees == nil ||
		d.Intents == nil || d.Gateway == nil || d.Notifier == nil || d.Schedule == nil {
		return nil, errMissingDep
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if cfg.ReminderWindow <= 0 {
		cfg.ReminderWindow = 30 * 24 * time.Hour
	}
	if cfg.IntentTTL <= 0 {
		cfg.IntentTTL = 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SiteName == "" {
		cfg.SiteName = "MemberHub"
	}

	n := &notices{siteName: cfg.SiteName, schedule: d.Schedule}
	ledger := &Ledger{
		fees: d.Fees, schedule: d.Schedule, gateway: d.Gateway,
		audit: d.Audit, metrics: d.Metrics, log: d.Log.Named("ledger"), now: cfg.Now,
	}
	resolver := &Resolver{users: d.Users, communities: d.Communities}
	assigner := &Assigner{
		users: d.Users, communities: d.Communities, resolver: resolver,
		audit: d.Audit, log: d.Log.Named("assign"),
	}
	activator := &Activator{
		users: d.Users, ledger: ledger, assigner: assigner, notifier: d.Notifier, notices: n,
		audit: d.Audit, metrics: d.Metrics, log: d.Log.Named("activate"), now: cfg.Now,
		bcryptCost: cfg.BcryptCost,
	}

	return &Engine{
		users:    d.Users,
		fees:     d.Fees,
		intents:  d.Intents,
		gateway:  d.Gateway,
		schedule: d.Schedule,
		log:      d.Log,
		now:      cfg.Now,

		Ledger:    ledger,
		Resolver:  resolver,
		Assigner:  assigner,
		Activator: activator,
		Registrar: &Registrar{
			users: d.Users, profiles: d.Profiles, fees: d.Fees, intents: d.Intents,
			gateway: d.Gateway, ledger: ledger, resolver: resolver, activator: activator,
			schedule: d.Schedule, audit: d.Audit, metrics: d.Metrics,
			log: d.Log.Named("register"), now: cfg.Now, intentTTL: cfg.IntentTTL,
		},
		Sweeper: &Sweeper{
			users: d.Users, ledger: ledger, fees: d.Fees, schedule: d.Schedule,
			notifier: d.Notifier, notices: n, audit: d.Audit, metrics: d.Metrics,
			log: d.Log.Named("sweep"), now: cfg.Now, window: cfg.ReminderWindow,
		},
	}, nil
}

// Register provisions a new member. See Registrar.Register.
func (e *Engine) Register(ctx context.Context, req RegistrationRequest) (RegistrationResult, error) {
	return e.Registrar.Register(ctx, req)
}

// Sweep runs one renewal sweep. See Sweeper.Sweep.
func (e *Engine) Sweep(ctx context.Context) (SweepReport, error) {
	return e.Sweeper.Sweep(ctx)
}

// FeeDue is an open fee the member can pay.
type FeeDue struct {
	FeeRecordID string         `json:"fee_record_id"`
	FeeType     models.FeeType `json:"fee_type"`
	Amount      int64          `json:"amount"`
	Currency    string         `json:"currency"`
	OrderID     string         `json:"order_id,omitempty"`
}

func feeDue(rec models.FeeRecord) FeeDue {
	return FeeDue{
		FeeRecordID: rec.ID.Hex(),
		FeeType:     rec.FeeType,
		Amount:      rec.Amount,
		Currency:    rec.Currency,
		OrderID:     rec.GatewayOrderID,
	}
}

// CreateOrder opens (or reuses) the user's record for feeType and attaches
// a gateway order to it. An order already attached is returned unchanged.
func (e *Engine) CreateOrder(ctx context.Context, userID primitive.ObjectID, feeType models.FeeType) (FeeDue, error) {
	u, err := e.user(ctx, userID)
	if err != nil {
		return FeeDue{}, err
	}
	rec, err := e.Ledger.OpenFee(ctx, u.ID, u.MembershipTier, feeType)
	if err != nil {
		return FeeDue{}, err
	}
	if rec.IsCompleted() {
		return FeeDue{}, alreadyCompleted(rec)
	}
	if rec.Amount == 0 {
		return FeeDue{}, newError(CodeValidation, "nothing to pay for this fee; use renewals").withFields("fee_type")
	}
	if rec.GatewayOrderID != "" {
		return feeDue(rec), nil
	}

	order, err := e.gateway.CreateOrder(ctx, rec.Amount, rec.Currency, rec.ID.Hex())
	if err != nil {
		return FeeDue{}, &Error{Code: CodeGatewayUnavailable, Message: "could not create a payment order", Err: err}
	}
	ok, err := e.fees.SetOrder(ctx, rec.ID, order.ID)
	if err != nil {
		return FeeDue{}, fmt.Errorf("attach order: %w", err)
	}
	if !ok {
		cur, err := e.fees.GetByID(ctx, rec.ID)
		if err == nil && cur.IsCompleted() {
			return FeeDue{}, alreadyCompleted(*cur)
		}
		return FeeDue{}, fmt.Errorf("attach order: record %s is no longer pending", rec.ID.Hex())
	}
	rec.GatewayOrderID = order.ID
	return feeDue(rec), nil
}

// PaymentConfirmation is the gateway callback for a member's fee.
type PaymentConfirmation struct {
	UserID    primitive.ObjectID
	FeeType   models.FeeType
	OrderID   string
	PaymentID string
	Signature string
}

// PaymentOutcome reports a settled fee and the activation it triggered.
type PaymentOutcome struct {
	Fee        models.FeeRecord `json:"fee"`
	Activation ActivationResult `json:"activation"`
}

// ConfirmPayment settles a fee from a gateway callback and re-evaluates
// activation.
func (e *Engine) ConfirmPayment(ctx context.Context, c PaymentConfirmation) (PaymentOutcome, error) {
	rec, err := e.fees.GetByUserAndType(ctx, c.UserID, c.FeeType)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return PaymentOutcome{}, newError(CodeNotFound, "no "+string(c.FeeType)+" fee for this user")
		}
		return PaymentOutcome{}, err
	}
	fee, err := e.Ledger.Complete(ctx, GatewayCompletion{
		FeeRecordID: rec.ID,
		OrderID:     c.OrderID,
		PaymentID:   c.PaymentID,
		Signature:   c.Signature,
	})
	if err != nil {
		return PaymentOutcome{}, err
	}
	return e.afterPayment(ctx, fee)
}

// ManualPayment is a fee settled outside the gateway.
type ManualPayment struct {
	UserID      primitive.ObjectID
	FeeType     models.FeeType
	Amount      int64
	Method      models.PaymentMethod
	ReferenceID string
}

// RecordManualPayment settles a fee paid by cash, check or manual
// adjustment. The amount must match the schedule.
func (e *Engine) RecordManualPayment(ctx context.Context, p ManualPayment) (PaymentOutcome, error) {
	u, err := e.user(ctx, p.UserID)
	if err != nil {
		return PaymentOutcome{}, err
	}
	expected, ok := e.schedule.Amount(u.MembershipTier, p.FeeType)
	if !ok {
		return PaymentOutcome{}, newError(CodeInvalidFeeType,
			fmt.Sprintf("%s is not offered to the %s tier", p.FeeType, u.MembershipTier)).withFields("fee_type")
	}
	if p.Amount != expected {
		return PaymentOutcome{}, newError(CodeAmountMismatch, "amount does not match the fee schedule").
			withFields("amount").with("expected", expected)
	}
	if p.ReferenceID == "" {
		p.ReferenceID = "manual_" + uuid.NewString()
	}

	rec, err := e.Ledger.OpenFee(ctx, u.ID, u.MembershipTier, p.FeeType)
	if err != nil {
		return PaymentOutcome{}, err
	}
	fee, err := e.Ledger.CompleteManual(ctx, rec.ID, p.Method, p.ReferenceID)
	if err != nil {
		return PaymentOutcome{}, err
	}
	return e.afterPayment(ctx, fee)
}

// afterPayment runs activation. A blocked assignment does not undo the
// payment; the outcome reports it instead.
func (e *Engine) afterPayment(ctx context.Context, fee models.FeeRecord) (PaymentOutcome, error) {
	act, err := e.Activator.Activate(ctx, fee.UserID)
	if err != nil && !errors.Is(err, ErrReferralNotCoreConnected) {
		e.log.Warn("activation after payment failed",
			zap.String("user_id", fee.UserID.Hex()),
			zap.Error(err))
		return PaymentOutcome{Fee: fee}, nil
	}
	return PaymentOutcome{Fee: fee, Activation: act}, nil
}

// RenewalStatus lists what an expired member must pay to renew.
type RenewalStatus struct {
	Activation ActivationResult `json:"activation"`
	Due        []FeeDue         `json:"due,omitempty"`
}

// Renew prepares a renewal: every mandatory fee is opened, zero-amount fees
// are settled, and activation is re-evaluated. Remaining fees are returned
// for payment.
func (e *Engine) Renew(ctx context.Context, userID primitive.ObjectID) (RenewalStatus, error) {
	u, err := e.user(ctx, userID)
	if err != nil {
		return RenewalStatus{}, err
	}
	if u.IsActive {
		return RenewalStatus{Activation: ActivationResult{State: StateAlreadyActive, RenewalDate: u.RenewalDate}}, nil
	}

	var due []FeeDue
	for _, ft := range e.schedule.MandatoryFeeTypes(u.MembershipTier) {
		rec, err := e.Ledger.OpenFee(ctx, u.ID, u.MembershipTier, ft)
		if err != nil {
			return RenewalStatus{}, err
		}
		if rec.IsCompleted() {
			continue
		}
		if rec.Amount == 0 {
			if _, err := e.Ledger.CompleteManual(ctx, rec.ID, models.MethodManual, "no_charge"); err != nil && !errors.Is(err, ErrAlreadyCompleted) {
				return RenewalStatus{}, err
			}
			continue
		}
		due = append(due, feeDue(rec))
	}

	act, err := e.Activator.Activate(ctx, u.ID)
	if err != nil && !errors.Is(err, ErrReferralNotCoreConnected) {
		return RenewalStatus{}, err
	}
	return RenewalStatus{Activation: act, Due: due}, nil
}

// Reconcile re-runs assignment and activation for a user. It repairs users
// left inactive by an interrupted flow and active users missing from their
// community's member list.
func (e *Engine) Reconcile(ctx context.Context, userID primitive.ObjectID) (ActivationResult, error) {
	u, err := e.user(ctx, userID)
	if err != nil {
		return ActivationResult{}, err
	}
	if !u.IsActive {
		return e.Activator.Activate(ctx, u.ID)
	}

	asg, err := e.Assigner.Assign(ctx, u.ID)
	if err != nil && !errors.Is(err, ErrAlreadyAssigned) {
		return ActivationResult{}, err
	}
	res := ActivationResult{State: StateAlreadyActive, RenewalDate: u.RenewalDate}
	if !asg.Skipped {
		res.Assignment = &asg
	}
	return res, nil
}

// MemberStatus is the operator view of a member's position.
type MemberStatus struct {
	User      *models.User        `json:"user,omitempty"`
	Fees      *FeeSummary         `json:"fees,omitempty"`
	Payment   *PaymentRequired    `json:"payment,omitempty"`
	Awaiting  bool                `json:"awaiting_payment,omitempty"`
	Community *primitive.ObjectID `json:"community_id,omitempty"`
}

// PublicStatus is what an unauthenticated status lookup returns. It carries
// no identity or contact fields.
type PublicStatus struct {
	MembershipTier  models.Tier       `json:"membership_tier,omitempty"`
	IsActive        bool              `json:"is_active"`
	RenewalDate     *time.Time        `json:"renewal_date,omitempty"`
	Outstanding     []models.FeeType  `json:"outstanding,omitempty"`
	TotalAmount     int64             `json:"total_amount"`
	CompletedAmount int64             `json:"completed_amount"`
	PendingAmount   int64             `json:"pending_amount"`
	Currency        string            `json:"currency,omitempty"`
	IsFullyPaid     bool              `json:"is_fully_paid"`
	PendingOrders   []PaymentRequired `json:"pending_orders,omitempty"`
	Awaiting        bool              `json:"awaiting_payment,omitempty"`
	Payment         *PaymentRequired  `json:"payment,omitempty"`
}

func publicStatus(u *models.User, sum FeeSummary) PublicStatus {
	st := PublicStatus{
		MembershipTier:  u.MembershipTier,
		IsActive:        u.IsActive,
		RenewalDate:     u.RenewalDate,
		Outstanding:     sum.Outstanding,
		TotalAmount:     sum.TotalAmount,
		CompletedAmount: sum.CompletedAmount,
		PendingAmount:   sum.PendingAmount,
		Currency:        sum.Currency,
		IsFullyPaid:     sum.IsFullyPaid,
	}
	for _, rec := range sum.Records {
		if rec.Status != models.FeePending || rec.GatewayOrderID == "" {
			continue
		}
		st.PendingOrders = append(st.PendingOrders, PaymentRequired{
			FeeType:  rec.FeeType,
			Amount:   rec.Amount,
			Currency: rec.Currency,
			OrderID:  rec.GatewayOrderID,
		})
	}
	return st
}

// Status looks a member up by any identity value. An applicant who has an
// open pay-first order but no account yet is reported as awaiting payment.
func (e *Engine) Status(ctx context.Context, email, mobile, username string) (PublicStatus, error) {
	u, err := e.users.GetByIdentity(ctx, email, mobile, username)
	if err == nil {
		sum, err := e.Ledger.Summary(ctx, u.ID, u.MembershipTier)
		if err != nil {
			return PublicStatus{}, err
		}
		return publicStatus(u, sum), nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return PublicStatus{}, err
	}

	if email != "" {
		in, err := e.intents.LatestPendingByEmail(ctx, email, e.now().UTC())
		if err == nil {
			return PublicStatus{Awaiting: true, Payment: &PaymentRequired{
				FeeType:   in.FeeType,
				Amount:    in.Amount,
				Currency:  in.Currency,
				OrderID:   in.OrderID,
				ExpiresAt: in.ExpiresAt,
			}}, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return PublicStatus{}, err
		}
	}
	return PublicStatus{}, newError(CodeNotFound, "no member or pending registration found")
}

// Member returns a user's record and fee position by id.
func (e *Engine) Member(ctx context.Context, userID primitive.ObjectID) (MemberStatus, error) {
	u, err := e.user(ctx, userID)
	if err != nil {
		return MemberStatus{}, err
	}
	sum, err := e.Ledger.Summary(ctx, u.ID, u.MembershipTier)
	if err != nil {
		return MemberStatus{}, err
	}
	return MemberStatus{User: u, Fees: &sum, Community: u.CommunityID}, nil
}

// FindMember looks a user up by any identity value.
func (e *Engine) FindMember(ctx context.Context, email, mobile, username string) (*models.User, error) {
	u, err := e.users.GetByIdentity(ctx, email, mobile, username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, &Error{Code: CodeNotFound, Message: "no member matches that identity", Err: err}
		}
		return nil, err
	}
	return u, nil
}

func (e *Engine) user(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	u, err := e.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, &Error{Code: CodeNotFound, Message: "user not found", Err: err}
		}
		return nil, err
	}
	return u, nil
}
