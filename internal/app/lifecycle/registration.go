// internal/app/lifecycle/registration.go
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/memberhub/internal/app/system/auditlog"
	"github.com/dalemusser/memberhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/memberhub/internal/app/system/inputval"
	"github.com/dalemusser/memberhub/internal/app/system/metrics"
	"github.com/dalemusser/memberhub/internal/app/system/normalize"
	"github.com/dalemusser/memberhub/internal/app/system/sentinel"
	"github.com/dalemusser/memberhub/internal/domain/feeschedule"
	"github.com/dalemusser/memberhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RegistrationRequest is the applicant's submission. The gateway fields are
// set only when re-submitting after paying the registration fee.
type RegistrationRequest struct {
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	Mobile         string `json:"mobile"`
	Username       string `json:"username"`
	Region         string `json:"region"`
	Company        string `json:"company"`
	MembershipTier string `json:"membership_tier"`
	// ReferredBy is the referrer's user id or username.
	ReferredBy string `json:"referred_by"`

	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	GatewaySignature string `json:"gateway_signature"`
}

func (r RegistrationRequest) hasPayment() bool {
	return r.GatewayOrderID != "" && r.GatewayPaymentID != ""
}

// RegistrationStatus is the outcome of a registration call.
type RegistrationStatus string

const (
	StatusProvisioned     RegistrationStatus = "provisioned"
	StatusPaymentRequired RegistrationStatus = "payment_required"
)

// PaymentRequired tells the applicant what to pay before re-submitting.
// OrderID is empty when the gateway could not be reached; the applicant
// may simply submit again.
type PaymentRequired struct {
	FeeType   models.FeeType `json:"fee_type"`
	Amount    int64          `json:"amount"`
	Currency  string         `json:"currency"`
	OrderID   string         `json:"order_id,omitempty"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
}

// ReferralCheck reports whether a mid-tier referral reaches a community.
type ReferralCheck struct {
	Connected   bool                `json:"connected"`
	CommunityID *primitive.ObjectID `json:"community_id,omitempty"`
	Code        Code                `json:"code,omitempty"`
}

// RegistrationResult is returned by Register.
type RegistrationResult struct {
	Status     RegistrationStatus `json:"status"`
	User       *models.User       `json:"user,omitempty"`
	Payment    *PaymentRequired   `json:"payment,omitempty"`
	Activation *ActivationResult  `json:"activation,omitempty"`
	Referral   *ReferralCheck     `json:"referral,omitempty"`
}

// Registrar provisions new members.
type Registrar struct {
	users     UserStore
	profiles  ProfileStore
	fees      FeeStore
	intents   IntentStore
	gateway   Gateway
	ledger    *Ledger
	resolver  *Resolver
	activator *Activator
	schedule  *feeschedule.Schedule
	audit     *auditlog.Logger
	metrics   *metrics.Metrics
	log       *zap.Logger
	now       func() time.Time
	intentTTL time.Duration
}

// applicant is a validated, normalized request.
type applicant struct {
	fullName   string
	email      string
	mobile     string
	username   string
	region     string
	company    string
	tier       models.Tier
	referredBy *primitive.ObjectID
}

// Register validates the request and either provisions the user or, when a
// registration fee is due and no payment accompanies the request, returns
// the payment the applicant must make first.
func (r *Registrar) Register(ctx context.Context, req RegistrationRequest) (RegistrationResult, error) {
	app, err := r.validate(ctx, req)
	if err != nil {
		r.metrics.IncRegistration("invalid")
		return RegistrationResult{}, err
	}

	fields, err := r.duplicates(ctx, app.email, app.mobile, app.username)
	if err != nil {
		return RegistrationResult{}, err
	}
	if len(fields) > 0 {
		r.metrics.IncRegistration("duplicate")
		return RegistrationResult{}, duplicateIdentity(fields)
	}

	amount, _ := r.schedule.Amount(app.tier, models.FeeRegistration)
	if amount > 0 && !req.hasPayment() {
		pay, err := r.paymentRequired(ctx, app, amount)
		if err != nil {
			return RegistrationResult{}, err
		}
		r.metrics.IncRegistration("payment_required")
		return RegistrationResult{Status: StatusPaymentRequired, Payment: pay}, nil
	}
	if amount > 0 {
		if err := r.checkPayment(ctx, app, amount, req); err != nil {
			return RegistrationResult{}, err
		}
	}

	u, err := r.provision(ctx, app, amount, req)
	if err != nil {
		return RegistrationResult{}, err
	}
	r.metrics.IncRegistration("provisioned")
	r.audit.UserRegistered(ctx, u)

	res := RegistrationResult{Status: StatusProvisioned}
	if u.MembershipTier.IsMidTier() {
		res.Referral = r.checkReferral(ctx, u)
	}

	act, err := r.activator.Activate(ctx, u.ID)
	switch {
	case err == nil:
		res.Activation = &act
	case errors.Is(err, ErrReferralNotCoreConnected):
		res.Activation = &act
	default:
		// The user exists; activation is retried on the next payment or reconcile.
		r.log.Warn("activation after registration failed",
			zap.String("user_id", u.ID.Hex()),
			zap.Error(err))
	}

	if fresh, err := r.users.GetByID(ctx, u.ID); err == nil {
		u = *fresh
	}
	res.User = &u
	return res, nil
}

func (r *Registrar) validate(ctx context.Context, req RegistrationRequest) (applicant, error) {
	app := applicant{
		fullName: normalize.Name(htmlsanitize.PlainText(req.FullName)),
		email:    normalize.Email(req.Email),
		mobile:   normalize.Mobile(req.Mobile),
		username: normalize.Username(req.Username),
		region:   normalize.Region(htmlsanitize.PlainText(req.Region)),
		company:  normalize.Name(htmlsanitize.PlainText(req.Company)),
	}

	var bad []string
	if app.fullName == "" || len(app.fullName) > 200 {
		bad = append(bad, "full_name")
	}
	if !inputval.IsValidEmail(app.email) {
		bad = append(bad, "email")
	}
	if !inputval.IsValidMobile(app.mobile) {
		bad = append(bad, "mobile")
	}
	if !inputval.IsValidUsername(app.username) {
		bad = append(bad, "username")
	}
	if req.hasPayment() && req.GatewaySignature == "" {
		bad = append(bad, "gateway_signature")
	}
	if len(bad) > 0 {
		return applicant{}, newError(CodeValidation, "one or more fields are missing or malformed").withFields(bad...)
	}

	tier, ok := models.ParseTier(req.MembershipTier)
	if !ok {
		return applicant{}, newError(CodeInvalidTier, "unknown membership tier").withFields("membership_tier")
	}
	app.tier = tier

	if ref := normalize.QueryParam(req.ReferredBy); ref != "" {
		id, err := r.lookupReferrer(ctx, ref)
		if err != nil {
			return applicant{}, err
		}
		app.referredBy = &id
	}
	return app, nil
}

func (r *Registrar) lookupReferrer(ctx context.Context, ref string) (primitive.ObjectID, error) {
	var (
		u   *models.User
		err error
	)
	if id, perr := primitive.ObjectIDFromHex(ref); perr == nil {
		u, err = r.users.GetByID(ctx, id)
	} else {
		u, err = r.users.GetByIdentity(ctx, "", "", ref)
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return primitive.NilObjectID, newError(CodeUnknownReferrer, "referrer does not exist").withFields("referred_by")
		}
		return primitive.NilObjectID, err
	}
	return u.ID, nil
}

// duplicates checks every identity field concurrently and reports all
// fields already in use.
func (r *Registrar) duplicates(ctx context.Context, email, mobile, username string) ([]string, error) {
	var emailUser, emailProfile, mobileTaken, usernameTaken bool

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		emailUser, err = r.users.FieldTaken(gctx, "email", email)
		return err
	})
	g.Go(func() (err error) {
		emailProfile, err = r.profiles.EmailTaken(gctx, email)
		return err
	})
	g.Go(func() (err error) {
		mobileTaken, err = r.users.FieldTaken(gctx, "mobile", mobile)
		return err
	})
	g.Go(func() (err error) {
		usernameTaken, err = r.users.FieldTaken(gctx, "username", username)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("check duplicates: %w", err)
	}

	var fields []string
	if emailUser || emailProfile {
		fields = append(fields, "email")
	}
	if mobileTaken {
		fields = append(fields, "mobile")
	}
	if usernameTaken {
		fields = append(fields, "username")
	}
	return fields, nil
}

// paymentRequired returns the order the applicant should pay. A still-valid
// intent for the same registration is reused.
func (r *Registrar) paymentRequired(ctx context.Context, app applicant, amount int64) (*PaymentRequired, error) {
	now := r.now().UTC()
	currency := r.schedule.Currency()

	if in, err := r.intents.LatestPendingByEmail(ctx, app.email, now); err == nil {
		if in.Username == app.username && in.MembershipTier == app.tier && in.Amount == amount {
			return &PaymentRequired{
				FeeType:   models.FeeRegistration,
				Amount:    in.Amount,
				Currency:  in.Currency,
				OrderID:   in.OrderID,
				ExpiresAt: in.ExpiresAt,
			}, nil
		}
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("find pending intent: %w", err)
	}

	pay := &PaymentRequired{FeeType: models.FeeRegistration, Amount: amount, Currency: currency}

	order, err := r.gateway.CreateOrder(ctx, amount, currency, "reg_"+app.username)
	if err != nil {
		r.log.Warn("gateway order creation failed; returning amount only",
			zap.String("email", app.email),
			zap.Error(err))
		return pay, nil
	}

	expires := now.Add(r.intentTTL)
	in, err := r.intents.Create(ctx, models.PaymentIntent{
		OrderID:        order.ID,
		Email:          app.email,
		Mobile:         app.mobile,
		Username:       app.username,
		MembershipTier: app.tier,
		FeeType:        models.FeeRegistration,
		Amount:         amount,
		Currency:       currency,
		ExpiresAt:      &expires,
	})
	if err != nil {
		return nil, fmt.Errorf("store payment intent: %w", err)
	}
	r.audit.IntentOpened(ctx, in)

	pay.OrderID = in.OrderID
	pay.ExpiresAt = in.ExpiresAt
	return pay, nil
}

// checkPayment verifies a pay-first re-submission against its intent
// without consuming it.
func (r *Registrar) checkPayment(ctx context.Context, app applicant, amount int64, req RegistrationRequest) error {
	if !r.gateway.Verify(req.GatewayOrderID, req.GatewayPaymentID, req.GatewaySignature) {
		r.metrics.IncPaymentRejected("signature")
		r.audit.SignatureInvalid(ctx, nil, req.GatewayOrderID, req.GatewayPaymentID, "registration signature mismatch")
		r.metrics.IncRegistration("invalid")
		return newError(CodeSignatureInvalid, "payment signature does not verify")
	}

	in, err := r.intents.GetByOrderID(ctx, req.GatewayOrderID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return newError(CodeNotFound, "payment order not found or expired").withFields("gateway_order_id")
		}
		return err
	}
	if in.Status == models.IntentConsumed {
		return newError(CodePaymentReused, "payment has already been used for a registration")
	}
	if in.Email != app.email || in.Username != app.username || in.MembershipTier != app.tier {
		r.metrics.IncPaymentRejected("order_mismatch")
		return newError(CodeOrderMismatch, "order was issued for a different registration").withFields("gateway_order_id")
	}
	if in.Amount != amount {
		return newError(CodeAmountMismatch, "order amount does not match the registration fee").
			with("expected", amount).with("order_amount", in.Amount)
	}
	return nil
}

// provision writes profile, user and fee records. Anything written is
// removed again if a later step fails, and a consumed payment intent is
// released so the applicant can retry with the same payment.
func (r *Registrar) provision(ctx context.Context, app applicant, amount int64, req RegistrationRequest) (models.User, error) {
	userID := primitive.NewObjectID()
	now := r.now().UTC()
	undo := &rollback{r: r, userID: userID}

	if amount > 0 {
		if _, err := r.intents.Consume(ctx, req.GatewayOrderID, userID, now); err != nil {
			switch {
			case errors.Is(err, sentinel.ErrConflict):
				return models.User{}, newError(CodePaymentReused, "payment has already been used for a registration")
			case errors.Is(err, sentinel.ErrNotFound):
				return models.User{}, newError(CodeNotFound, "payment order not found or expired").withFields("gateway_order_id")
			}
			return models.User{}, fmt.Errorf("consume payment intent: %w", err)
		}
		undo.orderID = req.GatewayOrderID
	}

	if _, err := r.profiles.Create(ctx, models.Profile{
		UserID:   userID,
		Email:    app.email,
		FullName: app.fullName,
		Mobile:   app.mobile,
		Region:   app.region,
		Company:  app.company,
	}); err != nil {
		undo.run(ctx, "create profile")
		return models.User{}, r.provisionError(ctx, app, err)
	}
	undo.profile = true

	u, err := r.users.Create(ctx, models.User{
		ID:             userID,
		FullName:       app.fullName,
		Email:          app.email,
		Mobile:         app.mobile,
		Username:       app.username,
		Region:         app.region,
		MembershipTier: app.tier,
		ReferredBy:     app.referredBy,
	})
	if err != nil {
		undo.run(ctx, "create user")
		return models.User{}, r.provisionError(ctx, app, err)
	}
	undo.user = true

	var regFee models.FeeRecord
	for _, ft := range r.schedule.MandatoryFeeTypes(app.tier) {
		rec, err := r.ledger.OpenFee(ctx, userID, app.tier, ft)
		if err != nil {
			undo.run(ctx, "open "+string(ft)+" fee")
			return models.User{}, err
		}
		if ft == models.FeeRegistration {
			regFee = rec
		}
	}

	if amount > 0 {
		_, err = r.ledger.completeVerified(ctx, regFee, req.GatewayOrderID, req.GatewayPaymentID, req.GatewaySignature)
	} else {
		_, err = r.ledger.CompleteManual(ctx, regFee.ID, models.MethodManual, "no_charge")
	}
	if err != nil {
		undo.run(ctx, "complete registration fee")
		return models.User{}, err
	}
	return u, nil
}

// provisionError maps a storage failure during provisioning. A unique-index
// violation means a concurrent registration took an identity field.
func (r *Registrar) provisionError(ctx context.Context, app applicant, err error) error {
	if !errors.Is(err, sentinel.ErrDuplicate) {
		r.metrics.IncRegistration("rolled_back")
		return err
	}
	r.metrics.IncRegistration("duplicate")
	fields, derr := r.duplicates(ctx, app.email, app.mobile, app.username)
	if derr != nil {
		r.log.Warn("duplicate recheck failed", zap.Error(derr))
	}
	return duplicateIdentity(fields)
}

// checkReferral reports, without writing anything, whether the user's
// referral chain reaches a community.
func (r *Registrar) checkReferral(ctx context.Context, u models.User) *ReferralCheck {
	res, err := r.resolver.Resolve(ctx, u.ID, u.ReferredBy)
	if err != nil {
		r.log.Warn("referral check failed", zap.String("user_id", u.ID.Hex()), zap.Error(err))
		return nil
	}
	if !res.IsConnectedToCore {
		return &ReferralCheck{Code: CodeReferralNotCoreConnected}
	}
	return &ReferralCheck{Connected: true, CommunityID: &res.Community.ID}
}

// rollback undoes a partial registration in reverse order. Steps that fail
// are logged with the ids left behind so an operator can remove them.
type rollback struct {
	r       *Registrar
	userID  primitive.ObjectID
	orderID string
	profile bool
	user    bool
}

func (u *rollback) run(ctx context.Context, cause string) {
	ctx = context.WithoutCancel(ctx)
	log := u.r.log.With(zap.String("user_id", u.userID.Hex()), zap.String("cause", cause))
	orphaned := false

	if u.user {
		if _, err := u.r.fees.DeleteByUser(ctx, u.userID); err != nil {
			orphaned = true
			log.Error("rollback: fee records left behind", zap.Error(err))
		}
		if err := u.r.users.Delete(ctx, u.userID); err != nil {
			orphaned = true
			log.Error("rollback: user left behind", zap.Error(err))
		}
	}
	if u.profile {
		if err := u.r.profiles.DeleteByUser(ctx, u.userID); err != nil {
			orphaned = true
			log.Error("rollback: profile left behind", zap.Error(err))
		}
	}
	if u.orderID != "" {
		if err := u.r.intents.Release(ctx, u.orderID, u.userID, u.r.intentTTL); err != nil {
			orphaned = true
			log.Error("rollback: payment intent still bound", zap.String("order_id", u.orderID), zap.Error(err))
		}
	}

	log.Warn("registration rolled back", zap.Bool("orphaned", orphaned))
	u.r.audit.RegistrationRolledBack(ctx, u.userID, cause, orphaned)
}

func duplicateIdentity(fields []string) *Error {
	return newError(CodeDuplicateIdentity, "already registered").withFields(fields...)
}
