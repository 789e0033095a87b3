// internal/app/lifecycle/ledger.go
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	feestore "github.com/dalemusser/memberhub/internal/app/store/fees"
	"github.com/dalemusser/memberhub/internal/app/system/auditlog"
	"github.com/dalemusser/memberhub/internal/app/system/metrics"
	"github.com/dalemusser/memberhub/internal/app/system/sentinel"
	"github.com/dalemusser/memberhub/internal/domain/feeschedule"
	"github.com/dalemusser/memberhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Ledger owns fee records. A record moves pending -> completed exactly once
// per period; only the renewal sweep moves it back.
type Ledger struct {
	fees     FeeStore
	schedule *feeschedule.Schedule
	gateway  Gateway
	audit    *auditlog.Logger
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time
}

// GatewayCompletion is a payment callback from the gateway.
type GatewayCompletion struct {
	FeeRecordID primitive.ObjectID
	OrderID     string
	PaymentID   string
	Signature   string
}

// FeeSummary reports a user's fee position against the schedule. Amounts
// are minor units summed over every record the user has.
type FeeSummary struct {
	Records         []models.FeeRecord `json:"records"`
	Mandatory       []models.FeeType   `json:"mandatory"`
	Outstanding     []models.FeeType   `json:"outstanding"`
	TotalAmount     int64              `json:"total_amount"`
	CompletedAmount int64              `json:"completed_amount"`
	PendingAmount   int64              `json:"pending_amount"`
	Currency        string             `json:"currency"`
	IsFullyPaid     bool               `json:"is_fully_paid"`
}

// OpenFee returns the user's record for feeType, creating a pending one
// priced from the schedule if none exists.
func (l *Ledger) OpenFee(ctx context.Context, userID primitive.ObjectID, tier models.Tier, feeType models.FeeType) (models.FeeRecord, error) {
	amount, ok := l.schedule.Amount(tier, feeType)
	if !ok {
		return models.FeeRecord{}, newError(CodeInvalidFeeType,
			fmt.Sprintf("%s is not offered to the %s tier", feeType, tier)).withFields("fee_type")
	}
	rec, created, err := l.fees.Open(ctx, models.FeeRecord{
		UserID:         userID,
		MembershipTier: tier,
		FeeType:        feeType,
		Amount:         amount,
		Currency:       l.schedule.Currency(),
	})
	if err != nil {
		return models.FeeRecord{}, fmt.Errorf("open %s fee: %w", feeType, err)
	}
	if created {
		l.audit.FeeOpened(ctx, rec)
	}
	return rec, nil
}

// Complete settles a fee from a gateway callback. The signature is checked
// before anything is read or written; a bad signature leaves the record
// untouched. The callback must carry the order CreateOrder attached to this
// record and a payment id that never settled a fee before.
func (l *Ledger) Complete(ctx context.Context, c GatewayCompletion) (models.FeeRecord, error) {
	if !l.gateway.Verify(c.OrderID, c.PaymentID, c.Signature) {
		l.metrics.IncPaymentRejected("signature")
		l.audit.SignatureInvalid(ctx, nil, c.OrderID, c.PaymentID, "signature mismatch")
		return models.FeeRecord{}, newError(CodeSignatureInvalid, "payment signature does not verify")
	}

	rec, err := l.fees.GetByID(ctx, c.FeeRecordID)
	if err != nil {
		return models.FeeRecord{}, l.notFound(err, "fee record")
	}
	if rec.IsCompleted() {
		l.metrics.IncPaymentRejected("already_completed")
		return *rec, alreadyCompleted(*rec)
	}
	if rec.GatewayOrderID == "" {
		l.metrics.IncPaymentRejected("order_mismatch")
		l.audit.OrderMismatch(ctx, rec.UserID, "", c.OrderID)
		return models.FeeRecord{}, newError(CodeOrderMismatch, "no payment order was created for this fee").
			withFields("order_id")
	}
	if rec.GatewayOrderID != c.OrderID {
		l.metrics.IncPaymentRejected("order_mismatch")
		l.audit.OrderMismatch(ctx, rec.UserID, rec.GatewayOrderID, c.OrderID)
		return models.FeeRecord{}, newError(CodeOrderMismatch, "order id does not match the fee record").
			withFields("order_id")
	}
	if rec.UsedPayment(c.PaymentID) {
		return models.FeeRecord{}, l.paymentReused(ctx, *rec, c.PaymentID)
	}

	return l.settle(ctx, *rec, feestore.Completion{
		Method:        models.MethodGateway,
		ExpectOrderID: c.OrderID,
		OrderID:       c.OrderID,
		PaymentID:     c.PaymentID,
		Signature:     c.Signature,
	}, c.PaymentID)
}

// CompleteManual settles a fee recorded by an administrator (cash, check or
// manual adjustment). Zero-amount fees are also settled this way.
func (l *Ledger) CompleteManual(ctx context.Context, feeRecordID primitive.ObjectID, method models.PaymentMethod, referenceID string) (models.FeeRecord, error) {
	if method == models.MethodGateway {
		return models.FeeRecord{}, newError(CodeValidation, "gateway payments must carry a signature").withFields("method")
	}
	rec, err := l.fees.GetByID(ctx, feeRecordID)
	if err != nil {
		return models.FeeRecord{}, l.notFound(err, "fee record")
	}
	if rec.IsCompleted() {
		return *rec, alreadyCompleted(*rec)
	}
	return l.settle(ctx, *rec, feestore.Completion{Method: method, ReferenceID: referenceID}, referenceID)
}

// completeVerified settles a fee whose gateway signature was already checked
// by the caller, as in pay-first registration.
func (l *Ledger) completeVerified(ctx context.Context, rec models.FeeRecord, orderID, paymentID, signature string) (models.FeeRecord, error) {
	return l.settle(ctx, rec, feestore.Completion{
		Method:    models.MethodGateway,
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: signature,
	}, paymentID)
}

func (l *Ledger) settle(ctx context.Context, rec models.FeeRecord, c feestore.Completion, ref string) (models.FeeRecord, error) {
	c.At = l.now().UTC()
	won, err := l.fees.Complete(ctx, rec.ID, c)
	if err != nil {
		if errors.Is(err, sentinel.ErrDuplicate) {
			return models.FeeRecord{}, l.paymentReused(ctx, rec, c.PaymentID)
		}
		return models.FeeRecord{}, fmt.Errorf("complete fee %s: %w", rec.ID.Hex(), err)
	}
	if !won {
		// The record changed between our read and the update.
		cur, err := l.fees.GetByID(ctx, rec.ID)
		if err != nil {
			return models.FeeRecord{}, l.notFound(err, "fee record")
		}
		switch {
		case cur.IsCompleted():
			l.metrics.IncPaymentRejected("already_completed")
			return *cur, alreadyCompleted(*cur)
		case c.PaymentID != "" && cur.UsedPayment(c.PaymentID):
			return models.FeeRecord{}, l.paymentReused(ctx, *cur, c.PaymentID)
		case c.ExpectOrderID != "" && cur.GatewayOrderID != c.ExpectOrderID:
			l.metrics.IncPaymentRejected("order_mismatch")
			l.audit.OrderMismatch(ctx, cur.UserID, cur.GatewayOrderID, c.ExpectOrderID)
			return models.FeeRecord{}, newError(CodeOrderMismatch, "order id does not match the fee record").
				withFields("order_id")
		}
		return models.FeeRecord{}, fmt.Errorf("complete fee %s: record is %s", rec.ID.Hex(), cur.Status)
	}

	rec.Status = models.FeeCompleted
	rec.Method = c.Method
	rec.CompletedAt = &c.At
	if c.OrderID != "" {
		rec.GatewayOrderID = c.OrderID
	}
	rec.GatewayPaymentID = c.PaymentID
	rec.ReferenceID = c.ReferenceID
	if c.PaymentID != "" {
		rec.UsedPaymentIDs = append(rec.UsedPaymentIDs, c.PaymentID)
	}

	l.metrics.IncFeeCompleted(string(c.Method), string(rec.FeeType))
	l.audit.FeeCompleted(ctx, rec, c.Method, ref)
	l.log.Info("fee completed",
		zap.String("user_id", rec.UserID.Hex()),
		zap.String("fee_type", string(rec.FeeType)),
		zap.String("method", string(c.Method)))
	return rec, nil
}

// Summary lists the user's records with their totals and reports whether
// every mandatory fee of the tier is completed. Optional fees count toward
// the totals but never affect IsFullyPaid.
func (l *Ledger) Summary(ctx context.Context, userID primitive.ObjectID, tier models.Tier) (FeeSummary, error) {
	recs, err := l.fees.ListByUser(ctx, userID)
	if err != nil {
		return FeeSummary{}, fmt.Errorf("list fees: %w", err)
	}
	s := FeeSummary{
		Records:   recs,
		Mandatory: l.schedule.MandatoryFeeTypes(tier),
		Currency:  l.schedule.Currency(),
	}
	completed := make(map[models.FeeType]bool, len(recs))
	for _, r := range recs {
		s.TotalAmount += r.Amount
		if r.IsCompleted() {
			completed[r.FeeType] = true
			s.CompletedAmount += r.Amount
		} else {
			s.PendingAmount += r.Amount
		}
	}
	for _, ft := range s.Mandatory {
		if !completed[ft] {
			s.Outstanding = append(s.Outstanding, ft)
		}
	}
	s.IsFullyPaid = len(s.Outstanding) == 0
	return s, nil
}

func (l *Ledger) notFound(err error, what string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return &Error{Code: CodeNotFound, Message: what + " not found", Err: err}
	}
	return err
}

func (l *Ledger) paymentReused(ctx context.Context, rec models.FeeRecord, paymentID string) *Error {
	l.metrics.IncPaymentRejected("payment_reused")
	l.audit.PaymentReused(ctx, rec.UserID, paymentID)
	return newError(CodePaymentReused, "payment has already settled a fee").withFields("payment_id")
}

func alreadyCompleted(rec models.FeeRecord) *Error {
	e := newError(CodeAlreadyCompleted, string(rec.FeeType)+" fee is already completed")
	if rec.CompletedAt != nil {
		e.with("completed_at", rec.CompletedAt.UTC())
	}
	return e.with("fee_record_id", rec.ID.Hex())
}
