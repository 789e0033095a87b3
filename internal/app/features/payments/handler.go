// internal/app/features/payments/handler.go
package payments

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/memberhub/internal/app/features/errors"
	"github.com/dalemusser/memberhub/internal/app/lifecycle"
	"github.com/dalemusser/memberhub/internal/app/system/auth"
	"github.com/dalemusser/memberhub/internal/app/system/formutil"
	"github.com/dalemusser/memberhub/internal/app/system/timeouts"
	"github.com/dalemusser/memberhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Service is the part of the lifecycle engine the payment endpoints use.
type Service interface {
	CreateOrder(ctx context.Context, userID primitive.ObjectID, feeType models.FeeType) (lifecycle.FeeDue, error)
	ConfirmPayment(ctx context.Context, c lifecycle.PaymentConfirmation) (lifecycle.PaymentOutcome, error)
	RecordManualPayment(ctx context.Context, p lifecycle.ManualPayment) (lifecycle.PaymentOutcome, error)
	FindMember(ctx context.Context, email, mobile, username string) (*models.User, error)
}

// Handler serves fee orders and payment completion.
type Handler struct {
	Service Service
	Log     *zap.Logger
}

// NewHandler constructs a payments Handler.
func NewHandler(svc Service, logger *zap.Logger) *Handler {
	return &Handler{Service: svc, Log: logger}
}

// CreateOrder handles POST /payments/orders.
//
//	{ "user_id":"…", "fee_type":"annual" } -> 200 { "fee_record_id":"…", "order_id":"order_…", "amount":1000000, "currency":"INR" }
//
// Calling it again for the same fee returns the same order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := formutil.DecodeJSON(w, r, &req); err != nil {
		uierrors.RenderBadRequest(w, err.Error())
		return
	}
	userID, ok := formutil.ObjectID(req.UserID)
	if !ok {
		uierrors.RenderBadRequest(w, "user_id must be a member id", "user_id")
		return
	}
	ft, ok := models.ParseFeeType(req.FeeType)
	if !ok {
		uierrors.RenderCode(w, lifecycle.CodeInvalidFeeType, "unknown fee_type", "fee_type")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	due, err := h.Service.CreateOrder(ctx, userID, ft)
	if err != nil {
		uierrors.RenderError(w, r, h.Log, err)
		return
	}
	uierrors.RenderJSON(w, http.StatusOK, due)
}

// Confirm handles POST /payments/confirm. The signature is verified before
// anything is written; a verified payment completes the fee and re-runs
// activation.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := formutil.DecodeJSON(w, r, &req); err != nil {
		uierrors.RenderBadRequest(w, err.Error())
		return
	}
	userID, ok := formutil.ObjectID(req.UserID)
	if !ok {
		uierrors.RenderBadRequest(w, "user_id must be a member id", "user_id")
		return
	}
	ft, ok := models.ParseFeeType(req.FeeType)
	if !ok {
		uierrors.RenderCode(w, lifecycle.CodeInvalidFeeType, "unknown fee_type", "fee_type")
		return
	}
	var missing []string
	if req.OrderID == "" {
		missing = append(missing, "order_id")
	}
	if req.PaymentID == "" {
		missing = append(missing, "payment_id")
	}
	if req.Signature == "" {
		missing = append(missing, "signature")
	}
	if len(missing) > 0 {
		uierrors.RenderBadRequest(w, "gateway confirmation is incomplete", missing...)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	out, err := h.Service.ConfirmPayment(ctx, lifecycle.PaymentConfirmation{
		UserID:    userID,
		FeeType:   ft,
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	if err != nil {
		uierrors.RenderError(w, r, h.Log, err)
		return
	}
	uierrors.RenderJSON(w, http.StatusOK, out)
}

// Manual handles POST /payments/manual (admin). The member is named by
// user_id, email, mobile or username; the amount must equal the scheduled fee.
func (h *Handler) Manual(w http.ResponseWriter, r *http.Request) {
	var req manualRequest
	if err := formutil.DecodeJSON(w, r, &req); err != nil {
		uierrors.RenderBadRequest(w, err.Error())
		return
	}
	if !req.hasIdentity() {
		uierrors.RenderBadRequest(w, "name the member by user_id, email, mobile or username",
			"user_id", "email", "mobile", "username")
		return
	}
	ft, ok := models.ParseFeeType(req.FeeType)
	if !ok {
		uierrors.RenderCode(w, lifecycle.CodeInvalidFeeType, "unknown fee_type", "fee_type")
		return
	}
	method, ok := models.ParseOfflineMethod(req.Method)
	if !ok {
		uierrors.RenderBadRequest(w, "method must be cash, check or manual", "method")
		return
	}
	if req.Amount == nil || *req.Amount < 0 {
		uierrors.RenderBadRequest(w, "amount is required", "amount")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	userID, err := h.resolveMember(ctx, req)
	if err != nil {
		uierrors.RenderError(w, r, h.Log, err)
		return
	}

	out, err := h.Service.RecordManualPayment(ctx, lifecycle.ManualPayment{
		UserID:      userID,
		FeeType:     ft,
		Amount:      *req.Amount,
		Method:      method,
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		uierrors.RenderError(w, r, h.Log, err)
		return
	}

	h.Log.Info("manual payment recorded",
		zap.String("actor", auth.Actor(r)),
		zap.String("user_id", userID.Hex()),
		zap.String("fee_type", string(ft)),
		zap.String("method", string(method)),
		zap.String("reference_id", out.Fee.ReferenceID))
	uierrors.RenderJSON(w, http.StatusOK, out)
}

// resolveMember looks up every identifier the request supplies on its own.
// They must all name the same member.
func (h *Handler) resolveMember(ctx context.Context, req manualRequest) (primitive.ObjectID, error) {
	var (
		userID primitive.ObjectID
		found  bool
		fields []string
	)
	if req.UserID != "" {
		id, ok := formutil.ObjectID(req.UserID)
		if !ok {
			return primitive.NilObjectID, &lifecycle.Error{Code: lifecycle.CodeValidation, Message: "user_id must be a member id", Fields: []string{"user_id"}}
		}
		userID, found = id, true
		fields = append(fields, "user_id")
	}

	lookups := []struct {
		field, email, mobile, username string
	}{
		{"email", req.Email, "", ""},
		{"mobile", "", req.Mobile, ""},
		{"username", "", "", req.Username},
	}
	for _, l := range lookups {
		if l.email == "" && l.mobile == "" && l.username == "" {
			continue
		}
		u, err := h.Service.FindMember(ctx, l.email, l.mobile, l.username)
		if err != nil {
			return primitive.NilObjectID, err
		}
		fields = append(fields, l.field)
		if found && u.ID != userID {
			return primitive.NilObjectID, &lifecycle.Error{
				Code:    lifecycle.CodeValidation,
				Message: "identifiers name different members",
				Fields:  fields,
			}
		}
		userID, found = u.ID, true
	}
	return userID, nil
}
