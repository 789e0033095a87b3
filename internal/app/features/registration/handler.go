// internal/app/features/registration/handler.go
package registration

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/memberhub/internal/app/features/errors"
	"github.com/dalemusser/memberhub/internal/app/lifecycle"
	"github.com/dalemusser/memberhub/internal/app/system/formutil"
	"github.com/dalemusser/memberhub/internal/app/system/ratelimit"
	"github.com/dalemusser/memberhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Service is the part of the lifecycle engine the registration endpoints use.
type Service interface {
	Register(ctx context.Context, req lifecycle.RegistrationRequest) (lifecycle.RegistrationResult, error)
	Status(ctx context.Context, email, mobile, username string) (lifecycle.PublicStatus, error)
}

// Handler serves public registration.
type Handler struct {
	Service Service
	Limiter *ratelimit.RegistrationLimiter // nil disables throttling
	Log     *zap.Logger
}

// NewHandler constructs a registration Handler.
func NewHandler(svc Service, limiter *ratelimit.RegistrationLimiter, logger *zap.Logger) *Handler {
	return &Handler{
		Service: svc,
		Limiter: limiter,
		Log:     logger,
	}
}

// Register handles POST /register.
//
// Provisioned: 201 and the registration result.
// Payment still due: 402 and
//
//	{ "requires_payment":true, "fee_type":"registration", "amount":2500000, "currency":"INR", "order_id":"order_…" }
//
// The applicant pays that order and re-submits the same body with the
// gateway_order_id, gateway_payment_id and gateway_signature fields set.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req lifecycle.RegistrationRequest
	if err := formutil.DecodeJSON(w, r, &req); err != nil {
		uierrors.RenderBadRequest(w, err.Error())
		return
	}

	if ok, reason := h.Limiter.Check(r, req.Email); !ok {
		uierrors.RenderCode(w, uierrors.CodeRateLimited, reason)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	res, err := h.Service.Register(ctx, req)
	if err != nil {
		uierrors.RenderError(w, r, h.Log, err)
		return
	}

	if res.Status == lifecycle.StatusPaymentRequired && res.Payment != nil {
		uierrors.RenderJSON(w, http.StatusPaymentRequired, paymentRequiredResponse{
			RequiresPayment: true,
			FeeType:         res.Payment.FeeType,
			Amount:          res.Payment.Amount,
			Currency:        res.Payment.Currency,
			OrderID:         res.Payment.OrderID,
			ExpiresAt:       res.Payment.ExpiresAt,
		})
		return
	}

	h.Limiter.ResetIdentity(req.Email)
	h.Log.Info("member registered",
		zap.String("user_id", userID(res)),
		zap.Bool("active", res.Activation != nil && res.Activation.Active()))
	uierrors.RenderJSON(w, http.StatusCreated, res)
}

// Status handles GET /registration/status?email=&mobile=&username=.
// At least one identity value is required.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	email, mobile, username := q.Get("email"), q.Get("mobile"), q.Get("username")
	if email == "" && mobile == "" && username == "" {
		uierrors.RenderBadRequest(w, "provide email, mobile or username", "email", "mobile", "username")
		return
	}

	identity := email
	if identity == "" {
		identity = mobile + username
	}
	if ok, reason := h.Limiter.Check(r, identity); !ok {
		uierrors.RenderCode(w, uierrors.CodeRateLimited, reason)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	st, err := h.Service.Status(ctx, email, mobile, username)
	if err != nil {
		uierrors.RenderError(w, r, h.Log, err)
		return
	}
	uierrors.RenderJSON(w, http.StatusOK, st)
}

func userID(res lifecycle.RegistrationResult) string {
	if res.User == nil {
		return ""
	}
	return res.User.ID.Hex()
}
