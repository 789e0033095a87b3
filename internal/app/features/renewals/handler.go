// internal/app/features/renewals/handler.go
package renewals

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/memberhub/internal/app/features/errors"
	"github.com/dalemusser/memberhub/internal/app/lifecycle"
	"github.com/dalemusser/memberhub/internal/app/system/auth"
	"github.com/dalemusser/memberhub/internal/app/system/formutil"
	"github.com/dalemusser/memberhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Service is the part of the lifecycle engine the renewal endpoints use.
type Service interface {
	Renew(ctx context.Context, userID primitive.ObjectID) (lifecycle.RenewalStatus, error)
	Sweep(ctx context.Context) (lifecycle.SweepReport, error)
}

type Handler struct {
	Service Service
	Log     *zap.Logger
}

func NewHandler(svc Service, logger *zap.Logger) *Handler {
	return &Handler{Service: svc, Log: logger}
}

type renewRequest struct {
	UserID string `json:"user_id"`
}

// Renew handles POST /renewals. Zero-amount mandatory fees are settled on
// the spot; whatever remains is listed under "due" for payment through
// /payments/orders.
func (h *Handler) Renew(w http.ResponseWriter, r *http.Request) {
	var req renewRequest
	if err := formutil.DecodeJSON(w, r, &req); err != nil {
		uierrors.RenderBadRequest(w, err.Error())
		return
	}
	userID, ok := formutil.ObjectID(req.UserID)
	if !ok {
		uierrors.RenderBadRequest(w, "user_id must be a member id", "user_id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	st, err := h.Service.Renew(ctx, userID)
	if err != nil {
		uierrors.RenderError(w, r, h.Log, err)
		return
	}
	uierrors.RenderJSON(w, http.StatusOK, st)
}

// Sweep handles POST /renewals/sweep (admin): one renewal sweep, run now.
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Sweep(), h.Log, "renewal sweep (manual)")
	defer cancel()

	rep, err := h.Service.Sweep(ctx)
	if err != nil {
		uierrors.RenderError(w, r, h.Log, err)
		return
	}
	h.Log.Info("manual renewal sweep",
		zap.String("actor", auth.Actor(r)),
		zap.Int("reminded", rep.Reminded),
		zap.Int("expired", rep.Expired))
	uierrors.RenderJSON(w, http.StatusOK, rep)
}
