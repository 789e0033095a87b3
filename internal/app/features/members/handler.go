// internal/app/features/members/handler.go
package members

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/memberhub/internal/app/features/errors"
	"github.com/dalemusser/memberhub/internal/app/lifecycle"
	"github.com/dalemusser/memberhub/internal/app/system/auth"
	"github.com/dalemusser/memberhub/internal/app/system/formutil"
	"github.com/dalemusser/memberhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Service is the part of the lifecycle engine the member admin endpoints use.
type Service interface {
	Member(ctx context.Context, userID primitive.ObjectID) (lifecycle.MemberStatus, error)
	Reconcile(ctx context.Context, userID primitive.ObjectID) (lifecycle.ActivationResult, error)
}

// Handler serves the administrative member endpoints. All routes sit
// behind the admin token.
type Handler struct {
	Service Service
	Log     *zap.Logger
}

func NewHandler(svc Service, logger *zap.Logger) *Handler {
	return &Handler{Service: svc, Log: logger}
}

// ServeMember handles GET /members/{id}: the user and their fee summary.
func (h *Handler) ServeMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := memberID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	st, err := h.Service.Member(ctx, userID)
	if err != nil {
		uierrors.RenderError(w, r, h.Log, err)
		return
	}
	uierrors.RenderJSON(w, http.StatusOK, st)
}

// HandleReconcile handles POST /members/{id}/reconcile. It re-resolves the
// referral chain and re-runs activation, repairing users blocked earlier
// whose referrer has since joined a community and users missing from
// their community's member list.
//
// A user who is still unconnected gets 422 referral_not_core_connected.
func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	userID, ok := memberID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	res, err := h.Service.Reconcile(ctx, userID)
	if err != nil {
		uierrors.RenderError(w, r, h.Log, err)
		return
	}

	h.Log.Info("member reconciled",
		zap.String("actor", auth.Actor(r)),
		zap.String("user_id", userID.Hex()),
		zap.String("state", string(res.State)))
	uierrors.RenderJSON(w, http.StatusOK, res)
}

func memberID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, ok := formutil.ObjectID(chi.URLParam(r, "id"))
	if !ok {
		uierrors.RenderBadRequest(w, "member id must be a 24-character hex id", "id")
	}
	return id, ok
}
