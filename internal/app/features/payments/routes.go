// internal/app/features/payments/routes.go
package payments

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the /payments subrouter. admin guards the manual
// settlement endpoint.
func Routes(h *Handler, admin func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/orders", h.CreateOrder)
	r.Post("/confirm", h.Confirm)
	r.With(admin).Post("/manual", h.Manual)
	return r
}
