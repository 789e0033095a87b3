// internal/app/features/renewals/routes.go
package renewals

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the /renewals subrouter.
func Routes(h *Handler, admin func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Renew)
	r.With(admin).Post("/sweep", h.Sweep)
	return r
}
