// internal/app/features/registration/routes.go
package registration

import "github.com/go-chi/chi/v5"

// Routes returns the /registration subrouter. POST /register itself is
// attached at the root by the caller.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/status", h.Status)
	return r
}
