// internal/app/features/auditlog/routes.go
package auditlog

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the admin audit subrouter, mounted at /audit.
func Routes(h *Handler, admin func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(admin)
	r.Get("/", h.ServeList)
	return r
}
