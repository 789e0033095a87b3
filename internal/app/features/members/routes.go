// internal/app/features/members/routes.go
package members

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes mounts the member admin routes. Typically:
// r.Mount("/members", members.Routes(handler, adminGuard))
func Routes(h *Handler, admin func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(admin)

		pr.Get("/{id}", h.ServeMember)
		pr.Post("/{id}/reconcile", h.HandleReconcile)
	})

	return r
}
