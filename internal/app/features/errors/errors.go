// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/dalemusser/memberhub/internal/app/lifecycle"
)

// Handler answers unmatched routes with the JSON envelope instead of
// chi's plain-text defaults.
type Handler struct{}

// NewHandler constructs an errors Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// NotFound handles requests for unknown paths.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	RenderCode(w, lifecycle.CodeNotFound, "no route for "+r.URL.Path)
}

// MethodNotAllowed handles known paths called with the wrong method.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	RenderJSON(w, http.StatusMethodNotAllowed, body{Error: errorBody{
		Code:    "method_not_allowed",
		Message: r.Method + " is not supported on " + r.URL.Path,
	}})
}
