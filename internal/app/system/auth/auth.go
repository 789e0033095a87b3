// Package auth guards the administrative endpoints with a shared token.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dalemusser/memberhub/internal/app/system/auditlog"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Admin token                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

// HeaderAdminToken carries the operator token on admin requests.
const HeaderAdminToken = "X-Admin-Token"

// HeaderActor optionally names the operator; it is recorded on manual
// payments and defaults to "admin".
const HeaderActor = "X-Admin-Actor"

type ctxKey string

const actorKey ctxKey = "adminActor"

// Actor returns the operator name set by RequireAdminToken.
func Actor(r *http.Request) string {
	if a, ok := r.Context().Value(actorKey).(string); ok && a != "" {
		return a
	}
	return "admin"
}

// RequireAdminToken rejects requests whose X-Admin-Token header does not
// match token. An empty token disables the admin surface entirely: every
// request is refused. Refusals are written to the security audit log.
func RequireAdminToken(token string, audit *auditlog.Logger) func(http.Handler) http.Handler {
	want := []byte(token)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(HeaderAdminToken))
			if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
				audit.AdminTokenDenied(r.Context(), r)
				unauthorized(w)
				return
			}

			actor := strings.TrimSpace(r.Header.Get(HeaderActor))
			ctx := context.WithValue(r.Context(), actorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    "unauthorized",
			"message": "a valid " + HeaderAdminToken + " header is required",
		},
	})
}
