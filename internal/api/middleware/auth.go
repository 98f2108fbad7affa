package middleware

import (
	"net/http"
	"strings"

	"github.com/attractive-boy/schoolbus-back/internal/api/respond"
	"github.com/attractive-boy/schoolbus-back/internal/apperr"
	"github.com/attractive-boy/schoolbus-back/internal/auth"
)

// Authenticate requires a bearer token and stores the caller's identity in
// the request context.
func Authenticate(v *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				respond.Error(w, r, apperr.Unauthenticated("missing bearer token"))
				return
			}

			id, err := v.Parse(strings.TrimSpace(token))
			if err != nil {
				respond.Error(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// RequireAdmin rejects callers without the admin role. It must run after
// Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return requireRole(next, "administrator role required", auth.RoleAdmin)
}

// RequireVerifier admits ticket scanners and administrators. It must run
// after Authenticate.
func RequireVerifier(next http.Handler) http.Handler {
	return requireRole(next, "verifier role required", auth.RoleVerifier, auth.RoleAdmin)
}

func requireRole(next http.Handler, denied string, roles ...auth.Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.FromContext(r.Context())
		if !ok {
			respond.Error(w, r, apperr.Unauthenticated("missing identity"))
			return
		}
		if !id.HasRole(roles...) {
			respond.Error(w, r, apperr.PermissionDenied(denied))
			return
		}
		next.ServeHTTP(w, r)
	})
}
