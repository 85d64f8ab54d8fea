package middleware

import (
	"log/slog"
	"net/http"

	"github.com/ashureev/challenge-lab/internal/identity"
)

// RequireAdmin rejects requests whose learner id is not in allowList.
// An empty allow list denies everyone.
func RequireAdmin(allowList []string) func(http.Handler) http.Handler {
	admins := make(map[string]struct{}, len(allowList))
	for _, id := range allowList {
		admins[id] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := identity.UserIDFromContext(r.Context())
			if _, ok := admins[userID]; !ok || userID == "" {
				slog.Warn("Admin access denied", "user_id", userID, "path", r.URL.Path)
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
