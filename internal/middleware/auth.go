package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/restoregeek/restoregeek/internal/auth"
)

const (
	organizationHeader = "X-Organization-ID"
	userHeader         = "X-User-ID"
)

// RequireOrganization populates AuthContext from the headers set by the
// upstream gateway. Requests without an organization are rejected.
func RequireOrganization(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID := strings.TrimSpace(r.Header.Get(organizationHeader))
		if orgID == "" {
			writeError(w, http.StatusUnauthorized, "organization required")
			return
		}

		ac := auth.AuthContext{
			OrganizationID: orgID,
			UserID:         strings.TrimSpace(r.Header.Get(userHeader)),
		}
		next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
	})
}

// RequireCronSecret checks the bearer token against a bcrypt hash. With no
// hash configured every request is refused.
func RequireCronSecret(secretHash string) func(http.Handler) http.Handler {
	hash := []byte(secretHash)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(hash) == 0 {
				writeError(w, http.StatusForbidden, "cron trigger disabled")
				return
			}
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if err := bcrypt.CompareHashAndPassword(hash, []byte(token)); err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
