package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/viewtube/backend/internal/token"
)

// AccessVerifier validates raw access tokens into claims.
type AccessVerifier interface {
	VerifyAccess(raw string) (*token.AccessClaims, error)
}

type claimsContextKey struct{}

// ClaimsFromContext returns the access claims attached by RequireAuth
// or OptionalAuth, when present.
func ClaimsFromContext(ctx context.Context) (*token.AccessClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*token.AccessClaims)
	return claims, ok
}

// RequireAuth rejects requests lacking a valid access token. The token
// is read from the accessToken cookie first, then the Authorization
// bearer header.
func RequireAuth(verifier AccessVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := verifyRequest(verifier, r)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"success":false,"statusCode":401,"message":"unauthorized"}`))
				return
			}
			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches claims when a valid token is presented and
// passes the request through anonymously otherwise.
func OptionalAuth(verifier AccessVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims, err := verifyRequest(verifier, r); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), claimsContextKey{}, claims))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func verifyRequest(verifier AccessVerifier, r *http.Request) (*token.AccessClaims, error) {
	raw := ""
	if cookie, err := r.Cookie("accessToken"); err == nil {
		raw = cookie.Value
	}
	if raw == "" {
		header := r.Header.Get("Authorization")
		if after, ok := strings.CutPrefix(header, "Bearer "); ok {
			raw = strings.TrimSpace(after)
		}
	}
	return verifier.VerifyAccess(raw)
}
