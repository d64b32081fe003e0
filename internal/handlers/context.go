package handlers

import (
	"net/http"

	"github.com/viewtube/backend/internal/middleware"
	"github.com/viewtube/backend/internal/token"
)

// currentClaims returns the verified access claims for the request, or
// nil for anonymous requests.
func currentClaims(r *http.Request) *token.AccessClaims {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return nil
	}
	return claims
}

// currentUserID returns the authenticated user's id, or empty for
// anonymous requests.
func currentUserID(r *http.Request) string {
	if claims := currentClaims(r); claims != nil {
		return claims.Subject
	}
	return ""
}
