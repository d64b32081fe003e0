package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/viewtube/backend/internal/keys"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	repo, err := keys.NewFSRepository(t.TempDir())
	if err != nil {
		t.Fatalf("new key repository: %v", err)
	}
	service, err := NewService(repo, time.Hour)
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	return service
}

func accessClaims(subject string, ttl time.Duration) *AccessClaims {
	now := time.Now()
	return &AccessClaims{
		Username: "alice",
		Email:    "alice@example.com",
		FullName: "Alice A",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

func TestIssueAndVerifyAccessToken(t *testing.T) {
	service := newTestService(t)

	signed, err := service.Issue(keys.ClassAccess, accessClaims("user-1", time.Minute))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := service.VerifyAccess(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "user-1" || claims.Username != "alice" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	service := newTestService(t)

	signed, err := service.Issue(keys.ClassAccess, accessClaims("user-1", -time.Minute))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := service.VerifyAccess(signed); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyRejectsClassMismatch(t *testing.T) {
	service := newTestService(t)

	now := time.Now()
	refresh := &RefreshClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}}
	signed, err := service.Issue(keys.ClassRefresh, refresh)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := service.VerifyAccess(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for refresh-signed token, got %v", err)
	}
}

func TestVerifyRejectsNonRS256(t *testing.T) {
	service := newTestService(t)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims("user-1", time.Minute))
	signed, err := tok.SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("sign hs256: %v", err)
	}

	if _, err := service.VerifyAccess(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for HS256 token, got %v", err)
	}
}

func TestRotationKeepsInFlightTokensVerifiable(t *testing.T) {
	service := newTestService(t)

	signed, err := service.Issue(keys.ClassAccess, accessClaims("user-1", time.Hour))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := service.Rotate(keys.ClassAccess); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if _, err := service.VerifyAccess(signed); err != nil {
		t.Fatalf("token signed before rotation should verify, got %v", err)
	}

	fresh, err := service.Issue(keys.ClassAccess, accessClaims("user-1", time.Hour))
	if err != nil {
		t.Fatalf("issue after rotation: %v", err)
	}
	if _, err := service.VerifyAccess(fresh); err != nil {
		t.Fatalf("token signed after rotation should verify, got %v", err)
	}
}

func TestRetiredKeysExpireAfterRetention(t *testing.T) {
	service := newTestService(t)

	base := time.Now()
	service.now = func() time.Time { return base }

	signed, err := service.Issue(keys.ClassAccess, accessClaims("user-1", 2*time.Hour))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := service.Rotate(keys.ClassAccess); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	// A second rotation past the retention window prunes the first key.
	service.now = func() time.Time { return base.Add(2 * time.Hour) }
	if err := service.Rotate(keys.ClassAccess); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if _, err := service.VerifyAccess(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected pruned key to fail verification, got %v", err)
	}
}
