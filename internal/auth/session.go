// Package auth orchestrates the session lifecycle: credential login,
// access/refresh token rotation, and logout. A single refresh token is
// live per user; issuing a new one invalidates its predecessor.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/viewtube/backend/internal/keys"
	"github.com/viewtube/backend/internal/models"
	"github.com/viewtube/backend/internal/token"
)

// ErrAuthenticationFailed covers every credential failure: unknown
// user, wrong password, and missing, invalid, expired, or superseded
// refresh tokens. Callers map it to a 401 without distinguishing cause.
var ErrAuthenticationFailed = errors.New("authentication failed")

// UserStore captures the persistence operations the session controller needs.
type UserStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsernameOrEmail(ctx context.Context, identifier string) (models.User, error)
	SetRefreshToken(ctx context.Context, userID, refreshToken string) error
	ClearRefreshToken(ctx context.Context, userID string) error
}

// Manager drives the per-user session state machine backed by the token
// service and the user store.
type Manager struct {
	tokens     *token.Service
	users      UserStore
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewManager constructs a Manager that issues token pairs with the provided TTLs.
func NewManager(tokens *token.Service, users UserStore, accessTTL, refreshTTL time.Duration) *Manager {
	if tokens == nil {
		panic("auth: token service must not be nil")
	}
	if users == nil {
		panic("auth: user store must not be nil")
	}
	return &Manager{
		tokens:     tokens,
		users:      users,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// Login verifies the credential and starts an authenticated session.
// The issued refresh token is persisted on the user record, replacing
// any prior value.
func (m *Manager) Login(ctx context.Context, identifier, password string) (models.User, models.TokenPair, error) {
	if identifier == "" || password == "" {
		return models.User{}, models.TokenPair{}, ErrAuthenticationFailed
	}

	user, err := m.users.FindByUsernameOrEmail(ctx, identifier)
	if err != nil {
		return models.User{}, models.TokenPair{}, ErrAuthenticationFailed
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return models.User{}, models.TokenPair{}, ErrAuthenticationFailed
	}

	pair, err := m.IssuePair(ctx, user)
	if err != nil {
		return models.User{}, models.TokenPair{}, err
	}
	return user, pair, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token
// must verify and exactly equal the user's persisted refresh token;
// superseded tokens fail even when their signature is still valid.
func (m *Manager) Refresh(ctx context.Context, presented string) (models.TokenPair, error) {
	if presented == "" {
		return models.TokenPair{}, ErrAuthenticationFailed
	}

	claims, err := m.tokens.VerifyRefresh(presented)
	if err != nil {
		return models.TokenPair{}, ErrAuthenticationFailed
	}

	user, err := m.users.FindByID(ctx, claims.Subject)
	if err != nil {
		return models.TokenPair{}, ErrAuthenticationFailed
	}

	if user.RefreshToken == "" || user.RefreshToken != presented {
		return models.TokenPair{}, ErrAuthenticationFailed
	}

	return m.IssuePair(ctx, user)
}

// Logout clears the persisted refresh token; every previously issued
// refresh token becomes permanently unusable.
func (m *Manager) Logout(ctx context.Context, userID string) error {
	if err := m.users.ClearRefreshToken(ctx, userID); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

// VerifyAccess validates an access token for request authentication.
func (m *Manager) VerifyAccess(raw string) (*token.AccessClaims, error) {
	claims, err := m.tokens.VerifyAccess(raw)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return claims, nil
}

// IssuePair signs a fresh access/refresh pair for the user and persists
// the refresh token as the single live value.
func (m *Manager) IssuePair(ctx context.Context, user models.User) (models.TokenPair, error) {
	now := m.now().UTC()
	accessExpiry := now.Add(m.accessTTL)
	refreshExpiry := now.Add(m.refreshTTL)

	access, err := m.tokens.Issue(keys.ClassAccess, &token.AccessClaims{
		Username: user.Username,
		Email:    user.Email,
		FullName: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExpiry),
		},
	})
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}

	// jti makes every refresh token distinct even within one clock
	// second, so the stored-value equality check can tell a superseded
	// token from its replacement.
	refresh, err := m.tokens.Issue(keys.ClassRefresh, &token.RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExpiry),
		},
	})
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}

	if err := m.users.SetRefreshToken(ctx, user.ID, refresh); err != nil {
		return models.TokenPair{}, fmt.Errorf("persist refresh token: %w", err)
	}

	return models.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExpiry,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}
