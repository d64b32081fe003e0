package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/viewtube/backend/internal/keys"
	"github.com/viewtube/backend/internal/models"
	"github.com/viewtube/backend/internal/token"
)

type inMemoryUserStore struct {
	users map[string]models.User
}

func newInMemoryUserStore() *inMemoryUserStore {
	return &inMemoryUserStore{users: make(map[string]models.User)}
}

var errUserNotFound = errors.New("user not found")

func (s *inMemoryUserStore) add(user models.User) {
	s.users[user.ID] = user
}

func (s *inMemoryUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return models.User{}, errUserNotFound
	}
	return user, nil
}

func (s *inMemoryUserStore) FindByUsernameOrEmail(_ context.Context, identifier string) (models.User, error) {
	for _, user := range s.users {
		if user.Username == identifier || user.Email == identifier {
			return user, nil
		}
	}
	return models.User{}, errUserNotFound
}

func (s *inMemoryUserStore) SetRefreshToken(_ context.Context, userID, refreshToken string) error {
	user, ok := s.users[userID]
	if !ok {
		return errUserNotFound
	}
	user.RefreshToken = refreshToken
	s.users[userID] = user
	return nil
}

func (s *inMemoryUserStore) ClearRefreshToken(_ context.Context, userID string) error {
	user, ok := s.users[userID]
	if !ok {
		return errUserNotFound
	}
	user.RefreshToken = ""
	s.users[userID] = user
	return nil
}

func newTestManager(t *testing.T) (*Manager, *inMemoryUserStore) {
	t.Helper()
	repo, err := keys.NewFSRepository(t.TempDir())
	if err != nil {
		t.Fatalf("new key repository: %v", err)
	}
	tokens, err := token.NewService(repo, time.Hour)
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	store := newInMemoryUserStore()
	return NewManager(tokens, store, time.Minute, time.Hour), store
}

func seedUser(t *testing.T, store *inMemoryUserStore, password string) models.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := models.User{
		ID:       "user-1",
		Username: "alice",
		Email:    "alice@example.com",
		FullName: "Alice A",
		Password: string(hashed),
	}
	store.add(user)
	return user
}

func TestLoginIssuesPairAndPersistsRefreshToken(t *testing.T) {
	manager, store := newTestManager(t)
	seedUser(t, store, "correct horse")

	user, pair, err := manager.Login(context.Background(), "alice", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", pair)
	}
	if user.Username != "alice" {
		t.Fatalf("unexpected user %+v", user)
	}

	stored, _ := store.FindByID(context.Background(), "user-1")
	if stored.RefreshToken != pair.RefreshToken {
		t.Fatal("refresh token was not persisted on the user record")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	manager, store := newTestManager(t)
	seedUser(t, store, "correct horse")

	if _, _, err := manager.Login(context.Background(), "alice", "wrong"); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
	if _, _, err := manager.Login(context.Background(), "nobody", "correct horse"); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}

	stored, _ := store.FindByID(context.Background(), "user-1")
	if stored.RefreshToken != "" {
		t.Fatal("failed login must not create a session")
	}
}

func TestRefreshSucceedsOnceThenRejectsSupersededToken(t *testing.T) {
	manager, store := newTestManager(t)
	seedUser(t, store, "correct horse")

	_, pair, err := manager.Login(context.Background(), "alice", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	second, err := manager.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if second.RefreshToken == pair.RefreshToken {
		t.Fatal("expected a rotated refresh token")
	}

	// Replaying the superseded login token must fail even though its
	// signature and expiry are still valid.
	if _, err := manager.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed for superseded token, got %v", err)
	}

	// The rotated token is still good for exactly one more exchange.
	third, err := manager.Refresh(context.Background(), second.RefreshToken)
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if _, err := manager.Refresh(context.Background(), second.RefreshToken); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed after rotation, got %v", err)
	}
	if third.RefreshToken == second.RefreshToken {
		t.Fatal("expected a fresh token per rotation")
	}
}

func TestLogoutInvalidatesOutstandingRefreshToken(t *testing.T) {
	manager, store := newTestManager(t)
	seedUser(t, store, "correct horse")

	_, pair, err := manager.Login(context.Background(), "alice", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := manager.Logout(context.Background(), "user-1"); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if _, err := manager.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed after logout, got %v", err)
	}
}

func TestRefreshRejectsMissingAndMalformedTokens(t *testing.T) {
	manager, _ := newTestManager(t)

	if _, err := manager.Refresh(context.Background(), ""); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed for empty token, got %v", err)
	}
	if _, err := manager.Refresh(context.Background(), "not-a-jwt"); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed for malformed token, got %v", err)
	}
}

func TestRefreshRejectsAccessTokenPresentedAsRefresh(t *testing.T) {
	manager, store := newTestManager(t)
	seedUser(t, store, "correct horse")

	_, pair, err := manager.Login(context.Background(), "alice", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := manager.Refresh(context.Background(), pair.AccessToken); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed for class mismatch, got %v", err)
	}
}

func TestVerifyAccessReturnsClaims(t *testing.T) {
	manager, store := newTestManager(t)
	seedUser(t, store, "correct horse")

	_, pair, err := manager.Login(context.Background(), "alice", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := manager.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if claims.Subject != "user-1" || claims.Email != "alice@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := manager.VerifyAccess(pair.RefreshToken); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed for refresh-as-access, got %v", err)
	}
}
