// Package token issues and verifies the signed bearer tokens carrying
// user identity claims. Signing is pinned to RS256 with a dedicated
// keypair per token class; superseded public keys are retained so
// rotation does not invalidate in-flight tokens before their expiry.
package token

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/viewtube/backend/internal/keys"
)

var (
	// ErrTokenExpired indicates the token is past its embedded expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidToken indicates the signature, algorithm, or claim shape is wrong.
	ErrInvalidToken = errors.New("invalid token")
)

// AccessClaims is the richer claim set carried by access tokens.
type AccessClaims struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"fullName,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims carries only the subject id.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

type retiredKey struct {
	public    *rsa.PublicKey
	retiredAt time.Time
}

// Service signs and verifies tokens against per-class keypairs loaded
// from an injected repository.
type Service struct {
	repo      keys.Repository
	retention time.Duration

	mu      sync.RWMutex
	current map[keys.Class]keys.Keypair
	retired map[keys.Class]map[string]retiredKey

	now func() time.Time
}

// NewService loads the current keypair for every token class,
// generating one when none has been persisted yet.
func NewService(repo keys.Repository, retention time.Duration) (*Service, error) {
	if repo == nil {
		return nil, errors.New("token: keypair repository must not be nil")
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}

	s := &Service{
		repo:      repo,
		retention: retention,
		current:   make(map[keys.Class]keys.Keypair),
		retired:   make(map[keys.Class]map[string]retiredKey),
		now:       time.Now,
	}

	for _, class := range []keys.Class{keys.ClassAccess, keys.ClassRefresh} {
		pair, err := repo.Current(class)
		if errors.Is(err, keys.ErrKeypairNotFound) {
			pair, err = repo.Generate(class)
		}
		if err != nil {
			return nil, fmt.Errorf("load %s keypair: %w", class, err)
		}
		s.current[class] = pair
	}
	return s, nil
}

// Rotate generates a fresh keypair for the class and retires the
// previous public key so outstanding tokens keep verifying until the
// retention window closes.
func (s *Service) Rotate(class keys.Class) error {
	pair, err := s.repo.Generate(class)
	if err != nil {
		return fmt.Errorf("rotate %s keypair: %w", class, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	previous, ok := s.current[class]
	if ok {
		if s.retired[class] == nil {
			s.retired[class] = make(map[string]retiredKey)
		}
		s.retired[class][previous.Version] = retiredKey{public: previous.Public, retiredAt: now}
	}
	for version, rk := range s.retired[class] {
		if now.Sub(rk.retiredAt) > s.retention {
			delete(s.retired[class], version)
		}
	}
	s.current[class] = pair
	return nil
}

// Issue signs the claims with the current private key for the class,
// embedding the key version so verification can outlive rotation.
func (s *Service) Issue(class keys.Class, claims jwt.Claims) (string, error) {
	s.mu.RLock()
	pair, ok := s.current[class]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("no keypair loaded for class %s", class)
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = pair.Version

	signed, err := tok.SignedString(pair.Private)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", class, err)
	}
	return signed, nil
}

// VerifyAccess validates an access-class token and returns its claims.
func (s *Service) VerifyAccess(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.verify(keys.ClassAccess, raw, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefresh validates a refresh-class token and returns its claims.
func (s *Service) VerifyRefresh(raw string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := s.verify(keys.ClassRefresh, raw, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *Service) verify(class keys.Class, raw string, claims jwt.Claims) error {
	keyfunc := func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		version, _ := tok.Header["kid"].(string)
		return s.publicKey(class, version)
	}

	parsed, err := jwt.ParseWithClaims(raw, claims, keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrInvalidToken
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}

func (s *Service) publicKey(class keys.Class, version string) (*rsa.PublicKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	current, ok := s.current[class]
	if !ok {
		return nil, fmt.Errorf("no keypair loaded for class %s", class)
	}
	if version == "" || version == current.Version {
		return current.Public, nil
	}
	if rk, ok := s.retired[class][version]; ok {
		return rk.public, nil
	}
	return nil, fmt.Errorf("unknown key version %s for class %s", version, class)
}
