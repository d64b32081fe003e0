// Package keys manages the RSA signing keypairs backing token
// issuance, one pair per token class, persisted as PEM files.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Class identifies which keypair signs a token.
type Class string

const (
	// ClassAccess signs short-lived access tokens.
	ClassAccess Class = "accessToken"
	// ClassRefresh signs long-lived refresh tokens.
	ClassRefresh Class = "refreshToken"
)

const rsaKeyBits = 2048

// ErrKeypairNotFound indicates no keypair has been generated for the class yet.
var ErrKeypairNotFound = errors.New("keypair not found")

// Keypair holds one generation of signing material for a class. The
// version travels in token headers so superseded public keys can still
// verify in-flight tokens.
type Keypair struct {
	Class   Class
	Version string
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
}

// Repository persists keypairs per class. Generate overwrites any
// existing pair for the class; Current returns the persisted pair or
// ErrKeypairNotFound.
type Repository interface {
	Generate(class Class) (Keypair, error)
	Current(class Class) (Keypair, error)
}

// FSRepository stores one PEM file per {class}x{public|private}
// combination under a fixed directory. Paths are stable across process
// restarts; contents are replaced wholesale on rotation.
type FSRepository struct {
	dir string
}

// NewFSRepository ensures the key directory exists and returns a
// repository rooted at it.
func NewFSRepository(dir string) (*FSRepository, error) {
	if dir == "" {
		return nil, errors.New("keys: directory must be provided")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}
	return &FSRepository{dir: dir}, nil
}

// Generate creates a fresh RSA keypair for the class and persists both
// halves, overwriting any existing pair.
func (r *FSRepository) Generate(class Class) (Keypair, error) {
	private, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return Keypair{}, fmt.Errorf("generate rsa keypair: %w", err)
	}

	privateDER, err := x509.MarshalPKCS8PrivateKey(private)
	if err != nil {
		return Keypair{}, fmt.Errorf("marshal private key: %w", err)
	}
	publicDER, err := x509.MarshalPKIXPublicKey(&private.PublicKey)
	if err != nil {
		return Keypair{}, fmt.Errorf("marshal public key: %w", err)
	}

	version := uuid.NewString()
	privatePEM := pem.EncodeToMemory(&pem.Block{
		Type:    "PRIVATE KEY",
		Headers: map[string]string{"Version": version},
		Bytes:   privateDER,
	})
	publicPEM := pem.EncodeToMemory(&pem.Block{
		Type:    "PUBLIC KEY",
		Headers: map[string]string{"Version": version},
		Bytes:   publicDER,
	})

	if err := os.WriteFile(r.path(class, "private_key"), privatePEM, 0o600); err != nil {
		return Keypair{}, fmt.Errorf("write private key: %w", err)
	}
	if err := os.WriteFile(r.path(class, "public_key"), publicPEM, 0o644); err != nil {
		return Keypair{}, fmt.Errorf("write public key: %w", err)
	}

	return Keypair{Class: class, Version: version, Private: private, Public: &private.PublicKey}, nil
}

// Current loads the persisted keypair for the class.
func (r *FSRepository) Current(class Class) (Keypair, error) {
	privatePEM, err := os.ReadFile(r.path(class, "private_key"))
	if err != nil {
		if os.IsNotExist(err) {
			return Keypair{}, ErrKeypairNotFound
		}
		return Keypair{}, fmt.Errorf("read private key: %w", err)
	}

	block, _ := pem.Decode(privatePEM)
	if block == nil {
		return Keypair{}, fmt.Errorf("malformed private key PEM for class %s", class)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return Keypair{}, fmt.Errorf("parse private key: %w", err)
	}
	private, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return Keypair{}, fmt.Errorf("unexpected private key type %T for class %s", parsed, class)
	}

	version := block.Headers["Version"]
	if version == "" {
		version = "v0"
	}

	public, err := r.readPublic(class)
	if err != nil {
		return Keypair{}, err
	}
	if public.N.Cmp(private.N) != 0 || public.E != private.E {
		return Keypair{}, fmt.Errorf("public key does not match private key for class %s", class)
	}

	return Keypair{Class: class, Version: version, Private: private, Public: public}, nil
}

func (r *FSRepository) readPublic(class Class) (*rsa.PublicKey, error) {
	publicPEM, err := os.ReadFile(r.path(class, "public_key"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeypairNotFound
		}
		return nil, fmt.Errorf("read public key: %w", err)
	}

	block, _ := pem.Decode(publicPEM)
	if block == nil {
		return nil, fmt.Errorf("malformed public key PEM for class %s", class)
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	public, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unexpected public key type %T for class %s", parsed, class)
	}
	return public, nil
}

func (r *FSRepository) path(class Class, half string) string {
	return filepath.Join(r.dir, fmt.Sprintf("%s_%s.pem", class, half))
}
