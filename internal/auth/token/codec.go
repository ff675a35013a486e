// Package token signs and verifies the HS256 JWTs handed to clients.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AlibekovAA/taskforge/backend/internal/common/clock"
	"github.com/AlibekovAA/taskforge/backend/internal/common/constants"
	commoncrypto "github.com/AlibekovAA/taskforge/backend/internal/common/crypto"
)

type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

var (
	ErrInvalidSignature = errors.New("token signature is invalid")
	ErrMalformed        = errors.New("token is malformed")
	ErrExpired          = errors.New("token has expired")
	ErrWrongKind        = errors.New("token has the wrong kind")
	ErrKeyTooShort      = fmt.Errorf("signing key must be at least %d bytes", constants.JWTSecretMinLength)
)

type Claims struct {
	jwt.RegisteredClaims
	Kind Kind `json:"type"`
}

// RequireKind fails with ErrWrongKind unless the token was issued as kind.
func (c *Claims) RequireKind(kind Kind) error {
	if c.Kind != kind {
		return fmt.Errorf("%w: want %s, got %q", ErrWrongKind, kind, c.Kind)
	}
	return nil
}

type Codec struct {
	key         []byte
	clock       clock.Clock
	idGenerator commoncrypto.IDGenerator
	parser      *jwt.Parser
}

func NewCodec(key []byte, clk clock.Clock, idGenerator commoncrypto.IDGenerator) (*Codec, error) {
	if len(key) < constants.JWTSecretMinLength {
		return nil, ErrKeyTooShort
	}

	keyCopy := make([]byte, len(key))
	copy(keyCopy, key)

	return &Codec{
		key:         keyCopy,
		clock:       clk,
		idGenerator: idGenerator,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(clk.Now),
		),
	}, nil
}

// Issue signs a token for subject that expires ttl from now. The returned
// claims are exactly what the token carries, timestamps included.
func (c *Codec) Issue(subject string, kind Kind, ttl time.Duration) (string, *Claims, error) {
	if subject == "" {
		return "", nil, errors.New("token subject is required")
	}
	if ttl <= 0 {
		return "", nil, fmt.Errorf("token ttl must be positive, got %v", ttl)
	}

	jti, err := c.idGenerator.NewID()
	if err != nil {
		return "", nil, err
	}

	now := c.clock.Now().UTC().Truncate(time.Second)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
		Kind: kind,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

// Verify checks signature, algorithm and expiry. It does not look at the kind.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := c.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return c.key, nil
	})
	if err == nil {
		return claims, nil
	}

	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %v", ErrExpired, err)
	default:
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
