// Package token signs and verifies the compact, expiring JWTs that carry
// session identity. Access and refresh tokens use separate Manager instances
// so their secrets and lifetimes stay independent.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrExpired is returned when a token's signature checks out but its
	// expiry has passed.
	ErrExpired = errors.New("token expired")
	// ErrMalformed is returned for any other verification failure: bad
	// signature, wrong algorithm, or garbage input.
	ErrMalformed = errors.New("token malformed")
)

// Claims is the identity claim set embedded in both token kinds.
// Refresh tokens carry only the user id; access tokens carry the full set.
type Claims struct {
	UserID   string `json:"uid"`
	Username string `json:"username,omitempty"`
	FullName string `json:"fullName,omitempty"`
	Email    string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies tokens with a single HS256 secret and TTL.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

func NewManager(secret []byte, ttl time.Duration) (*Manager, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: empty secret")
	}
	if ttl <= 0 {
		return nil, errors.New("token: invalid ttl")
	}
	return &Manager{secret: secret, ttl: ttl}, nil
}

// TTL reports the configured token lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Sign stamps the claims with issued-at, expiry, and a unique token id, and
// returns the signed compact serialization. The jti keeps two tokens minted
// in the same second from serializing identically, which refresh rotation
// depends on.
func (m *Manager) Sign(claims Claims) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.ttl))
	claims.ID = uuid.NewString()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(m.secret)
}

// Verify parses and validates the token, returning its claims.
// Failures collapse to ErrExpired or ErrMalformed.
func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	tok, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}
	if !tok.Valid || claims.UserID == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}
