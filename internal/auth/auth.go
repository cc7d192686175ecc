// Package auth issues and verifies the signed access tokens used by the HTTP
// API.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is what a token holder may do.
type Role string

const (
	// RoleClient may act on its own subject only.
	RoleClient Role = "client"
	// RoleCoach may act on any subject.
	RoleCoach Role = "coach"
	// RoleAdmin may act on any subject and read operational data.
	RoleAdmin Role = "admin"
)

// keyID is written to the token header so the signing key can be rotated.
const keyID = "v1"

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid access token")

// Claims are the contents of an access token. The subject claim is the
// subject id the token was issued for.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// CanAccess reports whether the holder may act on subjectID.
func (c *Claims) CanAccess(subjectID string) bool {
	switch c.Role {
	case RoleCoach, RoleAdmin:
		return true
	case RoleClient:
		return c.Subject != "" && c.Subject == subjectID
	}
	return false
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	secret   []byte
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewIssuer creates an Issuer. The secret must not be empty.
func NewIssuer(secret, audience string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("JWT_SECRET environment variable not set")
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), audience: audience, ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for subject with role.
func (i *Issuer) Issue(subject string, role Role) (string, error) {
	switch role {
	case RoleClient, RoleCoach, RoleAdmin:
	default:
		return "", fmt.Errorf("unknown role %q", role)
	}
	if role == RoleClient && subject == "" {
		return "", errors.New("client tokens need a subject")
	}

	now := i.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = keyID

	return token.SignedString(i.secret)
}

// Verify parses a token and checks its signature, expiry and audience.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(i.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}
