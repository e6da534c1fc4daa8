// Package admintoken issues and verifies the bearer tokens that gate persona
// mutations on the dashboard API. Tokens are HS256 JWTs signed with a shared
// secret; an empty secret disables the check entirely, which is the local
// development default.
package admintoken

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultTTL is the default lifetime for minted admin tokens.
	DefaultTTL = 12 * time.Hour
	// DefaultLeeway is clock skew tolerance for token validation.
	DefaultLeeway = 15 * time.Second

	issuer   = "personahub"
	audience = "persona-admin"
)

var ErrInvalidToken = errors.New("invalid admin token")

// Authority signs and verifies admin tokens with one shared secret.
type Authority struct {
	secret []byte
	ttl    time.Duration
	leeway time.Duration
}

// New returns an Authority, or nil when the secret is empty (auth disabled).
func New(secret string, ttl time.Duration) *Authority {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Authority{secret: []byte(secret), ttl: ttl, leeway: DefaultLeeway}
}

// Mint issues a token for the named operator.
func (a *Authority) Mint(subject string) (string, error) {
	if a == nil {
		return "", errors.New("admin auth is not configured")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Audience:  jwt.ClaimStrings{audience},
		Subject:   strings.TrimSpace(subject),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}
	return signed, nil
}

// Verify checks the token and returns its subject. A nil Authority accepts
// everything, so handlers can treat "auth disabled" uniformly.
func (a *Authority) Verify(raw string) (string, error) {
	if a == nil {
		return "", nil
	}
	parsed, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithLeeway(a.leeway),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Enabled reports whether admin auth is configured.
func (a *Authority) Enabled() bool {
	return a != nil
}
