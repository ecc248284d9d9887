// Package tokens issues and verifies the HS256 access tokens of the local backend.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/modernplatform/modern-platform/internal/backend"
)

// ErrInvalidToken covers malformed, tampered and expired tokens.
var ErrInvalidToken = errors.New("invalid access token")

// Claims carried by an access token. Subject is the account id.
type Claims struct {
	Email            string `json:"email"`
	AccountCreatedAt int64  `json:"account_created_at,omitempty"`
	jwt.RegisteredClaims
}

// Identity rebuilds the authenticated identity from the claims.
func (c *Claims) Identity() backend.Identity {
	id := backend.Identity{ID: c.Subject, Email: c.Email}
	if c.AccountCreatedAt > 0 {
		id.CreatedAt = time.Unix(c.AccountCreatedAt, 0).UTC()
	}
	return id
}

// Issuer signs and parses access tokens with a shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// SetClock overrides the time source for issuing and validating.
func (i *Issuer) SetClock(now func() time.Time) { i.now = now }

// TTL is the lifetime of issued tokens.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// GenerateAccessToken creates a signed access token for the identity and
// returns it with its expiry.
func (i *Issuer) GenerateAccessToken(id backend.Identity) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := Claims{
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	if !id.CreatedAt.IsZero() {
		claims.AccountCreatedAt = id.CreatedAt.Unix()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, exp, nil
}

// ParseAccessToken verifies signature, algorithm and expiry.
func (i *Issuer) ParseAccessToken(raw string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return &claims, nil
}
