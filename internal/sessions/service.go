package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Service wraps repository operations with token generation and expiry.
type Service struct {
	repo Repository
	ttl  time.Duration
	now  func() time.Time
}

func NewService(r Repository, ttl time.Duration) *Service {
	return &Service{repo: r, ttl: ttl, now: time.Now}
}

// SetClock overrides the time source; tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// CreateSession stores sess under a fresh random token and returns the token.
func (s *Service) CreateSession(ctx context.Context, sess *Session) (string, error) {
	tok, err := newToken()
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	sess.Token = tok
	sess.CreatedAt = now
	sess.ExpiresAt = now.Add(s.ttl)
	if err := s.repo.Save(ctx, sess); err != nil {
		return "", err
	}
	return tok, nil
}

// Validate returns the session if the token is valid and not expired.
func (s *Service) Validate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}
	sess, err := s.repo.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	if s.now().UTC().After(sess.ExpiresAt) {
		// cleanup expired session
		_ = s.repo.Delete(ctx, token)
		return nil, nil
	}
	return sess, nil
}

// Update persists changes to an existing session, keeping its expiry.
func (s *Service) Update(ctx context.Context, sess *Session) error {
	return s.repo.Save(ctx, sess)
}

func (s *Service) Revoke(ctx context.Context, token string) error {
	return s.repo.Delete(ctx, token)
}
