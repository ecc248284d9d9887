package users

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrEmailTaken is returned by Register when the address already has an account.
	ErrEmailTaken = errors.New("user already registered")
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid login credentials")
)

// Service encapsulates account registration and password checks
type Service struct {
	repo AccountRepository
	cost int
}

func NewService(r AccountRepository) *Service {
	return &Service{repo: r, cost: bcrypt.DefaultCost}
}

// SetCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func (s *Service) SetCost(cost int) { s.cost = cost }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account for email with a hashed password.
func (s *Service) Register(ctx context.Context, email, password string) (*Account, error) {
	email = normalizeEmail(email)
	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, &Account{Email: email, PasswordHash: string(hash)})
}

// Authenticate returns the account whose password matches.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	a, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}
