package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modernplatform/modern-platform/internal/backend"
	"github.com/modernplatform/modern-platform/internal/rowstore"
)

// Account is a local email/password identity.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at,omitzero"`
}

// AccountRepository defines persistence operations for accounts
type AccountRepository interface {
	Create(ctx context.Context, a *Account) (*Account, error)
	// GetByEmail returns nil, nil when no account has the address.
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByID(ctx context.Context, id string) (*Account, error)
}

// StoreAccountRepository keeps accounts in the auth_users table of a row store.
type StoreAccountRepository struct {
	rows rowstore.Store
}

func NewStoreAccountRepository(rows rowstore.Store) *StoreAccountRepository {
	return &StoreAccountRepository{rows: rows}
}

func (r *StoreAccountRepository) Create(ctx context.Context, a *Account) (*Account, error) {
	rec, err := rowstore.ToRecord(a)
	if err != nil {
		return nil, err
	}
	if a.ID == "" {
		delete(rec, "id")
	}
	stored, err := r.rows.Insert(ctx, rowstore.TableAccounts, rec)
	if err != nil {
		if errors.Is(err, backend.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	var out Account
	if err := rowstore.Decode(stored, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *StoreAccountRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return r.getOne(ctx, "email", email)
}

func (r *StoreAccountRepository) GetByID(ctx context.Context, id string) (*Account, error) {
	return r.getOne(ctx, "id", id)
}

func (r *StoreAccountRepository) getOne(ctx context.Context, col, val string) (*Account, error) {
	recs, err := r.rows.Select(ctx, rowstore.TableAccounts, backend.Query{Eq: map[string]string{col: val}, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	var out Account
	if err := rowstore.Decode(recs[0], &out); err != nil {
		return nil, err
	}
	return &out, nil
}
