package local

import (
	"time"

	"github.com/modernplatform/modern-platform/internal/backend"
	"github.com/modernplatform/modern-platform/internal/blobstore"
	"github.com/modernplatform/modern-platform/internal/rowstore"
	"github.com/modernplatform/modern-platform/internal/sessions"
	"github.com/modernplatform/modern-platform/internal/tokens"
	"github.com/modernplatform/modern-platform/internal/users"
)

// NewMemory returns a local backend held entirely in process memory. The row
// store is returned for seeding.
func NewMemory(secret string, bcryptCost int) (*backend.Client, *rowstore.MemoryStore) {
	rows := rowstore.NewMemoryStore()
	accounts := users.NewService(users.NewStoreAccountRepository(rows))
	accounts.SetCost(bcryptCost)
	return New(Deps{
		Rows:      rows,
		Blobs:     blobstore.NewMemoryStore(""),
		Accounts:  accounts,
		Issuer:    tokens.NewIssuer(secret, 15*time.Minute),
		Refresh:   sessions.NewService(sessions.NewMemoryRepository(), 7*24*time.Hour),
		Blacklist: sessions.NewMemoryBlacklist(),
	}), rows
}
