package port

import (
	"context"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

type AccountRepository interface {
	// CreateUser inserts a user, domain.ErrConflict if the username is taken
	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)

	// GetUser retrieves a user by username, nil if absent
	GetUser(ctx context.Context, username string) (*domain.User, error)

	// ListUsers returns every user ordered by username
	ListUsers(ctx context.Context) ([]domain.User, error)

	// UpdateUser applies the non-nil fields; newPasswordHash replaces the stored hash.
	// Returns nil user if the username is absent, domain.ErrConflict on a rename collision.
	UpdateUser(ctx context.Context, username string, newUsername, newPasswordHash *string) (*domain.User, error)

	// DeleteUser removes a user, absent usernames are not an error
	DeleteUser(ctx context.Context, username string) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}
