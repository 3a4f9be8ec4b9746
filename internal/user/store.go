package user

import (
	"context"
	"errors"
)

var (
	ErrNotFound  = errors.New("user not found")
	ErrDuplicate = errors.New("user with same email or username already exists")
)

// Store persists user records. Implementations rely on single-document
// atomicity only; concurrent updates to one user are last-write-wins.
type Store interface {
	// Create inserts u, stamping CreatedAt/UpdatedAt. Returns ErrDuplicate
	// when the username or email is taken.
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// FindByUsernameOrEmail returns any user holding either value.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*User, error)
	GetByEmailVerificationHash(ctx context.Context, hash string) (*User, error)
	GetByPasswordResetHash(ctx context.Context, hash string) (*User, error)
	// Update replaces the stored record with u and refreshes UpdatedAt.
	Update(ctx context.Context, u *User) error
}
