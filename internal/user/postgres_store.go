package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/taskmanager-auth/internal/database"
)

const pgUniqueViolation = "23505"

// PostgresStore handles user persistence in Postgres through bun.
type PostgresStore struct {
	db *bun.DB
}

func NewPostgresStore(db *bun.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a new user into the database
func (s *PostgresStore) Create(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	_, err := s.db.NewInsert().
		Model(toRow(u)).
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*User, error) {
	return s.getOne(ctx, "id", id)
}

func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.getOne(ctx, "email", email)
}

func (s *PostgresStore) GetByEmailVerificationHash(ctx context.Context, hash string) (*User, error) {
	return s.getOne(ctx, "email_verification_token", hash)
}

func (s *PostgresStore) GetByPasswordResetHash(ctx context.Context, hash string) (*User, error) {
	return s.getOne(ctx, "forgot_password_token", hash)
}

// FindByUsernameOrEmail returns the first user holding either value.
func (s *PostgresStore) FindByUsernameOrEmail(ctx context.Context, username, email string) (*User, error) {
	row := new(database.User)
	err := s.db.NewSelect().
		Model(row).
		Where("username = ?", username).
		WhereOr("email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user by username or email: %w", err)
	}

	return fromRow(row), nil
}

// Update writes every column of u back to its row.
func (s *PostgresStore) Update(ctx context.Context, u *User) error {
	u.UpdatedAt = time.Now().UTC()

	result, err := s.db.NewUpdate().
		Model(toRow(u)).
		WherePK().
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *PostgresStore) getOne(ctx context.Context, column, value string) (*User, error) {
	row := new(database.User)
	err := s.db.NewSelect().
		Model(row).
		Where("? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}

	return fromRow(row), nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

func toRow(u *User) *database.User {
	return &database.User{
		ID:                      u.ID,
		Username:                u.Username,
		Email:                   u.Email,
		FullName:                u.FullName,
		AvatarURL:               u.Avatar.URL,
		AvatarLocalPath:         u.Avatar.LocalPath,
		PasswordHash:            u.PasswordHash,
		IsEmailVerified:         u.IsEmailVerified,
		RefreshToken:            u.RefreshToken,
		EmailVerificationToken:  u.EmailVerificationTokenHash,
		EmailVerificationExpiry: u.EmailVerificationExpiry,
		ForgotPasswordToken:     u.ForgotPasswordTokenHash,
		ForgotPasswordExpiry:    u.ForgotPasswordExpiry,
		CreatedAt:               u.CreatedAt,
		UpdatedAt:               u.UpdatedAt,
	}
}

func fromRow(row *database.User) *User {
	return &User{
		ID:                         row.ID,
		Username:                   row.Username,
		Email:                      row.Email,
		FullName:                   row.FullName,
		Avatar:                     Avatar{URL: row.AvatarURL, LocalPath: row.AvatarLocalPath},
		PasswordHash:               row.PasswordHash,
		IsEmailVerified:            row.IsEmailVerified,
		RefreshToken:               row.RefreshToken,
		EmailVerificationTokenHash: row.EmailVerificationToken,
		EmailVerificationExpiry:    row.EmailVerificationExpiry,
		ForgotPasswordTokenHash:    row.ForgotPasswordToken,
		ForgotPasswordExpiry:       row.ForgotPasswordExpiry,
		CreatedAt:                  row.CreatedAt,
		UpdatedAt:                  row.UpdatedAt,
	}
}
