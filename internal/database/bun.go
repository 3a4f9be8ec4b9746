package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/redmonkez12/taskmanager-auth/internal/config"
)

// User is the users table row.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                      string     `bun:"id,pk"`
	Username                string     `bun:"username,notnull,unique"`
	Email                   string     `bun:"email,notnull,unique"`
	FullName                string     `bun:"full_name,nullzero"`
	AvatarURL               string     `bun:"avatar_url,notnull"`
	AvatarLocalPath         string     `bun:"avatar_local_path,notnull,default:''"`
	PasswordHash            string     `bun:"password_hash,notnull"`
	IsEmailVerified         bool       `bun:"is_email_verified,notnull,default:false"`
	RefreshToken            string     `bun:"refresh_token,nullzero"`
	EmailVerificationToken  *string    `bun:"email_verification_token"`
	EmailVerificationExpiry *time.Time `bun:"email_verification_expiry"`
	ForgotPasswordToken     *string    `bun:"forgot_password_token"`
	ForgotPasswordExpiry    *time.Time `bun:"forgot_password_expiry"`
	CreatedAt               time.Time  `bun:"created_at,notnull"`
	UpdatedAt               time.Time  `bun:"updated_at,notnull"`
}

// NewBunDB creates a new Bun DB instance from an existing sql.DB connection
func NewBunDB(sqlDB *sql.DB) *bun.DB {
	return bun.NewDB(sqlDB, pgdialect.New())
}

// OpenPostgres connects to Postgres and verifies the connection.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig) (*bun.DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return NewBunDB(sqlDB), nil
}

// MigratePostgres creates the users table and its token lookup indexes.
func MigratePostgres(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().
		Model((*User)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}

	for name, column := range map[string]string{
		"users_email_verification_token_idx": "email_verification_token",
		"users_forgot_password_token_idx":    "forgot_password_token",
	} {
		if _, err := db.NewCreateIndex().
			Model((*User)(nil)).
			Index(name).
			Column(column).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to create index %s: %w", name, err)
		}
	}

	return nil
}
