package user

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/taskmanager-auth/internal/database"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	return NewPostgresStore(database.NewBunDB(sqlDB)), mock
}

func TestPostgresStore_Create(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO "users"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u := New("id-1", "alice", "alice@example.com", "hash")
	require.NoError(t, store.Create(context.Background(), u))

	assert.False(t, u.CreatedAt.IsZero())
	assert.Equal(t, u.CreatedAt, u.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateDuplicate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO "users"`).
		WillReturnError(&pq.Error{Code: pgUniqueViolation, Message: "duplicate key value violates unique constraint"})

	err := store.Create(context.Background(), New("id-1", "alice", "alice@example.com", "hash"))
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetByEmail(t *testing.T) {
	store, mock := newMockStore(t)

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "username", "email", "avatar_url", "password_hash", "is_email_verified", "created_at", "updated_at"}).
		AddRow("id-1", "alice", "alice@example.com", DefaultAvatarURL, "hash", true, created, created)

	mock.ExpectQuery(`SELECT .* FROM "users" AS "u" WHERE \("email" = 'alice@example.com'\) LIMIT 1`).
		WillReturnRows(rows)

	u, err := store.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "id-1", u.ID)
	assert.Equal(t, "alice", u.Username)
	assert.True(t, u.IsEmailVerified)
	assert.Equal(t, DefaultAvatarURL, u.Avatar.URL)
	assert.Nil(t, u.EmailVerificationTokenHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM "users" AS "u" WHERE \("forgot_password_token" = 'abc'\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetByPasswordResetHash(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindByUsernameOrEmail(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`WHERE \(username = 'alice'\) OR \(email = 'bob@example.com'\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email"}).AddRow("id-1", "alice", "alice@example.com"))

	u, err := store.FindByUsernameOrEmail(context.Background(), "alice", "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, "id-1", u.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Update(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE "users" AS "u" SET .* WHERE .*'id-1'`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u := New("id-1", "alice", "alice@example.com", "hash")
	u.SetPasswordReset("digest", time.Now().Add(time.Minute))
	require.NoError(t, store.Update(context.Background(), u))
	assert.False(t, u.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateMissingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE "users"`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Update(context.Background(), New("missing", "a", "a@example.com", "h"))
	assert.ErrorIs(t, err, ErrNotFound)
}
