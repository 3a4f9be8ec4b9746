package user

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client), mr
}

// =============================================================================
// Create / lookups
// =============================================================================

func TestRedisStore_CreateAndGet(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	u := New("id-1", "alice", "alice@example.com", "hash")
	require.NoError(t, store.Create(ctx, u))

	byID, err := store.GetByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)
	assert.Equal(t, "hash", byID.PasswordHash)

	byEmail, err := store.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "id-1", byEmail.ID)

	found, err := store.FindByUsernameOrEmail(ctx, "nobody", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "id-1", found.ID)

	found, err = store.FindByUsernameOrEmail(ctx, "alice", "nobody@example.com")
	require.NoError(t, err)
	assert.Equal(t, "id-1", found.ID)
}

func TestRedisStore_CreateDuplicate(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, New("id-1", "alice", "alice@example.com", "hash")))

	err := store.Create(ctx, New("id-2", "bob", "alice@example.com", "hash"))
	assert.ErrorIs(t, err, ErrDuplicate)

	err = store.Create(ctx, New("id-3", "alice", "other@example.com", "hash"))
	assert.ErrorIs(t, err, ErrDuplicate)

	// Failed creates leave no claimed keys behind.
	assert.False(t, mr.Exists("user:username:bob"))
	assert.False(t, mr.Exists("user:email:other@example.com"))
}

func TestRedisStore_NotFound(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	_, err := store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.FindByUsernameOrEmail(ctx, "a", "b@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetByPasswordResetHash(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

// =============================================================================
// Token indexes
// =============================================================================

func TestRedisStore_TokenIndexFollowsUpdates(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	u := New("id-1", "alice", "alice@example.com", "hash")
	u.SetEmailVerification("first", time.Now().Add(20*time.Minute))
	require.NoError(t, store.Create(ctx, u))

	got, err := store.GetByEmailVerificationHash(ctx, "first")
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)
	assert.Zero(t, mr.TTL("user:verify:first"))

	u.SetEmailVerification("second", time.Now().Add(20*time.Minute))
	require.NoError(t, store.Update(ctx, u))

	_, err = store.GetByEmailVerificationHash(ctx, "first")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetByEmailVerificationHash(ctx, "second")
	require.NoError(t, err)

	u.ClearEmailVerification()
	u.IsEmailVerified = true
	require.NoError(t, store.Update(ctx, u))

	_, err = store.GetByEmailVerificationHash(ctx, "second")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mr.Exists("user:verify:second"))
}

func TestRedisStore_TokenIndexOutlivesExpiry(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	u := New("id-1", "alice", "alice@example.com", "hash")
	u.SetEmailVerification("verify-digest", time.Now().Add(20*time.Minute))
	u.SetPasswordReset("reset-digest", time.Now().Add(20*time.Minute))
	require.NoError(t, store.Create(ctx, u))

	mr.FastForward(30 * 24 * time.Hour)

	got, err := store.GetByEmailVerificationHash(ctx, "verify-digest")
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)
	require.NotNil(t, got.EmailVerificationExpiry)

	got, err = store.GetByPasswordResetHash(ctx, "reset-digest")
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)
}

func TestRedisStore_ResetIndex(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	u := New("id-1", "alice", "alice@example.com", "hash")
	require.NoError(t, store.Create(ctx, u))

	u.SetPasswordReset("digest", time.Now().Add(time.Minute))
	require.NoError(t, store.Update(ctx, u))

	got, err := store.GetByPasswordResetHash(ctx, "digest")
	require.NoError(t, err)
	require.True(t, got.HasPendingReset())
	assert.Equal(t, "digest", *got.ForgotPasswordTokenHash)
}

func TestRedisStore_UpdateMissing(t *testing.T) {
	store, _ := newRedisStore(t)

	err := store.Update(context.Background(), New("ghost", "g", "g@example.com", "h"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_UpdateMovesEmailIndex(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, New("id-2", "bob", "bob@example.com", "hash")))

	u := New("id-1", "alice", "alice@example.com", "hash")
	require.NoError(t, store.Create(ctx, u))

	u.Email = "bob@example.com"
	assert.ErrorIs(t, store.Update(ctx, u), ErrDuplicate)

	u.Email = "alice@new.example.com"
	require.NoError(t, store.Update(ctx, u))

	assert.False(t, mr.Exists("user:email:alice@example.com"))
	got, err := store.GetByEmail(ctx, "alice@new.example.com")
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)
}
