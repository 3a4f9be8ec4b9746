package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func getUserKey(id string) string {
	return fmt.Sprintf("user:%s", id)
}

func getEmailKey(email string) string {
	return fmt.Sprintf("user:email:%s", email)
}

func getUsernameKey(username string) string {
	return fmt.Sprintf("user:username:%s", username)
}

// Token index keys carry no TTL. They live exactly as long as the digest on
// the document, so an expired token is still found and reported as expired.
func getVerifyKey(hash string) string {
	return fmt.Sprintf("user:verify:%s", hash)
}

func getResetKey(hash string) string {
	return fmt.Sprintf("user:reset:%s", hash)
}

// redisDocument is the JSON stored under user:<id>. Unlike User it keeps
// the credential fields.
type redisDocument struct {
	ID                      string     `json:"id"`
	Username                string     `json:"username"`
	Email                   string     `json:"email"`
	FullName                string     `json:"fullName,omitempty"`
	Avatar                  Avatar     `json:"avatar"`
	PasswordHash            string     `json:"passwordHash"`
	IsEmailVerified         bool       `json:"isEmailVerified"`
	RefreshToken            string     `json:"refreshToken,omitempty"`
	EmailVerificationToken  *string    `json:"emailVerificationToken,omitempty"`
	EmailVerificationExpiry *time.Time `json:"emailVerificationExpiry,omitempty"`
	ForgotPasswordToken     *string    `json:"forgotPasswordToken,omitempty"`
	ForgotPasswordExpiry    *time.Time `json:"forgotPasswordExpiry,omitempty"`
	CreatedAt               time.Time  `json:"createdAt"`
	UpdatedAt               time.Time  `json:"updatedAt"`
}

// RedisStore keeps users as JSON documents with secondary index keys for
// email, username and outstanding token hashes.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Create claims the email and username index keys with SETNX before
// writing the document, releasing them again on conflict.
func (s *RedisStore) Create(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	claimed, err := s.claim(ctx, u.ID, getEmailKey(u.Email), getUsernameKey(u.Username))
	if err != nil {
		return err
	}

	if err := s.write(ctx, u, nil); err != nil {
		s.client.Del(ctx, claimed...)
		return err
	}
	return nil
}

func (s *RedisStore) GetByID(ctx context.Context, id string) (*User, error) {
	raw, err := s.client.Get(ctx, getUserKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var doc redisDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", id, err)
	}
	return doc.toUser(), nil
}

func (s *RedisStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.getByIndex(ctx, getEmailKey(email))
}

func (s *RedisStore) FindByUsernameOrEmail(ctx context.Context, username, email string) (*User, error) {
	u, err := s.getByIndex(ctx, getUsernameKey(username))
	if !errors.Is(err, ErrNotFound) {
		return u, err
	}
	return s.getByIndex(ctx, getEmailKey(email))
}

func (s *RedisStore) GetByEmailVerificationHash(ctx context.Context, hash string) (*User, error) {
	u, err := s.getByIndex(ctx, getVerifyKey(hash))
	if err != nil {
		return nil, err
	}
	if u.EmailVerificationTokenHash == nil || *u.EmailVerificationTokenHash != hash {
		return nil, ErrNotFound
	}
	return u, nil
}

func (s *RedisStore) GetByPasswordResetHash(ctx context.Context, hash string) (*User, error) {
	u, err := s.getByIndex(ctx, getResetKey(hash))
	if err != nil {
		return nil, err
	}
	if u.ForgotPasswordTokenHash == nil || *u.ForgotPasswordTokenHash != hash {
		return nil, ErrNotFound
	}
	return u, nil
}

// Update rewrites the document and moves any index key whose value changed.
func (s *RedisStore) Update(ctx context.Context, u *User) error {
	prev, err := s.GetByID(ctx, u.ID)
	if err != nil {
		return err
	}
	u.UpdatedAt = time.Now().UTC()

	var claimed []string
	if u.Email != prev.Email {
		keys, err := s.claim(ctx, u.ID, getEmailKey(u.Email))
		if err != nil {
			return err
		}
		claimed = append(claimed, keys...)
	}
	if u.Username != prev.Username {
		keys, err := s.claim(ctx, u.ID, getUsernameKey(u.Username))
		if err != nil {
			s.client.Del(ctx, claimed...)
			return err
		}
		claimed = append(claimed, keys...)
	}

	if err := s.write(ctx, u, prev); err != nil {
		if len(claimed) > 0 {
			s.client.Del(ctx, claimed...)
		}
		return err
	}
	return nil
}

// claim sets every key to id, or none of them.
func (s *RedisStore) claim(ctx context.Context, id string, keys ...string) ([]string, error) {
	claimed := make([]string, 0, len(keys))
	for _, key := range keys {
		ok, err := s.client.SetNX(ctx, key, id, 0).Result()
		if err != nil || !ok {
			if len(claimed) > 0 {
				s.client.Del(ctx, claimed...)
			}
			if err != nil {
				return nil, fmt.Errorf("failed to claim %s: %w", key, err)
			}
			return nil, ErrDuplicate
		}
		claimed = append(claimed, key)
	}
	return claimed, nil
}

// write stores u and reconciles the token and identity index keys against prev.
func (s *RedisStore) write(ctx context.Context, u *User, prev *User) error {
	raw, err := json.Marshal(toRedisDocument(u))
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, getUserKey(u.ID), raw, 0)

		if prev != nil {
			if prev.Email != u.Email {
				pipe.Del(ctx, getEmailKey(prev.Email))
			}
			if prev.Username != u.Username {
				pipe.Del(ctx, getUsernameKey(prev.Username))
			}
			if prev.EmailVerificationTokenHash != nil {
				pipe.Del(ctx, getVerifyKey(*prev.EmailVerificationTokenHash))
			}
			if prev.ForgotPasswordTokenHash != nil {
				pipe.Del(ctx, getResetKey(*prev.ForgotPasswordTokenHash))
			}
		}

		if u.HasPendingVerification() {
			pipe.Set(ctx, getVerifyKey(*u.EmailVerificationTokenHash), u.ID, 0)
		}
		if u.HasPendingReset() {
			pipe.Set(ctx, getResetKey(*u.ForgotPasswordTokenHash), u.ID, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store user: %w", err)
	}
	return nil
}

func (s *RedisStore) getByIndex(ctx context.Context, key string) (*User, error) {
	id, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read index %s: %w", key, err)
	}
	return s.GetByID(ctx, id)
}

func toRedisDocument(u *User) redisDocument {
	return redisDocument{
		ID:                      u.ID,
		Username:                u.Username,
		Email:                   u.Email,
		FullName:                u.FullName,
		Avatar:                  u.Avatar,
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

func (d redisDocument) toUser() *User {
	return &User{
		ID:                         d.ID,
		Username:                   d.Username,
		Email:                      d.Email,
		FullName:                   d.FullName,
		Avatar:                     d.Avatar,
		PasswordHash:               d.PasswordHash,
		IsEmailVerified:            d.IsEmailVerified,
		RefreshToken:               d.RefreshToken,
		EmailVerificationTokenHash: d.EmailVerificationToken,
		EmailVerificationExpiry:    d.EmailVerificationExpiry,
		ForgotPasswordTokenHash:    d.ForgotPasswordToken,
		ForgotPasswordExpiry:       d.ForgotPasswordExpiry,
		CreatedAt:                  d.CreatedAt,
		UpdatedAt:                  d.UpdatedAt,
	}
}
