package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type avatarDocument struct {
	URL       string `bson:"url"`
	LocalPath string `bson:"localPath"`
}

// userDocument is the BSON shape of a user in the users collection.
type userDocument struct {
	ID                      string         `bson:"_id"`
	Username                string         `bson:"username"`
	Email                   string         `bson:"email"`
	FullName                string         `bson:"fullName,omitempty"`
	Avatar                  avatarDocument `bson:"avatar"`
	Password                string         `bson:"password"`
	IsEmailVerified         bool           `bson:"isEmailVerified"`
	RefreshToken            string         `bson:"refreshToken,omitempty"`
	EmailVerificationToken  *string        `bson:"emailVerificationToken,omitempty"`
	EmailVerificationExpiry *time.Time     `bson:"emailVerificationExpiry,omitempty"`
	ForgotPasswordToken     *string        `bson:"forgotPasswordToken,omitempty"`
	ForgotPasswordExpiry    *time.Time     `bson:"forgotPasswordExpiry,omitempty"`
	CreatedAt               time.Time      `bson:"createdAt"`
	UpdatedAt               time.Time      `bson:"updatedAt"`
}

// MongoStore keeps one document per user.
type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(db *mongo.Database, collection string) *MongoStore {
	return &MongoStore{coll: db.Collection(collection)}
}

// EnsureIndexes creates the unique identity indexes and the sparse token
// lookup indexes. It is safe to call on every start.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "emailVerificationToken", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "forgotPasswordToken", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Create(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	if _, err := s.coll.InsertOne(ctx, toDocument(u)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *MongoStore) GetByID(ctx context.Context, id string) (*User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *MongoStore) FindByUsernameOrEmail(ctx context.Context, username, email string) (*User, error) {
	return s.findOne(ctx, bson.M{"$or": bson.A{
		bson.M{"username": username},
		bson.M{"email": email},
	}})
}

func (s *MongoStore) GetByEmailVerificationHash(ctx context.Context, hash string) (*User, error) {
	return s.findOne(ctx, bson.M{"emailVerificationToken": hash})
}

func (s *MongoStore) GetByPasswordResetHash(ctx context.Context, hash string) (*User, error) {
	return s.findOne(ctx, bson.M{"forgotPasswordToken": hash})
}

// Update replaces the whole document, so cleared token fields disappear.
func (s *MongoStore) Update(ctx context.Context, u *User) error {
	u.UpdatedAt = time.Now().UTC()

	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": u.ID}, toDocument(u))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var doc userDocument
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return doc.toUser(), nil
}

func toDocument(u *User) userDocument {
	return userDocument{
		ID:                      u.ID,
		Username:                u.Username,
		Email:                   u.Email,
		FullName:                u.FullName,
		Avatar:                  avatarDocument{URL: u.Avatar.URL, LocalPath: u.Avatar.LocalPath},
		Password:                u.PasswordHash,
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

func (d userDocument) toUser() *User {
	return &User{
		ID:                         d.ID,
		Username:                   d.Username,
		Email:                      d.Email,
		FullName:                   d.FullName,
		Avatar:                     Avatar{URL: d.Avatar.URL, LocalPath: d.Avatar.LocalPath},
		PasswordHash:               d.Password,
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
