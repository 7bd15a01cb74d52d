package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vidtube-org/vidtube/backend/internal/models"
)

var (
	// ErrNoUser is returned when a lookup matches no account.
	ErrNoUser = errors.New("user not found")
	// ErrDuplicate is returned when a unique index rejects a write.
	ErrDuplicate = errors.New("username or email already taken")
)

// UserStore handles account persistence in MongoDB, including the
// single refresh-token slot per account.
type UserStore struct {
	col *mongo.Collection
}

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{col: db.Collection("users")}
}

// EnsureIndexes creates the unique username and email indexes.
func (s *UserStore) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
	})
	if err != nil {
		return fmt.Errorf("mongo user indexes: %w", err)
	}
	return nil
}

// Create inserts the account and returns it with its assigned id.
func (s *UserStore) Create(ctx context.Context, u *models.User) (*models.User, error) {
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	res, err := s.col.InsertOne(ctx, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("mongo insert user: %w", err)
	}
	u.ID = res.InsertedID.(primitive.ObjectID)
	return u, nil
}

// ByIdentifier resolves an account by username-or-email match.
// The identifier is matched against both fields, which are stored lowercase.
func (s *UserStore) ByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	filter := bson.M{"$or": []bson.M{
		{"username": identifier},
		{"email": identifier},
	}}
	var u models.User
	if err := s.col.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNoUser
		}
		return nil, fmt.Errorf("mongo find user: %w", err)
	}
	return &u, nil
}

// ByID resolves the full account document, refresh-token slot included.
func (s *UserStore) ByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNoUser
	}
	var u models.User
	if err := s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNoUser
		}
		return nil, fmt.Errorf("mongo find user: %w", err)
	}
	return &u, nil
}

// SanitizedByID resolves the account with the credential hash and the
// refresh-token slot excluded from the projection.
func (s *UserStore) SanitizedByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNoUser
	}
	opts := options.FindOne().SetProjection(bson.M{"password": 0, "refreshToken": 0})
	var u models.User
	if err := s.col.FindOne(ctx, bson.M{"_id": oid}, opts).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNoUser
		}
		return nil, fmt.Errorf("mongo find user: %w", err)
	}
	return &u, nil
}

// SetRefreshToken overwrites the account's refresh-token slot.
func (s *UserStore) SetRefreshToken(ctx context.Context, id, refreshToken string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNoUser
	}
	res, err := s.col.UpdateByID(ctx, oid, bson.M{"$set": bson.M{
		"refreshToken": refreshToken,
		"updatedAt":    time.Now(),
	}})
	if err != nil {
		return fmt.Errorf("mongo set refresh token: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNoUser
	}
	return nil
}

// ClearRefreshToken empties the account's refresh-token slot.
func (s *UserStore) ClearRefreshToken(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNoUser
	}
	_, err = s.col.UpdateByID(ctx, oid, bson.M{
		"$unset": bson.M{"refreshToken": ""},
		"$set":   bson.M{"updatedAt": time.Now()},
	})
	if err != nil {
		return fmt.Errorf("mongo clear refresh token: %w", err)
	}
	return nil
}
