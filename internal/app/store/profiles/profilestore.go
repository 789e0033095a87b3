// internal/app/store/profiles/profilestore.go
package profilestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/memberhub/internal/app/system/normalize"
	"github.com/dalemusser/memberhub/internal/app/system/sentinel"
	"github.com/dalemusser/memberhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("profiles")}
}

var errNoUser = errors.New("profile must reference a user id")

// Create inserts a profile. The referenced user row may not exist yet.
func (s *Store) Create(ctx context.Context, p models.Profile) (models.Profile, error) {
	if p.UserID.IsZero() {
		return models.Profile{}, errNoUser
	}
	p.ID = primitive.NewObjectID()
	p.Email = normalize.Email(p.Email)
	p.Mobile = normalize.Mobile(p.Mobile)
	p.FullName = normalize.Name(p.FullName)
	p.Region = normalize.Region(p.Region)

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, p); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Profile{}, fmt.Errorf("create profile: %w", sentinel.ErrDuplicate)
		}
		return models.Profile{}, err
	}
	return p, nil
}

// GetByUser loads the profile belonging to userID.
func (s *Store) GetByUser(ctx context.Context, userID primitive.ObjectID) (*models.Profile, error) {
	var p models.Profile
	if err := s.c.FindOne(ctx, bson.M{"user_id": userID}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// EmailTaken reports whether any profile already uses email (normalized).
func (s *Store) EmailTaken(ctx context.Context, email string) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)},
		options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return false, err
}

// DeleteByUser removes the profile for userID. Missing profiles are ignored.
func (s *Store) DeleteByUser(ctx context.Context, userID primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"user_id": userID})
	return err
}
