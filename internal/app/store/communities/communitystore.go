// internal/app/store/communities/communitystore.go
package communitystore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/memberhub/internal/app/system/sentinel"
	"github.com/dalemusser/memberhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("communities")}
}

var errNoFounder = errors.New("founded community needs a founder id")

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Community, error) {
	var c models.Community
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// FindByMember returns the community that lists userID as a member or core
// member. Returns sentinel.ErrNotFound when the user is in no community.
func (s *Store) FindByMember(ctx context.Context, userID primitive.ObjectID) (*models.Community, error) {
	var c models.Community
	err := s.c.FindOne(ctx, bson.M{"$or": bson.A{
		bson.M{"core_members": userID},
		bson.M{"members": userID},
	}}).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// CreateFounded creates a community for founder with founder as its first
// core member. c.ID is kept when set. founder_id is unique, so concurrent calls for the same
// founder converge on one community; created reports whether this call
// inserted it.
func (s *Store) CreateFounded(ctx context.Context, c models.Community) (community models.Community, created bool, err error) {
	if c.FounderID == nil {
		return models.Community{}, false, errNoFounder
	}
	now := time.Now().UTC()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	c.NameCI = text.Fold(c.Name)
	c.CoreMembers = []primitive.ObjectID{*c.FounderID}
	if c.Members == nil {
		c.Members = []primitive.ObjectID{}
	}
	c.CreatedAt = now
	c.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, c); err != nil {
		if !wafflemongo.IsDup(err) {
			return models.Community{}, false, err
		}
		var existing models.Community
		if err := s.c.FindOne(ctx, bson.M{"founder_id": *c.FounderID}).Decode(&existing); err != nil {
			return models.Community{}, false, err
		}
		return existing, false, nil
	}
	return c, true, nil
}

// AddCoreMember adds userID to core_members and removes it from members.
func (s *Store) AddCoreMember(ctx context.Context, communityID, userID primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": communityID},
		bson.M{
			"$addToSet": bson.M{"core_members": userID},
			"$pull":     bson.M{"members": userID},
			"$set":      bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// AddMember adds userID to members unless it is already a core member.
func (s *Store) AddMember(ctx context.Context, communityID, userID primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": communityID, "core_members": bson.M{"$ne": userID}},
		bson.M{
			"$addToSet": bson.M{"members": userID},
			"$set":      bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}
	// Either the community is gone or the user is already a core member.
	if _, err := s.GetByID(ctx, communityID); err != nil {
		return err
	}
	return nil
}
