// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/memberhub/internal/app/system/normalize"
	"github.com/dalemusser/memberhub/internal/app/system/sentinel"
	"github.com/dalemusser/memberhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

var (
	errBadTier     = errors.New("membership_tier is not a known tier")
	errMissingName = errors.New("full_name is required")
)

// identityFields are the user fields that must be unique across all users.
var identityFields = map[string]bool{"email": true, "mobile": true, "username": true}

// GetByID loads a user by ObjectID. Returns sentinel.ErrNotFound if absent.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByIdentity finds the user matching any of the non-empty identity values.
func (s *Store) GetByIdentity(ctx context.Context, email, mobile, username string) (*models.User, error) {
	var or bson.A
	if v := normalize.Email(email); v != "" {
		or = append(or, bson.M{"email": v})
	}
	if v := normalize.Mobile(mobile); v != "" {
		or = append(or, bson.M{"mobile": v})
	}
	if v := normalize.Username(username); v != "" {
		or = append(or, bson.M{"username": v})
	}
	if len(or) == 0 {
		return nil, sentinel.ErrNotFound
	}

	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"$or": or}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// FieldTaken reports whether any user already holds value in field, which
// must be one of email, mobile or username. value must already be normalized.
func (s *Store) FieldTaken(ctx context.Context, field, value string) (bool, error) {
	if !identityFields[field] {
		return false, fmt.Errorf("userstore: %q is not an identity field", field)
	}
	err := s.c.FindOne(ctx, bson.M{field: value}, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return false, err
}

// Create inserts a new, inactive user after normalizing identity fields.
// u.ID is kept when set so callers can allocate the id up front. A unique
// index violation is reported as sentinel.ErrDuplicate.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.FullName = normalize.Name(u.FullName)
	if u.FullName == "" {
		return models.User{}, errMissingName
	}
	u.FullNameCI = text.Fold(u.FullName)
	u.Email = normalize.Email(u.Email)
	u.Mobile = normalize.Mobile(u.Mobile)
	u.Username = normalize.Username(u.Username)
	u.Region = normalize.Region(u.Region)
	if !u.MembershipTier.Valid() {
		return models.User{}, errBadTier
	}

	// New users are never active and carry no community or credential yet.
	u.IsActive = false
	u.Expiring = false
	u.CommunityID = nil
	u.CommunityRole = ""
	u.CredentialIssuedAt = nil
	u.PasswordHash = ""

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, fmt.Errorf("create user: %w", sentinel.ErrDuplicate)
		}
		return models.User{}, err
	}
	return u, nil
}

// Delete removes a user by id. Deleting a missing user is not an error.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// ReferrerOf returns the referred_by of the given user (nil when the user
// was not referred). Returns sentinel.ErrNotFound if the user does not exist.
func (s *Store) ReferrerOf(ctx context.Context, id primitive.ObjectID) (*primitive.ObjectID, error) {
	var doc struct {
		ReferredBy *primitive.ObjectID `bson:"referred_by"`
	}
	err := s.c.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(bson.M{"referred_by": 1})).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return doc.ReferredBy, nil
}

// ClaimCommunity records communityID on the user if the user has no
// community yet. It returns true when the user now belongs to communityID,
// whether claimed by this call or earlier, and false when the user is
// already bound to a different community.
func (s *Store) ClaimCommunity(ctx context.Context, userID, communityID primitive.ObjectID, role models.CommunityRole) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": userID, "community_id": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{
			"community_id":   communityID,
			"community_role": role,
			"updated_at":     time.Now().UTC(),
		}},
	)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 1 {
		return true, nil
	}

	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.CommunityID != nil && *u.CommunityID == communityID, nil
}

// Activation describes the state written when a user becomes active.
type Activation struct {
	RenewalDate time.Time
	// PasswordHash and IssuedAt are set only on first activation. When
	// PasswordHash is empty the existing credential is kept.
	PasswordHash string
	IssuedAt     time.Time
}

// Activate flips an inactive user to active in a single conditional update.
// It matches only users that are inactive, not mid-expiry, and (when a new
// credential is being issued) have never had one. Returns false when another
// caller got there first or the guard no longer holds.
func (s *Store) Activate(ctx context.Context, userID primitive.ObjectID, a Activation) (bool, error) {
	filter := bson.M{
		"_id":       userID,
		"is_active": false,
		"expiring":  bson.M{"$ne": true},
	}
	set := bson.M{
		"is_active":    true,
		"renewal_date": a.RenewalDate,
		"updated_at":   time.Now().UTC(),
	}
	if a.PasswordHash != "" {
		filter["credential_issued_at"] = bson.M{"$exists": false}
		set["password_hash"] = a.PasswordHash
		set["credential_issued_at"] = a.IssuedAt
	}

	res, err := s.c.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// ListDueForSweep returns active users whose period ends on or before
// horizon, plus users left mid-expiry by an interrupted sweep.
func (s *Store) ListDueForSweep(ctx context.Context, horizon time.Time) ([]models.User, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"is_active": true, "renewal_date": bson.M{"$lte": horizon}},
		bson.M{
			"is_active":            true,
			"renewal_date":         bson.M{"$exists": false},
			"credential_issued_at": bson.M{"$lte": horizon.Add(-models.MembershipTerm)},
		},
		bson.M{"expiring": true},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "renewal_date", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ClaimReminder marks a reminder as sent at now unless one was already sent
// on or after dayStart. Returns true if the caller should send it.
func (s *Store) ClaimReminder(ctx context.Context, userID primitive.ObjectID, dayStart, now time.Time) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":       userID,
			"is_active": true,
			"$or": bson.A{
				bson.M{"last_reminder_at": bson.M{"$exists": false}},
				bson.M{"last_reminder_at": bson.M{"$lt": dayStart}},
			},
		},
		bson.M{"$set": bson.M{"last_reminder_at": now}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// BeginExpiry deactivates an active user whose period ended on or before
// now and marks them mid-expiry. Returns false if the user was not active
// or has since been renewed.
func (s *Store) BeginExpiry(ctx context.Context, userID primitive.ObjectID, now time.Time) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":       userID,
			"is_active": true,
			"$or": bson.A{
				bson.M{"renewal_date": bson.M{"$lte": now}},
				bson.M{
					"renewal_date":         bson.M{"$exists": false},
					"credential_issued_at": bson.M{"$lte": now.Add(-models.MembershipTerm)},
				},
			},
		},
		bson.M{"$set": bson.M{
			"is_active":  false,
			"expiring":   true,
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// FinishExpiry clears the mid-expiry marker once the renewal fee is reopened.
func (s *Store) FinishExpiry(ctx context.Context, userID primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": userID, "expiring": true},
		bson.M{
			"$unset": bson.M{"expiring": "", "last_reminder_at": ""},
			"$set":   bson.M{"updated_at": time.Now().UTC()},
		},
	)
	return err
}
