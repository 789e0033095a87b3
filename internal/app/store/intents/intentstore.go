// internal/app/store/intents/intentstore.go
package intentstore

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

// Store manages pay-first registration orders. Pending intents carry
// expires_at and are removed by a TTL index; consuming an intent drops
// expires_at so the record is kept.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("payment_intents")}
}

func decodeOne(res *mongo.SingleResult) (*models.PaymentIntent, error) {
	var in models.PaymentIntent
	if err := res.Decode(&in); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return &in, nil
}

// Create stores a pending intent.
func (s *Store) Create(ctx context.Context, in models.PaymentIntent) (models.PaymentIntent, error) {
	in.ID = primitive.NewObjectID()
	in.Email = normalize.Email(in.Email)
	in.Mobile = normalize.Mobile(in.Mobile)
	in.Username = normalize.Username(in.Username)
	in.Status = models.IntentPending
	in.UserID = nil
	in.ConsumedAt = nil
	in.CreatedAt = time.Now().UTC()

	if _, err := s.c.InsertOne(ctx, in); err != nil {
		if wafflemongo.IsDup(err) {
			return models.PaymentIntent{}, fmt.Errorf("create intent: %w", sentinel.ErrDuplicate)
		}
		return models.PaymentIntent{}, err
	}
	return in, nil
}

func (s *Store) GetByOrderID(ctx context.Context, orderID string) (*models.PaymentIntent, error) {
	return decodeOne(s.c.FindOne(ctx, bson.M{"order_id": orderID}))
}

// LatestPendingByEmail returns the newest unexpired pending intent for email.
func (s *Store) LatestPendingByEmail(ctx context.Context, email string, now time.Time) (*models.PaymentIntent, error) {
	return decodeOne(s.c.FindOne(ctx,
		bson.M{
			"email":      normalize.Email(email),
			"status":     models.IntentPending,
			"expires_at": bson.M{"$gt": now},
		},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	))
}

// Consume binds a pending, unexpired intent to userID. Exactly one caller
// can consume a given order. Returns sentinel.ErrConflict if the intent was
// already consumed and sentinel.ErrNotFound if it is missing or expired.
func (s *Store) Consume(ctx context.Context, orderID string, userID primitive.ObjectID, now time.Time) (*models.PaymentIntent, error) {
	in, err := decodeOne(s.c.FindOneAndUpdate(ctx,
		bson.M{
			"order_id":   orderID,
			"status":     models.IntentPending,
			"expires_at": bson.M{"$gt": now},
		},
		bson.M{
			"$set":   bson.M{"status": models.IntentConsumed, "user_id": userID, "consumed_at": now},
			"$unset": bson.M{"expires_at": ""},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	))
	if err == nil {
		return in, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}

	existing, getErr := s.GetByOrderID(ctx, orderID)
	if getErr != nil {
		return nil, getErr
	}
	if existing.Status == models.IntentConsumed {
		return existing, sentinel.ErrConflict
	}
	return nil, sentinel.ErrNotFound
}

// Release returns a consumed intent to pending so a failed registration can
// be retried with the same payment. ttl sets the new expiry.
func (s *Store) Release(ctx context.Context, orderID string, userID primitive.ObjectID, ttl time.Duration) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"order_id": orderID, "status": models.IntentConsumed, "user_id": userID},
		bson.M{
			"$set":   bson.M{"status": models.IntentPending, "expires_at": time.Now().UTC().Add(ttl)},
			"$unset": bson.M{"user_id": "", "consumed_at": ""},
		},
	)
	return err
}

// CleanupExpired removes pending intents past their expiry.
// This is a backup for when TTL index cleanup is delayed.
func (s *Store) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{
		"status":     models.IntentPending,
		"expires_at": bson.M{"$lt": now},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
