// internal/app/store/fees/feestore.go
package feestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/memberhub/internal/app/system/sentinel"
	"github.com/dalemusser/memberhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store persists fee records. (user_id, fee_type) is unique, so each user
// has at most one record, and therefore at most one completed record, per
// fee type.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("fee_records")}
}

// Completion carries the settlement details written by Complete.
// ExpectOrderID, when set, must equal the record's gateway_order_id.
type Completion struct {
	Method        models.PaymentMethod
	ExpectOrderID string
	OrderID       string
	PaymentID     string
	Signature     string
	ReferenceID   string
	At            time.Time
}

func decodeOne(res *mongo.SingleResult) (*models.FeeRecord, error) {
	var f models.FeeRecord
	if err := res.Decode(&f); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.FeeRecord, error) {
	return decodeOne(s.c.FindOne(ctx, bson.M{"_id": id}))
}

func (s *Store) GetByUserAndType(ctx context.Context, userID primitive.ObjectID, feeType models.FeeType) (*models.FeeRecord, error) {
	return decodeOne(s.c.FindOne(ctx, bson.M{"user_id": userID, "fee_type": feeType}))
}

// ListByUser returns every fee record of userID, oldest first.
func (s *Store) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.FeeRecord, error) {
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.FeeRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Open returns the record for (rec.UserID, rec.FeeType), inserting rec as a
// pending record if none exists. The upsert makes concurrent opens converge
// on one record; created reports whether this call inserted it.
func (s *Store) Open(ctx context.Context, rec models.FeeRecord) (out models.FeeRecord, created bool, err error) {
	now := time.Now().UTC()
	id := primitive.NewObjectID()
	filter := bson.M{"user_id": rec.UserID, "fee_type": rec.FeeType}
	update := bson.M{"$setOnInsert": bson.M{
		"_id":             id,
		"user_id":         rec.UserID,
		"membership_tier": rec.MembershipTier,
		"fee_type":        rec.FeeType,
		"amount":          rec.Amount,
		"currency":        rec.Currency,
		"status":          models.FeePending,
		"created_at":      now,
		"updated_at":      now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	f, err := decodeOne(s.c.FindOneAndUpdate(ctx, filter, update, opts))
	if err != nil {
		// Two concurrent upserts can race on the unique index; the loser reads the winner.
		if wafflemongo.IsDup(err) {
			f, err = s.GetByUserAndType(ctx, rec.UserID, rec.FeeType)
			if err != nil {
				return models.FeeRecord{}, false, err
			}
			return *f, false, nil
		}
		return models.FeeRecord{}, false, err
	}
	return *f, f.ID == id, nil
}

// SetOrder attaches a gateway order id to a pending record.
func (s *Store) SetOrder(ctx context.Context, id primitive.ObjectID, orderID string) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.FeePending},
		bson.M{"$set": bson.M{"gateway_order_id": orderID, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// Complete moves a pending record to completed in one conditional update.
// It returns false when the record was not pending, carried a different
// order, or already used c.PaymentID; callers re-read to tell these apart.
// A payment id already recorded on another fee returns sentinel.ErrDuplicate
// through the unique used_payment_ids index.
func (s *Store) Complete(ctx context.Context, id primitive.ObjectID, c Completion) (bool, error) {
	filter := bson.M{"_id": id, "status": models.FeePending}
	if c.ExpectOrderID != "" {
		filter["gateway_order_id"] = c.ExpectOrderID
	}

	set := bson.M{
		"status":       models.FeeCompleted,
		"method":       c.Method,
		"completed_at": c.At,
		"updated_at":   c.At,
	}
	update := bson.M{"$set": set}
	if c.OrderID != "" {
		set["gateway_order_id"] = c.OrderID
	}
	if c.PaymentID != "" {
		set["gateway_payment_id"] = c.PaymentID
		filter["used_payment_ids"] = bson.M{"$ne": c.PaymentID}
		update["$addToSet"] = bson.M{"used_payment_ids": c.PaymentID}
	}
	if c.Signature != "" {
		set["gateway_signature"] = c.Signature
	}
	if c.ReferenceID != "" {
		set["reference_id"] = c.ReferenceID
	}

	res, err := s.c.UpdateOne(ctx, filter, update)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return false, fmt.Errorf("payment %s: %w", c.PaymentID, sentinel.ErrDuplicate)
		}
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// Reopen resets a completed record for a new period: status goes back to
// pending and the settlement details are cleared, but used_payment_ids is
// kept. Returns false if there was no completed record to reopen.
func (s *Store) Reopen(ctx context.Context, userID primitive.ObjectID, feeType models.FeeType, amount int64, at time.Time) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"user_id": userID, "fee_type": feeType, "status": models.FeeCompleted},
		bson.M{
			"$set": bson.M{
				"status":      models.FeePending,
				"amount":      amount,
				"reopened_at": at,
				"updated_at":  at,
			},
			"$unset": bson.M{
				"gateway_order_id":   "",
				"gateway_payment_id": "",
				"gateway_signature":  "",
				"method":             "",
				"reference_id":       "",
				"completed_at":       "",
			},
		},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// DeleteByUser removes all fee records of userID.
func (s *Store) DeleteByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
