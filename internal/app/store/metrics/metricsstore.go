// internal/app/store/metrics/metricsstore.go
package metricsstore

import (
	"context"

	"github.com/dalemusser/memberhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// TierCounts holds active and inactive user totals for one tier.
type TierCounts struct {
	Active   int64
	Inactive int64
}

// Counts is the set of totals exported as gauges and shown on the admin
// status endpoint.
type Counts struct {
	Tiers       map[models.Tier]TierCounts
	Communities int64
	PendingFees int64
}

// FetchCounts returns membership totals grouped by tier and state.
// Intentionally tolerant: on error it returns 0 for that counter.
func FetchCounts(ctx context.Context, db *mongo.Database) Counts {
	out := Counts{Tiers: make(map[models.Tier]TierCounts, len(models.Tiers()))}
	for _, t := range models.Tiers() {
		out.Tiers[t] = TierCounts{}
	}

	// users grouped by (tier, is_active)
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"tier": "$membership_tier", "active": "$is_active"},
			"n":   bson.M{"$sum": 1},
		}}},
	}
	if cur, err := db.Collection("users").Aggregate(ctx, pipeline); err == nil {
		var rows []struct {
			ID struct {
				Tier   models.Tier `bson:"tier"`
				Active bool        `bson:"active"`
			} `bson:"_id"`
			N int64 `bson:"n"`
		}
		if err := cur.All(ctx, &rows); err == nil {
			for _, r := range rows {
				tc := out.Tiers[r.ID.Tier]
				if r.ID.Active {
					tc.Active += r.N
				} else {
					tc.Inactive += r.N
				}
				out.Tiers[r.ID.Tier] = tc
			}
		}
	}

	// communities
	if n, err := db.Collection("communities").CountDocuments(ctx, bson.M{}); err == nil {
		out.Communities = n
	}

	// pending fee records
	if n, err := db.Collection("fee_records").CountDocuments(ctx, bson.M{"status": models.FeePending}); err == nil {
		out.PendingFees = n
	}

	return out
}
