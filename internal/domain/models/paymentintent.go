// internal/domain/models/paymentintent.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IntentStatus is the state of a pay-first registration order.
type IntentStatus string

const (
	IntentPending  IntentStatus = "pending"
	IntentConsumed IntentStatus = "consumed"
)

// PaymentIntent remembers a gateway order created for a registration that
// has not produced a user yet. Pending intents expire after ExpiresAt; a
// consumed intent is bound to the user it produced.
type PaymentIntent struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	OrderID        string              `bson:"order_id" json:"order_id"`
	Email          string              `bson:"email" json:"email"`
	Mobile         string              `bson:"mobile" json:"mobile"`
	Username       string              `bson:"username" json:"username"`
	MembershipTier Tier                `bson:"membership_tier" json:"membership_tier"`
	FeeType        FeeType             `bson:"fee_type" json:"fee_type"`
	Amount         int64               `bson:"amount" json:"amount"`
	Currency       string              `bson:"currency" json:"currency"`
	Status         IntentStatus        `bson:"status" json:"status"`
	UserID         *primitive.ObjectID `bson:"user_id,omitempty" json:"user_id,omitempty"`

	ExpiresAt  *time.Time `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	ConsumedAt *time.Time `bson:"consumed_at,omitempty" json:"consumed_at,omitempty"`
	CreatedAt  time.Time  `bson:"created_at" json:"created_at"`
}
