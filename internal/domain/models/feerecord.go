// internal/domain/models/feerecord.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FeeRecord tracks one fee owed by a user. There is exactly one record per
// (user, fee type); renewals reopen the existing record instead of adding a
// new one. Amount is in minor currency units.
type FeeRecord struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         primitive.ObjectID `bson:"user_id" json:"user_id"`
	MembershipTier Tier               `bson:"membership_tier" json:"membership_tier"`
	FeeType        FeeType            `bson:"fee_type" json:"fee_type"`
	Amount         int64              `bson:"amount" json:"amount"`
	Currency       string             `bson:"currency" json:"currency"`
	Status         FeeStatus          `bson:"status" json:"status"`

	GatewayOrderID   string `bson:"gateway_order_id,omitempty" json:"gateway_order_id,omitempty"`
	GatewayPaymentID string `bson:"gateway_payment_id,omitempty" json:"gateway_payment_id,omitempty"`
	GatewaySignature string `bson:"gateway_signature,omitempty" json:"-"`

	// UsedPaymentIDs keeps every gateway payment id that ever settled this
	// record. Reopen leaves it in place.
	UsedPaymentIDs []string `bson:"used_payment_ids,omitempty" json:"-"`

	Method      PaymentMethod `bson:"method,omitempty" json:"method,omitempty"`
	ReferenceID string        `bson:"reference_id,omitempty" json:"reference_id,omitempty"`
	CompletedAt *time.Time    `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	ReopenedAt  *time.Time    `bson:"reopened_at,omitempty" json:"reopened_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsCompleted reports whether the fee has been settled.
func (f FeeRecord) IsCompleted() bool { return f.Status == FeeCompleted }

// UsedPayment reports whether paymentID already settled this record.
func (f FeeRecord) UsedPayment(paymentID string) bool {
	for _, id := range f.UsedPaymentIDs {
		if id == paymentID {
			return true
		}
	}
	return false
}
