// internal/domain/models/profile.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Profile holds the public-facing details of a member. It is written before
// the User row and removed again if user provisioning fails.
type Profile struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID   primitive.ObjectID `bson:"user_id" json:"user_id"`
	Email    string             `bson:"email" json:"email"`
	FullName string             `bson:"full_name" json:"full_name"`
	Mobile   string             `bson:"mobile" json:"mobile"`
	Region   string             `bson:"region,omitempty" json:"region,omitempty"`
	Company  string             `bson:"company,omitempty" json:"company,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
