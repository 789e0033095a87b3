// internal/domain/models/community.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Community is a regional chapter. Members and CoreMembers are disjoint and
// a user id appears in at most one community.
type Community struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name   string             `bson:"name" json:"name"`
	NameCI string             `bson:"name_ci" json:"-"`
	Region string             `bson:"region,omitempty" json:"region,omitempty"`

	// FounderID is set when the community was created for a core-tier user
	// who had no community to join.
	FounderID *primitive.ObjectID `bson:"founder_id,omitempty" json:"founder_id,omitempty"`

	Members     []primitive.ObjectID `bson:"members" json:"members"`
	CoreMembers []primitive.ObjectID `bson:"core_members" json:"core_members"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// RoleOf reports the role userID holds in c, if any.
func (c Community) RoleOf(userID primitive.ObjectID) (CommunityRole, bool) {
	for _, id := range c.CoreMembers {
		if id == userID {
			return RoleCoreMember, true
		}
	}
	for _, id := range c.Members {
		if id == userID {
			return RoleMember, true
		}
	}
	return "", false
}
