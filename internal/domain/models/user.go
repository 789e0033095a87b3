// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a registered member account.
//
// NOTE:
//   - IsActive may only be true while every mandatory fee of the tier is completed.
//   - CommunityID is written once; moving a user between communities is not supported.
//   - Expiring is set by the renewal sweep between deactivation and reopening the
//     renewal fee. Activation refuses to run while it is set.
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName   string             `bson:"full_name" json:"full_name"`
	FullNameCI string             `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	Email      string             `bson:"email" json:"email"`
	Mobile     string             `bson:"mobile" json:"mobile"`
	Username   string             `bson:"username" json:"username"`
	Region     string             `bson:"region,omitempty" json:"region,omitempty"`

	MembershipTier Tier                `bson:"membership_tier" json:"membership_tier"`
	ReferredBy     *primitive.ObjectID `bson:"referred_by,omitempty" json:"referred_by,omitempty"`
	CommunityID    *primitive.ObjectID `bson:"community_id,omitempty" json:"community_id,omitempty"`
	CommunityRole  CommunityRole       `bson:"community_role,omitempty" json:"community_role,omitempty"`

	IsActive           bool       `bson:"is_active" json:"is_active"`
	Expiring           bool       `bson:"expiring,omitempty" json:"-"`
	RenewalDate        *time.Time `bson:"renewal_date,omitempty" json:"renewal_date,omitempty"`
	CredentialIssuedAt *time.Time `bson:"credential_issued_at,omitempty" json:"credential_issued_at,omitempty"`
	PasswordHash       string     `bson:"password_hash,omitempty" json:"-"`
	LastReminderAt     *time.Time `bson:"last_reminder_at,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// MembershipTerm is the length of one paid membership period.
const MembershipTerm = 365 * 24 * time.Hour

// RenewalDue returns the date the current membership period ends. The stored
// renewal date wins; older records fall back to one term after credential
// issuance. ok is false when the user has never been activated.
func (u User) RenewalDue() (due time.Time, ok bool) {
	if u.RenewalDate != nil && !u.RenewalDate.IsZero() {
		return *u.RenewalDate, true
	}
	if u.CredentialIssuedAt != nil && !u.CredentialIssuedAt.IsZero() {
		return u.CredentialIssuedAt.Add(MembershipTerm), true
	}
	return time.Time{}, false
}
