// internal/testutil/fixtures.go
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/memberhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser inserts an inactive user. Email and mobile are derived from
// username so repeated calls with distinct usernames never collide.
func (f *Fixtures) CreateUser(ctx context.Context, username string, tier models.Tier) models.User {
	f.t.Helper()
	return f.insertUser(ctx, username, tier, nil)
}

// CreateActiveUser inserts a user that has completed activation, with a
// renewal date one term out.
func (f *Fixtures) CreateActiveUser(ctx context.Context, username string, tier models.Tier) models.User {
	f.t.Helper()
	issued := time.Now().UTC().Truncate(time.Millisecond)
	return f.insertUser(ctx, username, tier, &issued)
}

// CreateUserWithRenewal inserts an active user whose period ends at due.
func (f *Fixtures) CreateUserWithRenewal(ctx context.Context, username string, tier models.Tier, due time.Time) models.User {
	f.t.Helper()
	issued := due.Add(-models.MembershipTerm)
	return f.insertUser(ctx, username, tier, &issued)
}

func (f *Fixtures) insertUser(ctx context.Context, username string, tier models.Tier, issued *time.Time) models.User {
	now := time.Now().UTC()
	name := "Test " + username
	u := models.User{
		ID:             primitive.NewObjectID(),
		FullName:       name,
		FullNameCI:     text.Fold(name),
		Email:          username + "@example.com",
		Mobile:         "+91" + mobileSuffix(username),
		Username:       username,
		MembershipTier: tier,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if issued != nil {
		due := issued.Add(models.MembershipTerm)
		u.IsActive = true
		u.CredentialIssuedAt = issued
		u.RenewalDate = &due
		u.PasswordHash = "$2a$10$fixturefixturefixturefixturefixturefixturefixturefix"
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateCommunity inserts a community founded by founderID, who is recorded
// as its first core member and linked back from the user document.
func (f *Fixtures) CreateCommunity(ctx context.Context, name string, founderID primitive.ObjectID) models.Community {
	f.t.Helper()

	now := time.Now().UTC()
	c := models.Community{
		ID:          primitive.NewObjectID(),
		Name:        name,
		NameCI:      text.Fold(name),
		FounderID:   &founderID,
		Members:     []primitive.ObjectID{},
		CoreMembers: []primitive.ObjectID{founderID},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := f.db.Collection("communities").InsertOne(ctx, c); err != nil {
		f.t.Fatalf("failed to create test community: %v", err)
	}
	f.setCommunity(ctx, founderID, c.ID, models.RoleCoreMember)
	return c
}

// AddCommunityMember appends userID to the plain members of communityID.
func (f *Fixtures) AddCommunityMember(ctx context.Context, communityID, userID primitive.ObjectID) {
	f.t.Helper()
	_, err := f.db.Collection("communities").UpdateByID(ctx, communityID, bson.M{
		"$addToSet": bson.M{"members": userID},
	})
	if err != nil {
		f.t.Fatalf("failed to add community member: %v", err)
	}
	f.setCommunity(ctx, userID, communityID, models.RoleMember)
}

func (f *Fixtures) setCommunity(ctx context.Context, userID, communityID primitive.ObjectID, role models.CommunityRole) {
	_, err := f.db.Collection("users").UpdateByID(ctx, userID, bson.M{
		"$set": bson.M{"community_id": communityID, "community_role": role},
	})
	if err != nil {
		f.t.Fatalf("failed to link user to community: %v", err)
	}
}

// CreatePendingFee inserts an open fee record.
func (f *Fixtures) CreatePendingFee(ctx context.Context, userID primitive.ObjectID, ft models.FeeType, amount int64) models.FeeRecord {
	f.t.Helper()
	return f.insertFee(ctx, userID, ft, amount, models.FeePending)
}

// CreateCompletedFee inserts a fee record already settled through the gateway.
func (f *Fixtures) CreateCompletedFee(ctx context.Context, userID primitive.ObjectID, ft models.FeeType, amount int64) models.FeeRecord {
	f.t.Helper()
	return f.insertFee(ctx, userID, ft, amount, models.FeeCompleted)
}

func (f *Fixtures) insertFee(ctx context.Context, userID primitive.ObjectID, ft models.FeeType, amount int64, status models.FeeStatus) models.FeeRecord {
	now := time.Now().UTC()
	rec := models.FeeRecord{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		FeeType:   ft,
		Amount:    amount,
		Currency:  "INR",
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if status == models.FeeCompleted {
		rec.Method = models.MethodGateway
		rec.CompletedAt = &now
	}
	if _, err := f.db.Collection("fee_records").InsertOne(ctx, rec); err != nil {
		f.t.Fatalf("failed to create test fee record: %v", err)
	}
	return rec
}

// mobileSuffix maps a username to ten stable digits.
func mobileSuffix(s string) string {
	var h uint64 = 1469598103934665603
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	out := make([]byte, 10)
	for i := range out {
		out[i] = byte('0' + h%10)
		h /= 10
	}
	out[0] = '9'
	return string(out)
}
