package communitystore_test

import (
	"errors"
	"testing"

	communitystore "github.com/dalemusser/memberhub/internal/app/store/communities"
	"github.com/dalemusser/memberhub/internal/app/system/sentinel"
	"github.com/dalemusser/memberhub/internal/domain/models"
	"github.com/dalemusser/memberhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_CreateFounded_OnePerFounder(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.EnsureIndexes(t, db)
	store := communitystore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	founder := primitive.NewObjectID()
	first, created, err := store.CreateFounded(ctx, models.Community{Name: "Pune North", FounderID: &founder})
	if err != nil || !created {
		t.Fatalf("CreateFounded = %v, %v; want created", created, err)
	}
	if role, ok := first.RoleOf(founder); !ok || role != models.RoleCoreMember {
		t.Errorf("founder role = %q, %v", role, ok)
	}

	second, created, err := store.CreateFounded(ctx, models.Community{Name: "Pune North 2", FounderID: &founder})
	if err != nil {
		t.Fatalf("second CreateFounded failed: %v", err)
	}
	if created || second.ID != first.ID {
		t.Errorf("second call must return the existing community, got created=%v id=%s", created, second.ID.Hex())
	}

	if _, _, err := store.CreateFounded(ctx, models.Community{Name: "No founder"}); err == nil {
		t.Error("expected error without founder")
	}
}

func TestStore_Membership(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := communitystore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	founder := primitive.NewObjectID()
	c, _, err := store.CreateFounded(ctx, models.Community{Name: "Nashik", FounderID: &founder})
	if err != nil {
		t.Fatalf("CreateFounded failed: %v", err)
	}

	member := primitive.NewObjectID()
	if err := store.AddMember(ctx, c.ID, member); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	// a core member is never added to members
	if err := store.AddMember(ctx, c.ID, founder); err != nil {
		t.Fatalf("AddMember(founder) failed: %v", err)
	}

	got, err := store.FindByMember(ctx, member)
	if err != nil {
		t.Fatalf("FindByMember failed: %v", err)
	}
	if got.ID != c.ID || len(got.Members) != 1 || len(got.CoreMembers) != 1 {
		t.Errorf("unexpected community: %+v", got)
	}

	// promotion moves the user between the lists
	if err := store.AddCoreMember(ctx, c.ID, member); err != nil {
		t.Fatalf("AddCoreMember failed: %v", err)
	}
	got, _ = store.GetByID(ctx, c.ID)
	if role, _ := got.RoleOf(member); role != models.RoleCoreMember || len(got.Members) != 0 {
		t.Errorf("after promotion: role=%q members=%v", role, got.Members)
	}

	if _, err := store.FindByMember(ctx, primitive.NewObjectID()); !errors.Is(err, sentinel.ErrNotFound) {
		t.Errorf("FindByMember(stranger) err = %v, want ErrNotFound", err)
	}
	if err := store.AddMember(ctx, primitive.NewObjectID(), member); !errors.Is(err, sentinel.ErrNotFound) {
		t.Errorf("AddMember(missing community) err = %v, want ErrNotFound", err)
	}
}
