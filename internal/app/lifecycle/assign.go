// internal/app/lifecycle/assign.go
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/memberhub/internal/app/system/auditlog"
	"github.com/dalemusser/memberhub/internal/app/system/sentinel"
	"github.com/dalemusser/memberhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Assignment describes the community a user was bound to.
type Assignment struct {
	CommunityID *primitive.ObjectID  `json:"community_id,omitempty"`
	Role        models.CommunityRole `json:"role,omitempty"`
	// Created is true when a community was founded for the user.
	Created bool `json:"created,omitempty"`
	// Skipped is true for tiers that never join a community.
	Skipped bool `json:"skipped,omitempty"`
}

// Assigner places a user in exactly one community according to tier and
// referral. The user's community_id is claimed first with a conditional
// update; the membership array is written second. A crash between the two
// leaves a claimed user missing from the array, which the next Assign
// repairs.
type Assigner struct {
	users       UserStore
	communities CommunityStore
	resolver    *Resolver
	audit       *auditlog.Logger
	log         *zap.Logger
}

// Assign binds userID to a community. It returns ErrAlreadyAssigned (with
// the existing assignment) when the user already has one, and
// ErrReferralNotCoreConnected for mid-tier users whose referral chain
// reaches no community.
func (a *Assigner) Assign(ctx context.Context, userID primitive.ObjectID) (Assignment, error) {
	u, err := a.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Assignment{}, &Error{Code: CodeNotFound, Message: "user not found", Err: err}
		}
		return Assignment{}, err
	}
	if u.MembershipTier == models.TierDigital {
		return Assignment{Skipped: true}, nil
	}

	if u.CommunityID != nil {
		existing := Assignment{CommunityID: u.CommunityID, Role: u.CommunityRole}
		if err := a.repair(ctx, *u); err != nil {
			return Assignment{}, err
		}
		return existing, alreadyAssigned(existing)
	}

	// Listed in a community but not linked back: link to that one.
	if c, err := a.communities.FindByMember(ctx, u.ID); err == nil {
		role, _ := c.RoleOf(u.ID)
		return a.claimExisting(ctx, u.ID, c.ID, role)
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return Assignment{}, fmt.Errorf("assign community: %w", err)
	}

	res, err := a.resolver.Resolve(ctx, u.ID, u.ReferredBy)
	if err != nil {
		return Assignment{}, err
	}

	switch {
	case u.MembershipTier == models.TierCore && res.Community == nil:
		return a.found(ctx, *u)
	case u.MembershipTier == models.TierCore:
		return a.join(ctx, u.ID, res.Community.ID, models.RoleCoreMember)
	case u.MembershipTier.IsMidTier() && !res.IsConnectedToCore:
		a.audit.CommunityBlocked(ctx, u.ID, string(CodeReferralNotCoreConnected))
		return Assignment{}, newError(CodeReferralNotCoreConnected,
			"referral chain does not reach a community member")
	case u.MembershipTier.IsMidTier():
		return a.join(ctx, u.ID, res.Community.ID, models.RoleMember)
	}
	return Assignment{}, fmt.Errorf("assign community: unhandled tier %q", u.MembershipTier)
}

// found creates a community named after a core-tier user with no community
// to join. The id is allocated before the claim so the user row and the
// community agree even if the insert is retried.
func (a *Assigner) found(ctx context.Context, u models.User) (Assignment, error) {
	cid := primitive.NewObjectID()
	won, err := a.users.ClaimCommunity(ctx, u.ID, cid, models.RoleCoreMember)
	if err != nil {
		return Assignment{}, fmt.Errorf("claim community: %w", err)
	}
	if !won {
		return a.lostClaim(ctx, u.ID)
	}

	founder := u.ID
	c, created, err := a.communities.CreateFounded(ctx, models.Community{
		ID:        cid,
		Name:      u.FullName,
		Region:    u.Region,
		FounderID: &founder,
	})
	if err != nil {
		return Assignment{}, fmt.Errorf("found community: %w", err)
	}
	if c.ID != cid {
		return Assignment{}, fmt.Errorf("found community: user %s already founded %s", u.ID.Hex(), c.ID.Hex())
	}
	a.audit.CommunityJoined(ctx, u.ID, c.ID, models.RoleCoreMember, created)
	return Assignment{CommunityID: &c.ID, Role: models.RoleCoreMember, Created: created}, nil
}

func (a *Assigner) join(ctx context.Context, userID, communityID primitive.ObjectID, role models.CommunityRole) (Assignment, error) {
	won, err := a.users.ClaimCommunity(ctx, userID, communityID, role)
	if err != nil {
		return Assignment{}, fmt.Errorf("claim community: %w", err)
	}
	if !won {
		return a.lostClaim(ctx, userID)
	}
	if err := a.appendMember(ctx, communityID, userID, role); err != nil {
		return Assignment{}, err
	}
	a.audit.CommunityJoined(ctx, userID, communityID, role, false)
	return Assignment{CommunityID: &communityID, Role: role}, nil
}

func (a *Assigner) claimExisting(ctx context.Context, userID, communityID primitive.ObjectID, role models.CommunityRole) (Assignment, error) {
	won, err := a.users.ClaimCommunity(ctx, userID, communityID, role)
	if err != nil {
		return Assignment{}, fmt.Errorf("claim community: %w", err)
	}
	if !won {
		return a.lostClaim(ctx, userID)
	}
	return Assignment{CommunityID: &communityID, Role: role}, nil
}

// lostClaim reports the assignment made by whoever won the race.
func (a *Assigner) lostClaim(ctx context.Context, userID primitive.ObjectID) (Assignment, error) {
	u, err := a.users.GetByID(ctx, userID)
	if err != nil {
		return Assignment{}, err
	}
	existing := Assignment{CommunityID: u.CommunityID, Role: u.CommunityRole}
	return existing, alreadyAssigned(existing)
}

// repair makes sure a claimed user is listed by their community. A core
// user whose founded community was never inserted gets it created now.
func (a *Assigner) repair(ctx context.Context, u models.User) error {
	err := a.appendMember(ctx, *u.CommunityID, u.ID, u.CommunityRole)
	if err == nil || !errors.Is(err, sentinel.ErrNotFound) || u.CommunityRole != models.RoleCoreMember {
		return err
	}
	founder := u.ID
	_, created, err := a.communities.CreateFounded(ctx, models.Community{
		ID:        *u.CommunityID,
		Name:      u.FullName,
		Region:    u.Region,
		FounderID: &founder,
	})
	if err != nil {
		return fmt.Errorf("repair founded community: %w", err)
	}
	if created {
		a.log.Info("recreated founded community",
			zap.String("user_id", u.ID.Hex()),
			zap.String("community_id", u.CommunityID.Hex()))
		a.audit.CommunityJoined(ctx, u.ID, *u.CommunityID, models.RoleCoreMember, true)
	}
	return nil
}

func (a *Assigner) appendMember(ctx context.Context, communityID, userID primitive.ObjectID, role models.CommunityRole) error {
	var err error
	if role == models.RoleCoreMember {
		err = a.communities.AddCoreMember(ctx, communityID, userID)
	} else {
		err = a.communities.AddMember(ctx, communityID, userID)
	}
	if err != nil {
		return fmt.Errorf("add %s to community %s: %w", role, communityID.Hex(), err)
	}
	return nil
}

func alreadyAssigned(existing Assignment) *Error {
	e := newError(CodeAlreadyAssigned, "user already belongs to a community")
	if existing.CommunityID != nil {
		e.with("community_id", existing.CommunityID.Hex())
	}
	return e
}
