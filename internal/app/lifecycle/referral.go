// internal/app/lifecycle/referral.go
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/memberhub/internal/app/system/sentinel"
	"github.com/dalemusser/memberhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Resolution is the outcome of walking a referral chain.
type Resolution struct {
	// Community is the community of the nearest ancestor that belongs to
	// one, or nil when the chain reaches no community.
	Community *models.Community
	// AncestorID is the ancestor whose community was found.
	AncestorID *primitive.ObjectID
	// IsConnectedToCore is true when the chain reached a community member.
	IsConnectedToCore bool
	// ReferrerIsCore is true when that ancestor is a core member.
	ReferrerIsCore bool
	// Hops counts the users examined.
	Hops int
}

// Resolver walks referred_by links upward from a user until it finds an
// ancestor that belongs to a community.
type Resolver struct {
	users       UserStore
	communities CommunityStore
}

// Resolve starts at referredBy (the direct referrer of userID). The walk
// keeps a visited set seeded with userID, so every user is examined at most
// once and cycles terminate. Missing users end the walk.
func (r *Resolver) Resolve(ctx context.Context, userID primitive.ObjectID, referredBy *primitive.ObjectID) (Resolution, error) {
	var res Resolution
	visited := map[primitive.ObjectID]bool{userID: true}

	cur := referredBy
	for cur != nil {
		if visited[*cur] {
			break
		}
		id := *cur
		visited[id] = true
		res.Hops++

		c, err := r.communities.FindByMember(ctx, id)
		switch {
		case err == nil:
			role, _ := c.RoleOf(id)
			res.Community = c
			res.AncestorID = &id
			res.IsConnectedToCore = true
			res.ReferrerIsCore = role == models.RoleCoreMember
			return res, nil
		case !errors.Is(err, sentinel.ErrNotFound):
			return Resolution{}, fmt.Errorf("resolve referral: %w", err)
		}

		next, err := r.users.ReferrerOf(ctx, id)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				break
			}
			return Resolution{}, fmt.Errorf("resolve referral: %w", err)
		}
		cur = next
	}
	return res, nil
}
