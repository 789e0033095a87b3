// internal/app/lifecycle/ports.go
package lifecycle

import (
	"context"
	"time"

	feestore "github.com/dalemusser/memberhub/internal/app/store/fees"
	userstore "github.com/dalemusser/memberhub/internal/app/store/users"
	"github.com/dalemusser/memberhub/internal/app/system/gateway"
	"github.com/dalemusser/memberhub/internal/app/system/notify"
	"github.com/dalemusser/memberhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// The engine depends on these narrow views of the stores. Every state
// transition goes through a conditional single-document update exposed here;
// the engine never does a read-modify-write without such a guard.

type UserStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByIdentity(ctx context.Context, email, mobile, username string) (*models.User, error)
	FieldTaken(ctx context.Context, field, value string) (bool, error)
	Create(ctx context.Context, u models.User) (models.User, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	ReferrerOf(ctx context.Context, id primitive.ObjectID) (*primitive.ObjectID, error)
	ClaimCommunity(ctx context.Context, userID, communityID primitive.ObjectID, role models.CommunityRole) (bool, error)
	Activate(ctx context.Context, userID primitive.ObjectID, a userstore.Activation) (bool, error)
	ListDueForSweep(ctx context.Context, horizon time.Time) ([]models.User, error)
	ClaimReminder(ctx context.Context, userID primitive.ObjectID, dayStart, now time.Time) (bool, error)
	BeginExpiry(ctx context.Context, userID primitive.ObjectID, now time.Time) (bool, error)
	FinishExpiry(ctx context.Context, userID primitive.ObjectID) error
}

type ProfileStore interface {
	Create(ctx context.Context, p models.Profile) (models.Profile, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	DeleteByUser(ctx context.Context, userID primitive.ObjectID) error
}

type CommunityStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Community, error)
	FindByMember(ctx context.Context, userID primitive.ObjectID) (*models.Community, error)
	CreateFounded(ctx context.Context, c models.Community) (models.Community, bool, error)
	AddCoreMember(ctx context.Context, communityID, userID primitive.ObjectID) error
	AddMember(ctx context.Context, communityID, userID primitive.ObjectID) error
}

type FeeStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.FeeRecord, error)
	GetByUserAndType(ctx context.Context, userID primitive.ObjectID, feeType models.FeeType) (*models.FeeRecord, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.FeeRecord, error)
	Open(ctx context.Context, rec models.FeeRecord) (models.FeeRecord, bool, error)
	SetOrder(ctx context.Context, id primitive.ObjectID, orderID string) (bool, error)
	Complete(ctx context.Context, id primitive.ObjectID, c feestore.Completion) (bool, error)
	Reopen(ctx context.Context, userID primitive.ObjectID, feeType models.FeeType, amount int64, at time.Time) (bool, error)
	DeleteByUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

type IntentStore interface {
	Create(ctx context.Context, in models.PaymentIntent) (models.PaymentIntent, error)
	GetByOrderID(ctx context.Context, orderID string) (*models.PaymentIntent, error)
	LatestPendingByEmail(ctx context.Context, email string, now time.Time) (*models.PaymentIntent, error)
	Consume(ctx context.Context, orderID string, userID primitive.ObjectID, now time.Time) (*models.PaymentIntent, error)
	Release(ctx context.Context, orderID string, userID primitive.ObjectID, ttl time.Duration) error
}

// Gateway creates orders and verifies payment signatures.
type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (gateway.Order, error)
	Verify(orderID, paymentID, signature string) bool
}

// Notifier hands a notification to the delivery channel. Implementations
// must not block the caller on delivery.
type Notifier interface {
	Notify(ctx context.Context, ev notify.Event)
}
