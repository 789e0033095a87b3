// internal/app/features/auditlog/handler.go
package auditlog

import (
	"context"

	"github.com/dalemusser/memberhub/internal/app/store/audit"
	"go.uber.org/zap"
)

// Store is the read side of the audit event store.
type Store interface {
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error)
	CountByFilter(ctx context.Context, filter audit.QueryFilter) (int64, error)
}

// Handler serves the admin audit log.
type Handler struct {
	Store Store
	Log   *zap.Logger
}

// NewHandler constructs an audit log feature handler bound to the given
// event store and logger.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	return &Handler{
		Store: store,
		Log:   logger,
	}
}
