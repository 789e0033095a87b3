// internal/app/features/registration/types.go
package registration

import (
	"time"

	"github.com/dalemusser/memberhub/internal/domain/models"
)

type paymentRequiredResponse struct {
	RequiresPayment bool           `json:"requires_payment"`
	FeeType         models.FeeType `json:"fee_type"`
	Amount          int64          `json:"amount"`
	Currency        string         `json:"currency"`
	OrderID         string         `json:"order_id,omitempty"`
	ExpiresAt       *time.Time     `json:"expires_at,omitempty"`
}
