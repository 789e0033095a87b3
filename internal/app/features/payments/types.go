// internal/app/features/payments/types.go
package payments

type orderRequest struct {
	UserID  string `json:"user_id"`
	FeeType string `json:"fee_type"`
}

// confirmRequest is the gateway checkout callback relayed by the client.
type confirmRequest struct {
	UserID    string `json:"user_id"`
	FeeType   string `json:"fee_type"`
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// manualRequest identifies the member by user_id or by any identity value.
type manualRequest struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Mobile      string `json:"mobile"`
	Username    string `json:"username"`
	FeeType     string `json:"fee_type"`
	Amount      *int64 `json:"amount"`
	Method      string `json:"method"`
	ReferenceID string `json:"reference_id"`
}

func (m manualRequest) hasIdentity() bool {
	return m.UserID != "" || m.Email != "" || m.Mobile != "" || m.Username != ""
}
