// internal/app/lifecycle/errors.go
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

// Code is a stable, machine-readable error identifier returned to clients.
type Code string

const (
	// validation
	CodeValidation      Code = "validation_failed"
	CodeInvalidTier     Code = "invalid_tier"
	CodeInvalidFeeType  Code = "invalid_fee_type"
	CodeAmountMismatch  Code = "amount_mismatch"
	CodeUnknownReferrer Code = "unknown_referrer"

	// conflict
	CodeDuplicateIdentity Code = "duplicate_identity"
	CodeAlreadyCompleted  Code = "fee_already_completed"
	CodeAlreadyAssigned   Code = "community_already_assigned"
	CodePaymentReused     Code = "payment_already_used"

	// trust boundary
	CodeSignatureInvalid Code = "signature_invalid"
	CodeOrderMismatch    Code = "order_mismatch"

	// referral
	CodeReferralNotCoreConnected Code = "referral_not_core_connected"

	CodeNotFound           Code = "not_found"
	CodeGatewayUnavailable Code = "gateway_unavailable"
)

// Error is a typed engine error. Fields names the offending request fields
// and Details carries values a client needs to correct the request, such as
// the expected amount.
type Error struct {
	Code    Code
	Message string
	Fields  []string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Fields, ", "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so callers can write
// errors.Is(err, lifecycle.ErrAlreadyCompleted).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// Comparable sentinels for errors.Is.
var (
	ErrDuplicateIdentity        = &Error{Code: CodeDuplicateIdentity}
	ErrAlreadyCompleted         = &Error{Code: CodeAlreadyCompleted}
	ErrAlreadyAssigned          = &Error{Code: CodeAlreadyAssigned}
	ErrSignatureInvalid         = &Error{Code: CodeSignatureInvalid}
	ErrOrderMismatch            = &Error{Code: CodeOrderMismatch}
	ErrReferralNotCoreConnected = &Error{Code: CodeReferralNotCoreConnected}
	ErrNotFound                 = &Error{Code: CodeNotFound}
	ErrInvalidFeeType           = &Error{Code: CodeInvalidFeeType}
	ErrAmountMismatch           = &Error{Code: CodeAmountMismatch}
	ErrPaymentReused            = &Error{Code: CodePaymentReused}
)

func newError(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func (e *Error) withFields(fields ...string) *Error {
	e.Fields = append(e.Fields, fields...)
	return e
}

func (e *Error) with(key string, v any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = v
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or "" for
// untyped (internal) errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
