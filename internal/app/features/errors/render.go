// internal/app/features/errors/render.go
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/dalemusser/memberhub/internal/app/lifecycle"
	"go.uber.org/zap"
)

// body is the error envelope every JSON endpoint returns:
//
//	{ "error": { "code":"amount_mismatch", "message":"…", "fields":["amount"], "details":{"expected":1000000} } }
type body struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    lifecycle.Code `json:"code"`
	Message string         `json:"message"`
	Fields  []string       `json:"fields,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// CodeInternal is reported for errors that carry no lifecycle code.
const CodeInternal lifecycle.Code = "internal_error"

// CodeUnauthorized and CodeRateLimited are produced by middleware.
const (
	CodeUnauthorized lifecycle.Code = "unauthorized"
	CodeRateLimited  lifecycle.Code = "rate_limited"
)

var statusByCode = map[lifecycle.Code]int{
	lifecycle.CodeValidation:     http.StatusBadRequest,
	lifecycle.CodeInvalidTier:    http.StatusBadRequest,
	lifecycle.CodeInvalidFeeType: http.StatusBadRequest,

	lifecycle.CodeAmountMismatch:           http.StatusUnprocessableEntity,
	lifecycle.CodeUnknownReferrer:          http.StatusUnprocessableEntity,
	lifecycle.CodeOrderMismatch:            http.StatusUnprocessableEntity,
	lifecycle.CodeReferralNotCoreConnected: http.StatusUnprocessableEntity,
	lifecycle.CodeSignatureInvalid:         http.StatusBadRequest,

	lifecycle.CodeDuplicateIdentity: http.StatusConflict,
	lifecycle.CodeAlreadyCompleted:  http.StatusConflict,
	lifecycle.CodeAlreadyAssigned:   http.StatusConflict,
	lifecycle.CodePaymentReused:     http.StatusConflict,

	lifecycle.CodeNotFound:           http.StatusNotFound,
	lifecycle.CodeGatewayUnavailable: http.StatusBadGateway,

	CodeUnauthorized: http.StatusUnauthorized,
	CodeRateLimited:  http.StatusTooManyRequests,
}

// StatusFor maps an error code to its HTTP status. Unknown codes are 500.
func StatusFor(code lifecycle.Code) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// RenderJSON writes v with the given status.
func RenderJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RenderCode writes an error envelope for code without going through an error value.
func RenderCode(w http.ResponseWriter, code lifecycle.Code, msg string, fields ...string) {
	RenderJSON(w, StatusFor(code), body{Error: errorBody{Code: code, Message: msg, Fields: fields}})
}

// RenderBadRequest reports a request that could not be decoded or is
// missing required fields.
func RenderBadRequest(w http.ResponseWriter, msg string, fields ...string) {
	RenderCode(w, lifecycle.CodeValidation, msg, fields...)
}

// RenderError writes err as a JSON error. Typed lifecycle errors keep their
// code, fields and details; anything else is logged and reported as an
// opaque internal error.
func RenderError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var le *lifecycle.Error
	if !stderrors.As(err, &le) {
		if logger != nil {
			logger.Error("request failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Error(err))
		}
		RenderJSON(w, http.StatusInternalServerError, body{Error: errorBody{
			Code:    CodeInternal,
			Message: "internal error",
		}})
		return
	}

	status := StatusFor(le.Code)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Warn("upstream failure",
			zap.String("path", r.URL.Path),
			zap.String("code", string(le.Code)),
			zap.Error(err))
	}
	msg := le.Message
	if msg == "" {
		msg = string(le.Code)
	}
	RenderJSON(w, status, body{Error: errorBody{
		Code:    le.Code,
		Message: msg,
		Fields:  le.Fields,
		Details: le.Details,
	}})
}
