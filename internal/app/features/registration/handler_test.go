package registration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/memberhub/internal/app/features/registration/mocks"
	"github.com/dalemusser/memberhub/internal/app/lifecycle"
	"github.com/dalemusser/memberhub/internal/app/system/ratelimit"
	"github.com/dalemusser/memberhub/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

//go:generate mockgen -source=handler.go -destination=mocks/registration-mocks.go -package=mocks Service
type RegistrationHandlerSuite struct {
	suite.Suite
}

func TestRegistrationHandlerSuite(t *testing.T) {
	suite.Run(t, new(RegistrationHandlerSuite))
}

func newTestHandler(t *testing.T, limiter *ratelimit.RegistrationLimiter) (*Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	return NewHandler(mockService, limiter, zap.NewNop()), mockService
}

func registerRequest(t *testing.T, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(raw))
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func (s *RegistrationHandlerSuite) TestRegister_Provisioned() {
	handler, mockService := newTestHandler(s.T(), nil)
	renewal := time.Date(2027, 1, 1, 9, 0, 0, 0, time.UTC)
	userID := primitive.NewObjectID()

	in := lifecycle.RegistrationRequest{
		FullName:       "Asha Rao",
		Email:          "asha@example.com",
		Mobile:         "+919800000001",
		Username:       "asha",
		MembershipTier: "digital",
	}
	mockService.EXPECT().Register(gomock.Any(), in).Return(lifecycle.RegistrationResult{
		Status: lifecycle.StatusProvisioned,
		User: &models.User{
			ID:             userID,
			Username:       "asha",
			MembershipTier: models.TierDigital,
			IsActive:       true,
			RenewalDate:    &renewal,
			PasswordHash:   "$2a$10$secret",
		},
		Activation: &lifecycle.ActivationResult{State: lifecycle.StateActivated, RenewalDate: &renewal},
	}, nil)

	w := httptest.NewRecorder()
	handler.Register(w, registerRequest(s.T(), in))

	assert.Equal(s.T(), http.StatusCreated, w.Code)
	resp := decode(s.T(), w)
	assert.Equal(s.T(), "provisioned", resp["status"])
	user := resp["user"].(map[string]any)
	assert.Equal(s.T(), userID.Hex(), user["id"])
	assert.Equal(s.T(), true, user["is_active"])
	assert.NotContains(s.T(), w.Body.String(), "secret")
	assert.Equal(s.T(), "activated", resp["activation"].(map[string]any)["state"])
}

func (s *RegistrationHandlerSuite) TestRegister_PaymentRequired() {
	handler, mockService := newTestHandler(s.T(), nil)
	expires := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)

	mockService.EXPECT().Register(gomock.Any(), gomock.Any()).Return(lifecycle.RegistrationResult{
		Status: lifecycle.StatusPaymentRequired,
		Payment: &lifecycle.PaymentRequired{
			FeeType:   models.FeeRegistration,
			Amount:    2_500_000,
			Currency:  "INR",
			OrderID:   "order_123",
			ExpiresAt: &expires,
		},
	}, nil)

	w := httptest.NewRecorder()
	handler.Register(w, registerRequest(s.T(), map[string]string{"email": "ravi@example.com", "membership_tier": "core"}))

	assert.Equal(s.T(), http.StatusPaymentRequired, w.Code)
	resp := decode(s.T(), w)
	assert.Equal(s.T(), true, resp["requires_payment"])
	assert.Equal(s.T(), float64(2_500_000), resp["amount"])
	assert.Equal(s.T(), "INR", resp["currency"])
	assert.Equal(s.T(), "order_123", resp["order_id"])
	assert.Equal(s.T(), "registration", resp["fee_type"])
}

func (s *RegistrationHandlerSuite) TestRegister_ErrorsAreMappedToStatus() {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "duplicate identity lists every field",
			err:        &lifecycle.Error{Code: lifecycle.CodeDuplicateIdentity, Message: "already registered", Fields: []string{"email", "username"}},
			wantStatus: http.StatusConflict,
			wantCode:   "duplicate_identity",
		},
		{
			name:       "invalid tier",
			err:        &lifecycle.Error{Code: lifecycle.CodeInvalidTier, Fields: []string{"membership_tier"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_tier",
		},
		{
			name:       "bad signature",
			err:        &lifecycle.Error{Code: lifecycle.CodeSignatureInvalid},
			wantStatus: http.StatusBadRequest,
			wantCode:   "signature_invalid",
		},
		{
			name:       "payment reused",
			err:        &lifecycle.Error{Code: lifecycle.CodePaymentReused},
			wantStatus: http.StatusConflict,
			wantCode:   "payment_already_used",
		},
		{
			name:       "store failure",
			err:        assert.AnError,
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal_error",
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			handler, mockService := newTestHandler(s.T(), nil)
			mockService.EXPECT().Register(gomock.Any(), gomock.Any()).Return(lifecycle.RegistrationResult{}, tt.err)

			w := httptest.NewRecorder()
			handler.Register(w, registerRequest(s.T(), map[string]string{"email": "x@example.com"}))

			assert.Equal(s.T(), tt.wantStatus, w.Code)
			errBody := decode(s.T(), w)["error"].(map[string]any)
			assert.Equal(s.T(), tt.wantCode, errBody["code"])
		})
	}
}

func (s *RegistrationHandlerSuite) TestRegister_DuplicateFieldsAreReturned() {
	handler, mockService := newTestHandler(s.T(), nil)
	mockService.EXPECT().Register(gomock.Any(), gomock.Any()).Return(lifecycle.RegistrationResult{},
		&lifecycle.Error{Code: lifecycle.CodeDuplicateIdentity, Fields: []string{"email", "username"}})

	w := httptest.NewRecorder()
	handler.Register(w, registerRequest(s.T(), map[string]string{"email": "x@example.com"}))

	errBody := decode(s.T(), w)["error"].(map[string]any)
	assert.Equal(s.T(), []any{"email", "username"}, errBody["fields"])
}

func (s *RegistrationHandlerSuite) TestRegister_MalformedBody() {
	handler, _ := newTestHandler(s.T(), nil)

	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	handler.Register(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	assert.Equal(s.T(), "validation_failed", decode(s.T(), w)["error"].(map[string]any)["code"])
}

func (s *RegistrationHandlerSuite) TestRegister_RateLimitedPerIdentity() {
	limiter := ratelimit.NewRegistrationLimiterWithConfig(100, time.Minute, 1, time.Minute)
	s.T().Cleanup(limiter.Stop)
	handler, mockService := newTestHandler(s.T(), limiter)

	mockService.EXPECT().Register(gomock.Any(), gomock.Any()).
		Return(lifecycle.RegistrationResult{}, &lifecycle.Error{Code: lifecycle.CodeValidation}).
		Times(1)

	body := map[string]string{"email": "asha@example.com"}
	w := httptest.NewRecorder()
	handler.Register(w, registerRequest(s.T(), body))
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	handler.Register(w, registerRequest(s.T(), body))
	assert.Equal(s.T(), http.StatusTooManyRequests, w.Code)
	assert.Equal(s.T(), "rate_limited", decode(s.T(), w)["error"].(map[string]any)["code"])
}

func (s *RegistrationHandlerSuite) TestStatus_RequiresIdentity() {
	handler, _ := newTestHandler(s.T(), nil)

	w := httptest.NewRecorder()
	handler.Status(w, httptest.NewRequest(http.MethodGet, "/registration/status", nil))

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	errBody := decode(s.T(), w)["error"].(map[string]any)
	assert.Equal(s.T(), []any{"email", "mobile", "username"}, errBody["fields"])
}

func (s *RegistrationHandlerSuite) TestStatus_AwaitingPayment() {
	handler, mockService := newTestHandler(s.T(), nil)
	mockService.EXPECT().Status(gomock.Any(), "ravi@example.com", "", "").Return(lifecycle.PublicStatus{
		Awaiting: true,
		Payment:  &lifecycle.PaymentRequired{FeeType: models.FeeRegistration, Amount: 500_000, Currency: "INR", OrderID: "order_9"},
	}, nil)

	w := httptest.NewRecorder()
	handler.Status(w, httptest.NewRequest(http.MethodGet, "/registration/status?email=ravi@example.com", nil))

	assert.Equal(s.T(), http.StatusOK, w.Code)
	resp := decode(s.T(), w)
	assert.Equal(s.T(), true, resp["awaiting_payment"])
	assert.Equal(s.T(), "order_9", resp["payment"].(map[string]any)["order_id"])
}

func (s *RegistrationHandlerSuite) TestStatus_MemberViewOmitsContactDetails() {
	handler, mockService := newTestHandler(s.T(), nil)
	renewal := time.Date(2027, 4, 1, 0, 0, 0, 0, time.UTC)
	mockService.EXPECT().Status(gomock.Any(), "", "+919876543210", "").Return(lifecycle.PublicStatus{
		MembershipTier:  models.TierCore,
		IsActive:        false,
		RenewalDate:     &renewal,
		Outstanding:     []models.FeeType{models.FeeAnnual},
		TotalAmount:     3_000_000,
		CompletedAmount: 500_000,
		PendingAmount:   2_500_000,
		Currency:        "INR",
		PendingOrders: []lifecycle.PaymentRequired{
			{FeeType: models.FeeAnnual, Amount: 2_500_000, Currency: "INR", OrderID: "order_4"},
		},
	}, nil)

	w := httptest.NewRecorder()
	handler.Status(w, httptest.NewRequest(http.MethodGet, "/registration/status?mobile=%2B919876543210", nil))

	assert.Equal(s.T(), http.StatusOK, w.Code)
	resp := decode(s.T(), w)
	assert.Equal(s.T(), "core", resp["membership_tier"])
	assert.Equal(s.T(), false, resp["is_active"])
	assert.Equal(s.T(), float64(2_500_000), resp["pending_amount"])
	assert.Equal(s.T(), []any{"annual"}, resp["outstanding"])
	assert.Equal(s.T(), "order_4", resp["pending_orders"].([]any)[0].(map[string]any)["order_id"])
	for _, key := range []string{"email", "mobile", "username", "user", "user_id", "fees"} {
		assert.NotContains(s.T(), resp, key)
	}
	assert.NotContains(s.T(), w.Body.String(), "9876543210")
}

func (s *RegistrationHandlerSuite) TestStatus_NotFound() {
	handler, mockService := newTestHandler(s.T(), nil)
	mockService.EXPECT().Status(gomock.Any(), "", "", "nobody").
		Return(lifecycle.PublicStatus{}, &lifecycle.Error{Code: lifecycle.CodeNotFound, Message: "no member or pending registration found"})

	w := httptest.NewRecorder()
	handler.Status(w, httptest.NewRequest(http.MethodGet, "/registration/status?username=nobody", nil))

	assert.Equal(s.T(), http.StatusNotFound, w.Code)
}
