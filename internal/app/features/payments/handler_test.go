package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/memberhub/internal/app/features/payments/mocks"
	"github.com/dalemusser/memberhub/internal/app/lifecycle"
	"github.com/dalemusser/memberhub/internal/app/system/auth"
	"github.com/dalemusser/memberhub/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

//go:generate mockgen -source=handler.go -destination=mocks/payments-mocks.go -package=mocks Service
type PaymentsHandlerSuite struct {
	suite.Suite
}

func TestPaymentsHandlerSuite(t *testing.T) {
	suite.Run(t, new(PaymentsHandlerSuite))
}

func newTestHandler(t *testing.T) (*Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	return NewHandler(mockService, zap.NewNop()), mockService
}

func jsonRequest(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	e, ok := decode(t, w)["error"].(map[string]any)
	require.True(t, ok, "no error envelope in %s", w.Body.String())
	return e["code"].(string)
}

func (s *PaymentsHandlerSuite) TestCreateOrder() {
	handler, mockService := newTestHandler(s.T())
	userID := primitive.NewObjectID()
	recID := primitive.NewObjectID()

	mockService.EXPECT().CreateOrder(gomock.Any(), userID, models.FeeAnnual).Return(lifecycle.FeeDue{
		FeeRecordID: recID.Hex(),
		FeeType:     models.FeeAnnual,
		Amount:      1_000_000,
		Currency:    "INR",
		OrderID:     "order_abc",
	}, nil)

	w := httptest.NewRecorder()
	handler.CreateOrder(w, jsonRequest(s.T(), "/payments/orders", orderRequest{UserID: userID.Hex(), FeeType: "annual"}))

	assert.Equal(s.T(), http.StatusOK, w.Code)
	resp := decode(s.T(), w)
	assert.Equal(s.T(), "order_abc", resp["order_id"])
	assert.Equal(s.T(), recID.Hex(), resp["fee_record_id"])
	assert.Equal(s.T(), float64(1_000_000), resp["amount"])
}

func (s *PaymentsHandlerSuite) TestCreateOrder_RejectsBadInput() {
	handler, _ := newTestHandler(s.T())

	w := httptest.NewRecorder()
	handler.CreateOrder(w, jsonRequest(s.T(), "/payments/orders", orderRequest{UserID: "nope", FeeType: "annual"}))
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	assert.Equal(s.T(), "validation_failed", errorCode(s.T(), w))

	w = httptest.NewRecorder()
	handler.CreateOrder(w, jsonRequest(s.T(), "/payments/orders", orderRequest{UserID: primitive.NewObjectID().Hex(), FeeType: "lifetime"}))
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	assert.Equal(s.T(), "invalid_fee_type", errorCode(s.T(), w))
}

func (s *PaymentsHandlerSuite) TestCreateOrder_GatewayDown() {
	handler, mockService := newTestHandler(s.T())
	mockService.EXPECT().CreateOrder(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(lifecycle.FeeDue{}, &lifecycle.Error{Code: lifecycle.CodeGatewayUnavailable, Message: "could not create a payment order"})

	w := httptest.NewRecorder()
	handler.CreateOrder(w, jsonRequest(s.T(), "/payments/orders", orderRequest{UserID: primitive.NewObjectID().Hex(), FeeType: "annual"}))

	assert.Equal(s.T(), http.StatusBadGateway, w.Code)
	assert.Equal(s.T(), "gateway_unavailable", errorCode(s.T(), w))
}

func (s *PaymentsHandlerSuite) TestConfirm_Activates() {
	handler, mockService := newTestHandler(s.T())
	userID := primitive.NewObjectID()
	renewal := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

	mockService.EXPECT().ConfirmPayment(gomock.Any(), lifecycle.PaymentConfirmation{
		UserID:    userID,
		FeeType:   models.FeeAnnual,
		OrderID:   "order_1",
		PaymentID: "pay_1",
		Signature: "sig",
	}).Return(lifecycle.PaymentOutcome{
		Fee:        models.FeeRecord{UserID: userID, FeeType: models.FeeAnnual, Status: models.FeeCompleted, GatewaySignature: "sig"},
		Activation: lifecycle.ActivationResult{State: lifecycle.StateActivated, RenewalDate: &renewal},
	}, nil)

	w := httptest.NewRecorder()
	handler.Confirm(w, jsonRequest(s.T(), "/payments/confirm", confirmRequest{
		UserID: userID.Hex(), FeeType: "annual", OrderID: "order_1", PaymentID: "pay_1", Signature: "sig",
	}))

	assert.Equal(s.T(), http.StatusOK, w.Code)
	resp := decode(s.T(), w)
	assert.Equal(s.T(), "completed", resp["fee"].(map[string]any)["status"])
	assert.Equal(s.T(), "activated", resp["activation"].(map[string]any)["state"])
	assert.NotContains(s.T(), resp["fee"], "gateway_signature")
}

func (s *PaymentsHandlerSuite) TestConfirm_MissingGatewayFields() {
	handler, _ := newTestHandler(s.T())

	w := httptest.NewRecorder()
	handler.Confirm(w, jsonRequest(s.T(), "/payments/confirm", confirmRequest{
		UserID: primitive.NewObjectID().Hex(), FeeType: "annual", OrderID: "order_1",
	}))

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	e := decode(s.T(), w)["error"].(map[string]any)
	assert.Equal(s.T(), []any{"payment_id", "signature"}, e["fields"])
}

func (s *PaymentsHandlerSuite) TestConfirm_TrustBoundaryErrors() {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"bad signature", &lifecycle.Error{Code: lifecycle.CodeSignatureInvalid}, http.StatusBadRequest, "signature_invalid"},
		{"order of another fee", &lifecycle.Error{Code: lifecycle.CodeOrderMismatch}, http.StatusUnprocessableEntity, "order_mismatch"},
		{"already paid", &lifecycle.Error{Code: lifecycle.CodeAlreadyCompleted}, http.StatusConflict, "fee_already_completed"},
		{"no such fee", &lifecycle.Error{Code: lifecycle.CodeNotFound}, http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			handler, mockService := newTestHandler(s.T())
			mockService.EXPECT().ConfirmPayment(gomock.Any(), gomock.Any()).Return(lifecycle.PaymentOutcome{}, tt.err)

			w := httptest.NewRecorder()
			handler.Confirm(w, jsonRequest(s.T(), "/payments/confirm", confirmRequest{
				UserID: primitive.NewObjectID().Hex(), FeeType: "annual", OrderID: "o", PaymentID: "p", Signature: "x",
			}))

			assert.Equal(s.T(), tt.wantStatus, w.Code)
			assert.Equal(s.T(), tt.wantCode, errorCode(s.T(), w))
		})
	}
}

func (s *PaymentsHandlerSuite) TestManual_ByEmail() {
	handler, mockService := newTestHandler(s.T())
	userID := primitive.NewObjectID()
	amount := int64(1_000_000)

	gomock.InOrder(
		mockService.EXPECT().FindMember(gomock.Any(), "asha@example.com", "", "").
			Return(&models.User{ID: userID}, nil),
		mockService.EXPECT().RecordManualPayment(gomock.Any(), lifecycle.ManualPayment{
			UserID:      userID,
			FeeType:     models.FeeAnnual,
			Amount:      amount,
			Method:      models.MethodCash,
			ReferenceID: "rcpt-42",
		}).Return(lifecycle.PaymentOutcome{
			Fee: models.FeeRecord{UserID: userID, Status: models.FeeCompleted, Method: models.MethodCash, ReferenceID: "rcpt-42"},
		}, nil),
	)

	w := httptest.NewRecorder()
	handler.Manual(w, jsonRequest(s.T(), "/payments/manual", manualRequest{
		Email: "asha@example.com", FeeType: "annual", Amount: &amount, Method: "Cash", ReferenceID: "rcpt-42",
	}))

	assert.Equal(s.T(), http.StatusOK, w.Code)
	assert.Equal(s.T(), "rcpt-42", decode(s.T(), w)["fee"].(map[string]any)["reference_id"])
}

func (s *PaymentsHandlerSuite) TestManual_Validation() {
	amount := int64(100)
	tests := []struct {
		name      string
		req       manualRequest
		wantCode  string
		wantField string
	}{
		{"no identity", manualRequest{FeeType: "annual", Amount: &amount, Method: "cash"}, "validation_failed", "user_id"},
		{"gateway method", manualRequest{UserID: primitive.NewObjectID().Hex(), FeeType: "annual", Amount: &amount, Method: "gateway"}, "validation_failed", "method"},
		{"missing amount", manualRequest{UserID: primitive.NewObjectID().Hex(), FeeType: "annual", Method: "check"}, "validation_failed", "amount"},
		{"unknown fee", manualRequest{UserID: primitive.NewObjectID().Hex(), FeeType: "donation", Amount: &amount, Method: "cash"}, "invalid_fee_type", "fee_type"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			handler, _ := newTestHandler(s.T())
			w := httptest.NewRecorder()
			handler.Manual(w, jsonRequest(s.T(), "/payments/manual", tt.req))

			assert.Equal(s.T(), http.StatusBadRequest, w.Code)
			e := decode(s.T(), w)["error"].(map[string]any)
			assert.Equal(s.T(), tt.wantCode, e["code"])
			assert.Contains(s.T(), e["fields"], tt.wantField)
		})
	}
}

func (s *PaymentsHandlerSuite) TestManual_IdentifiersMustNameOneMember() {
	asha, ravi := primitive.NewObjectID(), primitive.NewObjectID()
	amount := int64(1_000_000)

	tests := []struct {
		name       string
		req        manualRequest
		expect     func(m *mocks.MockService)
		wantFields []any
	}{
		{
			name: "email and mobile differ",
			req:  manualRequest{Email: "asha@example.com", Mobile: "+919876543210"},
			expect: func(m *mocks.MockService) {
				m.EXPECT().FindMember(gomock.Any(), "asha@example.com", "", "").Return(&models.User{ID: asha}, nil)
				m.EXPECT().FindMember(gomock.Any(), "", "+919876543210", "").Return(&models.User{ID: ravi}, nil)
			},
			wantFields: []any{"email", "mobile"},
		},
		{
			name: "user_id and username differ",
			req:  manualRequest{UserID: asha.Hex(), Username: "ravi"},
			expect: func(m *mocks.MockService) {
				m.EXPECT().FindMember(gomock.Any(), "", "", "ravi").Return(&models.User{ID: ravi}, nil)
			},
			wantFields: []any{"user_id", "username"},
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			handler, mockService := newTestHandler(s.T())
			tt.expect(mockService)
			mockService.EXPECT().RecordManualPayment(gomock.Any(), gomock.Any()).Times(0)

			tt.req.FeeType, tt.req.Amount, tt.req.Method = "annual", &amount, "cash"
			w := httptest.NewRecorder()
			handler.Manual(w, jsonRequest(s.T(), "/payments/manual", tt.req))

			assert.Equal(s.T(), http.StatusBadRequest, w.Code)
			e := decode(s.T(), w)["error"].(map[string]any)
			assert.Equal(s.T(), "validation_failed", e["code"])
			assert.Equal(s.T(), tt.wantFields, e["fields"])
		})
	}
}

func (s *PaymentsHandlerSuite) TestManual_AllIdentifiersAgree() {
	handler, mockService := newTestHandler(s.T())
	userID := primitive.NewObjectID()
	amount := int64(500_000)

	mockService.EXPECT().FindMember(gomock.Any(), "asha@example.com", "", "").Return(&models.User{ID: userID}, nil)
	mockService.EXPECT().FindMember(gomock.Any(), "", "", "asha").Return(&models.User{ID: userID}, nil)
	mockService.EXPECT().RecordManualPayment(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p lifecycle.ManualPayment) (lifecycle.PaymentOutcome, error) {
			assert.Equal(s.T(), userID, p.UserID)
			return lifecycle.PaymentOutcome{Fee: models.FeeRecord{UserID: userID, Status: models.FeeCompleted}}, nil
		})

	w := httptest.NewRecorder()
	handler.Manual(w, jsonRequest(s.T(), "/payments/manual", manualRequest{
		UserID: userID.Hex(), Email: "asha@example.com", Username: "asha", FeeType: "registration", Amount: &amount, Method: "check",
	}))

	assert.Equal(s.T(), http.StatusOK, w.Code)
}

func (s *PaymentsHandlerSuite) TestManual_AmountMismatchCarriesExpected() {
	handler, mockService := newTestHandler(s.T())
	amount := int64(999)
	mockService.EXPECT().RecordManualPayment(gomock.Any(), gomock.Any()).Return(lifecycle.PaymentOutcome{},
		&lifecycle.Error{Code: lifecycle.CodeAmountMismatch, Fields: []string{"amount"}, Details: map[string]any{"expected": int64(1_000_000)}})

	w := httptest.NewRecorder()
	handler.Manual(w, jsonRequest(s.T(), "/payments/manual", manualRequest{
		UserID: primitive.NewObjectID().Hex(), FeeType: "annual", Amount: &amount, Method: "check",
	}))

	assert.Equal(s.T(), http.StatusUnprocessableEntity, w.Code)
	e := decode(s.T(), w)["error"].(map[string]any)
	assert.Equal(s.T(), float64(1_000_000), e["details"].(map[string]any)["expected"])
}

func (s *PaymentsHandlerSuite) TestRoutes_ManualRequiresAdminToken() {
	handler, mockService := newTestHandler(s.T())
	router := Routes(handler, auth.RequireAdminToken("tok", nil))
	amount := int64(1_000_000)
	body := manualRequest{UserID: primitive.NewObjectID().Hex(), FeeType: "annual", Amount: &amount, Method: "cash"}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(s.T(), "/manual", body))
	assert.Equal(s.T(), http.StatusUnauthorized, w.Code)

	mockService.EXPECT().RecordManualPayment(gomock.Any(), gomock.Any()).Return(lifecycle.PaymentOutcome{}, nil)
	req := jsonRequest(s.T(), "/manual", body)
	req.Header.Set(auth.HeaderAdminToken, "tok")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(s.T(), http.StatusOK, w.Code)
}
