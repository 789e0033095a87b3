package renewals

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/memberhub/internal/app/features/renewals/mocks"
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

//go:generate mockgen -source=handler.go -destination=mocks/renewals-mocks.go -package=mocks Service
type RenewalsHandlerSuite struct {
	suite.Suite
}

func TestRenewalsHandlerSuite(t *testing.T) {
	suite.Run(t, new(RenewalsHandlerSuite))
}

func newTestHandler(t *testing.T) (*Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	return NewHandler(mockService, zap.NewNop()), mockService
}

func renewRequestFor(t *testing.T, userID string) *http.Request {
	t.Helper()
	body, err := json.Marshal(renewRequest{UserID: userID})
	require.NoError(t, err)
	return httptest.NewRequest(http.MethodPost, "/renewals", bytes.NewReader(body))
}

func (s *RenewalsHandlerSuite) TestRenew_ListsDueFees() {
	handler, mockService := newTestHandler(s.T())
	userID := primitive.NewObjectID()

	mockService.EXPECT().Renew(gomock.Any(), userID).Return(lifecycle.RenewalStatus{
		Activation: lifecycle.ActivationResult{State: lifecycle.StateAwaitingFees, Outstanding: []models.FeeType{models.FeeAnnual}},
		Due: []lifecycle.FeeDue{{
			FeeRecordID: primitive.NewObjectID().Hex(),
			FeeType:     models.FeeAnnual,
			Amount:      500_000,
			Currency:    "INR",
		}},
	}, nil)

	w := httptest.NewRecorder()
	handler.Renew(w, renewRequestFor(s.T(), userID.Hex()))

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp lifecycle.RenewalStatus
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), lifecycle.StateAwaitingFees, resp.Activation.State)
	require.Len(s.T(), resp.Due, 1)
	assert.Equal(s.T(), int64(500_000), resp.Due[0].Amount)
}

func (s *RenewalsHandlerSuite) TestRenew_BadUserID() {
	handler, _ := newTestHandler(s.T())

	w := httptest.NewRecorder()
	handler.Renew(w, renewRequestFor(s.T(), "abc"))

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *RenewalsHandlerSuite) TestRenew_UnknownUser() {
	handler, mockService := newTestHandler(s.T())
	mockService.EXPECT().Renew(gomock.Any(), gomock.Any()).
		Return(lifecycle.RenewalStatus{}, &lifecycle.Error{Code: lifecycle.CodeNotFound, Message: "user not found"})

	w := httptest.NewRecorder()
	handler.Renew(w, renewRequestFor(s.T(), primitive.NewObjectID().Hex()))

	assert.Equal(s.T(), http.StatusNotFound, w.Code)
}

func (s *RenewalsHandlerSuite) TestSweep_AdminOnly() {
	handler, mockService := newTestHandler(s.T())
	router := Routes(handler, auth.RequireAdminToken("tok", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sweep", nil))
	assert.Equal(s.T(), http.StatusUnauthorized, w.Code)

	mockService.EXPECT().Sweep(gomock.Any()).Return(lifecycle.SweepReport{Scanned: 3, Reminded: 2, Expired: 1}, nil)
	req := httptest.NewRequest(http.MethodPost, "/sweep", nil)
	req.Header.Set(auth.HeaderAdminToken, "tok")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var rep lifecycle.SweepReport
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &rep))
	assert.Equal(s.T(), lifecycle.SweepReport{Scanned: 3, Reminded: 2, Expired: 1}, rep)
}
