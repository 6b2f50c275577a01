package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/permitworks/backend/internal/application/services"
	"github.com/permitworks/backend/internal/domain/models"
	"github.com/permitworks/backend/internal/interfaces/rest"
	"github.com/permitworks/backend/pkg/constants"
	appErrors "github.com/permitworks/backend/pkg/errors"
)

// MockApprovalService is a mock implementation of the ApprovalService
type MockApprovalService struct {
	mock.Mock
}

func (m *MockApprovalService) Decide(ctx context.Context, recordID string, decision models.RecordStatus, remarks string, user *models.UserSession) (*services.ChainOutcome, error) {
	args := m.Called(ctx, recordID, decision, remarks, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ChainOutcome), args.Error(1)
}

func (m *MockApprovalService) ListChain(ctx context.Context, applicationID string) ([]*models.ApprovalRecord, error) {
	args := m.Called(ctx, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ApprovalRecord), args.Error(1)
}

func (m *MockApprovalService) ListPendingForUser(ctx context.Context, user *models.UserSession) ([]*models.ApprovalRecord, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ApprovalRecord), args.Error(1)
}

func sessionUser() models.UserSession {
	return models.UserSession{
		ID:    "user-1",
		Name:  "Test Approver",
		Email: "approver@example.com",
		Role:  constants.RoleApprover,
	}
}

func TestApprovalHandler_Approve(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockService := new(MockApprovalService)
	handler := rest.NewApprovalHandler(mockService)

	t.Run("Success", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		user := sessionUser()
		c.Set(constants.ContextKeyUser, user)
		c.Params = gin.Params{{Key: "id", Value: "rec-1"}}

		body, _ := json.Marshal(rest.DecisionRequest{Remarks: "looks safe"})
		c.Request = httptest.NewRequest("POST", "/approvals/rec-1/approve", bytes.NewBuffer(body))

		outcome := &services.ChainOutcome{Kind: services.OutcomeAdvanced}
		mockService.On("Decide", mock.Anything, "rec-1", models.RecordApproved, "looks safe", &user).
			Return(outcome, nil).Once()

		handler.Approve(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), string(services.OutcomeAdvanced))
		mockService.AssertExpectations(t)
	})

	t.Run("Already Decided", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		user := sessionUser()
		c.Set(constants.ContextKeyUser, user)
		c.Params = gin.Params{{Key: "id", Value: "rec-1"}}
		c.Request = httptest.NewRequest("POST", "/approvals/rec-1/approve", nil)

		mockService.On("Decide", mock.Anything, "rec-1", models.RecordApproved, "", &user).
			Return(nil, appErrors.NewAlreadyDecidedError("rec-1", "APPROVED")).Once()

		handler.Approve(c)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "ALREADY_DECIDED")
		mockService.AssertExpectations(t)
	})
}

func TestApprovalHandler_Reject(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockService := new(MockApprovalService)
	handler := rest.NewApprovalHandler(mockService)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	user := sessionUser()
	c.Set(constants.ContextKeyUser, user)
	c.Params = gin.Params{{Key: "id", Value: "rec-2"}}

	body, _ := json.Marshal(rest.DecisionRequest{Remarks: "missing gas test"})
	c.Request = httptest.NewRequest("POST", "/approvals/rec-2/reject", bytes.NewBuffer(body))

	outcome := &services.ChainOutcome{Kind: services.OutcomeRejected}
	mockService.On("Decide", mock.Anything, "rec-2", models.RecordRejected, "missing gas test", &user).
		Return(outcome, nil).Once()

	handler.Reject(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), string(services.OutcomeRejected))
	mockService.AssertExpectations(t)
}

func TestApprovalHandler_GetPending(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockService := new(MockApprovalService)
	handler := rest.NewApprovalHandler(mockService)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	user := sessionUser()
	c.Set(constants.ContextKeyUser, user)
	c.Request = httptest.NewRequest("GET", "/approvals/pending", nil)

	records := []*models.ApprovalRecord{
		{ID: "rec-1", ApplicationID: "app-1", Level: 2, Status: models.RecordPending},
	}
	mockService.On("ListPendingForUser", mock.Anything, &user).Return(records, nil).Once()

	handler.GetPending(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rec-1")
	mockService.AssertExpectations(t)
}
