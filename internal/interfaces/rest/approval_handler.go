package rest

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/permitworks/backend/internal/application/services"
	"github.com/permitworks/backend/internal/domain/models"
	"github.com/permitworks/backend/pkg/constants"
)

// ApprovalService defines the interface for approval chain operations
type ApprovalService interface {
	Decide(ctx context.Context, recordID string, decision models.RecordStatus, remarks string, user *models.UserSession) (*services.ChainOutcome, error)
	ListChain(ctx context.Context, applicationID string) ([]*models.ApprovalRecord, error)
	ListPendingForUser(ctx context.Context, user *models.UserSession) ([]*models.ApprovalRecord, error)
}

// ApprovalHandler handles approval chain API endpoints
type ApprovalHandler struct {
	svc ApprovalService
}

// NewApprovalHandler creates a new ApprovalHandler
func NewApprovalHandler(svc ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{svc: svc}
}

// DecisionRequest carries an approver's remarks
type DecisionRequest struct {
	Remarks string `json:"remarks"`
}

// GetPending handles GET /api/approvals/pending
func (h *ApprovalHandler) GetPending(c *gin.Context) {
	user := GetUserFromContext(c)

	HandleGetEnvelope(c, "records", func() (interface{}, error) {
		return h.svc.ListPendingForUser(c.Request.Context(), user)
	})
}

// GetChain handles GET /api/applications/:id/approvals
func (h *ApprovalHandler) GetChain(c *gin.Context) {
	HandleGetEnvelope(c, "records", func() (interface{}, error) {
		return h.svc.ListChain(c.Request.Context(), c.Param("id"))
	})
}

// Approve handles POST /api/approvals/:id/approve
func (h *ApprovalHandler) Approve(c *gin.Context) {
	h.decide(c, models.RecordApproved, "Approval recorded")
}

// Reject handles POST /api/approvals/:id/reject
func (h *ApprovalHandler) Reject(c *gin.Context) {
	h.decide(c, models.RecordRejected, "Rejection recorded")
}

func (h *ApprovalHandler) decide(c *gin.Context, decision models.RecordStatus, successMsg string) {
	user := GetUserFromContext(c)

	var req DecisionRequest
	if c.Request.ContentLength > 0 && !BindJSON(c, &req) {
		return
	}

	outcome, err := h.svc.Decide(c.Request.Context(), c.Param("id"), decision, req.Remarks, user)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		constants.FieldMessage: successMsg,
		"outcome":              outcome.Kind,
	})
}
