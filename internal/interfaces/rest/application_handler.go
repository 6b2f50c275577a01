package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/permitworks/backend/internal/application/services"
	"github.com/permitworks/backend/pkg/constants"
	appErrors "github.com/permitworks/backend/pkg/errors"
)

// ApplicationHandler handles permit application intake and lifecycle endpoints
type ApplicationHandler struct {
	svcMgr *services.ServiceManager
}

func NewApplicationHandler(svcMgr *services.ServiceManager) *ApplicationHandler {
	return &ApplicationHandler{svcMgr: svcMgr}
}

// RemarksRequest carries optional remarks on a lifecycle action
type RemarksRequest struct {
	Remarks string `json:"remarks"`
}

// ExtendRequest carries the new work window end time
type ExtendRequest struct {
	EndTime time.Time `json:"end_time" binding:"required"`
}

// Create handles POST /api/applications
func (h *ApplicationHandler) Create(c *gin.Context) {
	user := GetUserFromContext(c)

	var input services.CreateApplicationInput
	if !BindJSON(c, &input) {
		return
	}

	app, err := h.svcMgr.Applications.Create(c.Request.Context(), &input, user)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		constants.FieldMessage: "Application created",
		"application":          app,
	})
}

// List handles GET /api/applications?filter=<expression>
func (h *ApplicationHandler) List(c *gin.Context) {
	user := GetUserFromContext(c)
	filter := c.Query("filter")

	HandleGetEnvelope(c, "applications", func() (interface{}, error) {
		return h.svcMgr.Applications.List(c.Request.Context(), filter, user)
	})
}

// Get handles GET /api/applications/:id
func (h *ApplicationHandler) Get(c *gin.Context) {
	user := GetUserFromContext(c)

	HandleGetEnvelope(c, "application", func() (interface{}, error) {
		return h.svcMgr.Applications.Get(c.Request.Context(), c.Param("id"), user)
	})
}

// Delete handles DELETE /api/applications/:id
func (h *ApplicationHandler) Delete(c *gin.Context) {
	user := GetUserFromContext(c)

	if err := h.svcMgr.Applications.Delete(c.Request.Context(), c.Param("id"), user); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.FieldMessage: "Application deleted"})
}

// Submit handles POST /api/applications/:id/submit
func (h *ApplicationHandler) Submit(c *gin.Context) {
	user := GetUserFromContext(c)

	var input services.SubmitApplicationInput
	if !BindJSON(c, &input) {
		return
	}

	HandleActionEnvelope(c, "application", "Application submitted", func() (interface{}, error) {
		return h.svcMgr.Applications.Submit(c.Request.Context(), c.Param("id"), &input, user)
	})
}

// ConfirmEntry handles POST /api/applications/:id/security-confirm-entry
func (h *ApplicationHandler) ConfirmEntry(c *gin.Context) {
	user := GetUserFromContext(c)

	HandleActionEnvelope(c, "application", "Entry confirmed", func() (interface{}, error) {
		return h.svcMgr.Lifecycle.ConfirmEntry(c.Request.Context(), c.Param("id"), user)
	})
}

// JobDone handles POST /api/applications/:id/job-done
func (h *ApplicationHandler) JobDone(c *gin.Context) {
	user := GetUserFromContext(c)

	var req RemarksRequest
	if c.Request.ContentLength > 0 && !BindJSON(c, &req) {
		return
	}

	HandleActionEnvelope(c, "application", "Job done confirmed", func() (interface{}, error) {
		return h.svcMgr.Lifecycle.ConfirmJobDone(c.Request.Context(), c.Param("id"), req.Remarks, user)
	})
}

// ConfirmExit handles POST /api/applications/:id/security-confirm-exit
func (h *ApplicationHandler) ConfirmExit(c *gin.Context) {
	user := GetUserFromContext(c)

	HandleActionEnvelope(c, "application", "Exit confirmed", func() (interface{}, error) {
		return h.svcMgr.Lifecycle.ConfirmExit(c.Request.Context(), c.Param("id"), user)
	})
}

// CheckExtensionEligibility handles GET /api/applications/:id/check-extension-eligibility
func (h *ApplicationHandler) CheckExtensionEligibility(c *gin.Context) {
	eligibility, err := h.svcMgr.Lifecycle.CheckExtensionEligibility(c.Request.Context(), c.Param("id"), time.Now())
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, eligibility)
}

// ExtendEndTime handles POST /api/applications/:id/extend-end-time
func (h *ApplicationHandler) ExtendEndTime(c *gin.Context) {
	user := GetUserFromContext(c)

	var req ExtendRequest
	if !BindJSON(c, &req) {
		return
	}
	if req.EndTime.IsZero() {
		RespondAppError(c, appErrors.NewValidationError("end_time", "end_time is required"))
		return
	}

	if err := h.svcMgr.Lifecycle.ExtendWorkWindow(c.Request.Context(), c.Param("id"), req.EndTime, user); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.FieldMessage: "Work window extended"})
}

// ServerTime handles GET /api/server-time. Clients use it to render the
// extension window consistently with the server's clock.
func (h *ApplicationHandler) ServerTime(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"server_time": time.Now().UTC().Format(time.RFC3339)})
}
