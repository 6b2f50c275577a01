package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/permitworks/backend/internal/application/services"
	"github.com/permitworks/backend/pkg/constants"
)

// NotificationHandler serves a user's notification feed
type NotificationHandler struct {
	svcMgr *services.ServiceManager
}

func NewNotificationHandler(svcMgr *services.ServiceManager) *NotificationHandler {
	return &NotificationHandler{svcMgr: svcMgr}
}

// List handles GET /api/notifications?limit=N
func (h *NotificationHandler) List(c *gin.Context) {
	user := GetUserFromContext(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	HandleGetEnvelope(c, "notifications", func() (interface{}, error) {
		return h.svcMgr.Notifications.ListMine(c.Request.Context(), user, limit)
	})
}

// MarkRead handles POST /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	user := GetUserFromContext(c)

	if err := h.svcMgr.Notifications.MarkRead(c.Request.Context(), c.Param("id"), user); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.FieldMessage: "Notification marked as read"})
}
