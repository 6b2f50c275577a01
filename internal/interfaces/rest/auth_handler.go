package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/permitworks/backend/internal/application/services"
	"github.com/permitworks/backend/pkg/constants"
)

type AuthHandler struct {
	svcMgr *services.ServiceManager
}

func NewAuthHandler(svcMgr *services.ServiceManager) *AuthHandler {
	return &AuthHandler{svcMgr: svcMgr}
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var input services.LoginInput
	if !BindJSON(c, &input) {
		return
	}

	result, err := h.svcMgr.Auth.Login(c.Request.Context(), &input)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": result.Token,
		"user": gin.H{
			constants.FieldID:    result.User.ID,
			constants.FieldName:  result.User.Name,
			constants.FieldEmail: result.User.Email,
			"role":               result.User.Role,
		},
	})
}

// GetMe handles GET /api/auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	session := GetUserFromContext(c)

	HandleGetEnvelope(c, "user", func() (interface{}, error) {
		return h.svcMgr.Auth.GetMe(c.Request.Context(), session)
	})
}
