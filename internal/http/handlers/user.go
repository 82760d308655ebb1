package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/retroboard-backend/internal/http/response"
	"github.com/yungbote/retroboard-backend/internal/services"
)

type UserHandler struct {
	userService services.UserService
}

func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GET /api/me
func (uh *UserHandler) GetMe(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	me, err := uh.userService.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondDomainError(c, "get_me_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"me": me})
}

// PATCH /api/me
// body: { "username": "..." }
func (uh *UserHandler) PatchMe(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	var req struct {
		Username string `json:"username"`
	}
	if !bindJSON(c, &req) {
		return
	}
	me, err := uh.userService.Rename(c.Request.Context(), id, req.Username)
	if err != nil {
		response.RespondDomainError(c, "rename_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"me": me})
}

// GET /api/users
func (uh *UserHandler) ListUsers(c *gin.Context) {
	users, err := uh.userService.List(c.Request.Context())
	if err != nil {
		response.RespondDomainError(c, "list_users_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"users": users})
}
