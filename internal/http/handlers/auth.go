package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/retroboard-backend/internal/domain"
	"github.com/yungbote/retroboard-backend/internal/http/response"
	"github.com/yungbote/retroboard-backend/internal/services"
)

type AuthHandler struct {
	authService services.AuthService
	userService services.UserService
}

func NewAuthHandler(authService services.AuthService, userService services.UserService) *AuthHandler {
	return &AuthHandler{authService: authService, userService: userService}
}

type credentialsRequest struct {
	Username string `json:"username"`
}

// POST /api/signup
// body: { "username": "..." }
func (ah *AuthHandler) Signup(c *gin.Context) {
	var req credentialsRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := ah.userService.Signup(c.Request.Context(), req.Username)
	if err != nil {
		response.RespondDomainError(c, "signup_failed", err)
		return
	}
	ah.respondWithToken(c, user, true)
}

// POST /api/login
// body: { "username": "..." }
func (ah *AuthHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := ah.userService.Login(c.Request.Context(), req.Username)
	if err != nil {
		response.RespondDomainError(c, "login_failed", err)
		return
	}
	ah.respondWithToken(c, user, false)
}

func (ah *AuthHandler) respondWithToken(c *gin.Context, user *domain.User, created bool) {
	token, expiresAt, err := ah.authService.IssueToken(user)
	if err != nil {
		response.RespondDomainError(c, "token_failed", err)
		return
	}
	payload := gin.H{
		"token":      token,
		"expires_in": int(ah.authService.AccessTTL().Seconds()),
		"expires_at": expiresAt,
		"user":       user,
	}
	if created {
		response.RespondCreated(c, payload)
		return
	}
	response.RespondOK(c, payload)
}
