package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/retroboard-backend/internal/http/response"
	"github.com/yungbote/retroboard-backend/internal/platform/apierr"
	"github.com/yungbote/retroboard-backend/internal/platform/ctxutil"
	"github.com/yungbote/retroboard-backend/internal/platform/logger"
	"github.com/yungbote/retroboard-backend/internal/services"
)

type AuthMiddleware struct {
	log         *logger.Logger
	authService services.AuthService
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService) *AuthMiddleware {
	middlewareLogger := log.With("Middleware", "AuthMiddleware")
	return &AuthMiddleware{log: middlewareLogger, authService: authService}
}

// RequireAuth accepts "Authorization: Bearer <token>" or, for EventSource
// clients that cannot set headers, a "token" query parameter.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractTokenFromAll(c)
		if tokenString == "" {
			ae := apierr.Unauthorized(nil)
			response.AbortError(c, ae.Status, ae.Code, ae.Err)
			return
		}
		ctx, err := am.authService.Authenticate(c.Request.Context(), tokenString)
		if err != nil {
			am.log.Debug("Authentication rejected", "path", c.Request.URL.Path, "error", err)
			ae := apierr.Unauthorized(err)
			response.AbortError(c, ae.Status, ae.Code, ae.Err)
			return
		}
		rd := ctxutil.GetRequestData(ctx)
		if rd == nil || rd.UserID == uuid.Nil {
			ae := apierr.Unauthorized(nil)
			response.AbortError(c, ae.Status, ae.Code, ae.Err)
			return
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractTokenFromAll(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return strings.TrimSpace(c.Query("token"))
}
