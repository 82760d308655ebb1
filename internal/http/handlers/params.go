package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/retroboard-backend/internal/http/response"
	"github.com/yungbote/retroboard-backend/internal/platform/apierr"
	"github.com/yungbote/retroboard-backend/internal/platform/ctxutil"
)

func pathUUID(c *gin.Context, param, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil || id == uuid.Nil {
		if err == nil {
			err = fmt.Errorf("%s must not be the nil uuid", param)
		}
		ae := apierr.BadRequest(code, err)
		response.RespondError(c, ae.Status, ae.Code, ae.Err)
		return uuid.Nil, false
	}
	return id, true
}

// callerID is the authenticated user. The auth middleware guarantees it on
// protected routes; a missing value still fails closed.
func callerID(c *gin.Context) (uuid.UUID, bool) {
	id := ctxutil.UserID(c.Request.Context())
	if id == uuid.Nil {
		ae := apierr.Unauthorized(nil)
		response.RespondError(c, ae.Status, ae.Code, ae.Err)
		return uuid.Nil, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		ae := apierr.BadRequest("invalid_request", err)
		response.RespondError(c, ae.Status, ae.Code, ae.Err)
		return false
	}
	return true
}
