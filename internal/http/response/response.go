// Package response renders JSON bodies and the error envelope shared by
// every API route.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorEnvelope is {"error":{"message","code"}}.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func envelope(status int, code string, err error) ErrorEnvelope {
	msg := http.StatusText(status)
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return ErrorEnvelope{Error: APIError{Message: msg, Code: code}}
}

func RespondError(c *gin.Context, status int, code string, err error) {
	c.JSON(status, envelope(status, code, err))
}

// AbortError stops the handler chain; middleware uses it to reject a request.
func AbortError(c *gin.Context, status int, code string, err error) {
	c.AbortWithStatusJSON(status, envelope(status, code, err))
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
