package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/retroboard-backend/internal/domain"
	"github.com/yungbote/retroboard-backend/internal/platform/apierr"
)

// StatusFor maps a domain error code to its HTTP status.
func StatusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeUnauthorized:
		return http.StatusForbidden
	case domain.CodeValidation:
		return http.StatusBadRequest
	case domain.CodeConflict:
		return http.StatusConflict
	case domain.CodePersistence, domain.CodeRetryable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondDomainError renders err with the status its code implies. An
// *apierr.Error takes precedence over the domain code.
func RespondDomainError(c *gin.Context, fallbackCode string, err error) {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		RespondError(c, ae.Status, ae.Code, ae.Err)
		return
	}
	code := domain.CodeOf(err)
	if code == "" {
		RespondError(c, http.StatusInternalServerError, fallbackCode, err)
		return
	}
	var domErr *domain.Error
	errors.As(err, &domErr)
	RespondError(c, StatusFor(code), string(code), errors.New(publicMessage(domErr)))
}

func publicMessage(e *domain.Error) string {
	if e == nil {
		return "unknown error"
	}
	switch e.Code {
	case domain.CodePersistence, domain.CodeRetryable:
		return "storage temporarily unavailable"
	}
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}
