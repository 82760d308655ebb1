package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/retroboard-backend/internal/domain"
	"github.com/yungbote/retroboard-backend/internal/platform/apierr"
)

func render(t *testing.T, err error) (int, ErrorEnvelope) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	RespondDomainError(c, "request_failed", err)
	var env ErrorEnvelope
	if decErr := json.Unmarshal(rec.Body.Bytes(), &env); decErr != nil {
		t.Fatalf("decode envelope: %v (%s)", decErr, rec.Body.String())
	}
	return rec.Code, env
}

func TestRespondDomainErrorStatuses(t *testing.T) {
	cases := []struct {
		err  error
		want int
		code string
	}{
		{domain.NotFound("retro.get", "retro"), http.StatusNotFound, "not_found"},
		{domain.NewError(domain.CodeUnauthorized, "vote", "nope", nil), http.StatusForbidden, "unauthorized"},
		{domain.NewError(domain.CodeValidation, "add", "text is required", nil), http.StatusBadRequest, "validation"},
		{domain.NewError(domain.CodeConflict, "update", "stale", nil), http.StatusConflict, "conflict"},
		{domain.NewError(domain.CodePersistence, "update", "pq: broken", nil), http.StatusServiceUnavailable, "persistence"},
		{fmt.Errorf("wrapped: %w", domain.NewError(domain.CodeRetryable, "get", "timeout", nil)), http.StatusServiceUnavailable, "retryable"},
		{errors.New("boom"), http.StatusInternalServerError, "request_failed"},
		{apierr.New(http.StatusTeapot, "teapot", errors.New("short and stout")), http.StatusTeapot, "teapot"},
	}
	for _, tc := range cases {
		status, env := render(t, tc.err)
		if status != tc.want || env.Error.Code != tc.code {
			t.Fatalf("%v: got %d/%s, want %d/%s", tc.err, status, env.Error.Code, tc.want, tc.code)
		}
	}
}

func TestRespondDomainErrorHidesBackendDetail(t *testing.T) {
	_, env := render(t, domain.NewError(domain.CodePersistence, "update", "dial tcp 10.0.0.1:5432", nil))
	if env.Error.Message != "storage temporarily unavailable" {
		t.Fatalf("backend detail leaked: %q", env.Error.Message)
	}
}

func TestAbortErrorFallsBackToStatusText(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	AbortError(c, http.StatusUnauthorized, "unauthorized", nil)

	if !c.IsAborted() || rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected aborted 401, got aborted=%v code=%d", c.IsAborted(), rec.Code)
	}
	var env ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error.Message != "Unauthorized" || env.Error.Code != "unauthorized" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}
