package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/retroboard-backend/internal/domain"
	"github.com/yungbote/retroboard-backend/internal/observability"
	"github.com/yungbote/retroboard-backend/internal/platform/ctxutil"
	"github.com/yungbote/retroboard-backend/internal/platform/logger"
)

type stubAuth struct {
	valid string
	user  uuid.UUID
}

func (s stubAuth) IssueToken(*domain.User) (string, time.Time, error) { return s.valid, time.Time{}, nil }
func (s stubAuth) AccessTTL() time.Duration                          { return time.Hour }
func (s stubAuth) Authenticate(ctx context.Context, token string) (context.Context, error) {
	if token != s.valid {
		return ctx, domain.NewError(domain.CodeUnauthorized, "auth", "invalid token", nil)
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{UserID: s.user, Token: token}), nil
}

func authRouter(t *testing.T, auth stubAuth) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewAuthMiddleware(logger.Nop(), auth).RequireAuth())
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, ctxutil.UserID(c.Request.Context()).String())
	})
	return r
}

func TestRequireAuth(t *testing.T) {
	user := uuid.New()
	r := authRouter(t, stubAuth{valid: "good", user: user})

	cases := []struct {
		name   string
		mutate func(*http.Request)
		status int
	}{
		{"bearer", func(req *http.Request) { req.Header.Set("Authorization", "Bearer good") }, http.StatusOK},
		{"lowercase scheme", func(req *http.Request) { req.Header.Set("Authorization", "bearer good") }, http.StatusOK},
		{"query token", func(req *http.Request) { req.URL.RawQuery = "token=good" }, http.StatusOK},
		{"missing", func(req *http.Request) {}, http.StatusUnauthorized},
		{"wrong", func(req *http.Request) { req.Header.Set("Authorization", "Bearer bad") }, http.StatusUnauthorized},
		{"basic scheme", func(req *http.Request) { req.Header.Set("Authorization", "Basic good") }, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		tc.mutate(req)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("%s: status=%d body=%s", tc.name, rec.Code, rec.Body.String())
		}
		if tc.status == http.StatusOK && rec.Body.String() != user.String() {
			t.Fatalf("%s: caller not attached, got %q", tc.name, rec.Body.String())
		}
		if tc.status == http.StatusUnauthorized && !strings.Contains(rec.Body.String(), `"code":"unauthorized"`) {
			t.Fatalf("%s: unexpected envelope %s", tc.name, rec.Body.String())
		}
	}
}

func TestTraceContextEchoesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	var seen *ctxutil.TraceData
	r.GET("/x", func(c *gin.Context) {
		seen = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(headerRequestID, "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Header().Get(headerRequestID) != "req-1" {
		t.Fatalf("request id not echoed: %v", rec.Header())
	}
	if seen == nil || seen.RequestID != "req-1" || seen.TraceID == "" {
		t.Fatalf("unexpected trace data %+v", seen)
	}
	if rec.Header().Get(headerTraceID) != seen.TraceID {
		t.Fatalf("trace id header mismatch")
	}
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := observability.NewMetrics()
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/api/retros/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/api/retros/a", "/api/retros/b", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	var buf strings.Builder
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `retro_api_requests_total{method="GET",route="/api/retros/:id",status="200"} 2`) {
		t.Fatalf("templated route not recorded:\n%s", out)
	}
	if !strings.Contains(out, `route="unmatched",status="404"} 1`) {
		t.Fatalf("unmatched route not recorded:\n%s", out)
	}
}

func TestRequestLoggerDoesNotPanicWithoutContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(logger.Nop()))
	r.GET("/api/retros/:id", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/retros/1", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestMetricsSkipsScrapes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := observability.NewMetrics()
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	var buf strings.Builder
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	if strings.Contains(buf.String(), `route="/metrics"`) {
		t.Fatalf("scrape must not be counted:\n%s", buf.String())
	}
}

func TestRequestFieldsCarryRetroContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	user := uuid.New()
	var fields []interface{}
	r := gin.New()
	r.PATCH("/api/retros/:id/cards/:cardId", func(c *gin.Context) {
		ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{UserID: user})
		c.Request = c.Request.WithContext(ctx)
		c.Status(http.StatusOK)
		fields = requestFields(c, time.Millisecond)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPatch, "/api/retros/r1/cards/c1?topics=card_added", nil))

	got := map[string]interface{}{}
	for i := 0; i+1 < len(fields); i += 2 {
		got[fields[i].(string)] = fields[i+1]
	}
	want := map[string]interface{}{
		"route":    "/api/retros/:id/cards/:cardId",
		"retro_id": "r1",
		"card_id":  "c1",
		"user_id":  user.String(),
		"topics":   "card_added",
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("field %s = %v, want %v (all: %v)", k, got[k], v, fields)
		}
	}
}
