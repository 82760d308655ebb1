package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/retroboard-backend/internal/platform/ctxutil"
	"github.com/yungbote/retroboard-backend/internal/platform/logger"
)

// Health checks and scrapes are logged at debug level when they succeed.
var quietRoutes = map[string]bool{
	"/healthcheck": true,
	"/metrics":     true,
}

// RequestLogger writes one line per request once the handler returns. For
// event streams that is when the client disconnects.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := requestFields(c, time.Since(start))
		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		case quietRoutes[c.FullPath()]:
			log.Debug("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}

func requestFields(c *gin.Context, elapsed time.Duration) []interface{} {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	fields := []interface{}{
		"method", strings.ToUpper(c.Request.Method),
		"route", route,
		"status", c.Writer.Status(),
		"duration_ms", elapsed.Milliseconds(),
	}
	ctx := c.Request.Context()
	if td := ctxutil.GetTraceData(ctx); td != nil {
		if td.TraceID != "" {
			fields = append(fields, "trace_id", td.TraceID)
		}
		if td.RequestID != "" {
			fields = append(fields, "request_id", td.RequestID)
		}
	}
	if rd := ctxutil.GetRequestData(ctx); rd != nil && rd.UserID != uuid.Nil {
		fields = append(fields, "user_id", rd.UserID.String())
	}
	for param, key := range map[string]string{"id": "retro_id", "cardId": "card_id"} {
		if v := c.Param(param); v != "" {
			fields = append(fields, key, v)
		}
	}
	if topics := c.Query("topics"); topics != "" {
		fields = append(fields, "topics", topics)
	}
	return fields
}
