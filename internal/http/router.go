package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/retroboard-backend/internal/http/handlers"
	httpMW "github.com/yungbote/retroboard-backend/internal/http/middleware"
	"github.com/yungbote/retroboard-backend/internal/observability"
	"github.com/yungbote/retroboard-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	// TracingEnabled adds otelgin spans; it should follow whether a tracer
	// provider was installed.
	TracingEnabled bool
	AllowOrigins   []string

	AuthHandler     *httpH.AuthHandler
	AuthMiddleware  *httpMW.AuthMiddleware
	UserHandler     *httpH.UserHandler
	RetroHandler    *httpH.RetroHandler
	RealtimeHandler *httpH.RealtimeHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.TracingEnabled {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	{
		// Auth (public)
		if cfg.AuthHandler != nil {
			api.POST("/signup", cfg.AuthHandler.Signup)
			api.POST("/login", cfg.AuthHandler.Login)
		}
	}

	protected := api.Group("/")
	{
		// Middleware
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// User (Me)
		if cfg.UserHandler != nil {
			protected.GET("/me", cfg.UserHandler.GetMe)
			protected.PATCH("/me", cfg.UserHandler.PatchMe)
			protected.GET("/users", cfg.UserHandler.ListUsers)
		}

		// Retros
		if cfg.RetroHandler != nil {
			protected.GET("/retros", cfg.RetroHandler.ListRetros)
			protected.POST("/retros", cfg.RetroHandler.CreateRetro)
			protected.GET("/retros/:id", cfg.RetroHandler.GetRetro)
			protected.POST("/retros/:id/enter", cfg.RetroHandler.EnterRetro)
			protected.POST("/retros/:id/leave", cfg.RetroHandler.LeaveRetro)
			protected.POST("/retros/:id/cards", cfg.RetroHandler.AddCard)
			protected.PATCH("/retros/:id/cards/:cardId", cfg.RetroHandler.EditCard)
			protected.POST("/retros/:id/cards/:cardId/vote", cfg.RetroHandler.VoteCard)
			protected.PUT("/retros/:id/step", cfg.RetroHandler.UpdateStep)
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			protected.GET("/retros/:id/stream", cfg.RealtimeHandler.Stream)
		}
	}

	return r
}
