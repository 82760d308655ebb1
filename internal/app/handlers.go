package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/retroboard-backend/internal/data/store"
	"github.com/yungbote/retroboard-backend/internal/http"
	httpH "github.com/yungbote/retroboard-backend/internal/http/handlers"
	httpMW "github.com/yungbote/retroboard-backend/internal/http/middleware"
	"github.com/yungbote/retroboard-backend/internal/observability"
	"github.com/yungbote/retroboard-backend/internal/platform/logger"
	"github.com/yungbote/retroboard-backend/internal/realtime"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health   *httpH.HealthHandler
	Auth     *httpH.AuthHandler
	User     *httpH.UserHandler
	Retro    *httpH.RetroHandler
	Realtime *httpH.RealtimeHandler
}

func wireHandlers(log *logger.Logger, cfg Config, services Services, st store.Store, hub *realtime.Hub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   httpH.NewHealthHandler(log, st),
		Auth:     httpH.NewAuthHandler(services.Auth, services.User),
		User:     httpH.NewUserHandler(services.User),
		Retro:    httpH.NewRetroHandler(services.Retro),
		Realtime: httpH.NewRealtimeHandler(log, hub, services.Retro, cfg.SSEHeartbeat),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func routerConfig(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) http.RouterConfig {
	return http.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		ServiceName:     cfg.ServiceName,
		TracingEnabled:  cfg.OtelEnabled,
		AllowOrigins:    cfg.CORSAllowOrigins,
		HealthHandler:   handlers.Health,
		AuthHandler:     handlers.Auth,
		AuthMiddleware:  middleware.Auth,
		UserHandler:     handlers.User,
		RetroHandler:    handlers.Retro,
		RealtimeHandler: handlers.Realtime,
	}
}

func ginMode(cfg Config) string {
	if cfg.IsProduction() {
		return gin.ReleaseMode
	}
	if cfg.LogMode == "test" {
		return gin.TestMode
	}
	return gin.DebugMode
}
