package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/retroboard-backend/internal/data/store"
	"github.com/yungbote/retroboard-backend/internal/http"
	"github.com/yungbote/retroboard-backend/internal/observability"
	"github.com/yungbote/retroboard-backend/internal/platform/logger"
	"github.com/yungbote/retroboard-backend/internal/realtime"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Store    store.Store
	Hub      *realtime.Hub
	Metrics  *observability.Metrics
	Services Services
	Server   *http.Server

	shutdownTracing func(context.Context) error
	closeOnce       sync.Once
}

// New builds the application graph. The caller owns the returned App and
// must call Close (Run does it on exit).
func New(ctx context.Context, cfg Config) (*App, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	gin.SetMode(ginMode(cfg))

	shutdownTracing := observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.OtelEnabled,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.OtelEndpoint,
		Insecure:    cfg.OtelInsecure,
		SampleRatio: cfg.OtelSampleRatio,
	})
	metrics := observability.Init(log, cfg.MetricsEnabled)

	st, err := resolveStore(ctx, log, cfg, metrics)
	if err != nil {
		_ = shutdownTracing(ctx)
		log.Sync()
		return nil, err
	}

	hub := realtime.NewHub(log, metrics, cfg.EventBufferSize)

	serviceset, err := wireServices(log, cfg, st, hub, metrics)
	if err != nil {
		hub.Close()
		_ = st.Close()
		_ = shutdownTracing(ctx)
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, cfg, serviceset, st, hub)
	middleware := wireMiddleware(log, serviceset)
	server := http.NewServer(cfg.HTTPAddr, routerConfig(log, cfg, metrics, handlerset, middleware))

	return &App{
		Log:             log,
		Cfg:             cfg,
		Store:           st,
		Hub:             hub,
		Metrics:         metrics,
		Services:        serviceset,
		Server:          server,
		shutdownTracing: shutdownTracing,
	}, nil
}

// Run serves HTTP until ctx is cancelled or the server fails, then shuts
// everything down.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Log.Info("HTTP server listening", "addr", a.Server.Addr(), "store_mode", a.Cfg.StoreMode)
		if err := a.Server.Run(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.Log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Ending the streams first lets Shutdown drain without waiting on them.
		a.Hub.Close()
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.closeOnce.Do(a.close)
}

func (a *App) close() {
	if a.Hub != nil {
		a.Hub.Close()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Log.Warn("Store close failed", "error", err)
		}
	}
	if a.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.shutdownTracing(ctx); err != nil {
			a.Log.Warn("Tracer shutdown failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
