package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/readiness-backend/internal/catalog"
	apphttp "github.com/yungbote/readiness-backend/internal/http"
	"github.com/yungbote/readiness-backend/internal/observability"
	"github.com/yungbote/readiness-backend/internal/platform/logger"
	"github.com/yungbote/readiness-backend/internal/platform/shutdown"
	"github.com/yungbote/readiness-backend/internal/session"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Catalog  *catalog.Catalog
	Metrics  *observability.Metrics
	Storage  Storage
	Sessions session.SessionService
	Server   *apphttp.Server

	shutdownTracing func(context.Context) error
}

// New loads configuration and wires the full service. Any failure here is
// fatal for the process.
func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	core, err := newCore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(cfg.LogMode, "production") || strings.EqualFold(cfg.LogMode, "prod") {
		gin.SetMode(gin.ReleaseMode)
	}
	handlerset := wireHandlers(core.Log, core.Catalog, core.Sessions, core.Storage)
	middleware := wireMiddleware(core.Log, cfg)
	router := wireRouter(cfg, core.Log, core.Metrics, handlerset, middleware)
	core.Server = apphttp.NewServer(apphttp.ServerConfig{
		Addr:            cfg.HTTPAddr,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, core.Log, router)
	return core, nil
}

// NewWorker wires everything except the HTTP surface, for batch commands.
func NewWorker(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return newCore(ctx, cfg)
}

func newCore(ctx context.Context, cfg Config) (*App, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	shutdownTracing := observability.InitOTel(ctx, log, cfg.otelConfig())
	metrics := observability.Init(log, cfg.Metrics.Enabled)

	log.Info("Loading catalog...")
	cat, err := catalog.Load(cfg.CatalogSeedPath)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	dims, questions, quick := cat.Counts()
	log.Info("Catalog loaded", "dimensions", dims, "questions", questions, "quick_questions", quick)

	storage, err := wireStorage(ctx, cfg, log, metrics)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init store: %w", err)
	}
	sessions := session.NewSessionService(log, cat, storage.Store, storage.Cache, metrics)

	return &App{
		Log:             log,
		Cfg:             cfg,
		Catalog:         cat,
		Metrics:         metrics,
		Storage:         storage,
		Sessions:        sessions,
		shutdownTracing: shutdownTracing,
	}, nil
}

// Run serves HTTP, metrics and the pool collectors until ctx is cancelled or
// one of them fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Server.Run(gctx) })
	if a.Metrics != nil {
		g.Go(func() error { return a.Metrics.Serve(gctx, a.Log, a.Cfg.Metrics.Addr) })
		g.Go(func() error {
			return a.Metrics.RunDBCollector(gctx, a.Log, a.Storage.DB, a.Cfg.Metrics.CollectInterval)
		})
		if a.Storage.Redis != nil {
			g.Go(func() error {
				return a.Metrics.RunRedisCollector(gctx, a.Log, a.Storage.Redis, a.Cfg.Metrics.CollectInterval)
			})
		}
	}
	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.shutdownTracing != nil {
		ctx, cancel := shutdown.Grace(a.Cfg.ShutdownTimeout)
		if err := a.shutdownTracing(ctx); err != nil && a.Log != nil {
			a.Log.Warn("tracing shutdown failed", "error", err)
		}
		cancel()
	}
	a.Storage.Close()
	if a.Log != nil {
		a.Log.Sync()
	}
}
