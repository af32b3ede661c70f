package app

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/readiness-backend/internal/catalog"
	apphttp "github.com/yungbote/readiness-backend/internal/http"
	httpH "github.com/yungbote/readiness-backend/internal/http/handlers"
	httpMW "github.com/yungbote/readiness-backend/internal/http/middleware"
	"github.com/yungbote/readiness-backend/internal/observability"
	"github.com/yungbote/readiness-backend/internal/platform/logger"
	"github.com/yungbote/readiness-backend/internal/session"
)

type Middleware struct {
	Identity *httpMW.IdentityMiddleware
}

type Handlers struct {
	Health     *httpH.HealthHandler
	Catalog    *httpH.CatalogHandler
	Assessment *httpH.AssessmentHandler
}

func wireHandlers(log *logger.Logger, cat *catalog.Catalog, sessions session.SessionService, storage Storage) Handlers {
	log.Info("Wiring handlers...")
	var checks []httpH.ReadinessCheck
	if storage.DB != nil {
		checks = append(checks, httpH.ReadinessCheck{Name: "store", Check: func(ctx context.Context) error {
			sqlDB, err := storage.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}})
	}
	if storage.Redis != nil {
		checks = append(checks, httpH.ReadinessCheck{Name: "cache", Check: func(ctx context.Context) error {
			return storage.Redis.Ping(ctx).Err()
		}})
	}
	return Handlers{
		Health:     httpH.NewHealthHandler(checks...),
		Catalog:    httpH.NewCatalogHandler(cat),
		Assessment: httpH.NewAssessmentHandler(log, sessions),
	}
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	if cfg.JWTSecretKey == "" {
		log.Warn("JWT_SECRET_KEY not set; bearer tokens will be rejected and every creation is anonymous")
	}
	return Middleware{
		Identity: httpMW.NewIdentityMiddleware(log, cfg.JWTSecretKey),
	}
}

func wireRouter(cfg Config, log *logger.Logger, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *gin.Engine {
	serviceName := ""
	if cfg.OTel.Enabled {
		serviceName = cfg.ServiceName
	}
	return apphttp.NewRouter(apphttp.RouterConfig{
		Log:                log,
		Metrics:            metrics,
		ServiceName:        serviceName,
		CORSOrigins:        cfg.CORSOrigins,
		IdentityMiddleware: middleware.Identity,
		HealthHandler:      handlers.Health,
		CatalogHandler:     handlers.Catalog,
		AssessmentHandler:  handlers.Assessment,
	})
}
