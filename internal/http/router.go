package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/readiness-backend/internal/http/handlers"
	httpMW "github.com/yungbote/readiness-backend/internal/http/middleware"
	"github.com/yungbote/readiness-backend/internal/observability"
	"github.com/yungbote/readiness-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	IdentityMiddleware *httpMW.IdentityMiddleware

	HealthHandler     *httpH.HealthHandler
	CatalogHandler    *httpH.CatalogHandler
	AssessmentHandler *httpH.AssessmentHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.RequestLogger(cfg.Log))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}

	api := r.Group("/api")
	if cfg.IdentityMiddleware != nil {
		api.Use(cfg.IdentityMiddleware.Optional())
	}

	// Catalog
	if cfg.CatalogHandler != nil {
		api.GET("/dimensions", cfg.CatalogHandler.ListDimensions)
		api.GET("/questions", cfg.CatalogHandler.ListQuestions)
		api.GET("/questions/quick", cfg.CatalogHandler.ListQuickQuestions)
	}

	// Assessments
	if cfg.AssessmentHandler != nil {
		api.POST("/assessments", cfg.AssessmentHandler.Create)
		api.GET("/assessments/:id", cfg.AssessmentHandler.Get)
		api.GET("/assessments/:id/questions", cfg.AssessmentHandler.Questions)
		api.PUT("/assessments/:id/answers/:question_id", cfg.AssessmentHandler.RecordAnswer)
		api.POST("/assessments/:id/submit", cfg.AssessmentHandler.Submit)
		api.GET("/assessments/:id/results", cfg.AssessmentHandler.Results)
		// Archival needs a verified caller; without identity it is CLI-only.
		if cfg.IdentityMiddleware != nil {
			api.POST("/assessments/:id/archive", cfg.IdentityMiddleware.Required(), cfg.AssessmentHandler.Archive)
		}
	}

	return r
}
