package app

import (
	"github.com/gin-gonic/gin"

	apphttp "github.com/yungbote/certification-backend/internal/http"
	"github.com/yungbote/certification-backend/internal/observability"
	"github.com/yungbote/certification-backend/internal/platform/logger"
)

func routerConfig(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) apphttp.RouterConfig {
	return apphttp.RouterConfig{
		Log:                log,
		Metrics:            metrics,
		ServiceName:        cfg.ServiceName,
		AllowedOrigins:     cfg.AllowedOrigins,
		RequestTimeout:     cfg.RequestTimeout,
		MaxMultipartMemory: 8 << 20,

		AuthMiddleware: middleware.Auth,

		CertificationHandler: handlers.Certification,
		AttachmentHandler:    handlers.Attachment,
		BadgeHandler:         handlers.Badge,
		CatalogHandler:       handlers.Catalog,
		EventsHandler:        handlers.Events,
		HealthHandler:        handlers.Health,
	}
}

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *gin.Engine {
	return apphttp.NewRouter(routerConfig(log, cfg, metrics, handlers, middleware))
}
