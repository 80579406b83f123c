package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/certification-backend/internal/http/handlers"
	httpMW "github.com/yungbote/certification-backend/internal/http/middleware"
	"github.com/yungbote/certification-backend/internal/observability"
	"github.com/yungbote/certification-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	AllowedOrigins []string
	RequestTimeout time.Duration
	// MaxMultipartMemory caps the in-memory part of multipart parsing; larger
	// files spill to temp files.
	MaxMultipartMemory int64

	AuthMiddleware *httpMW.AuthMiddleware

	CertificationHandler *httpH.CertificationHandler
	AttachmentHandler    *httpH.AttachmentHandler
	BadgeHandler         *httpH.BadgeHandler
	CatalogHandler       *httpH.CatalogHandler
	EventsHandler        *httpH.EventsHandler
	HealthHandler        *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))
	r.Use(httpMW.AttachRequestContext(cfg.RequestTimeout))
	if cfg.MaxMultipartMemory > 0 {
		r.MaxMultipartMemory = cfg.MaxMultipartMemory
	}

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}

	// Certification requests
	if h := cfg.CertificationHandler; h != nil {
		reqs := api.Group("/certification-requests")
		reqs.GET("", h.ListByStatus)
		reqs.POST("", h.Submit)
		reqs.GET("/assigned", h.ListAssigned)
		reqs.GET("/assigned-to/:rhId", h.ListAssignedTo)
		reqs.GET("/awaiting-validation", h.ListAwaitingValidation)
		reqs.GET("/mine", h.ListMine)
		reqs.GET("/:id", h.Get)
		reqs.GET("/:id/history", h.History)
		reqs.POST("/:id/assign", h.Assign)
		reqs.POST("/:id/reassign", h.Reassign)
		reqs.PUT("/:id/evaluation", h.SaveEvaluation)
		reqs.POST("/:id/submit", h.SubmitEvaluation)
		reqs.POST("/:id/decision", h.Decide)
		reqs.POST("/:id/resubmit", h.Resubmit)
		reqs.POST("/:id/cancel", h.Cancel)
	}

	if cfg.AttachmentHandler != nil {
		api.PATCH("/attachments/:id/verification", cfg.AttachmentHandler.SetVerification)
	}

	// Badges
	if cfg.BadgeHandler != nil {
		api.GET("/users/:id/badges", cfg.BadgeHandler.ListForUser)
		api.PATCH("/badges/:id/visibility", cfg.BadgeHandler.SetVisibility)
	}

	if cfg.CatalogHandler != nil {
		api.GET("/domains/:code/criteria", cfg.CatalogHandler.Criteria)
	}

	// Realtime
	if cfg.EventsHandler != nil {
		api.GET("/events", cfg.EventsHandler.Stream)
	}

	return r
}
