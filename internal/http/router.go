package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/asset-registry/internal/http/handlers"
	httpMW "github.com/yungbote/asset-registry/internal/http/middleware"
	"github.com/yungbote/asset-registry/internal/observability"
	"github.com/yungbote/asset-registry/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	CORSOrigins    []string
	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler *httpH.HealthHandler
	AssetHandler  *httpH.AssetHandler
	LockHandler   *httpH.LockHandler
	OpHandler     *httpH.OpHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readycheck", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	{
		// Reads (public)
		if cfg.AssetHandler != nil {
			api.GET("/assets", cfg.AssetHandler.List)
			api.GET("/assets/:id", cfg.AssetHandler.Get)
			api.GET("/assets/:id/archived", cfg.AssetHandler.GetArchived)
			api.GET("/assets/:id/operations", cfg.AssetHandler.Operations)
			api.GET("/assets/:id/locks", cfg.AssetHandler.Locks)
		}
		if cfg.LockHandler != nil {
			api.GET("/locks/get/:asset_id", cfg.LockHandler.Get)
			api.GET("/locks/check/:lock_id", cfg.LockHandler.Check)
		}
		if cfg.OpHandler != nil {
			api.GET("/ops/:op_id", cfg.OpHandler.Get)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireService())
		}

		// Lock protocol
		if cfg.LockHandler != nil {
			protected.POST("/locks/vote", cfg.LockHandler.Vote)
			protected.POST("/locks/continue", cfg.LockHandler.Continue)
			protected.POST("/locks/abort", cfg.LockHandler.Abort)
			protected.POST("/locks/release", cfg.LockHandler.Release)
		}

		// Operations
		if cfg.OpHandler != nil {
			protected.POST("/ops/issue", cfg.OpHandler.Issue)
			protected.POST("/ops/burn", cfg.OpHandler.Burn)
			protected.POST("/ops/update", cfg.OpHandler.Update)
			protected.POST("/ops/transfer", cfg.OpHandler.Transfer)
			protected.POST("/ops/hold", cfg.OpHandler.Hold)
			protected.POST("/ops/release", cfg.OpHandler.Release)
		}
	}

	return r
}
