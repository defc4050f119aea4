package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/asset-registry/internal/http"
	httpH "github.com/yungbote/asset-registry/internal/http/handlers"
	httpMW "github.com/yungbote/asset-registry/internal/http/middleware"
	"github.com/yungbote/asset-registry/internal/observability"
	"github.com/yungbote/asset-registry/internal/platform/logger"
)

type Handlers struct {
	Health *httpH.HealthHandler
	Asset  *httpH.AssetHandler
	Lock   *httpH.LockHandler
	Op     *httpH.OpHandler
}

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

func wireHandlers(log *logger.Logger, db *gorm.DB, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health: httpH.NewHealthHandler(db),
		Asset:  httpH.NewAssetHandler(services.Asset, services.Ledger, services.Lock),
		Lock:   httpH.NewLockHandler(services.Lock),
		Op:     httpH.NewOpHandler(services.Coordinator, services.Ledger),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{Auth: httpMW.NewAuthMiddleware(log, services.Auth)}
}

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *http.Server {
	log.Info("Wiring router...")
	return http.NewServer(http.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		ServiceName:    serviceName,
		CORSOrigins:    cfg.CORSOrigins,
		AuthMiddleware: middleware.Auth,
		HealthHandler:  handlers.Health,
		AssetHandler:   handlers.Asset,
		LockHandler:    handlers.Lock,
		OpHandler:      handlers.Op,
	})
}
