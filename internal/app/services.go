package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/asset-registry/internal/modules/assetops"
	"github.com/yungbote/asset-registry/internal/platform/logger"
	"github.com/yungbote/asset-registry/internal/services"
)

type Services struct {
	Auth        services.AuthService
	Asset       services.AssetService
	Lock        services.LockService
	Ledger      services.OperationLedger
	Coordinator services.OperationCoordinator
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repoSet Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	lockService := services.NewLockService(db, log, repoSet.Lock, clients.Mutex, services.LockServiceConfig{
		PreparedTimeout: cfg.LockPreparedTimeout,
	})
	handlers, err := assetops.NewRegistry(assetops.Deps{
		Log:    log,
		Assets: repoSet.Asset,
		Holder: lockService,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init op handlers: %w", err)
	}
	ledger := services.NewOperationLedger(db, log, repoSet.Operation, handlers, services.OperationLedgerConfig{
		PreparedTimeout: cfg.OpPreparedTimeout,
	})

	return Services{
		Auth:        services.NewAuthService(log, cfg.ServiceJWTSecret),
		Asset:       services.NewAssetService(log, repoSet.Asset),
		Lock:        lockService,
		Ledger:      ledger,
		Coordinator: services.NewOperationCoordinator(log, clients.Mutex, ledger, handlers),
	}, nil
}
