package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/asset-registry/internal/data/repos"
	"github.com/yungbote/asset-registry/internal/platform/logger"
)

type Repos struct {
	Asset     repos.AssetRepo
	Operation repos.OperationRepo
	Lock      repos.LockRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Asset:     repos.NewAssetRepo(db, log),
		Operation: repos.NewOperationRepo(db, log),
		Lock:      repos.NewLockRepo(db, log),
	}
}
