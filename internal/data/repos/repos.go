package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/asset-registry/internal/data/repos/registry"
	"github.com/yungbote/asset-registry/internal/platform/logger"
)

type AssetRepo = registry.AssetRepo
type OperationRepo = registry.OperationRepo
type LockRepo = registry.LockRepo

var ErrDuplicate = registry.ErrDuplicate

func NewAssetRepo(db *gorm.DB, baseLog *logger.Logger) AssetRepo {
	return registry.NewAssetRepo(db, baseLog)
}

func NewOperationRepo(db *gorm.DB, baseLog *logger.Logger) OperationRepo {
	return registry.NewOperationRepo(db, baseLog)
}

func NewLockRepo(db *gorm.DB, baseLog *logger.Logger) LockRepo {
	return registry.NewLockRepo(db, baseLog)
}
