package registry

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/asset-registry/internal/domain"
	"github.com/yungbote/asset-registry/internal/platform/dbctx"
	"github.com/yungbote/asset-registry/internal/platform/logger"
)

type AssetRepo interface {
	GetByID(dbc dbctx.Context, id string) (*types.Asset, error)
	GetArchivedByID(dbc dbctx.Context, id string) (*types.ArchivedAsset, error)
	ListByOwner(dbc dbctx.Context, ownerID string, logicMark string) ([]*types.Asset, error)
	Create(dbc dbctx.Context, row *types.Asset) error
	UpdateFields(dbc dbctx.Context, id string, updates map[string]interface{}) (bool, error)
	Archive(dbc dbctx.Context, row *types.ArchivedAsset) error
}

type assetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssetRepo(db *gorm.DB, baseLog *logger.Logger) AssetRepo {
	return &assetRepo{db: db, log: baseLog.With("repo", "AssetRepo")}
}

func (r *assetRepo) GetByID(dbc dbctx.Context, id string) (*types.Asset, error) {
	if id == "" {
		return nil, nil
	}
	var row types.Asset
	if err := dbc.DB(r.db).WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == "" {
		return nil, nil
	}
	return &row, nil
}

func (r *assetRepo) GetArchivedByID(dbc dbctx.Context, id string) (*types.ArchivedAsset, error) {
	if id == "" {
		return nil, nil
	}
	var row types.ArchivedAsset
	if err := dbc.DB(r.db).WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == "" {
		return nil, nil
	}
	return &row, nil
}

func (r *assetRepo) ListByOwner(dbc dbctx.Context, ownerID string, logicMark string) ([]*types.Asset, error) {
	out := []*types.Asset{}
	if ownerID == "" {
		return out, nil
	}
	q := dbc.DB(r.db).WithContext(dbc.Ctx).Where("owner_id = ?", ownerID)
	if logicMark != "" {
		q = q.Where("logic_mark = ?", logicMark)
	}
	if err := q.Order("created_at ASC").Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *assetRepo) Create(dbc dbctx.Context, row *types.Asset) error {
	if row == nil || row.ID == "" {
		return fmt.Errorf("asset id required")
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return translate(dbc.DB(r.db).WithContext(dbc.Ctx).Create(row).Error)
}

func (r *assetRepo) UpdateFields(dbc dbctx.Context, id string, updates map[string]interface{}) (bool, error) {
	if id == "" {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := dbc.DB(r.db).WithContext(dbc.Ctx).
		Model(&types.Asset{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Archive writes the archive copy first and only then removes the live row.
// Both steps share one transaction; a missing live row rolls the copy back.
func (r *assetRepo) Archive(dbc dbctx.Context, row *types.ArchivedAsset) error {
	if row == nil || row.ID == "" {
		return fmt.Errorf("archived asset id required")
	}
	return dbc.DB(r.db).WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Create(row).Error; err != nil {
			return fmt.Errorf("archive asset<%s>: %w", row.ID, translate(err))
		}
		res := txx.Where("id = ?", row.ID).Delete(&types.Asset{})
		if res.Error != nil {
			return fmt.Errorf("remove live asset<%s>: %w", row.ID, res.Error)
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("remove live asset<%s>: %w", row.ID, gorm.ErrRecordNotFound)
		}
		r.log.Debug("asset archived", "asset_id", row.ID, "op_id", row.ArchivedBy)
		return nil
	})
}
