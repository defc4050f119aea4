package registry

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/asset-registry/internal/domain"
	"github.com/yungbote/asset-registry/internal/platform/dbctx"
	"github.com/yungbote/asset-registry/internal/platform/logger"
)

type OperationRepo interface {
	GetByID(dbc dbctx.Context, id string) (*types.Operation, error)
	ListByAsset(dbc dbctx.Context, assetID string, limit int) ([]*types.Operation, error)
	// CreateIfAbsent inserts row unless an operation with the same id exists.
	// It returns the stored record and whether this call created it.
	CreateIfAbsent(dbc dbctx.Context, row *types.Operation) (*types.Operation, bool, error)
	// Transition moves the operation from -> to only if it is still in from.
	Transition(dbc dbctx.Context, id string, from, to types.OpState, updates map[string]interface{}) (bool, error)
}

type operationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOperationRepo(db *gorm.DB, baseLog *logger.Logger) OperationRepo {
	return &operationRepo{db: db, log: baseLog.With("repo", "OperationRepo")}
}

func (r *operationRepo) GetByID(dbc dbctx.Context, id string) (*types.Operation, error) {
	if id == "" {
		return nil, nil
	}
	var row types.Operation
	if err := dbc.DB(r.db).WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == "" {
		return nil, nil
	}
	return &row, nil
}

func (r *operationRepo) ListByAsset(dbc dbctx.Context, assetID string, limit int) ([]*types.Operation, error) {
	out := []*types.Operation{}
	if assetID == "" {
		return out, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	err := dbc.DB(r.db).WithContext(dbc.Ctx).
		Where("asset_id = ?", assetID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *operationRepo) CreateIfAbsent(dbc dbctx.Context, row *types.Operation) (*types.Operation, bool, error) {
	if row == nil || row.ID == "" {
		return nil, false, fmt.Errorf("operation id required")
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	t := dbc.DB(r.db).WithContext(dbc.Ctx)
	res := t.Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if res.Error != nil {
		return nil, false, translate(res.Error)
	}
	if res.RowsAffected == 1 {
		return row, true, nil
	}
	stored, err := r.GetByID(dbc, row.ID)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, fmt.Errorf("operation<%s> neither created nor found", row.ID)
	}
	return stored, false, nil
}

func (r *operationRepo) Transition(dbc dbctx.Context, id string, from, to types.OpState, updates map[string]interface{}) (bool, error) {
	if id == "" {
		return false, nil
	}
	fields := map[string]interface{}{}
	for k, v := range updates {
		fields[k] = v
	}
	fields["state"] = to
	if _, ok := fields["updated_at"]; !ok {
		fields["updated_at"] = time.Now().UTC()
	}
	res := dbc.DB(r.db).WithContext(dbc.Ctx).
		Model(&types.Operation{}).
		Where("id = ? AND state = ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
