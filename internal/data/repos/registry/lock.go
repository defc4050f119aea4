package registry

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/asset-registry/internal/domain"
	"github.com/yungbote/asset-registry/internal/platform/dbctx"
	"github.com/yungbote/asset-registry/internal/platform/logger"
)

// errLockMoved aborts a terminate transaction whose conditional delete
// matched nothing.
var errLockMoved = errors.New("lock state moved")

type LockRepo interface {
	GetByAssetID(dbc dbctx.Context, assetID string) (*types.Lock, error)
	GetByID(dbc dbctx.Context, id string) (*types.Lock, error)
	GetTerminatedByID(dbc dbctx.Context, id string) (*types.TerminatedLock, error)
	ListTerminatedByAsset(dbc dbctx.Context, assetID string, limit int) ([]*types.TerminatedLock, error)
	Create(dbc dbctx.Context, row *types.Lock) error
	// Transition advances an active lock from -> to, conditional on from.
	Transition(dbc dbctx.Context, id string, from, to types.LockState, at time.Time) (bool, error)
	// Terminate archives the lock in state to and removes it from the active
	// table, conditional on it still being in from.
	Terminate(dbc dbctx.Context, row *types.Lock, from, to types.LockState, at time.Time) (*types.TerminatedLock, bool, error)
}

type lockRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLockRepo(db *gorm.DB, baseLog *logger.Logger) LockRepo {
	return &lockRepo{db: db, log: baseLog.With("repo", "LockRepo")}
}

func (r *lockRepo) GetByAssetID(dbc dbctx.Context, assetID string) (*types.Lock, error) {
	if assetID == "" {
		return nil, nil
	}
	var row types.Lock
	if err := dbc.DB(r.db).WithContext(dbc.Ctx).Where("asset_id = ?", assetID).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == "" {
		return nil, nil
	}
	return &row, nil
}

func (r *lockRepo) GetByID(dbc dbctx.Context, id string) (*types.Lock, error) {
	if id == "" {
		return nil, nil
	}
	var row types.Lock
	if err := dbc.DB(r.db).WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == "" {
		return nil, nil
	}
	return &row, nil
}

func (r *lockRepo) GetTerminatedByID(dbc dbctx.Context, id string) (*types.TerminatedLock, error) {
	if id == "" {
		return nil, nil
	}
	var row types.TerminatedLock
	if err := dbc.DB(r.db).WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == "" {
		return nil, nil
	}
	return &row, nil
}

func (r *lockRepo) ListTerminatedByAsset(dbc dbctx.Context, assetID string, limit int) ([]*types.TerminatedLock, error) {
	out := []*types.TerminatedLock{}
	if assetID == "" {
		return out, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	err := dbc.DB(r.db).WithContext(dbc.Ctx).
		Where("asset_id = ?", assetID).
		Order("finished_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *lockRepo) Create(dbc dbctx.Context, row *types.Lock) error {
	if row == nil || row.ID == "" || row.AssetID == "" {
		return fmt.Errorf("lock id and asset id required")
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

func (r *lockRepo) Transition(dbc dbctx.Context, id string, from, to types.LockState, at time.Time) (bool, error) {
	if id == "" {
		return false, nil
	}
	res := dbc.DB(r.db).WithContext(dbc.Ctx).
		Model(&types.Lock{}).
		Where("id = ? AND state = ?", id, from).
		Updates(map[string]interface{}{
			"state":      to,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *lockRepo) Terminate(dbc dbctx.Context, row *types.Lock, from, to types.LockState, at time.Time) (*types.TerminatedLock, bool, error) {
	if row == nil || row.ID == "" {
		return nil, false, fmt.Errorf("lock id required")
	}
	finished := row.Terminate(to, at)
	err := dbc.DB(r.db).WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Create(finished).Error; err != nil {
			if isDuplicate(err) {
				// a racing caller already archived it
				return errLockMoved
			}
			return fmt.Errorf("archive lock<%s>: %w", row.ID, err)
		}
		res := txx.Where("id = ? AND state = ?", row.ID, from).Delete(&types.Lock{})
		if res.Error != nil {
			return fmt.Errorf("remove active lock<%s>: %w", row.ID, res.Error)
		}
		if res.RowsAffected != 1 {
			return errLockMoved
		}
		return nil
	})
	if errors.Is(err, errLockMoved) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	r.log.Debug("lock terminated", "lock_id", row.ID, "asset_id", row.AssetID, "state", to.String())
	return finished, true, nil
}
