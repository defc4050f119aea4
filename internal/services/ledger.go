package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	repos "github.com/yungbote/asset-registry/internal/data/repos/registry"
	types "github.com/yungbote/asset-registry/internal/domain"
	"github.com/yungbote/asset-registry/internal/domain/registry"
	"github.com/yungbote/asset-registry/internal/modules/assetops"
	"github.com/yungbote/asset-registry/internal/platform/dbctx"
	"github.com/yungbote/asset-registry/internal/platform/logger"
)

// OpPreparedTimeout is how long an operation may stay PREPARED before the
// next read times it out.
const OpPreparedTimeout = 5 * time.Minute

type OperationLedger interface {
	// Get returns the operation, timing out a stale PREPARED record first.
	Get(dbc dbctx.Context, opID string) (*types.Operation, error)
	// Create persists a PREPARED operation. When opID already exists the
	// stored record is returned with created=false.
	Create(dbc dbctx.Context, creator, opID, assetID string, code types.OpCode, params types.Params) (op *types.Operation, created bool, err error)
	// Commit re-validates and applies op and flips it to COMMITTED in one
	// transaction. A validation or apply failure aborts op; the aborted
	// record is returned alongside the error.
	Commit(dbc dbctx.Context, op *types.Operation) (*types.Operation, *types.Asset, error)
	// Abort flips a PREPARED op to ABORTED and records why.
	Abort(dbc dbctx.Context, op *types.Operation, cause error) (*types.Operation, error)
	History(ctx context.Context, assetID string, limit int) ([]*types.Operation, error)
}

type OperationLedgerConfig struct {
	PreparedTimeout time.Duration
	Now             func() time.Time
}

type operationLedger struct {
	db       *gorm.DB
	log      *logger.Logger
	ops      repos.OperationRepo
	handlers *assetops.Registry
	timeout  time.Duration
	now      func() time.Time
}

func NewOperationLedger(db *gorm.DB, baseLog *logger.Logger, ops repos.OperationRepo, handlers *assetops.Registry, cfg OperationLedgerConfig) OperationLedger {
	if cfg.PreparedTimeout <= 0 {
		cfg.PreparedTimeout = OpPreparedTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &operationLedger{
		db:       db,
		log:      baseLog.With("service", "OperationLedger"),
		ops:      ops,
		handlers: handlers,
		timeout:  cfg.PreparedTimeout,
		now:      cfg.Now,
	}
}

func (l *operationLedger) Get(dbc dbctx.Context, opID string) (*types.Operation, error) {
	opID, err := registry.NormalizeID("op_id", opID)
	if err != nil {
		return nil, err
	}
	op, err := l.ops.GetByID(dbc, opID)
	if err != nil {
		return nil, storeFailure(err, "load operation<%s>", opID)
	}
	if op == nil || op.State != registry.OpPrepared {
		return op, nil
	}
	now := l.now().UTC()
	if now.Sub(op.CreatedAt) <= l.timeout {
		return op, nil
	}
	ok, err := l.ops.Transition(dbc, op.ID, registry.OpPrepared, registry.OpTimeout, map[string]interface{}{
		"updated_at": now,
	})
	if err != nil {
		return nil, storeFailure(err, "time out operation<%s>", op.ID)
	}
	if ok {
		l.log.Warn("operation timed out", "op_id", op.ID, "asset_id", op.AssetID, "op_code", op.OpCode.String())
	}
	// reload: either our timeout or whatever beat it
	op, err = l.ops.GetByID(dbc, opID)
	if err != nil {
		return nil, storeFailure(err, "reload operation<%s>", opID)
	}
	return op, nil
}

func (l *operationLedger) Create(dbc dbctx.Context, creator, opID, assetID string, code types.OpCode, params types.Params) (*types.Operation, bool, error) {
	opID, err := registry.NormalizeID("op_id", opID)
	if err != nil {
		return nil, false, err
	}
	assetID, err = registry.NormalizeID("asset_id", assetID)
	if err != nil {
		return nil, false, err
	}
	if err := requireCaller("creator", creator); err != nil {
		return nil, false, err
	}
	if err := registry.CheckParams(code, params); err != nil {
		return nil, false, err
	}
	raw, err := registry.EncodeParams(params)
	if err != nil {
		return nil, false, err
	}
	now := l.now().UTC()
	row := &types.Operation{
		ID:        opID,
		AssetID:   assetID,
		Creator:   creator,
		OpCode:    code,
		Params:    raw,
		State:     registry.OpPrepared,
		CreatedAt: now,
		UpdatedAt: now,
	}
	stored, created, err := l.ops.CreateIfAbsent(dbc, row)
	if err != nil {
		return nil, false, storeFailure(err, "create operation<%s>", opID)
	}
	return stored, created, nil
}

func (l *operationLedger) Commit(dbc dbctx.Context, op *types.Operation) (*types.Operation, *types.Asset, error) {
	if op == nil || op.ID == "" {
		return nil, nil, registry.Errorf(registry.CodeMissingField, "operation required")
	}
	var (
		committed *types.Operation
		asset     *types.Asset
		// set when the op itself was found outside PREPARED; nothing to abort then
		notOurs bool
	)
	txErr := dbc.DB(l.db).WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		tdbc := dbc.WithTx(tx)
		cur, err := l.ops.GetByID(tdbc, op.ID)
		if err != nil {
			return storeFailure(err, "reload operation<%s>", op.ID)
		}
		if cur == nil {
			notOurs = true
			return registry.Errorf(registry.CodeOpNotFound, "operation<%s> not found", op.ID)
		}
		if cur.State != registry.OpPrepared {
			notOurs = true
			return registry.Errorf(registry.CodeStateConflict, "operation<%s> is %s, not PREPARED", cur.ID, cur.State)
		}
		h, err := l.handlers.Handler(cur.OpCode)
		if err != nil {
			return err
		}
		p, err := cur.DecodedParams()
		if err != nil {
			return err
		}
		if err := h.Validate(tdbc, cur.Creator, cur.AssetID, p); err != nil {
			return err
		}
		asset, err = h.Apply(tdbc, cur, p)
		if err != nil {
			return err
		}
		now := l.now().UTC()
		ok, err := l.ops.Transition(tdbc, cur.ID, registry.OpPrepared, registry.OpCommitted, map[string]interface{}{
			"updated_at": now,
		})
		if err != nil {
			return storeFailure(err, "commit operation<%s>", cur.ID)
		}
		if !ok {
			notOurs = true
			return registry.Errorf(registry.CodeStateConflict, "operation<%s> left PREPARED concurrently", cur.ID)
		}
		cur.State = registry.OpCommitted
		cur.UpdatedAt = now
		committed = cur
		return nil
	})
	if txErr == nil {
		// return the stored row so a later replay sees the same record
		stored, err := l.ops.GetByID(dbc, committed.ID)
		if err != nil || stored == nil {
			return committed, asset, nil
		}
		return stored, asset, nil
	}

	if notOurs {
		return nil, nil, txErr
	}
	aborted, err := l.Abort(dbc, op, txErr)
	if err != nil {
		l.log.Error("abort after failed commit", "op_id", op.ID, "cause", txErr, "error", err)
		return nil, nil, txErr
	}
	return aborted, nil, txErr
}

func (l *operationLedger) Abort(dbc dbctx.Context, op *types.Operation, cause error) (*types.Operation, error) {
	if op == nil || op.ID == "" {
		return nil, registry.Errorf(registry.CodeMissingField, "operation required")
	}
	code := registry.CodeOf(cause)
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	ok, err := l.ops.Transition(dbc, op.ID, registry.OpPrepared, registry.OpAborted, map[string]interface{}{
		"error_code":    code,
		"error_message": msg,
		"updated_at":    l.now().UTC(),
	})
	if err != nil {
		return nil, storeFailure(err, "abort operation<%s>", op.ID)
	}
	cur, err := l.ops.GetByID(dbc, op.ID)
	if err != nil {
		return nil, storeFailure(err, "reload operation<%s>", op.ID)
	}
	if cur == nil {
		return nil, registry.Errorf(registry.CodeOpNotFound, "operation<%s> not found", op.ID)
	}
	if !ok && cur.State != registry.OpAborted {
		return cur, registry.Errorf(registry.CodeStateConflict, "operation<%s> is %s, not PREPARED", cur.ID, cur.State)
	}
	if ok {
		l.log.Info("operation aborted", "op_id", cur.ID, "op_code", cur.OpCode.String(), "error_code", string(code))
	}
	return cur, nil
}

func (l *operationLedger) History(ctx context.Context, assetID string, limit int) ([]*types.Operation, error) {
	assetID, err := registry.NormalizeID("asset_id", assetID)
	if err != nil {
		return nil, err
	}
	out, err := l.ops.ListByAsset(dbctx.Context{Ctx: ctx}, assetID, limit)
	if err != nil {
		return nil, storeFailure(err, "list operations of asset<%s>", assetID)
	}
	return out, nil
}
