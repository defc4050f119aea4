// Package assetops holds one handler per operation code. Validate is a pure
// precondition check; Apply performs the store mutation and is only ever
// called inside the transaction that commits the operation.
package assetops

import (
	"fmt"
	"time"

	repos "github.com/yungbote/asset-registry/internal/data/repos/registry"
	types "github.com/yungbote/asset-registry/internal/domain"
	"github.com/yungbote/asset-registry/internal/domain/registry"
	"github.com/yungbote/asset-registry/internal/platform/dbctx"
	"github.com/yungbote/asset-registry/internal/platform/logger"
)

type Handler interface {
	OpCode() types.OpCode
	Validate(dbc dbctx.Context, creator, assetID string, params types.Params) error
	Apply(dbc dbctx.Context, op *types.Operation, params types.Params) (*types.Asset, error)
}

// HolderAuthority answers who currently holds an asset and moves the hold.
// It is implemented by the lock service; the active lock's locker is the
// holder.
type HolderAuthority interface {
	// ActiveLock returns the active lock for assetID, reclaiming a stale PREPARED
	// lock first.
	ActiveLock(dbc dbctx.Context, assetID string) (*types.Lock, error)
	// AcquireHeld leaves assetID held by locker in COMMITTED.
	AcquireHeld(dbc dbctx.Context, assetID, locker string) (*types.Lock, error)
	// ReleaseHeld moves a COMMITTED lock to RELEASED.
	ReleaseHeld(dbc dbctx.Context, lock *types.Lock) error
	// RetireHeld terminates the active lock of an asset leaving the live table.
	RetireHeld(dbc dbctx.Context, lock *types.Lock) error
}

type Deps struct {
	Log    *logger.Logger
	Assets repos.AssetRepo
	Holder HolderAuthority
	Now    func() time.Time
}

// Registry dispatches by op code.
type Registry struct {
	handlers map[types.OpCode]Handler
}

func NewRegistry(deps Deps) (*Registry, error) {
	if deps.Log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if deps.Assets == nil || deps.Holder == nil {
		return nil, fmt.Errorf("asset repo and holder authority required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	b := base{
		log:    deps.Log.With("module", "assetops"),
		assets: deps.Assets,
		holder: deps.Holder,
		now:    deps.Now,
	}
	r := &Registry{handlers: map[types.OpCode]Handler{}}
	for _, h := range []Handler{
		&issueHandler{base: b},
		&burnHandler{base: b},
		&updateHandler{base: b},
		&transferHandler{base: b},
		&holdHandler{base: b},
		&releaseHandler{base: b},
	} {
		r.handlers[h.OpCode()] = h
	}
	for _, code := range registry.OpCodes {
		if _, ok := r.handlers[code]; !ok {
			return nil, fmt.Errorf("no handler for %s", code)
		}
	}
	return r, nil
}

func (r *Registry) Handler(code types.OpCode) (Handler, error) {
	h, ok := r.handlers[code]
	if !ok {
		return nil, registry.Errorf(registry.CodeUnknownOpCode, "unknown op code %d", int(code))
	}
	return h, nil
}

// base carries what every handler shares.
type base struct {
	log    *logger.Logger
	assets repos.AssetRepo
	holder HolderAuthority
	now    func() time.Time
}

// liveAsset loads assetID and fails with asset_not_alive when it is not live.
func (b base) liveAsset(dbc dbctx.Context, assetID string) (*types.Asset, error) {
	a, err := b.assets.GetByID(dbc, assetID)
	if err != nil {
		return nil, registry.Wrap(registry.CodeStoreFailure, err, "load asset<%s>", assetID)
	}
	if a == nil {
		return nil, registry.Errorf(registry.CodeAssetNotAlive, "asset<%s> is not alive", assetID)
	}
	return a, nil
}

// checkHolder fails when someone other than creator holds the asset and
// returns the active lock, if any.
func (b base) checkHolder(dbc dbctx.Context, creator, assetID string) (*types.Lock, error) {
	l, err := b.holder.ActiveLock(dbc, assetID)
	if err != nil {
		return nil, err
	}
	if l != nil && l.Locker != creator {
		return l, registry.Errorf(registry.CodeAssetHeldByOther, "asset<%s> is held by %s", assetID, l.Locker)
	}
	return l, nil
}

// aliveAndHeldByCaller is the shared precondition of every non-issue op.
func (b base) aliveAndHeldByCaller(dbc dbctx.Context, creator, assetID string) (*types.Asset, *types.Lock, error) {
	a, err := b.liveAsset(dbc, assetID)
	if err != nil {
		return nil, nil, err
	}
	l, err := b.checkHolder(dbc, creator, assetID)
	if err != nil {
		return nil, nil, err
	}
	return a, l, nil
}

// updateAsset applies fields to a live asset and returns the fresh row.
func (b base) updateAsset(dbc dbctx.Context, assetID string, fields map[string]interface{}) (*types.Asset, error) {
	ok, err := b.assets.UpdateFields(dbc, assetID, fields)
	if err != nil {
		return nil, registry.Wrap(registry.CodeStoreFailure, err, "update asset<%s>", assetID)
	}
	if !ok {
		return nil, registry.Errorf(registry.CodeAssetNotAlive, "asset<%s> is not alive", assetID)
	}
	return b.liveAsset(dbc, assetID)
}

func paramsAs[T types.Params](code types.OpCode, p types.Params) (T, error) {
	var zero T
	if err := registry.CheckParams(code, p); err != nil {
		return zero, err
	}
	v, ok := p.(T)
	if !ok {
		return zero, registry.Errorf(registry.CodeInvalidParamsShape, "%s: unexpected params type %T", code, p)
	}
	return v, nil
}
