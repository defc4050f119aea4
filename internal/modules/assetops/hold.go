package assetops

import (
	types "github.com/yungbote/asset-registry/internal/domain"
	"github.com/yungbote/asset-registry/internal/domain/registry"
	"github.com/yungbote/asset-registry/internal/platform/dbctx"
)

type holdHandler struct {
	base
}

func (h *holdHandler) OpCode() types.OpCode { return registry.OpHold }

func (h *holdHandler) Validate(dbc dbctx.Context, creator, assetID string, p types.Params) error {
	if _, err := paramsAs[registry.HoldParams](registry.OpHold, p); err != nil {
		return err
	}
	_, _, err := h.aliveAndHeldByCaller(dbc, creator, assetID)
	return err
}

func (h *holdHandler) Apply(dbc dbctx.Context, op *types.Operation, p types.Params) (*types.Asset, error) {
	if _, err := paramsAs[registry.HoldParams](registry.OpHold, p); err != nil {
		return nil, err
	}
	if _, err := h.holder.AcquireHeld(dbc, op.AssetID, op.Creator); err != nil {
		return nil, err
	}
	return h.liveAsset(dbc, op.AssetID)
}

type releaseHandler struct {
	base
}

func (h *releaseHandler) OpCode() types.OpCode { return registry.OpRelease }

func (h *releaseHandler) Validate(dbc dbctx.Context, creator, assetID string, p types.Params) error {
	if _, err := paramsAs[registry.ReleaseParams](registry.OpRelease, p); err != nil {
		return err
	}
	if _, err := h.liveAsset(dbc, assetID); err != nil {
		return err
	}
	_, err := h.heldByCaller(dbc, creator, assetID)
	return err
}

func (h *releaseHandler) Apply(dbc dbctx.Context, op *types.Operation, p types.Params) (*types.Asset, error) {
	if _, err := paramsAs[registry.ReleaseParams](registry.OpRelease, p); err != nil {
		return nil, err
	}
	l, err := h.heldByCaller(dbc, op.Creator, op.AssetID)
	if err != nil {
		return nil, err
	}
	if err := h.holder.ReleaseHeld(dbc, l); err != nil {
		return nil, err
	}
	return h.liveAsset(dbc, op.AssetID)
}

func (h *releaseHandler) heldByCaller(dbc dbctx.Context, creator, assetID string) (*types.Lock, error) {
	l, err := h.holder.ActiveLock(dbc, assetID)
	if err != nil {
		return nil, err
	}
	switch {
	case l == nil:
		return nil, registry.Errorf(registry.CodeAssetNotHeld, "asset<%s> is not held", assetID)
	case l.Locker != creator:
		return nil, registry.Errorf(registry.CodeAssetHeldByOther, "asset<%s> is held by %s", assetID, l.Locker)
	case l.State != registry.LockCommitted:
		return nil, registry.Errorf(registry.CodeNotCommitted, "lock<%s> is %s, not COMMITTED", l.ID, l.State)
	}
	return l, nil
}
