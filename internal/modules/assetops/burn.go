package assetops

import (
	"errors"

	"gorm.io/gorm"

	repos "github.com/yungbote/asset-registry/internal/data/repos/registry"
	types "github.com/yungbote/asset-registry/internal/domain"
	"github.com/yungbote/asset-registry/internal/domain/registry"
	"github.com/yungbote/asset-registry/internal/platform/dbctx"
)

type burnHandler struct {
	base
}

func (h *burnHandler) OpCode() types.OpCode { return registry.OpBurn }

func (h *burnHandler) Validate(dbc dbctx.Context, creator, assetID string, p types.Params) error {
	if _, err := paramsAs[registry.BurnParams](registry.OpBurn, p); err != nil {
		return err
	}
	_, _, err := h.aliveAndHeldByCaller(dbc, creator, assetID)
	return err
}

// Apply archives the live row verbatim and then removes it. The archive
// write must land before the delete. The burner's lock on the asset ends in
// the same transaction.
func (h *burnHandler) Apply(dbc dbctx.Context, op *types.Operation, p types.Params) (*types.Asset, error) {
	if _, err := paramsAs[registry.BurnParams](registry.OpBurn, p); err != nil {
		return nil, err
	}
	a, l, err := h.aliveAndHeldByCaller(dbc, op.Creator, op.AssetID)
	if err != nil {
		return nil, err
	}
	if err := h.assets.Archive(dbc, a.Archive(op.ID, h.now().UTC())); err != nil {
		switch {
		case errors.Is(err, repos.ErrDuplicate):
			return nil, registry.Errorf(registry.CodeAssetAlreadyArchived, "asset<%s> already archived", op.AssetID)
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, registry.Errorf(registry.CodeAssetNotAlive, "asset<%s> is not alive", op.AssetID)
		default:
			return nil, registry.Wrap(registry.CodeStoreFailure, err, "archive asset<%s>", op.AssetID)
		}
	}
	if l != nil {
		if err := h.holder.RetireHeld(dbc, l); err != nil {
			return nil, err
		}
	}
	h.log.Debug("asset burned", "asset_id", a.ID, "op_id", op.ID)
	return a, nil
}
