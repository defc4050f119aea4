package assetops

import (
	"gorm.io/datatypes"

	types "github.com/yungbote/asset-registry/internal/domain"
	"github.com/yungbote/asset-registry/internal/domain/registry"
	"github.com/yungbote/asset-registry/internal/platform/dbctx"
)

type updateHandler struct {
	base
}

func (h *updateHandler) OpCode() types.OpCode { return registry.OpUpdate }

func (h *updateHandler) Validate(dbc dbctx.Context, creator, assetID string, p types.Params) error {
	if _, err := paramsAs[registry.UpdateParams](registry.OpUpdate, p); err != nil {
		return err
	}
	_, _, err := h.aliveAndHeldByCaller(dbc, creator, assetID)
	return err
}

func (h *updateHandler) Apply(dbc dbctx.Context, op *types.Operation, p types.Params) (*types.Asset, error) {
	up, err := paramsAs[registry.UpdateParams](registry.OpUpdate, p)
	if err != nil {
		return nil, err
	}
	return h.updateAsset(dbc, op.AssetID, map[string]interface{}{
		"data":       datatypes.JSON(up.Data),
		"updated_at": h.now().UTC(),
	})
}
