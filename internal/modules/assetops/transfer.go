package assetops

import (
	"strings"

	types "github.com/yungbote/asset-registry/internal/domain"
	"github.com/yungbote/asset-registry/internal/domain/registry"
	"github.com/yungbote/asset-registry/internal/platform/dbctx"
)

type transferHandler struct {
	base
}

func (h *transferHandler) OpCode() types.OpCode { return registry.OpTransfer }

func (h *transferHandler) Validate(dbc dbctx.Context, creator, assetID string, p types.Params) error {
	tp, err := paramsAs[registry.TransferParams](registry.OpTransfer, p)
	if err != nil {
		return err
	}
	from, to := strings.TrimSpace(tp.From), strings.TrimSpace(tp.To)
	if from == to {
		return registry.Errorf(registry.CodeTransferToSelf, "transfer of asset<%s> from %s to itself", assetID, from)
	}
	a, _, err := h.aliveAndHeldByCaller(dbc, creator, assetID)
	if err != nil {
		return err
	}
	if a.OwnerID != from {
		return registry.Errorf(registry.CodeOwnershipMismatch, "asset<%s> is owned by %s, not %s", assetID, a.OwnerID, from)
	}
	return nil
}

func (h *transferHandler) Apply(dbc dbctx.Context, op *types.Operation, p types.Params) (*types.Asset, error) {
	tp, err := paramsAs[registry.TransferParams](registry.OpTransfer, p)
	if err != nil {
		return nil, err
	}
	a, err := h.updateAsset(dbc, op.AssetID, map[string]interface{}{
		"owner_id":   strings.TrimSpace(tp.To),
		"updated_at": h.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	h.log.Debug("asset transferred", "asset_id", a.ID, "op_id", op.ID)
	return a, nil
}
