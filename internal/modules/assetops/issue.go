package assetops

import (
	"bytes"
	"errors"

	"gorm.io/datatypes"

	repos "github.com/yungbote/asset-registry/internal/data/repos/registry"
	types "github.com/yungbote/asset-registry/internal/domain"
	"github.com/yungbote/asset-registry/internal/domain/registry"
	"github.com/yungbote/asset-registry/internal/platform/dbctx"
)

type issueHandler struct {
	base
}

func (h *issueHandler) OpCode() types.OpCode { return registry.OpIssue }

func (h *issueHandler) Validate(dbc dbctx.Context, creator, assetID string, p types.Params) error {
	if _, err := paramsAs[registry.IssueParams](registry.OpIssue, p); err != nil {
		return err
	}
	live, err := h.assets.GetByID(dbc, assetID)
	if err != nil {
		return registry.Wrap(registry.CodeStoreFailure, err, "load asset<%s>", assetID)
	}
	if live != nil {
		return registry.Errorf(registry.CodeAssetAlreadyExists, "asset<%s> already exists", assetID)
	}
	archived, err := h.assets.GetArchivedByID(dbc, assetID)
	if err != nil {
		return registry.Wrap(registry.CodeStoreFailure, err, "load archived asset<%s>", assetID)
	}
	if archived != nil {
		return registry.Errorf(registry.CodeAssetAlreadyArchived, "asset<%s> was burned", assetID)
	}
	return nil
}

func (h *issueHandler) Apply(dbc dbctx.Context, op *types.Operation, p types.Params) (*types.Asset, error) {
	ip, err := paramsAs[registry.IssueParams](registry.OpIssue, p)
	if err != nil {
		return nil, err
	}
	data := datatypes.JSON("{}")
	if len(bytes.TrimSpace(ip.Data)) > 0 {
		data = datatypes.JSON(ip.Data)
	}
	now := h.now().UTC()
	row := &types.Asset{
		ID:        op.AssetID,
		OwnerID:   ip.OwnerID,
		LogicMark: ip.LogicMark,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.assets.Create(dbc, row); err != nil {
		if errors.Is(err, repos.ErrDuplicate) {
			return nil, registry.Errorf(registry.CodeAssetAlreadyExists, "asset<%s> already exists", op.AssetID)
		}
		return nil, registry.Wrap(registry.CodeStoreFailure, err, "create asset<%s>", op.AssetID)
	}
	h.log.Debug("asset issued", "asset_id", row.ID, "owner_id", row.OwnerID, "op_id", op.ID)
	return row, nil
}
