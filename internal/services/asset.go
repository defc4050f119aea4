package services

import (
	"context"
	"strings"

	repos "github.com/yungbote/asset-registry/internal/data/repos/registry"
	types "github.com/yungbote/asset-registry/internal/domain"
	"github.com/yungbote/asset-registry/internal/domain/registry"
	"github.com/yungbote/asset-registry/internal/platform/dbctx"
	"github.com/yungbote/asset-registry/internal/platform/logger"
)

// AssetService is the read side of the registry.
type AssetService interface {
	List(ctx context.Context, ownerID, logicMark string) ([]*types.Asset, error)
	Get(ctx context.Context, assetID string) (*types.Asset, error)
	GetArchived(ctx context.Context, assetID string) (*types.ArchivedAsset, error)
}

type assetService struct {
	log    *logger.Logger
	assets repos.AssetRepo
}

func NewAssetService(baseLog *logger.Logger, assets repos.AssetRepo) AssetService {
	return &assetService{log: baseLog.With("service", "AssetService"), assets: assets}
}

func (s *assetService) List(ctx context.Context, ownerID, logicMark string) ([]*types.Asset, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, registry.Errorf(registry.CodeMissingField, "owner_id is required")
	}
	out, err := s.assets.ListByOwner(dbctx.Context{Ctx: ctx}, ownerID, strings.TrimSpace(logicMark))
	if err != nil {
		return nil, storeFailure(err, "list assets of %s", ownerID)
	}
	return out, nil
}

func (s *assetService) Get(ctx context.Context, assetID string) (*types.Asset, error) {
	assetID, err := registry.NormalizeID("asset_id", assetID)
	if err != nil {
		return nil, err
	}
	a, err := s.assets.GetByID(dbctx.Context{Ctx: ctx}, assetID)
	if err != nil {
		return nil, storeFailure(err, "load asset<%s>", assetID)
	}
	return a, nil
}

func (s *assetService) GetArchived(ctx context.Context, assetID string) (*types.ArchivedAsset, error) {
	assetID, err := registry.NormalizeID("asset_id", assetID)
	if err != nil {
		return nil, err
	}
	a, err := s.assets.GetArchivedByID(dbctx.Context{Ctx: ctx}, assetID)
	if err != nil {
		return nil, storeFailure(err, "load archived asset<%s>", assetID)
	}
	return a, nil
}
