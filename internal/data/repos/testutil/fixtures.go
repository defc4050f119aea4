package testutil

import (
	"context"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/asset-registry/internal/domain"
	"github.com/yungbote/asset-registry/internal/domain/registry"
)

func SeedAsset(tb testing.TB, ctx context.Context, tx *gorm.DB, ownerID string, data string) *types.Asset {
	tb.Helper()
	now := time.Now().UTC()
	a := &types.Asset{
		ID:        registry.NewID(),
		OwnerID:   ownerID,
		LogicMark: "hero",
		Data:      datatypes.JSON([]byte(data)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed asset: %v", err)
	}
	return a
}

func SeedLock(tb testing.TB, ctx context.Context, tx *gorm.DB, assetID, locker string, state types.LockState, updatedAt time.Time) *types.Lock {
	tb.Helper()
	l := &types.Lock{
		ID:        registry.NewID(),
		AssetID:   assetID,
		Locker:    locker,
		State:     state,
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
	}
	if err := tx.WithContext(ctx).Create(l).Error; err != nil {
		tb.Fatalf("seed lock: %v", err)
	}
	return l
}
