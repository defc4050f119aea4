package registry

import (
	"time"

	"gorm.io/datatypes"
)

// Asset is a live registry record.
type Asset struct {
	ID        string         `gorm:"column:id;type:char(24);primaryKey" json:"id"`
	OwnerID   string         `gorm:"column:owner_id;not null;index:idx_assets_owner_mark,priority:1" json:"owner_id"`
	LogicMark string         `gorm:"column:logic_mark;not null;default:'';index:idx_assets_owner_mark,priority:2" json:"logic_mark"`
	Data      datatypes.JSON `gorm:"column:data" json:"data"`
	CreatedAt time.Time      `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Asset) TableName() string { return "assets" }

// ArchivedAsset is the immutable copy of a burned asset.
type ArchivedAsset struct {
	ID         string         `gorm:"column:id;type:char(24);primaryKey" json:"id"`
	OwnerID    string         `gorm:"column:owner_id;not null;index" json:"owner_id"`
	LogicMark  string         `gorm:"column:logic_mark;not null;default:''" json:"logic_mark"`
	Data       datatypes.JSON `gorm:"column:data" json:"data"`
	CreatedAt  time.Time      `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;not null" json:"updated_at"`
	ArchivedAt time.Time      `gorm:"column:archived_at;not null;index" json:"archived_at"`
	ArchivedBy string         `gorm:"column:archived_by;type:char(24)" json:"archived_by,omitempty"`
}

func (ArchivedAsset) TableName() string { return "assets_archived" }

// Archive copies a verbatim snapshot of a into an archive row. opID records
// the burn operation that retired it.
func (a *Asset) Archive(opID string, at time.Time) *ArchivedAsset {
	return &ArchivedAsset{
		ID:         a.ID,
		OwnerID:    a.OwnerID,
		LogicMark:  a.LogicMark,
		Data:       a.Data,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
		ArchivedAt: at,
		ArchivedBy: opID,
	}
}
