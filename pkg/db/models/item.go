package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
)

// Item is the global catalog entry. The quantity columns are a cache
// re-summed from lab_inventory on every lab-level mutation.
type Item struct {
	ID                   uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Name                 string             `gorm:"column:name;not null"`
	SKU                  string             `gorm:"column:sku;not null;uniqueIndex"`
	Category             *string            `gorm:"column:category"`
	Vendor               *string            `gorm:"column:vendor"`
	Description          *string            `gorm:"column:description"`
	TrackingType         enums.TrackingType `gorm:"column:tracking_type;type:text;not null"`
	IsStudentVisible     bool               `gorm:"column:is_student_visible;not null"`
	IsActive             bool               `gorm:"column:is_active;not null"`
	TotalQuantity        int                `gorm:"column:total_quantity;not null;default:0"`
	AvailableQuantity    int                `gorm:"column:available_quantity;not null;default:0"`
	TempReservedQuantity int                `gorm:"column:temp_reserved_quantity;not null;default:0"`
	DamagedQuantity      int                `gorm:"column:damaged_quantity;not null;default:0"`
	MinThresholdQuantity int                `gorm:"column:min_threshold_quantity;not null;default:0"`
	LastAssetSeq         int                `gorm:"column:last_asset_seq;not null;default:0"`
	CreatedAt            time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *Item) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}
