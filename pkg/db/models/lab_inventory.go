package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LabInventory tracks per-lab counters for one item.
//
// AvailableQuantity is derived: total - reserved - issued. Call Recompute
// after touching any other counter.
type LabInventory struct {
	ID                   uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	LabID                uuid.UUID `gorm:"column:lab_id;type:uuid;not null;uniqueIndex:idx_lab_inventory_lab_item"`
	ItemID               uuid.UUID `gorm:"column:item_id;type:uuid;not null;uniqueIndex:idx_lab_inventory_lab_item"`
	TotalQuantity        int       `gorm:"column:total_quantity;not null;default:0"`
	ReservedQuantity     int       `gorm:"column:reserved_quantity;not null;default:0"`
	TempReservedQuantity int       `gorm:"column:temp_reserved_quantity;not null;default:0"`
	IssuedQuantity       int       `gorm:"column:issued_quantity;not null;default:0"`
	AvailableQuantity    int       `gorm:"column:available_quantity;not null;default:0"`
	DamagedQuantity      int       `gorm:"column:damaged_quantity;not null;default:0"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (LabInventory) TableName() string { return "lab_inventory" }

func (l *LabInventory) BeforeCreate(*gorm.DB) error {
	assignID(&l.ID)
	return nil
}

// Recompute re-derives AvailableQuantity from the stored counters.
func (l *LabInventory) Recompute() {
	l.AvailableQuantity = l.TotalQuantity - l.ReservedQuantity - l.IssuedQuantity
}

// Usable is the quantity a new request may still claim.
func (l *LabInventory) Usable() int {
	return l.TotalQuantity - l.ReservedQuantity - l.IssuedQuantity - l.TempReservedQuantity
}
