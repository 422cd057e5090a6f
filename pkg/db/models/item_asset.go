package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
)

// ItemAsset is one tagged unit of an asset-tracked item held by a lab.
type ItemAsset struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	ItemID            uuid.UUID            `gorm:"column:item_id;type:uuid;not null;index:idx_item_assets_lab_item"`
	LabID             uuid.UUID            `gorm:"column:lab_id;type:uuid;not null;index:idx_item_assets_lab_item"`
	AssetTag          string               `gorm:"column:asset_tag;not null;uniqueIndex"`
	AssetSeq          int                  `gorm:"column:asset_seq;not null;default:0"`
	SerialNo          *string              `gorm:"column:serial_no"`
	Status            enums.AssetStatus    `gorm:"column:status;type:text;not null;default:'available'"`
	Condition         enums.AssetCondition `gorm:"column:condition;type:text;not null;default:'good'"`
	Vendor            *string              `gorm:"column:vendor"`
	InvoiceNumber     *string              `gorm:"column:invoice_number"`
	PurchaseDate      *time.Time           `gorm:"column:purchase_date"`
	Location          *string              `gorm:"column:location"`
	LastTransactionID *uuid.UUID           `gorm:"column:last_transaction_id;type:uuid"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *ItemAsset) BeforeCreate(*gorm.DB) error {
	assignID(&a.ID)
	return nil
}
