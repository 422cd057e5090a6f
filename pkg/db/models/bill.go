package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Bill is a purchase document uploaded by lab staff.
type Bill struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	LabID      uuid.UUID `gorm:"column:lab_id;type:uuid;not null;index"`
	Title      string    `gorm:"column:title;not null"`
	BillType   string    `gorm:"column:bill_type;not null"`
	BillDate   time.Time `gorm:"column:bill_date;not null"`
	StorageKey string    `gorm:"column:storage_key;not null"`
	FileURL    string    `gorm:"column:file_url;not null"`
	UploadedBy uuid.UUID `gorm:"column:uploaded_by;type:uuid;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (b *Bill) BeforeCreate(*gorm.DB) error {
	assignID(&b.ID)
	return nil
}
