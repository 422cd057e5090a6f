package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Lab is a physical lab that owns stock and staff.
type Lab struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null;uniqueIndex"`
	Code      string    `gorm:"column:code;not null;uniqueIndex"`
	Location  *string   `gorm:"column:location"`
	IsActive  bool      `gorm:"column:is_active;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (l *Lab) BeforeCreate(*gorm.DB) error {
	assignID(&l.ID)
	return nil
}
