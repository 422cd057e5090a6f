package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
)

// ComponentRequest is a student's ask for a component a lab does not stock.
type ComponentRequest struct {
	ID                uuid.UUID                    `gorm:"column:id;type:uuid;primaryKey"`
	LabID             uuid.UUID                    `gorm:"column:lab_id;type:uuid;not null;index"`
	LabName           string                       `gorm:"column:lab_name;not null"`
	StudentID         uuid.UUID                    `gorm:"column:student_id;type:uuid;not null;index"`
	StudentRegNo      string                       `gorm:"column:student_reg_no;not null"`
	StudentEmail      string                       `gorm:"column:student_email;not null"`
	ComponentName     string                       `gorm:"column:component_name;not null"`
	Category          *string                      `gorm:"column:category"`
	QuantityRequested int                          `gorm:"column:quantity_requested;not null"`
	UseCase           string                       `gorm:"column:use_case;not null"`
	Urgency           enums.Urgency                `gorm:"column:urgency;type:text;not null;default:'medium'"`
	Status            enums.ComponentRequestStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	AdminRemarks      *string                      `gorm:"column:admin_remarks"`
	ReviewedBy        *uuid.UUID                   `gorm:"column:reviewed_by;type:uuid"`
	ReviewedAt        *time.Time                   `gorm:"column:reviewed_at"`
	CreatedAt         time.Time                    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                    `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *ComponentRequest) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}
