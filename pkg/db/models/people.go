package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
)

// Student is the borrower referenced by regular transactions.
type Student struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	RegNo     string    `gorm:"column:reg_no;not null;uniqueIndex"`
	Email     string    `gorm:"column:email;not null;uniqueIndex"`
	IsActive  bool      `gorm:"column:is_active;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Student) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// Faculty approves student requests. FacultyCode is the institutional id.
type Faculty struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	Email       string    `gorm:"column:email;not null;uniqueIndex"`
	FacultyCode string    `gorm:"column:faculty_code;not null;uniqueIndex"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Faculty) TableName() string { return "faculty" }

func (f *Faculty) BeforeCreate(*gorm.DB) error {
	assignID(&f.ID)
	return nil
}

// Staff belongs to a lab unless the role is super_admin.
type Staff struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name      string          `gorm:"column:name;not null"`
	Email     string          `gorm:"column:email;not null;uniqueIndex"`
	Role      enums.ActorRole `gorm:"column:role;type:text;not null"`
	LabID     *uuid.UUID      `gorm:"column:lab_id;type:uuid"`
	IsActive  bool            `gorm:"column:is_active;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Staff) TableName() string { return "staff" }

func (s *Staff) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}
