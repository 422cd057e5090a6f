package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
)

// FacultyApproval holds the decision on a transaction. TokenDigest is the
// blake2b digest of the emailed token and is cleared once a decision lands.
type FacultyApproval struct {
	TokenDigest *string         `gorm:"column:token_digest;uniqueIndex"`
	Decision    *enums.Decision `gorm:"column:decision;type:text"`
	DecidedBy   *string         `gorm:"column:decided_by"`
	DecidedAt   *time.Time      `gorm:"column:decided_at"`
	Reason      *string         `gorm:"column:reason"`
}

// Transaction is a borrow, lab-session issue or inter-lab transfer.
type Transaction struct {
	ID                 uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	TransactionCode    string                  `gorm:"column:transaction_code;not null;uniqueIndex"`
	Type               enums.TransactionType   `gorm:"column:transaction_type;type:text;not null"`
	TransferType       *enums.TransferType     `gorm:"column:transfer_type;type:text"`
	Status             enums.TransactionStatus `gorm:"column:status;type:text;not null;index"`
	ProjectName        *string                 `gorm:"column:project_name"`
	StudentID          *uuid.UUID              `gorm:"column:student_id;type:uuid;index"`
	StudentRegNo       *string                 `gorm:"column:student_reg_no"`
	FacultyEmail       *string                 `gorm:"column:faculty_email;index"`
	FacultyID          *string                 `gorm:"column:faculty_id"`
	SourceLabID        *uuid.UUID              `gorm:"column:source_lab_id;type:uuid"`
	SourceLabName      *string                 `gorm:"column:source_lab_name"`
	TargetLabID        *uuid.UUID              `gorm:"column:target_lab_id;type:uuid"`
	TargetLabName      *string                 `gorm:"column:target_lab_name"`
	IssuedDirectly     bool                    `gorm:"column:issued_directly;not null;default:false"`
	LabSlot            *string                 `gorm:"column:lab_slot"`
	IssuedByStaffID    *uuid.UUID              `gorm:"column:issued_by_staff_id;type:uuid"`
	IssuedAt           *time.Time              `gorm:"column:issued_at"`
	ExpectedReturnDate *time.Time              `gorm:"column:expected_return_date"`
	ActualReturnDate   *time.Time              `gorm:"column:actual_return_date"`
	DamageNotes        *string                 `gorm:"column:damage_notes"`
	OverdueNotified    bool                    `gorm:"column:overdue_notified;not null;default:false"`
	Approval           FacultyApproval         `gorm:"embedded;embeddedPrefix:approval_"`
	Items              []TransactionItem       `gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (t *Transaction) BeforeCreate(*gorm.DB) error {
	assignID(&t.ID)
	return nil
}

// TransactionItem binds one (lab, item) line of a transaction.
type TransactionItem struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	TransactionID    uuid.UUID          `gorm:"column:transaction_id;type:uuid;not null;index"`
	LineNo           int                `gorm:"column:line_no;not null;default:0"`
	LabID            uuid.UUID          `gorm:"column:lab_id;type:uuid;not null;index:idx_transaction_items_lab_item"`
	ItemID           uuid.UUID          `gorm:"column:item_id;type:uuid;not null;index:idx_transaction_items_lab_item"`
	TrackingType     enums.TrackingType `gorm:"column:tracking_type;type:text;not null"`
	Quantity         int                `gorm:"column:quantity;not null"`
	AssetIDs         []uuid.UUID        `gorm:"column:asset_ids;type:jsonb;serializer:json"`
	IssuedQuantity   int                `gorm:"column:issued_quantity;not null;default:0"`
	ReturnedQuantity int                `gorm:"column:returned_quantity;not null;default:0"`
	DamagedQuantity  int                `gorm:"column:damaged_quantity;not null;default:0"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (i *TransactionItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}
