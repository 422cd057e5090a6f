package transactions

import (
	"time"

	"github.com/google/uuid"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db/models"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
)

// LineInput requests quantity units of an item held by a lab.
type LineInput struct {
	LabID    uuid.UUID `json:"lab_id"`
	ItemID   uuid.UUID `json:"item_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"required,gt=0"`
}

// RaiseInput is a student's borrow request.
type RaiseInput struct {
	StudentID          uuid.UUID
	Items              []LineInput
	FacultyEmail       string
	FacultyID          string
	ExpectedReturnDate time.Time
	ProjectName        string
}

// LabSessionInput issues stock directly to a student working in the lab.
type LabSessionInput struct {
	StudentRegNo       string
	LabSlot            string
	Items              []LineInput
	ExpectedReturnDate *time.Time
}

// ReturnLine records how one line came back. LabID may be left empty when the
// item was borrowed from a single lab.
type ReturnLine struct {
	LabID           uuid.UUID   `json:"lab_id"`
	ItemID          uuid.UUID   `json:"item_id"`
	Returned        int         `json:"returned"`
	Damaged         int         `json:"damaged"`
	DamagedAssetIDs []uuid.UUID `json:"damaged_asset_ids"`
}

// ReturnInput closes a regular or lab-session transaction.
type ReturnInput struct {
	Lines       []ReturnLine
	DamageNotes *string
}

// TransferInput is raised by the requesting lab against the holding lab.
type TransferInput struct {
	HoldingLabID       uuid.UUID
	TransferType       enums.TransferType
	Items              []LineInput
	ExpectedReturnDate *time.Time
	Reason             *string
}

// TransferDirection filters a lab's transfers.
type TransferDirection string

const (
	TransferDirectionAny      TransferDirection = ""
	TransferDirectionIncoming TransferDirection = "incoming"
	TransferDirectionOutgoing TransferDirection = "outgoing"
)

// HistoryFilters narrows the lab history listing.
type HistoryFilters struct {
	TransactionCode string
	StudentRegNo    string
	FacultyEmail    string
	FacultyID       string
	Status          *enums.TransactionStatus
	Type            *enums.TransactionType
	From            *time.Time
	To              *time.Time
}

// HistoryPage is one page of lab history.
type HistoryPage struct {
	Items      []models.Transaction `json:"items"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

// SweepResult summarizes one maintenance pass.
type SweepResult struct {
	Scanned   int
	Processed int
	Failed    int
}
