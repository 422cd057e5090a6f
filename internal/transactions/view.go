package transactions

import (
	"time"

	"github.com/google/uuid"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db/models"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
)

// ApprovalView is the decision block of a transaction. The token digest is
// never rendered.
type ApprovalView struct {
	Decision  *enums.Decision `json:"decision,omitempty"`
	DecidedBy *string         `json:"decided_by,omitempty"`
	DecidedAt *time.Time      `json:"decided_at,omitempty"`
	Reason    *string         `json:"reason,omitempty"`
}

// LineView is one item line of a transaction.
type LineView struct {
	LabID            uuid.UUID          `json:"lab_id"`
	ItemID           uuid.UUID          `json:"item_id"`
	TrackingType     enums.TrackingType `json:"tracking_type"`
	Quantity         int                `json:"quantity"`
	AssetIDs         []uuid.UUID        `json:"asset_ids,omitempty"`
	IssuedQuantity   int                `json:"issued_quantity"`
	ReturnedQuantity int                `json:"returned_quantity"`
	DamagedQuantity  int                `json:"damaged_quantity"`
}

// View is the API representation of a transaction.
type View struct {
	ID                 uuid.UUID               `json:"id"`
	TransactionID      string                  `json:"transaction_id"`
	Type               enums.TransactionType   `json:"transaction_type"`
	TransferType       *enums.TransferType     `json:"transfer_type,omitempty"`
	Status             enums.TransactionStatus `json:"status"`
	ProjectName        *string                 `json:"project_name,omitempty"`
	StudentID          *uuid.UUID              `json:"student_id,omitempty"`
	StudentRegNo       *string                 `json:"student_reg_no,omitempty"`
	FacultyEmail       *string                 `json:"faculty_email,omitempty"`
	FacultyID          *string                 `json:"faculty_id,omitempty"`
	SourceLabID        *uuid.UUID              `json:"source_lab_id,omitempty"`
	SourceLabName      *string                 `json:"source_lab_name,omitempty"`
	TargetLabID        *uuid.UUID              `json:"target_lab_id,omitempty"`
	TargetLabName      *string                 `json:"target_lab_name,omitempty"`
	IssuedDirectly     bool                    `json:"issued_directly"`
	LabSlot            *string                 `json:"lab_slot,omitempty"`
	IssuedByStaffID    *uuid.UUID              `json:"issued_by_staff_id,omitempty"`
	IssuedAt           *time.Time              `json:"issued_at,omitempty"`
	ExpectedReturnDate *time.Time              `json:"expected_return_date,omitempty"`
	ActualReturnDate   *time.Time              `json:"actual_return_date,omitempty"`
	DamageNotes        *string                 `json:"damage_notes,omitempty"`
	Approval           ApprovalView            `json:"faculty_approval"`
	Items              []LineView              `json:"items"`
	CreatedAt          time.Time               `json:"created_at"`
	UpdatedAt          time.Time               `json:"updated_at"`
}

// PageView is one page of lab history as rendered by the API.
type PageView struct {
	Items      []View `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

func NewView(txn *models.Transaction) View {
	lines := make([]LineView, 0, len(txn.Items))
	for _, line := range txn.Items {
		lines = append(lines, LineView{
			LabID:            line.LabID,
			ItemID:           line.ItemID,
			TrackingType:     line.TrackingType,
			Quantity:         line.Quantity,
			AssetIDs:         line.AssetIDs,
			IssuedQuantity:   line.IssuedQuantity,
			ReturnedQuantity: line.ReturnedQuantity,
			DamagedQuantity:  line.DamagedQuantity,
		})
	}
	return View{
		ID:                 txn.ID,
		TransactionID:      txn.TransactionCode,
		Type:               txn.Type,
		TransferType:       txn.TransferType,
		Status:             txn.Status,
		ProjectName:        txn.ProjectName,
		StudentID:          txn.StudentID,
		StudentRegNo:       txn.StudentRegNo,
		FacultyEmail:       txn.FacultyEmail,
		FacultyID:          txn.FacultyID,
		SourceLabID:        txn.SourceLabID,
		SourceLabName:      txn.SourceLabName,
		TargetLabID:        txn.TargetLabID,
		TargetLabName:      txn.TargetLabName,
		IssuedDirectly:     txn.IssuedDirectly,
		LabSlot:            txn.LabSlot,
		IssuedByStaffID:    txn.IssuedByStaffID,
		IssuedAt:           txn.IssuedAt,
		ExpectedReturnDate: txn.ExpectedReturnDate,
		ActualReturnDate:   txn.ActualReturnDate,
		DamageNotes:        txn.DamageNotes,
		Approval: ApprovalView{
			Decision:  txn.Approval.Decision,
			DecidedBy: txn.Approval.DecidedBy,
			DecidedAt: txn.Approval.DecidedAt,
			Reason:    txn.Approval.Reason,
		},
		Items:     lines,
		CreatedAt: txn.CreatedAt,
		UpdatedAt: txn.UpdatedAt,
	}
}

func NewViews(txns []models.Transaction) []View {
	out := make([]View, 0, len(txns))
	for i := range txns {
		out = append(out, NewView(&txns[i]))
	}
	return out
}

func NewPageView(page *HistoryPage) PageView {
	return PageView{Items: NewViews(page.Items), NextCursor: page.NextCursor}
}
