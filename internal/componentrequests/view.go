package componentrequests

import (
	"time"

	"github.com/google/uuid"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db/models"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
)

// View is the API representation of a component request.
type View struct {
	ID                uuid.UUID                    `json:"id"`
	LabID             uuid.UUID                    `json:"lab_id"`
	LabName           string                       `json:"lab_name"`
	StudentID         uuid.UUID                    `json:"student_id"`
	StudentRegNo      string                       `json:"student_reg_no"`
	StudentEmail      string                       `json:"student_email"`
	ComponentName     string                       `json:"component_name"`
	Category          *string                      `json:"category,omitempty"`
	QuantityRequested int                          `json:"quantity_requested"`
	UseCase           string                       `json:"use_case"`
	Urgency           enums.Urgency                `json:"urgency"`
	Status            enums.ComponentRequestStatus `json:"status"`
	AdminRemarks      *string                      `json:"admin_remarks,omitempty"`
	ReviewedBy        *uuid.UUID                   `json:"reviewed_by,omitempty"`
	ReviewedAt        *time.Time                   `json:"reviewed_at,omitempty"`
	CreatedAt         time.Time                    `json:"created_at"`
}

func NewView(req *models.ComponentRequest) View {
	return View{
		ID:                req.ID,
		LabID:             req.LabID,
		LabName:           req.LabName,
		StudentID:         req.StudentID,
		StudentRegNo:      req.StudentRegNo,
		StudentEmail:      req.StudentEmail,
		ComponentName:     req.ComponentName,
		Category:          req.Category,
		QuantityRequested: req.QuantityRequested,
		UseCase:           req.UseCase,
		Urgency:           req.Urgency,
		Status:            req.Status,
		AdminRemarks:      req.AdminRemarks,
		ReviewedBy:        req.ReviewedBy,
		ReviewedAt:        req.ReviewedAt,
		CreatedAt:         req.CreatedAt,
	}
}

func NewViews(reqs []models.ComponentRequest) []View {
	out := make([]View, 0, len(reqs))
	for i := range reqs {
		out = append(out, NewView(&reqs[i]))
	}
	return out
}
