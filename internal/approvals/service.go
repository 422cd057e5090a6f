package approvals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db/models"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
	pkgerrors "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/errors"
)

type decider interface {
	PreviewByToken(ctx context.Context, token string) (*models.Transaction, error)
	DecideByToken(ctx context.Context, token string, decision enums.Decision, reason string) (*models.Transaction, error)
}

// Line is one requested item as shown on the faculty landing page.
type Line struct {
	LabID    string `json:"lab_id"`
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// Summary is the public view of a request reachable by token. It omits
// internal ids that the faculty member has no use for.
type Summary struct {
	TransactionID      string                  `json:"transaction_id"`
	Status             enums.TransactionStatus `json:"status"`
	StudentRegNo       string                  `json:"student_reg_no"`
	ProjectName        string                  `json:"project_name"`
	FacultyEmail       string                  `json:"faculty_email"`
	ExpectedReturnDate *time.Time              `json:"expected_return_date,omitempty"`
	Items              []Line                  `json:"items"`
	Reason             string                  `json:"reason,omitempty"`
}

// Service is the token-addressed approval gateway.
type Service interface {
	Preview(ctx context.Context, token string) (*Summary, error)
	Approve(ctx context.Context, token string) (*Summary, error)
	Reject(ctx context.Context, token, reason string) (*Summary, error)
}

type service struct {
	transactions decider
}

// NewService wraps the transaction service for unauthenticated token access.
func NewService(transactions decider) (Service, error) {
	if transactions == nil {
		return nil, fmt.Errorf("transactions service required")
	}
	return &service{transactions: transactions}, nil
}

func (s *service) Preview(ctx context.Context, token string) (*Summary, error) {
	txn, err := s.transactions.PreviewByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return summarize(txn), nil
}

func (s *service) Approve(ctx context.Context, token string) (*Summary, error) {
	txn, err := s.transactions.DecideByToken(ctx, token, enums.DecisionApproved, "")
	if err != nil {
		return nil, err
	}
	return summarize(txn), nil
}

func (s *service) Reject(ctx context.Context, token, reason string) (*Summary, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason is required")
	}
	txn, err := s.transactions.DecideByToken(ctx, token, enums.DecisionRejected, reason)
	if err != nil {
		return nil, err
	}
	return summarize(txn), nil
}

func summarize(txn *models.Transaction) *Summary {
	out := &Summary{
		TransactionID:      txn.TransactionCode,
		Status:             txn.Status,
		ExpectedReturnDate: txn.ExpectedReturnDate,
		Items:              make([]Line, 0, len(txn.Items)),
	}
	if txn.StudentRegNo != nil {
		out.StudentRegNo = *txn.StudentRegNo
	}
	if txn.ProjectName != nil {
		out.ProjectName = *txn.ProjectName
	}
	if txn.FacultyEmail != nil {
		out.FacultyEmail = *txn.FacultyEmail
	}
	if txn.Approval.Reason != nil {
		out.Reason = *txn.Approval.Reason
	}
	for _, line := range txn.Items {
		out.Items = append(out.Items, Line{
			LabID:    line.LabID.String(),
			ItemID:   line.ItemID.String(),
			Quantity: line.Quantity,
		})
	}
	return out
}
