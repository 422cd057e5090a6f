package transactions

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/auth"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db/models"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
	pkgerrors "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/errors"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/pagination"
)

var facultyPendingStatuses = []enums.TransactionStatus{enums.TransactionStatusRaised}

func (s *service) ListForStudent(ctx context.Context, studentID uuid.UUID) ([]models.Transaction, error) {
	rows, err := s.repo.ListForStudent(ctx, studentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list transactions")
	}
	return rows, nil
}

func (s *service) GetForStudent(ctx context.Context, studentID, id uuid.UUID) (*models.Transaction, error) {
	txn, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if txn.StudentID == nil || *txn.StudentID != studentID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	return txn, nil
}

// Get returns a transaction to staff of any lab it touches.
func (s *service) Get(ctx context.Context, actor auth.Identity, id uuid.UUID) (*models.Transaction, error) {
	if !actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "lab staff access required")
	}
	txn, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !touchesLab(txn, actor) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	return txn, nil
}

func (s *service) LabHistory(ctx context.Context, actor auth.Identity, filters HistoryFilters, params pagination.Params) (*HistoryPage, error) {
	labID, err := labOf(actor)
	if err != nil {
		return nil, err
	}
	filters.TransactionCode = strings.ToUpper(strings.TrimSpace(filters.TransactionCode))
	filters.StudentRegNo = strings.ToUpper(strings.TrimSpace(filters.StudentRegNo))
	filters.FacultyEmail = normalizeEmail(filters.FacultyEmail)
	filters.FacultyID = strings.TrimSpace(filters.FacultyID)

	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListLab(ctx, labID, filters, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list lab history")
	}
	page := &HistoryPage{Items: rows}
	if next != nil {
		page.NextCursor = pagination.EncodeCursor(*next)
	}
	return page, nil
}

func (s *service) ListOverdue(ctx context.Context, actor auth.Identity) ([]models.Transaction, error) {
	labID, err := labOf(actor)
	if err != nil {
		return nil, err
	}
	status := enums.TransactionStatusOverdue
	regular, err := s.repo.ListLabByType(ctx, labID, enums.TransactionTypeRegular, []enums.TransactionStatus{status})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list overdue transactions")
	}
	sessions, err := s.repo.ListLabByType(ctx, labID, enums.TransactionTypeLabSession, []enums.TransactionStatus{status})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list overdue transactions")
	}
	return append(regular, sessions...), nil
}

func (s *service) ListLabSessions(ctx context.Context, actor auth.Identity) ([]models.Transaction, error) {
	labID, err := labOf(actor)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListLabByType(ctx, labID, enums.TransactionTypeLabSession, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list lab sessions")
	}
	return rows, nil
}

func (s *service) GetLabSession(ctx context.Context, actor auth.Identity, id uuid.UUID) (*models.Transaction, error) {
	txn, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if txn.Type != enums.TransactionTypeLabSession {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "lab session not found")
	}
	return txn, nil
}

func (s *service) ListTransfers(ctx context.Context, actor auth.Identity, direction TransferDirection) ([]models.Transaction, error) {
	labID, err := labOf(actor)
	if err != nil {
		return nil, err
	}
	switch direction {
	case TransferDirectionAny, TransferDirectionIncoming, TransferDirectionOutgoing:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "direction must be incoming or outgoing")
	}
	rows, err := s.repo.ListTransfers(ctx, labID, direction)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list transfers")
	}
	return rows, nil
}

func (s *service) GetTransfer(ctx context.Context, actor auth.Identity, id uuid.UUID) (*models.Transaction, error) {
	txn, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if txn.Type != enums.TransactionTypeLabTransfer {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transfer not found")
	}
	return txn, nil
}

func (s *service) ListFacultyPending(ctx context.Context, actor auth.Identity) ([]models.Transaction, error) {
	faculty, err := s.facultyFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListForFaculty(ctx, normalizeEmail(faculty.Email), facultyPendingStatuses)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list pending approvals")
	}
	return rows, nil
}

func (s *service) ListFacultyHistory(ctx context.Context, actor auth.Identity) ([]models.Transaction, error) {
	faculty, err := s.facultyFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListForFaculty(ctx, normalizeEmail(faculty.Email), nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list faculty history")
	}
	return rows, nil
}

func (s *service) GetForFaculty(ctx context.Context, actor auth.Identity, id uuid.UUID) (*models.Transaction, error) {
	faculty, err := s.facultyFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	txn, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if txn.Type != enums.TransactionTypeRegular || deref(txn.FacultyEmail) != normalizeEmail(faculty.Email) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	return txn, nil
}

func (s *service) find(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	txn, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load transaction")
	}
	return txn, nil
}

// labOf resolves the lab a staff listing is scoped to. Super admins act
// through a lab like everyone else when listing.
func labOf(actor auth.Identity) (uuid.UUID, error) {
	if !actor.IsStaff() {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "lab staff access required")
	}
	labID := actor.HomeLab()
	if labID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "lab id required")
	}
	return labID, nil
}
