package componentrequests

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/auth"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db/models"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
	pkgerrors "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/errors"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateInput is a student's request for a component.
type CreateInput struct {
	LabID             uuid.UUID
	ComponentName     string
	Category          *string
	QuantityRequested int
	UseCase           string
	Urgency           string
}

// Service manages component requests.
type Service interface {
	Create(ctx context.Context, studentID uuid.UUID, input CreateInput) (*models.ComponentRequest, error)
	ListMine(ctx context.Context, studentID uuid.UUID) ([]models.ComponentRequest, error)
	ListForLab(ctx context.Context, actor auth.Identity, status *enums.ComponentRequestStatus) ([]models.ComponentRequest, error)
	Get(ctx context.Context, actor auth.Identity, id uuid.UUID) (*models.ComponentRequest, error)
	UpdateStatus(ctx context.Context, actor auth.Identity, id uuid.UUID, status enums.ComponentRequestStatus, remarks *string) (*models.ComponentRequest, error)
}

type service struct {
	tx   txRunner
	repo Repository
	logg *logger.Logger
	now  func() time.Time
}

// NewService builds the component request service.
func NewService(tx txRunner, repo Repository, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("component request repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{tx: tx, repo: repo, logg: logg, now: time.Now}, nil
}

func (s *service) Create(ctx context.Context, studentID uuid.UUID, input CreateInput) (*models.ComponentRequest, error) {
	name := strings.TrimSpace(input.ComponentName)
	useCase := strings.TrimSpace(input.UseCase)
	if input.LabID == uuid.Nil || name == "" || useCase == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lab, component name and use case are required")
	}
	if input.QuantityRequested < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity requested must be at least 1")
	}
	urgency, err := enums.ParseUrgency(strings.ToLower(strings.TrimSpace(input.Urgency)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "urgency must be low, medium or high")
	}

	student, err := s.repo.FindStudent(ctx, studentID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "student not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load student")
	}
	lab, err := s.repo.FindLab(ctx, input.LabID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "lab not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load lab")
	}
	if !lab.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "lab not found")
	}

	req := &models.ComponentRequest{
		LabID:             lab.ID,
		LabName:           lab.Name,
		StudentID:         student.ID,
		StudentRegNo:      student.RegNo,
		StudentEmail:      student.Email,
		ComponentName:     name,
		Category:          input.Category,
		QuantityRequested: input.QuantityRequested,
		UseCase:           useCase,
		Urgency:           urgency,
		Status:            enums.ComponentRequestStatusPending,
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create component request")
	}
	logCtx := s.logg.WithLabID(ctx, lab.ID.String())
	s.logg.Info(s.logg.WithField(logCtx, "component_request_id", req.ID.String()), "component request created")
	return req, nil
}

func (s *service) ListMine(ctx context.Context, studentID uuid.UUID) ([]models.ComponentRequest, error) {
	rows, err := s.repo.ListForStudent(ctx, studentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list component requests")
	}
	return rows, nil
}

func (s *service) ListForLab(ctx context.Context, actor auth.Identity, status *enums.ComponentRequestStatus) ([]models.ComponentRequest, error) {
	labID, err := labOf(actor)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListForLab(ctx, labID, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list component requests")
	}
	return rows, nil
}

func (s *service) Get(ctx context.Context, actor auth.Identity, id uuid.UUID) (*models.ComponentRequest, error) {
	if !actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "lab staff access required")
	}
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "component request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load component request")
	}
	if !actor.InLab(req.LabID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "component request not found")
	}
	return req, nil
}

func (s *service) UpdateStatus(ctx context.Context, actor auth.Identity, id uuid.UUID, status enums.ComponentRequestStatus, remarks *string) (*models.ComponentRequest, error) {
	if !actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "lab staff access required")
	}
	if _, err := enums.ParseComponentRequestDecision(string(status)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "status must be reviewed, approved or rejected")
	}

	var result *models.ComponentRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		req, err := repo.LockByID(ctx, id)
		if err != nil {
			if isNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "component request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load component request")
		}
		if !actor.InLab(req.LabID) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "component request not found")
		}
		if req.Status.IsFinal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "component request already finalized").
				WithDetails(map[string]any{"status": req.Status})
		}

		now := s.now().UTC()
		updates := map[string]any{
			"status":      status,
			"reviewed_by": actor.UserID,
			"reviewed_at": now,
		}
		if remarks != nil {
			trimmed := strings.TrimSpace(*remarks)
			updates["admin_remarks"] = trimmed
			req.AdminRemarks = &trimmed
		}
		if err := repo.Update(ctx, req.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update component request")
		}
		req.Status = status
		req.ReviewedBy = &actor.UserID
		req.ReviewedAt = &now
		result = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithLabID(ctx, result.LabID.String())
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"component_request_id": result.ID.String(),
		"status":               result.Status,
	}), "component request status changed")
	return result, nil
}

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
