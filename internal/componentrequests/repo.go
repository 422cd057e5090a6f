package componentrequests

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db/models"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
)

// Repository persists component requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, req *models.ComponentRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ComponentRequest, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.ComponentRequest, error)
	ListForStudent(ctx context.Context, studentID uuid.UUID) ([]models.ComponentRequest, error)
	ListForLab(ctx context.Context, labID uuid.UUID, status *enums.ComponentRequestStatus) ([]models.ComponentRequest, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	FindStudent(ctx context.Context, id uuid.UUID) (*models.Student, error)
	FindLab(ctx context.Context, id uuid.UUID) (*models.Lab, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a component request repository bound to the provided DB.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, req *models.ComponentRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ComponentRequest, error) {
	var req models.ComponentRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.ComponentRequest, error) {
	var req models.ComponentRequest
	if err := db.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *repository) ListForStudent(ctx context.Context, studentID uuid.UUID) ([]models.ComponentRequest, error) {
	var rows []models.ComponentRequest
	err := r.db.WithContext(ctx).Where("student_id = ?", studentID).Order("created_at DESC").Find(&rows).Error
	return rows, err
}

func (r *repository) ListForLab(ctx context.Context, labID uuid.UUID, status *enums.ComponentRequestStatus) ([]models.ComponentRequest, error) {
	q := r.db.WithContext(ctx).Where("lab_id = ?", labID)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	var rows []models.ComponentRequest
	err := q.Order("created_at DESC").Find(&rows).Error
	return rows, err
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.ComponentRequest{}).Where("id = ?", id).Updates(updates).Error
}

func (r *repository) FindStudent(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&student).Error; err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *repository) FindLab(ctx context.Context, id uuid.UUID) (*models.Lab, error) {
	var lab models.Lab
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&lab).Error; err != nil {
		return nil, err
	}
	return &lab, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
