package bills

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db/models"
)

// Repository persists bill metadata. File bytes live in the blob store.
type Repository interface {
	Create(ctx context.Context, bill *models.Bill) error
	FindForLab(ctx context.Context, labID, id uuid.UUID) (*models.Bill, error)
	ListForLab(ctx context.Context, labID uuid.UUID, window DateWindow) ([]models.Bill, error)
}

// DateWindow bounds bill_date. Zero values leave that side open.
type DateWindow struct {
	From time.Time
	// Before is exclusive.
	Before time.Time
}

type repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) Create(ctx context.Context, bill *models.Bill) error {
	return r.db.WithContext(ctx).Create(bill).Error
}

func (r *repository) FindForLab(ctx context.Context, labID, id uuid.UUID) (*models.Bill, error) {
	var bill models.Bill
	err := r.db.WithContext(ctx).
		Where("id = ? AND lab_id = ?", id, labID).
		First(&bill).Error
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

func (r *repository) ListForLab(ctx context.Context, labID uuid.UUID, window DateWindow) ([]models.Bill, error) {
	q := r.db.WithContext(ctx).Where("lab_id = ?", labID)
	if !window.From.IsZero() {
		q = q.Where("bill_date >= ?", window.From)
	}
	if !window.Before.IsZero() {
		q = q.Where("bill_date < ?", window.Before)
	}
	var rows []models.Bill
	if err := q.Order("bill_date DESC").Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
