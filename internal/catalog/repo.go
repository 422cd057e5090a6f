package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db/models"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
)

// holdingStatuses are the transaction states that keep stock tied to a lab row.
var holdingStatuses = []enums.TransactionStatus{
	enums.TransactionStatusApproved,
	enums.TransactionStatusActive,
	enums.TransactionStatusOverdue,
	enums.TransactionStatusReturnRequested,
}

// Repository persists catalog entries and reads lab stock views.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	EnsureItem(ctx context.Context, item *models.Item) (*models.Item, error)
	LockItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
	FindItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
	UpdateItem(ctx context.Context, id uuid.UUID, updates map[string]any) error
	HasLabRow(ctx context.Context, labID, itemID uuid.UUID) (bool, error)
	CountLabRows(ctx context.Context, itemID uuid.UUID) (int64, error)
	CountHoldingLines(ctx context.Context, labID, itemID uuid.UUID) (int64, error)
	ListLabStock(ctx context.Context, labID uuid.UUID, availableOnly bool) ([]models.LabInventory, error)
	FindItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Item, error)
	ListStudentItems(ctx context.Context) ([]StudentItem, error)
	ListItemLabs(ctx context.Context, itemID uuid.UUID) ([]ItemLab, error)
	ListLabsExcept(ctx context.Context, labID uuid.UUID) ([]models.Lab, error)
	FindLab(ctx context.Context, id uuid.UUID) (*models.Lab, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// EnsureItem inserts the item unless its SKU exists, then returns the stored row.
func (r *repository) EnsureItem(ctx context.Context, item *models.Item) (*models.Item, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "sku"}}, DoNothing: true}).
		Create(item).Error
	if err != nil {
		return nil, err
	}
	var stored models.Item
	if err := db.ForUpdate(r.db.WithContext(ctx)).Where("sku = ?", item.SKU).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *repository) LockItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	if err := db.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) UpdateItem(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Item{}).Where("id = ?", id).Updates(updates).Error
}

func (r *repository) HasLabRow(ctx context.Context, labID, itemID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LabInventory{}).
		Where("lab_id = ? AND item_id = ?", labID, itemID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) CountLabRows(ctx context.Context, itemID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.LabInventory{}).Where("item_id = ?", itemID).Count(&count).Error
	return count, err
}

func (r *repository) CountHoldingLines(ctx context.Context, labID, itemID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.TransactionItem{}).
		Joins("JOIN transactions t ON t.id = transaction_items.transaction_id").
		Where("transaction_items.lab_id = ? AND transaction_items.item_id = ? AND t.status IN ?", labID, itemID, holdingStatuses).
		Count(&count).Error
	return count, err
}

func (r *repository) ListLabStock(ctx context.Context, labID uuid.UUID, availableOnly bool) ([]models.LabInventory, error) {
	q := r.db.WithContext(ctx).Where("lab_id = ?", labID)
	if availableOnly {
		q = q.Where("available_quantity > 0")
	}
	var rows []models.LabInventory
	err := q.Order("created_at ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) FindItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Item, error) {
	out := make(map[uuid.UUID]models.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Item
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

const usableExpr = "li.total_quantity - li.reserved_quantity - li.issued_quantity - li.temp_reserved_quantity"

func (r *repository) ListStudentItems(ctx context.Context) ([]StudentItem, error) {
	var rows []StudentItem
	err := r.db.WithContext(ctx).
		Table("items").
		Select("items.id AS item_id, items.name, items.sku, items.category, items.description, items.tracking_type, "+
			"COALESCE(SUM(CASE WHEN labs.is_active THEN "+usableExpr+" ELSE 0 END), 0) AS usable_quantity").
		Joins("LEFT JOIN lab_inventory li ON li.item_id = items.id").
		Joins("LEFT JOIN labs ON labs.id = li.lab_id").
		Where("items.is_active = ? AND items.is_student_visible = ?", true, true).
		Group("items.id, items.name, items.sku, items.category, items.description, items.tracking_type").
		Order("items.name ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *repository) ListItemLabs(ctx context.Context, itemID uuid.UUID) ([]ItemLab, error) {
	var rows []ItemLab
	err := r.db.WithContext(ctx).
		Table("lab_inventory li").
		Select("labs.id AS lab_id, labs.name AS lab_name, labs.code AS lab_code, "+usableExpr+" AS usable_quantity").
		Joins("JOIN labs ON labs.id = li.lab_id").
		Where("li.item_id = ? AND labs.is_active = ?", itemID, true).
		Where(usableExpr + " > 0").
		Order("labs.name ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *repository) ListLabsExcept(ctx context.Context, labID uuid.UUID) ([]models.Lab, error) {
	var rows []models.Lab
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND id <> ?", true, labID).
		Order("name ASC").
		Find(&rows).Error
	return rows, err
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
