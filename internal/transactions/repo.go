package transactions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db/models"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/pagination"
)

// Repository defines persistence for transactions and the reference rows they snapshot.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindByTokenDigest(ctx context.Context, digest string) (*models.Transaction, error)
	LockByTokenDigest(ctx context.Context, digest string) (*models.Transaction, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateLine(ctx context.Context, lineID uuid.UUID, updates map[string]any) error
	SaveLineIssue(ctx context.Context, line *models.TransactionItem) error
	HasOpenForStudent(ctx context.Context, studentID uuid.UUID) (bool, error)
	FindStaleRegular(ctx context.Context, status enums.TransactionStatus, column string, cutoff time.Time) ([]uuid.UUID, error)
	FindPastDue(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	ListForStudent(ctx context.Context, studentID uuid.UUID) ([]models.Transaction, error)
	ListForFaculty(ctx context.Context, email string, statuses []enums.TransactionStatus) ([]models.Transaction, error)
	ListLab(ctx context.Context, labID uuid.UUID, filters HistoryFilters, params pagination.Params) ([]models.Transaction, *pagination.Cursor, error)
	ListLabByType(ctx context.Context, labID uuid.UUID, txnType enums.TransactionType, statuses []enums.TransactionStatus) ([]models.Transaction, error)
	ListTransfers(ctx context.Context, labID uuid.UUID, direction TransferDirection) ([]models.Transaction, error)

	LockStudent(ctx context.Context, id uuid.UUID) (*models.Student, error)
	FindStudent(ctx context.Context, id uuid.UUID) (*models.Student, error)
	FindStudentByRegNo(ctx context.Context, regNo string) (*models.Student, error)
	FindFaculty(ctx context.Context, id uuid.UUID) (*models.Faculty, error)
	FindLab(ctx context.Context, id uuid.UUID) (*models.Lab, error)
	FindItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Item, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a transactions repository bound to the provided DB.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Preload("Items", orderLines).
		Where("id = ?", id).
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := db.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&txn).Error; err != nil {
		return nil, err
	}
	return r.withLines(ctx, &txn)
}

func (r *repository) FindByTokenDigest(ctx context.Context, digest string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Preload("Items", orderLines).
		Where("approval_token_digest = ?", digest).
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) LockByTokenDigest(ctx context.Context, digest string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := db.ForUpdate(r.db.WithContext(ctx)).Where("approval_token_digest = ?", digest).First(&txn).Error; err != nil {
		return nil, err
	}
	return r.withLines(ctx, &txn)
}

func (r *repository) withLines(ctx context.Context, txn *models.Transaction) (*models.Transaction, error) {
	var lines []models.TransactionItem
	err := orderLines(r.db.WithContext(ctx).Where("transaction_id = ?", txn.ID)).
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	txn.Items = lines
	return txn, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) UpdateLine(ctx context.Context, lineID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.TransactionItem{}).
		Where("id = ?", lineID).
		Updates(updates).Error
}

// SaveLineIssue persists the issued quantity and the allocated asset ids.
func (r *repository) SaveLineIssue(ctx context.Context, line *models.TransactionItem) error {
	return r.db.WithContext(ctx).
		Model(line).
		Select("asset_ids", "issued_quantity").
		Updates(line).Error
}

func (r *repository) HasOpenForStudent(ctx context.Context, studentID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("student_id = ? AND transaction_type = ? AND status IN ?", studentID, enums.TransactionTypeRegular, enums.OpenTransactionStatuses).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) FindStaleRegular(ctx context.Context, status enums.TransactionStatus, column string, cutoff time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("transaction_type = ? AND status = ?", enums.TransactionTypeRegular, status).
		Where(column+" < ?", cutoff).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *repository) FindPastDue(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("status = ? AND expected_return_date IS NOT NULL AND expected_return_date < ?", enums.TransactionStatusActive, now).
		Order("expected_return_date ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *repository) ListForStudent(ctx context.Context, studentID uuid.UUID) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := r.db.WithContext(ctx).
		Preload("Items", orderLines).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListForFaculty(ctx context.Context, email string, statuses []enums.TransactionStatus) ([]models.Transaction, error) {
	q := r.db.WithContext(ctx).
		Preload("Items", orderLines).
		Where("faculty_email = ? AND transaction_type = ?", email, enums.TransactionTypeRegular)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var rows []models.Transaction
	err := q.Order("created_at DESC").Find(&rows).Error
	return rows, err
}

func (r *repository) ListLab(ctx context.Context, labID uuid.UUID, filters HistoryFilters, params pagination.Params) ([]models.Transaction, *pagination.Cursor, error) {
	q := r.labScope(r.db.WithContext(ctx), labID)
	if filters.TransactionCode != "" {
		q = q.Where("transaction_code = ?", filters.TransactionCode)
	}
	if filters.StudentRegNo != "" {
		q = q.Where("student_reg_no = ?", filters.StudentRegNo)
	}
	if filters.FacultyEmail != "" {
		q = q.Where("faculty_email = ?", filters.FacultyEmail)
	}
	if filters.FacultyID != "" {
		q = q.Where("faculty_id = ?", filters.FacultyID)
	}
	if filters.Status != nil {
		q = q.Where("status = ?", *filters.Status)
	}
	if filters.Type != nil {
		q = q.Where("transaction_type = ?", *filters.Type)
	}
	if filters.From != nil {
		q = q.Where("created_at >= ?", *filters.From)
	}
	if filters.To != nil {
		q = q.Where("created_at <= ?", *filters.To)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, nil, err
	}
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	limit := pagination.LimitWithBuffer(params.Limit)
	var rows []models.Transaction
	err = q.Preload("Items", orderLines).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}

	rows, more := pagination.TrimPage(rows, params.Limit)
	if !more {
		return rows, nil, nil
	}
	last := rows[len(rows)-1]
	return rows, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
}

func (r *repository) ListLabByType(ctx context.Context, labID uuid.UUID, txnType enums.TransactionType, statuses []enums.TransactionStatus) ([]models.Transaction, error) {
	q := r.labScope(r.db.WithContext(ctx), labID).Where("transaction_type = ?", txnType)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var rows []models.Transaction
	err := q.Preload("Items", orderLines).Order("created_at DESC").Find(&rows).Error
	return rows, err
}

func (r *repository) ListTransfers(ctx context.Context, labID uuid.UUID, direction TransferDirection) ([]models.Transaction, error) {
	q := r.db.WithContext(ctx).Where("transaction_type = ?", enums.TransactionTypeLabTransfer)
	switch direction {
	case TransferDirectionIncoming:
		q = q.Where("target_lab_id = ?", labID)
	case TransferDirectionOutgoing:
		q = q.Where("source_lab_id = ?", labID)
	default:
		q = q.Where("target_lab_id = ? OR source_lab_id = ?", labID, labID)
	}
	var rows []models.Transaction
	err := q.Preload("Items", orderLines).Order("created_at DESC").Find(&rows).Error
	return rows, err
}

// labScope keeps transactions that touch the lab through a line or a transfer side.
func (r *repository) labScope(q *gorm.DB, labID uuid.UUID) *gorm.DB {
	return q.Where(
		"source_lab_id = ? OR target_lab_id = ? OR EXISTS (SELECT 1 FROM transaction_items ti WHERE ti.transaction_id = transactions.id AND ti.lab_id = ?)",
		labID, labID, labID,
	)
}

func (r *repository) LockStudent(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	var student models.Student
	if err := db.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&student).Error; err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *repository) FindStudent(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&student).Error; err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *repository) FindStudentByRegNo(ctx context.Context, regNo string) (*models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).Where("reg_no = ?", regNo).First(&student).Error; err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *repository) FindFaculty(ctx context.Context, id uuid.UUID) (*models.Faculty, error) {
	var faculty models.Faculty
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&faculty).Error; err != nil {
		return nil, err
	}
	return &faculty, nil
}

func (r *repository) FindLab(ctx context.Context, id uuid.UUID) (*models.Lab, error) {
	var lab models.Lab
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&lab).Error; err != nil {
		return nil, err
	}
	return &lab, nil
}

func (r *repository) FindItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Item, error) {
	var rows []models.Item
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]models.Item, len(rows))
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func orderLines(q *gorm.DB) *gorm.DB {
	return q.Order("line_no ASC, created_at ASC, id ASC")
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
