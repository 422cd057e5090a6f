package inventory

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db/models"
	pkgerrors "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/errors"
)

// Ledger owns every write to lab_inventory. All methods expect to run inside
// the caller's transaction: each one locks the (lab, item) row, re-reads it,
// applies the change, re-derives available and re-sums the item aggregates.
type Ledger struct{}

// NewLedger returns the lab inventory ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// StockAdjustment is the whitelisted set of changes AdjustStock accepts.
type StockAdjustment struct {
	Delta    int
	Reserved *int
}

// Get loads the (lab, item) row without locking.
func (l *Ledger) Get(ctx context.Context, conn *gorm.DB, labID, itemID uuid.UUID) (*models.LabInventory, error) {
	var row models.LabInventory
	err := conn.WithContext(ctx).
		Where("lab_id = ? AND item_id = ?", labID, itemID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found in lab")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load lab inventory")
	}
	return &row, nil
}

// Usable reads the current usable quantity. It is always a fresh read.
func (l *Ledger) Usable(ctx context.Context, conn *gorm.DB, labID, itemID uuid.UUID) (int, error) {
	row, err := l.Get(ctx, conn, labID, itemID)
	if err != nil {
		return 0, err
	}
	return row.Usable(), nil
}

// AddStock creates or increments the lab row. reservedQty is set aside from
// the added quantity as durable reservation.
func (l *Ledger) AddStock(ctx context.Context, tx *gorm.DB, labID, itemID uuid.UUID, qty, reservedQty int) (*models.LabInventory, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}
	if reservedQty < 0 || reservedQty > qty {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reserved quantity must be between zero and quantity")
	}

	seed := &models.LabInventory{LabID: labID, ItemID: itemID}
	err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "lab_id"}, {Name: "item_id"}},
			DoNothing: true,
		}).
		Create(seed).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create lab inventory")
	}

	row, err := l.lock(ctx, tx, labID, itemID)
	if err != nil {
		return nil, err
	}
	row.TotalQuantity += qty
	row.ReservedQuantity += reservedQty
	return row, l.save(ctx, tx, row)
}

// AdjustStock applies a signed delta to total and optionally replaces the
// durable reservation.
func (l *Ledger) AdjustStock(ctx context.Context, tx *gorm.DB, labID, itemID uuid.UUID, adj StockAdjustment) (*models.LabInventory, error) {
	if adj.Delta == 0 && adj.Reserved == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no stock change requested")
	}

	row, err := l.lock(ctx, tx, labID, itemID)
	if err != nil {
		return nil, err
	}

	if adj.Delta < 0 {
		remove := -adj.Delta
		if remove > row.Usable() {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "cannot remove reserved or in-use stock").
				WithDetails(map[string]any{"requested": remove, "removable": row.Usable()})
		}
	}
	row.TotalQuantity += adj.Delta

	if adj.Reserved != nil {
		reserved := *adj.Reserved
		if reserved < 0 || reserved > row.TotalQuantity {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reserved quantity must be between zero and total quantity")
		}
		row.ReservedQuantity = reserved
		if row.Usable() < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "reserved quantity overlaps stock already held or issued")
		}
	}

	return row, l.save(ctx, tx, row)
}

// ReserveTemp places a request-time hold.
func (l *Ledger) ReserveTemp(ctx context.Context, tx *gorm.DB, labID, itemID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}
	row, err := l.lock(ctx, tx, labID, itemID)
	if err != nil {
		return err
	}
	if usable := row.Usable(); usable < qty {
		return insufficient(labID, itemID, qty, usable)
	}
	row.TempReservedQuantity += qty
	return l.save(ctx, tx, row)
}

// ReleaseTemp drops a request-time hold. It clamps at zero so a double
// release never drives the counter negative, and a missing row is a no-op.
func (l *Ledger) ReleaseTemp(ctx context.Context, tx *gorm.DB, labID, itemID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	row, err := l.lockOptional(ctx, tx, labID, itemID)
	if err != nil || row == nil {
		return err
	}
	row.TempReservedQuantity -= qty
	if row.TempReservedQuantity < 0 {
		row.TempReservedQuantity = 0
	}
	return l.save(ctx, tx, row)
}

// CommitIssue moves qty from available to issued after re-validating usable
// stock. Callers converting a temp hold must release it first.
func (l *Ledger) CommitIssue(ctx context.Context, tx *gorm.DB, labID, itemID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}
	row, err := l.lock(ctx, tx, labID, itemID)
	if err != nil {
		return err
	}
	if usable := row.Usable(); usable < qty {
		return insufficient(labID, itemID, qty, usable)
	}
	row.IssuedQuantity += qty
	return l.save(ctx, tx, row)
}

// CommitReturn brings issued stock back. Damaged units leave the lab's total.
func (l *Ledger) CommitReturn(ctx context.Context, tx *gorm.DB, labID, itemID uuid.UUID, returned, damaged int) error {
	if returned < 0 || damaged < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "returned and damaged quantities cannot be negative")
	}
	if returned+damaged == 0 {
		return nil
	}
	row, err := l.lock(ctx, tx, labID, itemID)
	if err != nil {
		return err
	}
	if returned+damaged > row.IssuedQuantity {
		return pkgerrors.New(pkgerrors.CodeConflict, "return exceeds issued quantity").
			WithDetails(map[string]any{"issued": row.IssuedQuantity, "returning": returned + damaged})
	}
	row.IssuedQuantity -= returned + damaged
	row.TotalQuantity -= damaged
	row.DamagedQuantity += damaged
	return l.save(ctx, tx, row)
}

// WriteOff removes units sitting in the lab (not issued) as damaged.
func (l *Ledger) WriteOff(ctx context.Context, tx *gorm.DB, labID, itemID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}
	row, err := l.lock(ctx, tx, labID, itemID)
	if err != nil {
		return err
	}
	if qty > row.Usable() {
		return pkgerrors.New(pkgerrors.CodeConflict, "cannot write off reserved or in-use stock")
	}
	row.TotalQuantity -= qty
	row.DamagedQuantity += qty
	return l.save(ctx, tx, row)
}

// Transfer permanently moves qty of an item from one lab to another. Both rows
// are locked in lab id order so opposite-direction transfers cannot deadlock.
func (l *Ledger) Transfer(ctx context.Context, tx *gorm.DB, fromLabID, toLabID, itemID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}
	if fromLabID == toLabID {
		return pkgerrors.New(pkgerrors.CodeValidation, "source and destination lab must differ")
	}

	labs := []uuid.UUID{fromLabID, toLabID}
	sort.Slice(labs, func(i, j int) bool { return labs[i].String() < labs[j].String() })

	rows := make(map[uuid.UUID]*models.LabInventory, 2)
	for _, labID := range labs {
		row, err := l.lockOptional(ctx, tx, labID, itemID)
		if err != nil {
			return err
		}
		rows[labID] = row
	}

	from := rows[fromLabID]
	if from == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not found in lab")
	}
	if usable := from.Usable(); usable < qty {
		return insufficient(fromLabID, itemID, qty, usable)
	}
	from.TotalQuantity -= qty
	if err := l.save(ctx, tx, from); err != nil {
		return err
	}

	to := rows[toLabID]
	if to == nil {
		_, err := l.AddStock(ctx, tx, toLabID, itemID, qty, 0)
		return err
	}
	to.TotalQuantity += qty
	return l.save(ctx, tx, to)
}

// Remove deletes the lab row once nothing is held against it.
func (l *Ledger) Remove(ctx context.Context, tx *gorm.DB, labID, itemID uuid.UUID) error {
	row, err := l.lock(ctx, tx, labID, itemID)
	if err != nil {
		return err
	}
	if row.IssuedQuantity > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "item has issued stock")
	}
	if row.TempReservedQuantity > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "item has pending request holds")
	}
	if err := tx.WithContext(ctx).Delete(row).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete lab inventory")
	}
	return l.reconcileItem(ctx, tx, itemID)
}

func (l *Ledger) lock(ctx context.Context, tx *gorm.DB, labID, itemID uuid.UUID) (*models.LabInventory, error) {
	row, err := l.lockOptional(ctx, tx, labID, itemID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found in lab")
	}
	return row, nil
}

func (l *Ledger) lockOptional(ctx context.Context, tx *gorm.DB, labID, itemID uuid.UUID) (*models.LabInventory, error) {
	var row models.LabInventory
	err := db.ForUpdate(tx.WithContext(ctx)).
		Where("lab_id = ? AND item_id = ?", labID, itemID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock lab inventory")
	}
	return &row, nil
}

func (l *Ledger) save(ctx context.Context, tx *gorm.DB, row *models.LabInventory) error {
	row.Recompute()
	if err := checkCounters(row); err != nil {
		return err
	}
	if err := tx.WithContext(ctx).Save(row).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save lab inventory")
	}
	return l.reconcileItem(ctx, tx, row.ItemID)
}

func checkCounters(row *models.LabInventory) error {
	switch {
	case row.TotalQuantity < 0:
		return pkgerrors.New(pkgerrors.CodeConflict, "total quantity cannot go negative")
	case row.ReservedQuantity < 0 || row.ReservedQuantity > row.TotalQuantity:
		return pkgerrors.New(pkgerrors.CodeValidation, "reserved quantity must be between zero and total quantity")
	case row.AvailableQuantity < 0 || row.Usable() < 0:
		return pkgerrors.New(pkgerrors.CodeConflict, "stock counters would go negative")
	}
	return nil
}

type itemTotals struct {
	Total        int
	Available    int
	TempReserved int
	Damaged      int
}

// reconcileItem re-sums the denormalized aggregates on items from lab rows.
func (l *Ledger) reconcileItem(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) error {
	var totals itemTotals
	err := tx.WithContext(ctx).
		Model(&models.LabInventory{}).
		Select(`COALESCE(SUM(total_quantity), 0) AS total,
			COALESCE(SUM(available_quantity), 0) AS available,
			COALESCE(SUM(temp_reserved_quantity), 0) AS temp_reserved,
			COALESCE(SUM(damaged_quantity), 0) AS damaged`).
		Where("item_id = ?", itemID).
		Scan(&totals).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum lab inventory")
	}

	err = tx.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ?", itemID).
		Updates(map[string]any{
			"total_quantity":         totals.Total,
			"available_quantity":     totals.Available - totals.TempReserved,
			"temp_reserved_quantity": totals.TempReserved,
			"damaged_quantity":       totals.Damaged,
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reconcile item totals")
	}
	return nil
}

func insufficient(labID, itemID uuid.UUID, requested, usable int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{
			"lab_id":    labID.String(),
			"item_id":   itemID.String(),
			"requested": requested,
			"usable":    usable,
		})
}
