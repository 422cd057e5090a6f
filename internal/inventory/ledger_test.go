package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db/models"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
	pkgerrors "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(models.All()...))
	return conn
}

func seedItem(t *testing.T, conn *gorm.DB, sku string) *models.Item {
	t.Helper()
	item := &models.Item{Name: sku, SKU: sku, TrackingType: enums.TrackingTypeBulk, IsActive: true}
	require.NoError(t, conn.Create(item).Error)
	return item
}

func load(t *testing.T, conn *gorm.DB, labID, itemID uuid.UUID) models.LabInventory {
	t.Helper()
	var row models.LabInventory
	require.NoError(t, conn.Where("lab_id = ? AND item_id = ?", labID, itemID).First(&row).Error)
	return row
}

func assertDerived(t *testing.T, row models.LabInventory) {
	t.Helper()
	assert.Equal(t, row.TotalQuantity-row.ReservedQuantity-row.IssuedQuantity, row.AvailableQuantity)
	assert.GreaterOrEqual(t, row.Usable(), 0)
}

func TestAddStockCreatesThenIncrements(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()
	item := seedItem(t, conn, "ARD-UNO")
	lab := uuid.New()

	_, err := ledger.AddStock(ctx, conn, lab, item.ID, 50, 5)
	require.NoError(t, err)
	_, err = ledger.AddStock(ctx, conn, lab, item.ID, 10, 0)
	require.NoError(t, err)

	row := load(t, conn, lab, item.ID)
	assert.Equal(t, 60, row.TotalQuantity)
	assert.Equal(t, 5, row.ReservedQuantity)
	assert.Equal(t, 55, row.AvailableQuantity)
	assertDerived(t, row)

	var stored models.Item
	require.NoError(t, conn.First(&stored, "id = ?", item.ID).Error)
	assert.Equal(t, 60, stored.TotalQuantity)
	assert.Equal(t, 55, stored.AvailableQuantity)
}

func TestAddStockValidation(t *testing.T) {
	conn := newTestDB(t)
	ledger := NewLedger()
	item := seedItem(t, conn, "ARD-UNO")

	_, err := ledger.AddStock(context.Background(), conn, uuid.New(), item.ID, 0, 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = ledger.AddStock(context.Background(), conn, uuid.New(), item.ID, 5, 6)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestAdjustStockGuards(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()
	item := seedItem(t, conn, "ESP32")
	lab := uuid.New()
	_, err := ledger.AddStock(ctx, conn, lab, item.ID, 10, 4)
	require.NoError(t, err)

	_, err = ledger.AdjustStock(ctx, conn, lab, item.ID, StockAdjustment{Delta: -7})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	tooMany := 11
	_, err = ledger.AdjustStock(ctx, conn, lab, item.ID, StockAdjustment{Reserved: &tooMany})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = ledger.AdjustStock(ctx, conn, lab, item.ID, StockAdjustment{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	none := 0
	row, err := ledger.AdjustStock(ctx, conn, lab, item.ID, StockAdjustment{Delta: -6, Reserved: &none})
	require.NoError(t, err)
	assert.Equal(t, 4, row.TotalQuantity)
	assert.Equal(t, 4, row.AvailableQuantity)
	assertDerived(t, load(t, conn, lab, item.ID))
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()
	item := seedItem(t, conn, "ARD-UNO")
	lab := uuid.New()
	_, err := ledger.AddStock(ctx, conn, lab, item.ID, 50, 0)
	require.NoError(t, err)

	before, err := ledger.Usable(ctx, conn, lab, item.ID)
	require.NoError(t, err)

	require.NoError(t, ledger.ReserveTemp(ctx, conn, lab, item.ID, 10))
	mid := load(t, conn, lab, item.ID)
	assert.Equal(t, 10, mid.TempReservedQuantity)
	assert.Equal(t, 40, mid.Usable())

	require.NoError(t, ledger.ReleaseTemp(ctx, conn, lab, item.ID, 10))
	after, err := ledger.Usable(ctx, conn, lab, item.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReleaseTempClampsAtZero(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()
	item := seedItem(t, conn, "ARD-UNO")
	lab := uuid.New()
	_, err := ledger.AddStock(ctx, conn, lab, item.ID, 5, 0)
	require.NoError(t, err)
	require.NoError(t, ledger.ReserveTemp(ctx, conn, lab, item.ID, 2))

	require.NoError(t, ledger.ReleaseTemp(ctx, conn, lab, item.ID, 2))
	require.NoError(t, ledger.ReleaseTemp(ctx, conn, lab, item.ID, 2))

	row := load(t, conn, lab, item.ID)
	assert.Equal(t, 0, row.TempReservedQuantity)
	assert.Equal(t, 5, row.Usable())

	require.NoError(t, ledger.ReleaseTemp(ctx, conn, uuid.New(), item.ID, 3))
}

func TestReserveTempInsufficientStock(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()
	item := seedItem(t, conn, "ARD-UNO")
	lab := uuid.New()
	_, err := ledger.AddStock(ctx, conn, lab, item.ID, 5, 2)
	require.NoError(t, err)

	err = ledger.ReserveTemp(ctx, conn, lab, item.ID, 4)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))

	err = ledger.ReserveTemp(ctx, conn, uuid.New(), item.ID, 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestTemporaryIssueAndReturnRestoresAvailable(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()
	item := seedItem(t, conn, "JUMPER")
	labA := uuid.New()
	_, err := ledger.AddStock(ctx, conn, labA, item.ID, 20, 0)
	require.NoError(t, err)

	require.NoError(t, ledger.CommitIssue(ctx, conn, labA, item.ID, 5))
	issued := load(t, conn, labA, item.ID)
	assert.Equal(t, 20, issued.TotalQuantity)
	assert.Equal(t, 15, issued.AvailableQuantity)

	require.NoError(t, ledger.CommitReturn(ctx, conn, labA, item.ID, 5, 0))
	back := load(t, conn, labA, item.ID)
	assert.Equal(t, 20, back.TotalQuantity)
	assert.Equal(t, 20, back.AvailableQuantity)
	assert.Equal(t, 0, back.IssuedQuantity)
}

func TestCommitReturnWithDamage(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()
	item := seedItem(t, conn, "SERVO")
	lab := uuid.New()
	_, err := ledger.AddStock(ctx, conn, lab, item.ID, 10, 0)
	require.NoError(t, err)
	require.NoError(t, ledger.CommitIssue(ctx, conn, lab, item.ID, 4))

	err = ledger.CommitReturn(ctx, conn, lab, item.ID, 4, 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	require.NoError(t, ledger.CommitReturn(ctx, conn, lab, item.ID, 3, 1))
	row := load(t, conn, lab, item.ID)
	assert.Equal(t, 9, row.TotalQuantity)
	assert.Equal(t, 1, row.DamagedQuantity)
	assert.Equal(t, 9, row.AvailableQuantity)
	assertDerived(t, row)
}

func TestCommitIssueRevalidatesUsable(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()
	item := seedItem(t, conn, "SERVO")
	lab := uuid.New()
	_, err := ledger.AddStock(ctx, conn, lab, item.ID, 3, 0)
	require.NoError(t, err)
	require.NoError(t, ledger.ReserveTemp(ctx, conn, lab, item.ID, 2))

	err = ledger.CommitIssue(ctx, conn, lab, item.ID, 2)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))
}

func TestPermanentTransferMovesTotals(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()
	item := seedItem(t, conn, "RPI-4")
	labA, labB := uuid.New(), uuid.New()
	_, err := ledger.AddStock(ctx, conn, labA, item.ID, 8, 0)
	require.NoError(t, err)

	require.NoError(t, ledger.Transfer(ctx, conn, labA, labB, item.ID, 3))
	require.NoError(t, ledger.Transfer(ctx, conn, labB, labA, item.ID, 1))

	a := load(t, conn, labA, item.ID)
	b := load(t, conn, labB, item.ID)
	assert.Equal(t, 6, a.TotalQuantity)
	assert.Equal(t, 2, b.TotalQuantity)
	assertDerived(t, a)
	assertDerived(t, b)

	err = ledger.Transfer(ctx, conn, labA, labB, item.ID, 7)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))

	var stored models.Item
	require.NoError(t, conn.First(&stored, "id = ?", item.ID).Error)
	assert.Equal(t, 8, stored.TotalQuantity)
}

func TestRemoveRefusesHeldStock(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()
	item := seedItem(t, conn, "LCD")
	lab := uuid.New()
	_, err := ledger.AddStock(ctx, conn, lab, item.ID, 4, 0)
	require.NoError(t, err)
	require.NoError(t, ledger.ReserveTemp(ctx, conn, lab, item.ID, 1))

	err = ledger.Remove(ctx, conn, lab, item.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	require.NoError(t, ledger.ReleaseTemp(ctx, conn, lab, item.ID, 1))
	require.NoError(t, ledger.Remove(ctx, conn, lab, item.ID))

	var count int64
	require.NoError(t, conn.Model(&models.LabInventory{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestConcurrentReservesNeverOversell(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()
	client := db.Wrap(conn)
	item := seedItem(t, conn, "ARD-NANO")
	lab := uuid.New()
	_, err := ledger.AddStock(ctx, conn, lab, item.ID, 5, 0)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := client.WithTx(ctx, func(tx *gorm.DB) error {
				return ledger.ReserveTemp(ctx, tx, lab, item.ID, 2)
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	row := load(t, conn, lab, item.ID)
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 4, row.TempReservedQuantity)
	assert.GreaterOrEqual(t, row.Usable(), 0)
}
