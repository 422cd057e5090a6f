package catalog

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/assets"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/inventory"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/auth"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db/models"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
	pkgerrors "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/errors"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
)

type testEnv struct {
	conn   *gorm.DB
	svc    Service
	ledger *inventory.Ledger
	labA   models.Lab
	labB   models.Lab
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := "file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(models.All()...))

	env := &testEnv{
		conn:   conn,
		ledger: inventory.NewLedger(),
		labA:   models.Lab{Name: "IoT Lab", Code: "IOT", IsActive: true},
		labB:   models.Lab{Name: "Robotics Lab", Code: "ROB", IsActive: true},
	}
	require.NoError(t, conn.Create(&env.labA).Error)
	require.NoError(t, conn.Create(&env.labB).Error)

	svc, err := NewService(Params{
		Tx:     db.Wrap(conn),
		DB:     conn,
		Repo:   NewRepository(conn),
		Ledger: env.ledger,
		Assets: assets.NewRegistry(),
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	env.svc = svc
	return env
}

func incharge(lab uuid.UUID) auth.Identity {
	return auth.Identity{UserID: uuid.New(), Role: enums.ActorRoleIncharge, LabID: &lab}
}

func bulkInput(sku string, qty int) AddItemInput {
	return AddItemInput{
		Name: "Arduino Uno", SKU: sku, Vendor: "Robu", TrackingType: enums.TrackingTypeBulk,
		Quantity: qty, IsStudentVisible: true,
	}
}

func TestAddItemCreatesCatalogEntryOnce(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	first, err := env.svc.AddItem(ctx, incharge(env.labA.ID), bulkInput("ard-uno", 50))
	require.NoError(t, err)
	assert.Equal(t, "ARD-UNO", first.SKU)
	assert.Equal(t, 50, first.UsableQuantity)

	_, err = env.svc.AddItem(ctx, incharge(env.labA.ID), bulkInput("ARD-UNO", 5))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	second, err := env.svc.AddItem(ctx, incharge(env.labB.ID), bulkInput("ARD-UNO", 10))
	require.NoError(t, err)
	assert.Equal(t, first.ItemID, second.ItemID)

	var item models.Item
	require.NoError(t, env.conn.First(&item, "id = ?", first.ItemID).Error)
	assert.Equal(t, 60, item.TotalQuantity)

	mismatch := bulkInput("ARD-UNO", 1)
	mismatch.TrackingType = enums.TrackingTypeAsset
	_, err = env.svc.AddItem(ctx, incharge(uuid.New()), mismatch)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestAddItemValidation(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	noVendor := bulkInput("X1", 1)
	noVendor.Vendor = " "
	_, err := env.svc.AddItem(ctx, incharge(env.labA.ID), noVendor)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = env.svc.AddItem(ctx, incharge(env.labA.ID), bulkInput("X1", 0))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	student := auth.Identity{UserID: uuid.New(), Role: enums.ActorRoleStudent}
	_, err = env.svc.AddItem(ctx, student, bulkInput("X1", 1))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestAssetItemsMintAndRetireByTag(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	actor := incharge(env.labA.ID)

	in := bulkInput("DMM", 3)
	in.Name = "Multimeter"
	in.TrackingType = enums.TrackingTypeAsset
	added, err := env.svc.AddItem(ctx, actor, in)
	require.NoError(t, err)

	list, err := env.svc.ListItemAssets(ctx, actor, added.ItemID, nil)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "DMM-0001", list[0].AssetTag)

	vendor := "Fluke"
	updated, err := env.svc.UpdateItem(ctx, actor, added.ItemID, UpdateItemInput{AddQuantity: 2, Vendor: &vendor})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.TotalQuantity)

	_, err = env.svc.UpdateItem(ctx, actor, added.ItemID, UpdateItemInput{AddQuantity: -2, RemoveAssetTags: []string{"DMM-0002"}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	updated, err = env.svc.UpdateItem(ctx, actor, added.ItemID, UpdateItemInput{
		AddQuantity: -2, RemoveAssetTags: []string{"dmm-0002", "DMM-0005"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.TotalQuantity)

	retired := enums.AssetStatusRetired
	gone, err := env.svc.ListItemAssets(ctx, actor, added.ItemID, &retired)
	require.NoError(t, err)
	require.Len(t, gone, 2)
	assert.Equal(t, "DMM-0002", gone[0].AssetTag)
	assert.Equal(t, "DMM-0005", gone[1].AssetTag)
}

func TestUpdateItemGuards(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	actor := incharge(env.labA.ID)
	added, err := env.svc.AddItem(ctx, actor, bulkInput("ESP32", 10))
	require.NoError(t, err)

	asset := enums.TrackingTypeAsset
	_, err = env.svc.UpdateItem(ctx, actor, added.ItemID, UpdateItemInput{TrackingType: &asset})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = env.svc.UpdateItem(ctx, actor, added.ItemID, UpdateItemInput{AddQuantity: 5})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "vendor required")

	_, err = env.svc.UpdateItem(ctx, actor, added.ItemID, UpdateItemInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	reserved := 4
	updated, err := env.svc.UpdateItem(ctx, actor, added.ItemID, UpdateItemInput{ReservedQuantity: &reserved})
	require.NoError(t, err)
	assert.Equal(t, 6, updated.UsableQuantity)

	_, err = env.svc.UpdateItem(ctx, actor, added.ItemID, UpdateItemInput{AddQuantity: -7})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "reserved stock cannot be removed")

	name := "ESP32 DevKit"
	hidden := false
	updated, err = env.svc.UpdateItem(ctx, actor, added.ItemID, UpdateItemInput{Name: &name, IsStudentVisible: &hidden})
	require.NoError(t, err)
	assert.Equal(t, "ESP32 DevKit", updated.Name)
	assert.False(t, updated.IsStudentVisible)

	_, err = env.svc.UpdateItem(ctx, incharge(env.labB.ID), added.ItemID, UpdateItemInput{Name: &name})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRemoveItemBlockedByOpenTransactions(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	actor := incharge(env.labA.ID)
	added, err := env.svc.AddItem(ctx, actor, bulkInput("SERVO", 5))
	require.NoError(t, err)

	txn := models.Transaction{
		TransactionCode: "TXN-00000001",
		Type:            enums.TransactionTypeRegular,
		Status:          enums.TransactionStatusActive,
		Items:           []models.TransactionItem{{LabID: env.labA.ID, ItemID: added.ItemID, TrackingType: enums.TrackingTypeBulk, Quantity: 1}},
	}
	require.NoError(t, env.conn.Create(&txn).Error)

	err = env.svc.RemoveItem(ctx, actor, added.ItemID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	require.NoError(t, env.conn.Model(&models.Transaction{}).Where("id = ?", txn.ID).
		Update("status", enums.TransactionStatusCompleted).Error)
	require.NoError(t, env.svc.RemoveItem(ctx, actor, added.ItemID))

	var item models.Item
	require.NoError(t, env.conn.First(&item, "id = ?", added.ItemID).Error)
	assert.False(t, item.IsActive)
	assert.Equal(t, 0, item.TotalQuantity)

	err = env.svc.RemoveItem(ctx, actor, added.ItemID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRemoveItemBlockedByTempHolds(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	actor := incharge(env.labA.ID)
	added, err := env.svc.AddItem(ctx, actor, bulkInput("SERVO", 5))
	require.NoError(t, err)
	require.NoError(t, env.ledger.ReserveTemp(ctx, env.conn, env.labA.ID, added.ItemID, 2))

	err = env.svc.RemoveItem(ctx, actor, added.ItemID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestStudentCatalogViews(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	uno, err := env.svc.AddItem(ctx, incharge(env.labA.ID), bulkInput("ARD-UNO", 5))
	require.NoError(t, err)
	_, err = env.svc.AddItem(ctx, incharge(env.labB.ID), bulkInput("ARD-UNO", 3))
	require.NoError(t, err)

	hidden := bulkInput("SOLDER", 2)
	hidden.Name = "Solder station"
	hidden.IsStudentVisible = false
	_, err = env.svc.AddItem(ctx, incharge(env.labA.ID), hidden)
	require.NoError(t, err)

	require.NoError(t, env.ledger.ReserveTemp(ctx, env.conn, env.labB.ID, uno.ItemID, 3))

	items, err := env.svc.ListStudentItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].UsableQuantity)

	labs, err := env.svc.ListItemLabs(ctx, uno.ItemID)
	require.NoError(t, err)
	require.Len(t, labs, 1)
	assert.Equal(t, env.labA.ID, labs[0].LabID)

	others, err := env.svc.ListLabsExcept(ctx, incharge(env.labA.ID))
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, env.labB.ID, others[0].ID)

	available, err := env.svc.ListLabAvailableItems(ctx, env.labA.ID)
	require.NoError(t, err)
	assert.Len(t, available, 2)

	_, err = env.svc.ListLabAvailableItems(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestLabItemsAreScoped(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	added, err := env.svc.AddItem(ctx, incharge(env.labA.ID), bulkInput("ARD-UNO", 5))
	require.NoError(t, err)

	mine, err := env.svc.ListLabItems(ctx, incharge(env.labA.ID))
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	theirs, err := env.svc.ListLabItems(ctx, incharge(env.labB.ID))
	require.NoError(t, err)
	assert.Empty(t, theirs)

	_, err = env.svc.GetLabItem(ctx, incharge(env.labB.ID), added.ItemID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
