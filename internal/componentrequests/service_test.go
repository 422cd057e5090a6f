package componentrequests

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/auth"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db/models"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
	pkgerrors "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/errors"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
)

func setup(t *testing.T) (Service, models.Lab, models.Student) {
	t.Helper()
	dsn := "file:componentrequests_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(models.All()...))

	lab := models.Lab{Name: "IoT Lab", Code: "IOT", IsActive: true}
	require.NoError(t, conn.Create(&lab).Error)
	student := models.Student{Name: "Asha", RegNo: "21BCE1001", Email: "asha@uni.test", IsActive: true}
	require.NoError(t, conn.Create(&student).Error)

	svc, err := NewService(db.Wrap(conn), NewRepository(conn), logger.New(logger.Options{Output: io.Discard}))
	require.NoError(t, err)
	return svc, lab, student
}

func TestCreateDefaultsUrgencyAndSnapshots(t *testing.T) {
	svc, lab, student := setup(t)
	req, err := svc.Create(context.Background(), student.ID, CreateInput{
		LabID: lab.ID, ComponentName: " LoRa module ", QuantityRequested: 2, UseCase: "mesh sensor",
	})
	require.NoError(t, err)
	assert.Equal(t, "LoRa module", req.ComponentName)
	assert.Equal(t, enums.UrgencyMedium, req.Urgency)
	assert.Equal(t, enums.ComponentRequestStatusPending, req.Status)
	assert.Equal(t, "IoT Lab", req.LabName)
	assert.Equal(t, student.RegNo, req.StudentRegNo)

	mine, err := svc.ListMine(context.Background(), student.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestCreateValidation(t *testing.T) {
	svc, lab, student := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, student.ID, CreateInput{LabID: lab.ID, ComponentName: "x", QuantityRequested: 0, UseCase: "y"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Create(ctx, student.ID, CreateInput{LabID: lab.ID, ComponentName: "x", QuantityRequested: 1, UseCase: "y", Urgency: "asap"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Create(ctx, student.ID, CreateInput{LabID: uuid.New(), ComponentName: "x", QuantityRequested: 1, UseCase: "y"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateStatusFlow(t *testing.T) {
	svc, lab, student := setup(t)
	ctx := context.Background()
	req, err := svc.Create(ctx, student.ID, CreateInput{
		LabID: lab.ID, ComponentName: "LoRa", QuantityRequested: 1, UseCase: "mesh", Urgency: "HIGH",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.UrgencyHigh, req.Urgency)

	staff := auth.Identity{UserID: uuid.New(), Role: enums.ActorRoleAssistant, LabID: &lab.ID}
	otherLab := uuid.New()
	outsider := auth.Identity{UserID: uuid.New(), Role: enums.ActorRoleIncharge, LabID: &otherLab}

	_, err = svc.UpdateStatus(ctx, outsider, req.ID, enums.ComponentRequestStatusApproved, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.UpdateStatus(ctx, staff, req.ID, enums.ComponentRequestStatusPending, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	reviewed, err := svc.UpdateStatus(ctx, staff, req.ID, enums.ComponentRequestStatusReviewed, nil)
	require.NoError(t, err)
	assert.Equal(t, enums.ComponentRequestStatusReviewed, reviewed.Status)

	remarks := "ordering next week"
	approved, err := svc.UpdateStatus(ctx, staff, req.ID, enums.ComponentRequestStatusApproved, &remarks)
	require.NoError(t, err)
	assert.Equal(t, remarks, *approved.AdminRemarks)

	_, err = svc.UpdateStatus(ctx, staff, req.ID, enums.ComponentRequestStatusRejected, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	stored, err := svc.Get(ctx, staff, req.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ComponentRequestStatusApproved, stored.Status)

	pending := enums.ComponentRequestStatusPending
	list, err := svc.ListForLab(ctx, staff, &pending)
	require.NoError(t, err)
	assert.Empty(t, list)
	all, err := svc.ListForLab(ctx, staff, nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
