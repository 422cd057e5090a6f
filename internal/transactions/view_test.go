package transactions

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db/models"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
)

func TestNewViewOmitsTokenDigest(t *testing.T) {
	digest := "secret-digest"
	labID := uuid.New()
	txn := &models.Transaction{
		ID:              uuid.New(),
		TransactionCode: "TXN-1",
		Type:            enums.TransactionTypeRegular,
		Status:          enums.TransactionStatusRaised,
		Approval:        models.FacultyApproval{TokenDigest: &digest},
		Items: []models.TransactionItem{
			{LabID: labID, ItemID: uuid.New(), TrackingType: enums.TrackingTypeBulk, Quantity: 2},
		},
	}

	view := NewView(txn)
	require.Equal(t, "TXN-1", view.TransactionID)
	require.Len(t, view.Items, 1)
	require.Equal(t, labID, view.Items[0].LabID)

	raw, err := json.Marshal(view)
	require.NoError(t, err)
	require.NotContains(t, string(raw), digest)
	require.Contains(t, string(raw), `"transaction_id":"TXN-1"`)
}

func TestNewPageViewKeepsCursor(t *testing.T) {
	page := &HistoryPage{
		Items:      []models.Transaction{{TransactionCode: "TXN-1"}, {TransactionCode: "TXN-2"}},
		NextCursor: "abc",
	}
	view := NewPageView(page)
	require.Len(t, view.Items, 2)
	require.Equal(t, "TXN-2", view.Items[1].TransactionID)
	require.Equal(t, "abc", view.NextCursor)
}
