package bills

import (
	"time"

	"github.com/google/uuid"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db/models"
)

// View is the API representation of a bill. The storage key stays internal.
type View struct {
	ID         uuid.UUID `json:"id"`
	LabID      uuid.UUID `json:"lab_id"`
	Title      string    `json:"title"`
	BillType   string    `json:"bill_type"`
	BillDate   string    `json:"bill_date"`
	FileURL    string    `json:"file_url"`
	UploadedBy uuid.UUID `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewView(b *models.Bill) View {
	return View{
		ID:         b.ID,
		LabID:      b.LabID,
		Title:      b.Title,
		BillType:   b.BillType,
		BillDate:   b.BillDate.Format(dateLayout),
		FileURL:    b.FileURL,
		UploadedBy: b.UploadedBy,
		CreatedAt:  b.CreatedAt,
	}
}

func NewViews(bills []models.Bill) []View {
	out := make([]View, 0, len(bills))
	for i := range bills {
		out = append(out, NewView(&bills[i]))
	}
	return out
}
