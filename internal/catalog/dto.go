package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db/models"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
)

// AddItemInput stocks an item in the actor's lab, creating the catalog entry
// when the SKU is new.
type AddItemInput struct {
	Name                 string
	SKU                  string
	Category             *string
	Description          *string
	Vendor               string
	TrackingType         enums.TrackingType
	Quantity             int
	ReservedQuantity     int
	MinThresholdQuantity int
	IsStudentVisible     bool
	AssetPrefix          string
	InvoiceNumber        *string
	PurchaseDate         *time.Time
	Location             *string
}

// UpdateItemInput is the whitelisted set of changes UpdateItem accepts.
// AddQuantity is signed: negative values remove stock.
type UpdateItemInput struct {
	Name                 *string
	Category             *string
	Description          *string
	IsStudentVisible     *bool
	MinThresholdQuantity *int
	TrackingType         *enums.TrackingType
	AddQuantity          int
	Vendor               *string
	AssetPrefix          string
	InvoiceNumber        *string
	PurchaseDate         *time.Time
	Location             *string
	RemoveAssetTags      []string
	ReservedQuantity     *int
}

// LabItem is an item as seen from one lab.
type LabItem struct {
	ItemID               uuid.UUID          `json:"item_id"`
	Name                 string             `json:"name"`
	SKU                  string             `json:"sku"`
	Category             *string            `json:"category,omitempty"`
	Description          *string            `json:"description,omitempty"`
	TrackingType         enums.TrackingType `json:"tracking_type"`
	IsStudentVisible     bool               `json:"is_student_visible"`
	TotalQuantity        int                `json:"total_quantity"`
	ReservedQuantity     int                `json:"reserved_quantity"`
	TempReservedQuantity int                `json:"temp_reserved_quantity"`
	IssuedQuantity       int                `json:"issued_quantity"`
	AvailableQuantity    int                `json:"available_quantity"`
	DamagedQuantity      int                `json:"damaged_quantity"`
	UsableQuantity       int                `json:"usable_quantity"`
	MinThresholdQuantity int                `json:"min_threshold_quantity"`
	LowStock             bool               `json:"low_stock"`
}

// StudentItem is a catalog entry shown to students.
type StudentItem struct {
	ItemID         uuid.UUID          `json:"item_id"`
	Name           string             `json:"name"`
	SKU            string             `json:"sku"`
	Category       *string            `json:"category,omitempty"`
	Description    *string            `json:"description,omitempty"`
	TrackingType   enums.TrackingType `json:"tracking_type"`
	UsableQuantity int                `json:"usable_quantity"`
}

// ItemLab is a lab holding usable stock of an item.
type ItemLab struct {
	LabID          uuid.UUID `json:"lab_id"`
	LabName        string    `json:"lab_name"`
	LabCode        string    `json:"lab_code"`
	UsableQuantity int       `json:"usable_quantity"`
}

func toLabItem(item models.Item, row models.LabInventory) LabItem {
	usable := row.Usable()
	return LabItem{
		ItemID:               item.ID,
		Name:                 item.Name,
		SKU:                  item.SKU,
		Category:             item.Category,
		Description:          item.Description,
		TrackingType:         item.TrackingType,
		IsStudentVisible:     item.IsStudentVisible,
		TotalQuantity:        row.TotalQuantity,
		ReservedQuantity:     row.ReservedQuantity,
		TempReservedQuantity: row.TempReservedQuantity,
		IssuedQuantity:       row.IssuedQuantity,
		AvailableQuantity:    row.AvailableQuantity,
		DamagedQuantity:      row.DamagedQuantity,
		UsableQuantity:       usable,
		MinThresholdQuantity: item.MinThresholdQuantity,
		LowStock:             item.MinThresholdQuantity > 0 && usable <= item.MinThresholdQuantity,
	}
}

// AssetView is one tagged unit as listed to lab staff.
type AssetView struct {
	ID                uuid.UUID            `json:"id"`
	ItemID            uuid.UUID            `json:"item_id"`
	LabID             uuid.UUID            `json:"lab_id"`
	AssetTag          string               `json:"asset_tag"`
	SerialNo          *string              `json:"serial_no,omitempty"`
	Status            enums.AssetStatus    `json:"status"`
	Condition         enums.AssetCondition `json:"condition"`
	Vendor            *string              `json:"vendor,omitempty"`
	InvoiceNumber     *string              `json:"invoice_number,omitempty"`
	PurchaseDate      *time.Time           `json:"purchase_date,omitempty"`
	Location          *string              `json:"location,omitempty"`
	LastTransactionID *uuid.UUID           `json:"last_transaction_id,omitempty"`
}

// LabView is a lab as listed to other labs.
type LabView struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Code     string    `json:"code"`
	Location *string   `json:"location,omitempty"`
}

func NewAssetViews(rows []models.ItemAsset) []AssetView {
	out := make([]AssetView, 0, len(rows))
	for _, a := range rows {
		out = append(out, AssetView{
			ID:                a.ID,
			ItemID:            a.ItemID,
			LabID:             a.LabID,
			AssetTag:          a.AssetTag,
			SerialNo:          a.SerialNo,
			Status:            a.Status,
			Condition:         a.Condition,
			Vendor:            a.Vendor,
			InvoiceNumber:     a.InvoiceNumber,
			PurchaseDate:      a.PurchaseDate,
			Location:          a.Location,
			LastTransactionID: a.LastTransactionID,
		})
	}
	return out
}

func NewLabViews(rows []models.Lab) []LabView {
	out := make([]LabView, 0, len(rows))
	for _, l := range rows {
		out = append(out, LabView{ID: l.ID, Name: l.Name, Code: l.Code, Location: l.Location})
	}
	return out
}
