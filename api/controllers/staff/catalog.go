package staff

import (
	"net/http"
	"strings"
	"time"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/middleware"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/responses"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/validators"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/catalog"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
	pkgerrors "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/errors"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
)

type addItemRequest struct {
	Name                 string  `json:"name" validate:"required,max=200"`
	SKU                  string  `json:"sku" validate:"required,max=64"`
	Category             *string `json:"category" validate:"omitempty,max=100"`
	Description          *string `json:"description" validate:"omitempty,max=2000"`
	Vendor               string  `json:"vendor" validate:"required,max=200"`
	TrackingType         string  `json:"tracking_type" validate:"omitempty,oneof=bulk asset"`
	Quantity             int     `json:"initial_quantity" validate:"required,gt=0"`
	ReservedQuantity     int     `json:"reserved_quantity" validate:"gte=0"`
	MinThresholdQuantity int     `json:"min_threshold_quantity" validate:"gte=0"`
	IsStudentVisible     *bool   `json:"is_student_visible"`
	AssetPrefix          string  `json:"asset_prefix" validate:"omitempty,max=32"`
	InvoiceNumber        *string `json:"invoice_number" validate:"omitempty,max=100"`
	PurchaseDate         *string `json:"purchase_date"`
	Location             *string `json:"location" validate:"omitempty,max=200"`
}

type updateItemRequest struct {
	Name                 *string  `json:"name" validate:"omitempty,max=200"`
	Category             *string  `json:"category" validate:"omitempty,max=100"`
	Description          *string  `json:"description" validate:"omitempty,max=2000"`
	IsStudentVisible     *bool    `json:"is_student_visible"`
	MinThresholdQuantity *int     `json:"min_threshold_quantity" validate:"omitempty,gte=0"`
	TrackingType         *string  `json:"tracking_type"`
	AddQuantity          int      `json:"add_quantity"`
	Vendor               *string  `json:"vendor" validate:"omitempty,max=200"`
	AssetPrefix          string   `json:"asset_prefix" validate:"omitempty,max=32"`
	InvoiceNumber        *string  `json:"invoice_number" validate:"omitempty,max=100"`
	PurchaseDate         *string  `json:"purchase_date"`
	Location             *string  `json:"location" validate:"omitempty,max=200"`
	RemoveAssetTags      []string `json:"remove_asset_tags"`
	ReservedQuantity     *int     `json:"reserved_quantity" validate:"omitempty,gte=0"`
}

// AddItem stocks an item in the caller's lab.
func AddItem(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req addItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		purchased, err := optionalDate("purchase_date", req.PurchaseDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		visible := true
		if req.IsStudentVisible != nil {
			visible = *req.IsStudentVisible
		}

		item, err := svc.AddItem(r.Context(), actor, catalog.AddItemInput{
			Name:                 req.Name,
			SKU:                  req.SKU,
			Category:             req.Category,
			Description:          req.Description,
			Vendor:               req.Vendor,
			TrackingType:         enums.TrackingType(req.TrackingType),
			Quantity:             req.Quantity,
			ReservedQuantity:     req.ReservedQuantity,
			MinThresholdQuantity: req.MinThresholdQuantity,
			IsStudentVisible:     visible,
			AssetPrefix:          req.AssetPrefix,
			InvoiceNumber:        req.InvoiceNumber,
			PurchaseDate:         purchased,
			Location:             req.Location,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, item)
	}
}

// UpdateItem applies whitelisted edits and signed stock adjustments.
func UpdateItem(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req updateItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		purchased, err := optionalDate("purchase_date", req.PurchaseDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var tracking *enums.TrackingType
		if req.TrackingType != nil {
			parsed, err := enums.ParseTrackingType(strings.TrimSpace(*req.TrackingType))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "tracking_type must be bulk or asset"))
				return
			}
			tracking = &parsed
		}

		item, err := svc.UpdateItem(r.Context(), actor, itemID, catalog.UpdateItemInput{
			Name:                 req.Name,
			Category:             req.Category,
			Description:          req.Description,
			IsStudentVisible:     req.IsStudentVisible,
			MinThresholdQuantity: req.MinThresholdQuantity,
			TrackingType:         tracking,
			AddQuantity:          req.AddQuantity,
			Vendor:               req.Vendor,
			AssetPrefix:          req.AssetPrefix,
			InvoiceNumber:        req.InvoiceNumber,
			PurchaseDate:         purchased,
			Location:             req.Location,
			RemoveAssetTags:      req.RemoveAssetTags,
			ReservedQuantity:     req.ReservedQuantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func RemoveItem(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.RemoveItem(r.Context(), actor, itemID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func ListItems(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.ListLabItems(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, items)
	}
}

func GetItem(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.GetLabItem(r.Context(), actor, itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// ItemAssets lists tagged units of an item, optionally filtered by ?status=.
func ItemAssets(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var status *enums.AssetStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseAssetStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid asset status"))
				return
			}
			status = &parsed
		}
		assets, err := svc.ListItemAssets(r.Context(), actor, itemID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, catalog.NewAssetViews(assets))
	}
}

// OtherLabs lists transfer counterparts for the caller's lab.
func OtherLabs(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		labs, err := svc.ListLabsExcept(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, catalog.NewLabViews(labs))
	}
}

func LabAvailableItems(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		labID, err := validators.ParseUUIDParam(r, "labId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.ListLabAvailableItems(r.Context(), labID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, items)
	}
}

func optionalDate(field string, raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := validators.ParseDate(field, *raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
