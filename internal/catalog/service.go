package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/assets"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/inventory"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/auth"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db/models"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
	pkgerrors "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/errors"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockLedger interface {
	Get(ctx context.Context, conn *gorm.DB, labID, itemID uuid.UUID) (*models.LabInventory, error)
	AddStock(ctx context.Context, tx *gorm.DB, labID, itemID uuid.UUID, qty, reservedQty int) (*models.LabInventory, error)
	AdjustStock(ctx context.Context, tx *gorm.DB, labID, itemID uuid.UUID, adj inventory.StockAdjustment) (*models.LabInventory, error)
	Remove(ctx context.Context, tx *gorm.DB, labID, itemID uuid.UUID) error
}

type assetRegistry interface {
	MintSequential(ctx context.Context, tx *gorm.DB, itemID, labID uuid.UUID, count int, in assets.MintInput) ([]models.ItemAsset, error)
	FindAvailableByTags(ctx context.Context, tx *gorm.DB, itemID, labID uuid.UUID, tags []string) ([]models.ItemAsset, error)
	MarkRetired(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
	RetireLab(ctx context.Context, tx *gorm.DB, itemID, labID uuid.UUID) (int, error)
	CountIssued(ctx context.Context, conn *gorm.DB, itemID, labID uuid.UUID) (int64, error)
	List(ctx context.Context, conn *gorm.DB, itemID, labID uuid.UUID, status *enums.AssetStatus) ([]models.ItemAsset, error)
}

// Service administers each lab's catalog and serves the student catalog.
type Service interface {
	AddItem(ctx context.Context, actor auth.Identity, input AddItemInput) (*LabItem, error)
	UpdateItem(ctx context.Context, actor auth.Identity, itemID uuid.UUID, input UpdateItemInput) (*LabItem, error)
	RemoveItem(ctx context.Context, actor auth.Identity, itemID uuid.UUID) error
	ListLabItems(ctx context.Context, actor auth.Identity) ([]LabItem, error)
	GetLabItem(ctx context.Context, actor auth.Identity, itemID uuid.UUID) (*LabItem, error)
	ListItemAssets(ctx context.Context, actor auth.Identity, itemID uuid.UUID, status *enums.AssetStatus) ([]models.ItemAsset, error)

	ListStudentItems(ctx context.Context) ([]StudentItem, error)
	ListItemLabs(ctx context.Context, itemID uuid.UUID) ([]ItemLab, error)
	ListLabsExcept(ctx context.Context, actor auth.Identity) ([]models.Lab, error)
	ListLabAvailableItems(ctx context.Context, labID uuid.UUID) ([]LabItem, error)
}

// Params wires the catalog dependencies.
type Params struct {
	Tx     txRunner
	DB     *gorm.DB
	Repo   Repository
	Ledger stockLedger
	Assets assetRegistry
	Logger *logger.Logger
}

type service struct {
	tx     txRunner
	db     *gorm.DB
	repo   Repository
	ledger stockLedger
	assets assetRegistry
	logg   *logger.Logger
}

// NewService builds the catalog service.
func NewService(p Params) (Service, error) {
	switch {
	case p.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case p.DB == nil:
		return nil, fmt.Errorf("db required")
	case p.Repo == nil:
		return nil, fmt.Errorf("catalog repository required")
	case p.Ledger == nil:
		return nil, fmt.Errorf("inventory ledger required")
	case p.Assets == nil:
		return nil, fmt.Errorf("asset registry required")
	case p.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{tx: p.Tx, db: p.DB, repo: p.Repo, ledger: p.Ledger, assets: p.Assets, logg: p.Logger}, nil
}

func (s *service) AddItem(ctx context.Context, actor auth.Identity, input AddItemInput) (*LabItem, error) {
	labID, err := labOf(actor)
	if err != nil {
		return nil, err
	}
	if err := validateAdd(&input); err != nil {
		return nil, err
	}

	var out LabItem
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.EnsureItem(ctx, &models.Item{
			Name:                 input.Name,
			SKU:                  input.SKU,
			Category:             input.Category,
			Vendor:               &input.Vendor,
			Description:          input.Description,
			TrackingType:         input.TrackingType,
			IsStudentVisible:     input.IsStudentVisible,
			IsActive:             true,
			MinThresholdQuantity: input.MinThresholdQuantity,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create item")
		}
		if item.TrackingType != input.TrackingType {
			return pkgerrors.New(pkgerrors.CodeValidation, "tracking type does not match the existing item").
				WithDetails(map[string]any{"sku": item.SKU, "tracking_type": item.TrackingType})
		}
		exists, err := repo.HasLabRow(ctx, labID, item.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check lab inventory")
		}
		if exists {
			return pkgerrors.New(pkgerrors.CodeConflict, "item already exists in this lab")
		}
		if !item.IsActive {
			if err := repo.UpdateItem(ctx, item.ID, map[string]any{"is_active": true}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reactivate item")
			}
			item.IsActive = true
		}

		row, err := s.ledger.AddStock(ctx, tx, labID, item.ID, input.Quantity, input.ReservedQuantity)
		if err != nil {
			return err
		}
		if item.TrackingType == enums.TrackingTypeAsset {
			_, err := s.assets.MintSequential(ctx, tx, item.ID, labID, input.Quantity, assets.MintInput{
				Prefix:        input.AssetPrefix,
				Vendor:        &input.Vendor,
				InvoiceNumber: input.InvoiceNumber,
				PurchaseDate:  input.PurchaseDate,
				Location:      input.Location,
			})
			if err != nil {
				return err
			}
		}
		out = toLabItem(*item, *row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logChange(ctx, labID, out.ItemID, "lab item added", map[string]any{"quantity": input.Quantity})
	return &out, nil
}

func (s *service) UpdateItem(ctx context.Context, actor auth.Identity, itemID uuid.UUID, input UpdateItemInput) (*LabItem, error) {
	labID, err := labOf(actor)
	if err != nil {
		return nil, err
	}
	updates, err := itemUpdates(input)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 && input.AddQuantity == 0 && input.ReservedQuantity == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no changes requested")
	}

	var out LabItem
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.LockItem(ctx, itemID)
		if err != nil {
			if isNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "item not found in lab")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load item")
		}
		row, err := s.ledger.Get(ctx, tx, labID, itemID)
		if err != nil {
			return err
		}
		if input.TrackingType != nil && *input.TrackingType != item.TrackingType {
			return pkgerrors.New(pkgerrors.CodeValidation, "tracking type cannot be changed")
		}

		if input.AddQuantity > 0 {
			if input.Vendor == nil || strings.TrimSpace(*input.Vendor) == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "vendor is required when adding stock")
			}
			if row, err = s.ledger.AddStock(ctx, tx, labID, itemID, input.AddQuantity, 0); err != nil {
				return err
			}
			if item.TrackingType == enums.TrackingTypeAsset {
				vendor := strings.TrimSpace(*input.Vendor)
				_, err := s.assets.MintSequential(ctx, tx, itemID, labID, input.AddQuantity, assets.MintInput{
					Prefix:        input.AssetPrefix,
					Vendor:        &vendor,
					InvoiceNumber: input.InvoiceNumber,
					PurchaseDate:  input.PurchaseDate,
					Location:      input.Location,
				})
				if err != nil {
					return err
				}
			}
		}

		adj := inventory.StockAdjustment{Reserved: input.ReservedQuantity}
		if input.AddQuantity < 0 {
			adj.Delta = input.AddQuantity
			if item.TrackingType == enums.TrackingTypeAsset {
				if err := s.retireTags(ctx, tx, itemID, labID, -input.AddQuantity, input.RemoveAssetTags); err != nil {
					return err
				}
			}
		}
		if adj.Delta != 0 || adj.Reserved != nil {
			if row, err = s.ledger.AdjustStock(ctx, tx, labID, itemID, adj); err != nil {
				return err
			}
		}

		if len(updates) > 0 {
			if err := repo.UpdateItem(ctx, itemID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update item")
			}
		}
		if item, err = repo.FindItem(ctx, itemID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload item")
		}
		out = toLabItem(*item, *row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logChange(ctx, labID, itemID, "lab item updated", map[string]any{"add_quantity": input.AddQuantity})
	return &out, nil
}

// retireTags retires exactly count named assets. Only available units may go.
func (s *service) retireTags(ctx context.Context, tx *gorm.DB, itemID, labID uuid.UUID, count int, tags []string) error {
	normalized := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToUpper(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		normalized = append(normalized, tag)
	}
	if len(normalized) != count {
		return pkgerrors.New(pkgerrors.CodeValidation, "remove_asset_tags must name exactly the assets being removed").
			WithDetails(map[string]any{"expected": count, "given": len(normalized)})
	}
	picked, err := s.assets.FindAvailableByTags(ctx, tx, itemID, labID, normalized)
	if err != nil {
		return err
	}
	return s.assets.MarkRetired(ctx, tx, assets.IDs(picked))
}

func (s *service) RemoveItem(ctx context.Context, actor auth.Identity, itemID uuid.UUID) error {
	labID, err := labOf(actor)
	if err != nil {
		return err
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.ledger.Get(ctx, tx, labID, itemID); err != nil {
			return err
		}
		holding, err := repo.CountHoldingLines(ctx, labID, itemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check open transactions")
		}
		if holding > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "item is referenced by open transactions").
				WithDetails(map[string]any{"open_lines": holding})
		}
		issued, err := s.assets.CountIssued(ctx, tx, itemID, labID)
		if err != nil {
			return err
		}
		if issued > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "item has issued assets").
				WithDetails(map[string]any{"issued_assets": issued})
		}
		if _, err := s.assets.RetireLab(ctx, tx, itemID, labID); err != nil {
			return err
		}
		if err := s.ledger.Remove(ctx, tx, labID, itemID); err != nil {
			return err
		}
		remaining, err := repo.CountLabRows(ctx, itemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count lab inventory")
		}
		if remaining == 0 {
			if err := repo.UpdateItem(ctx, itemID, map[string]any{"is_active": false}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deactivate item")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logChange(ctx, labID, itemID, "lab item removed", nil)
	return nil
}

func (s *service) ListLabItems(ctx context.Context, actor auth.Identity) ([]LabItem, error) {
	labID, err := labOf(actor)
	if err != nil {
		return nil, err
	}
	return s.labItems(ctx, labID, false)
}

func (s *service) GetLabItem(ctx context.Context, actor auth.Identity, itemID uuid.UUID) (*LabItem, error) {
	labID, err := labOf(actor)
	if err != nil {
		return nil, err
	}
	row, err := s.ledger.Get(ctx, s.db, labID, itemID)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindItem(ctx, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load item")
	}
	out := toLabItem(*item, *row)
	return &out, nil
}

func (s *service) ListItemAssets(ctx context.Context, actor auth.Identity, itemID uuid.UUID, status *enums.AssetStatus) ([]models.ItemAsset, error) {
	labID, err := labOf(actor)
	if err != nil {
		return nil, err
	}
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown asset status")
	}
	if _, err := s.ledger.Get(ctx, s.db, labID, itemID); err != nil {
		return nil, err
	}
	return s.assets.List(ctx, s.db, itemID, labID, status)
}

func (s *service) ListStudentItems(ctx context.Context) ([]StudentItem, error) {
	rows, err := s.repo.ListStudentItems(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list items")
	}
	return rows, nil
}

func (s *service) ListItemLabs(ctx context.Context, itemID uuid.UUID) ([]ItemLab, error) {
	item, err := s.repo.FindItem(ctx, itemID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load item")
	}
	if !item.IsActive || !item.IsStudentVisible {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	rows, err := s.repo.ListItemLabs(ctx, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list item labs")
	}
	return rows, nil
}

func (s *service) ListLabsExcept(ctx context.Context, actor auth.Identity) ([]models.Lab, error) {
	labID, err := labOf(actor)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListLabsExcept(ctx, labID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list labs")
	}
	return rows, nil
}

func (s *service) ListLabAvailableItems(ctx context.Context, labID uuid.UUID) ([]LabItem, error) {
	lab, err := s.repo.FindLab(ctx, labID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "lab not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load lab")
	}
	if !lab.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "lab not found")
	}
	return s.labItems(ctx, labID, true)
}

func (s *service) labItems(ctx context.Context, labID uuid.UUID, availableOnly bool) ([]LabItem, error) {
	rows, err := s.repo.ListLabStock(ctx, labID, availableOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list lab inventory")
	}
	ids := make([]uuid.UUID, len(rows))
	for i, row := range rows {
		ids[i] = row.ItemID
	}
	items, err := s.repo.FindItems(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load items")
	}
	out := make([]LabItem, 0, len(rows))
	for _, row := range rows {
		item, ok := items[row.ItemID]
		if !ok || !item.IsActive {
			continue
		}
		out = append(out, toLabItem(item, row))
	}
	return out, nil
}

func (s *service) logChange(ctx context.Context, labID, itemID uuid.UUID, msg string, fields map[string]any) {
	logCtx := s.logg.WithLabID(ctx, labID.String())
	logCtx = s.logg.WithField(logCtx, "item_id", itemID.String())
	if len(fields) > 0 {
		logCtx = s.logg.WithFields(logCtx, fields)
	}
	s.logg.Info(logCtx, msg)
}

func validateAdd(in *AddItemInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.SKU = strings.ToUpper(strings.TrimSpace(in.SKU))
	in.Vendor = strings.TrimSpace(in.Vendor)
	switch {
	case in.Name == "" || in.SKU == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "name and sku are required")
	case in.Vendor == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "vendor is required")
	case in.Quantity <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	case in.ReservedQuantity < 0 || in.ReservedQuantity > in.Quantity:
		return pkgerrors.New(pkgerrors.CodeValidation, "reserved quantity must be between zero and quantity")
	case in.MinThresholdQuantity < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "min threshold cannot be negative")
	}
	if in.TrackingType == "" {
		in.TrackingType = enums.TrackingTypeBulk
	}
	if !in.TrackingType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "tracking type must be bulk or asset")
	}
	return nil
}

func itemUpdates(in UpdateItemInput) (map[string]any, error) {
	updates := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		updates["name"] = name
	}
	if in.Category != nil {
		updates["category"] = strings.TrimSpace(*in.Category)
	}
	if in.Description != nil {
		updates["description"] = strings.TrimSpace(*in.Description)
	}
	if in.IsStudentVisible != nil {
		updates["is_student_visible"] = *in.IsStudentVisible
	}
	if in.MinThresholdQuantity != nil {
		if *in.MinThresholdQuantity < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "min threshold cannot be negative")
		}
		updates["min_threshold_quantity"] = *in.MinThresholdQuantity
	}
	return updates, nil
}

func labOf(actor auth.Identity) (uuid.UUID, error) {
	if !actor.IsStaff() {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "lab staff access required")
	}
	labID := actor.HomeLab()
	if labID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "lab id required")
	}
	return labID, nil
}
