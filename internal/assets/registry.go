package assets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db/models"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
	pkgerrors "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/errors"
)

// Registry tracks tagged units. Asset rows are only ever mutated through its
// bulk status transitions, always inside the caller's transaction.
type Registry struct{}

// NewRegistry returns the asset registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// MintInput carries the purchase metadata stamped on newly minted assets.
type MintInput struct {
	Prefix        string
	Vendor        *string
	InvoiceNumber *string
	PurchaseDate  *time.Time
	Location      *string
}

// FormatTag renders an asset tag from its prefix and sequence number.
func FormatTag(prefix string, seq int) string {
	return fmt.Sprintf("%s-%04d", strings.ToUpper(prefix), seq)
}

// Allocate picks count available assets of the item in the lab, lowest tag first.
func (r *Registry) Allocate(ctx context.Context, tx *gorm.DB, itemID, labID uuid.UUID, count int) ([]models.ItemAsset, error) {
	if count <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "asset count must be greater than zero")
	}
	var rows []models.ItemAsset
	err := db.ForUpdate(tx.WithContext(ctx)).
		Where("item_id = ? AND lab_id = ? AND status = ?", itemID, labID, enums.AssetStatusAvailable).
		Order(tagOrder).
		Limit(count).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "allocate assets")
	}
	if len(rows) < count {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough available assets").
			WithDetails(map[string]any{
				"lab_id":    labID.String(),
				"item_id":   itemID.String(),
				"requested": count,
				"available": len(rows),
			})
	}
	return rows, nil
}

// tagOrder sorts by the numeric sequence so PREFIX-10000 follows PREFIX-9999.
const tagOrder = "asset_seq ASC, asset_tag ASC"

// MintSequential creates count assets with tags continuing the item's sequence.
// The sequence only moves forward, so retired tags are never reissued.
func (r *Registry) MintSequential(ctx context.Context, tx *gorm.DB, itemID, labID uuid.UUID, count int, in MintInput) ([]models.ItemAsset, error) {
	if count <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "asset count must be greater than zero")
	}

	var item models.Item
	if err := db.ForUpdate(tx.WithContext(ctx)).Where("id = ?", itemID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock item sequence")
	}
	if item.TrackingType != enums.TrackingTypeAsset {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item is not asset tracked")
	}

	prefix := strings.TrimSpace(in.Prefix)
	if prefix == "" {
		prefix = item.SKU
	}

	minted := make([]models.ItemAsset, count)
	for i := range minted {
		minted[i] = models.ItemAsset{
			ItemID:        itemID,
			LabID:         labID,
			AssetTag:      FormatTag(prefix, item.LastAssetSeq+i+1),
			AssetSeq:      item.LastAssetSeq + i + 1,
			Status:        enums.AssetStatusAvailable,
			Condition:     enums.AssetConditionGood,
			Vendor:        in.Vendor,
			InvoiceNumber: in.InvoiceNumber,
			PurchaseDate:  in.PurchaseDate,
			Location:      in.Location,
		}
	}
	if err := tx.WithContext(ctx).Create(&minted).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "asset tag already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create assets")
	}

	err := tx.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ?", itemID).
		Update("last_asset_seq", item.LastAssetSeq+count).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "advance asset sequence")
	}
	return minted, nil
}

// MarkIssued flips available assets to issued and stamps the transaction.
func (r *Registry) MarkIssued(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, transactionID uuid.UUID) error {
	return r.transition(ctx, tx, ids,
		[]enums.AssetStatus{enums.AssetStatusAvailable},
		map[string]any{"status": enums.AssetStatusIssued, "last_transaction_id": transactionID})
}

// MarkAvailable returns issued assets to the shelf.
func (r *Registry) MarkAvailable(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	return r.transition(ctx, tx, ids,
		[]enums.AssetStatus{enums.AssetStatusIssued},
		map[string]any{"status": enums.AssetStatusAvailable})
}

// MarkDamaged records assets that came back unusable.
func (r *Registry) MarkDamaged(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	return r.transition(ctx, tx, ids,
		[]enums.AssetStatus{enums.AssetStatusIssued, enums.AssetStatusAvailable},
		map[string]any{"status": enums.AssetStatusDamaged, "condition": enums.AssetConditionFaulty})
}

// MarkRetired soft-deletes assets. Retiring forces the broken condition.
func (r *Registry) MarkRetired(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	return r.transition(ctx, tx, ids,
		[]enums.AssetStatus{enums.AssetStatusAvailable, enums.AssetStatusDamaged},
		map[string]any{"status": enums.AssetStatusRetired, "condition": enums.AssetConditionBroken})
}

// TransferLab reassigns ownership. Issued assets cannot move.
func (r *Registry) TransferLab(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, newLabID uuid.UUID) error {
	return r.transition(ctx, tx, ids,
		[]enums.AssetStatus{enums.AssetStatusAvailable},
		map[string]any{"lab_id": newLabID})
}

// RetireLab retires every non-issued asset of the item held by the lab.
func (r *Registry) RetireLab(ctx context.Context, tx *gorm.DB, itemID, labID uuid.UUID) (int, error) {
	res := tx.WithContext(ctx).
		Model(&models.ItemAsset{}).
		Where("item_id = ? AND lab_id = ? AND status IN ?", itemID, labID,
			[]enums.AssetStatus{enums.AssetStatusAvailable, enums.AssetStatusDamaged}).
		Updates(map[string]any{"status": enums.AssetStatusRetired, "condition": enums.AssetConditionBroken})
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "retire lab assets")
	}
	return int(res.RowsAffected), nil
}

// CountIssued reports how many of the item's assets in the lab are out.
func (r *Registry) CountIssued(ctx context.Context, conn *gorm.DB, itemID, labID uuid.UUID) (int64, error) {
	var count int64
	err := conn.WithContext(ctx).
		Model(&models.ItemAsset{}).
		Where("item_id = ? AND lab_id = ? AND status = ?", itemID, labID, enums.AssetStatusIssued).
		Count(&count).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count issued assets")
	}
	return count, nil
}

// FindAvailableByTags resolves tags to available assets of the item in the lab.
func (r *Registry) FindAvailableByTags(ctx context.Context, tx *gorm.DB, itemID, labID uuid.UUID, tags []string) ([]models.ItemAsset, error) {
	var rows []models.ItemAsset
	err := db.ForUpdate(tx.WithContext(ctx)).
		Where("item_id = ? AND lab_id = ? AND status = ? AND asset_tag IN ?", itemID, labID, enums.AssetStatusAvailable, tags).
		Order(tagOrder).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find assets by tag")
	}
	if len(rows) != len(uniqueStrings(tags)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "some asset tags are not available in this lab")
	}
	return rows, nil
}

// List returns the item's assets in the lab, optionally filtered by status.
func (r *Registry) List(ctx context.Context, conn *gorm.DB, itemID, labID uuid.UUID, status *enums.AssetStatus) ([]models.ItemAsset, error) {
	q := conn.WithContext(ctx).Where("item_id = ? AND lab_id = ?", itemID, labID)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	var rows []models.ItemAsset
	if err := q.Order(tagOrder).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list assets")
	}
	return rows, nil
}

func (r *Registry) transition(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, from []enums.AssetStatus, updates map[string]any) error {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	res := tx.WithContext(ctx).
		Model(&models.ItemAsset{}).
		Where("id IN ? AND status IN ?", ids, from).
		Updates(updates)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "update asset status")
	}
	if int(res.RowsAffected) != len(ids) {
		return pkgerrors.New(pkgerrors.CodeConflict, "one or more assets are not in the expected status").
			WithDetails(map[string]any{"expected": len(ids), "updated": res.RowsAffected})
	}
	return nil
}

// IDs extracts primary keys.
func IDs(rows []models.ItemAsset) []uuid.UUID {
	out := make([]uuid.UUID, len(rows))
	for i, row := range rows {
		out[i] = row.ID
	}
	return out
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
