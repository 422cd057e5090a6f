package transactions

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/auth"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db/models"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
	pkgerrors "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/errors"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/security"
)

// Activate issues an approved regular request. Every line converts its temp
// hold into issued stock in one atomic unit.
func (s *service) Activate(ctx context.Context, actor auth.Identity, id uuid.UUID) (*models.Transaction, error) {
	if !actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "lab staff access required")
	}

	var (
		result *models.Transaction
		from   enums.TransactionStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		txn, err := s.lockScoped(ctx, repo, actor, id)
		if err != nil {
			return err
		}
		if txn.Type == enums.TransactionTypeLabTransfer {
			if txn.TargetLabID == nil || !actor.InLab(*txn.TargetLabID) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
			}
			from = txn.Status
			if txn.Status != enums.TransactionStatusRaised {
				return alreadyFinalized(txn.Status)
			}
			if err := s.activateTransfer(ctx, tx, repo, actor, txn); err != nil {
				return err
			}
			result = txn
			return nil
		}
		if txn.Type != enums.TransactionTypeRegular {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only regular requests and transfers are activated")
		}
		for _, line := range txn.Items {
			if !actor.InLab(line.LabID) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
			}
		}
		from = txn.Status
		if txn.Status != enums.TransactionStatusApproved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "transaction must be approved before issue").
				WithDetails(map[string]any{"status": txn.Status})
		}

		for i := range txn.Items {
			line := &txn.Items[i]
			if err := s.ledger.ReleaseTemp(ctx, tx, line.LabID, line.ItemID, line.Quantity); err != nil {
				return err
			}
			if err := s.issueLine(ctx, tx, repo, txn.ID, line); err != nil {
				return err
			}
		}
		return s.markActive(ctx, repo, actor, txn, &result)
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(ctx, result, from, result.Status)
	return result, nil
}

// IssueLabSession hands stock straight to a student working in the actor's lab.
func (s *service) IssueLabSession(ctx context.Context, actor auth.Identity, input LabSessionInput) (*models.Transaction, error) {
	labID := actor.HomeLab()
	if !actor.IsStaff() || labID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "lab staff access required")
	}
	regNo := strings.ToUpper(strings.TrimSpace(input.StudentRegNo))
	if regNo == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "student registration number required")
	}
	if strings.TrimSpace(input.LabSlot) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lab slot required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "No items selected")
	}
	for i := range input.Items {
		input.Items[i].LabID = labID
	}
	lines, err := mergeLines(input.Items, true)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	expected := endOfDay(now)
	if input.ExpectedReturnDate != nil {
		if !input.ExpectedReturnDate.After(now) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "return date must be in the future")
		}
		expected = input.ExpectedReturnDate.UTC()
	}

	code, err := security.NewReference(sessionCodePrefix)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate transaction id")
	}

	var result *models.Transaction
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		items, err := s.loadItems(ctx, repo, lines)
		if err != nil {
			return err
		}
		lab, err := repo.FindLab(ctx, labID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load lab")
		}

		txn := &models.Transaction{
			TransactionCode:    code,
			Type:               enums.TransactionTypeLabSession,
			Status:             enums.TransactionStatusActive,
			StudentRegNo:       &regNo,
			SourceLabID:        &lab.ID,
			SourceLabName:      &lab.Name,
			IssuedDirectly:     true,
			LabSlot:            strPtr(strings.TrimSpace(input.LabSlot)),
			IssuedByStaffID:    &actor.UserID,
			IssuedAt:           &now,
			ExpectedReturnDate: &expected,
			Items:              buildLines(lines, items),
		}
		if student, err := repo.FindStudentByRegNo(ctx, regNo); err == nil {
			txn.StudentID = &student.ID
		} else if !isNotFound(err) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load student")
		}
		if err := repo.Create(ctx, txn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create lab session")
		}
		for i := range txn.Items {
			if err := s.issueLine(ctx, tx, repo, txn.ID, &txn.Items[i]); err != nil {
				return err
			}
		}
		result = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(ctx, result, "", enums.TransactionStatusActive)
	return result, nil
}

// ProcessReturn closes a regular or lab-session transaction. Lines without an
// explicit entry are treated as fully returned in good condition.
func (s *service) ProcessReturn(ctx context.Context, actor auth.Identity, id uuid.UUID, input ReturnInput) (*models.Transaction, error) {
	if !actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "lab staff access required")
	}
	for _, line := range input.Lines {
		if line.Returned < 0 || line.Damaged < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "returned and damaged quantities cannot be negative")
		}
	}

	var (
		result *models.Transaction
		from   enums.TransactionStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		txn, err := s.lockScoped(ctx, repo, actor, id)
		if err != nil {
			return err
		}
		if txn.Type == enums.TransactionTypeLabTransfer {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "transfers are returned through the transfer flow")
		}
		for _, line := range txn.Items {
			if !actor.InLab(line.LabID) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
			}
		}
		from = txn.Status
		if txn.Status != enums.TransactionStatusActive && txn.Status != enums.TransactionStatusOverdue {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "transaction is not out on loan").
				WithDetails(map[string]any{"status": txn.Status})
		}

		byLine, err := matchReturns(txn.Items, input.Lines)
		if err != nil {
			return err
		}
		for i := range txn.Items {
			line := &txn.Items[i]
			ret, ok := byLine[line.ID]
			if !ok {
				ret = ReturnLine{LabID: line.LabID, ItemID: line.ItemID, Returned: line.IssuedQuantity}
			}
			if err := s.returnLine(ctx, tx, repo, line, ret); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		updates := map[string]any{
			"status":             enums.TransactionStatusCompleted,
			"actual_return_date": now,
		}
		if input.DamageNotes != nil {
			updates["damage_notes"] = nullableString(*input.DamageNotes)
		}
		if err := repo.Update(ctx, txn.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "complete transaction")
		}
		txn.Status = enums.TransactionStatusCompleted
		txn.ActualReturnDate = &now
		txn.DamageNotes = input.DamageNotes
		result = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(ctx, result, from, result.Status)
	return result, nil
}

// issueLine moves one line's quantity out of the lab. Asset lines pick
// concrete units, lowest tag first, and stamp them on the line.
func (s *service) issueLine(ctx context.Context, tx *gorm.DB, repo Repository, txnID uuid.UUID, line *models.TransactionItem) error {
	if line.TrackingType == enums.TrackingTypeAsset {
		picked, err := s.assets.Allocate(ctx, tx, line.ItemID, line.LabID, line.Quantity)
		if err != nil {
			return err
		}
		ids := assetIDs(picked)
		if err := s.assets.MarkIssued(ctx, tx, ids, txnID); err != nil {
			return err
		}
		line.AssetIDs = ids
	}
	if err := s.ledger.CommitIssue(ctx, tx, line.LabID, line.ItemID, line.Quantity); err != nil {
		return err
	}
	line.IssuedQuantity = line.Quantity
	if err := repo.SaveLineIssue(ctx, line); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update transaction line")
	}
	return nil
}

func (s *service) returnLine(ctx context.Context, tx *gorm.DB, repo Repository, line *models.TransactionItem, ret ReturnLine) error {
	if len(ret.DamagedAssetIDs) > 0 {
		if line.TrackingType != enums.TrackingTypeAsset {
			return pkgerrors.New(pkgerrors.CodeValidation, "damaged asset ids only apply to asset items").
				WithDetails(map[string]any{"item_id": line.ItemID.String()})
		}
		if err := checkDistinct(ret.DamagedAssetIDs); err != nil {
			return err
		}
		if ret.Damaged != 0 && ret.Damaged != len(ret.DamagedAssetIDs) {
			return pkgerrors.New(pkgerrors.CodeValidation, "damaged quantity does not match damaged asset ids").
				WithDetails(map[string]any{"item_id": line.ItemID.String()})
		}
		ret.Damaged = len(ret.DamagedAssetIDs)
		if ret.Returned == 0 {
			ret.Returned = line.IssuedQuantity - ret.Damaged
		}
	}
	if ret.Returned+ret.Damaged != line.IssuedQuantity {
		return pkgerrors.New(pkgerrors.CodeValidation, "returned plus damaged must equal issued quantity").
			WithDetails(map[string]any{"item_id": line.ItemID.String(), "issued": line.IssuedQuantity})
	}

	if line.TrackingType == enums.TrackingTypeAsset {
		damaged, err := pickDamaged(line, ret)
		if err != nil {
			return err
		}
		returned := subtractIDs(line.AssetIDs, damaged)
		if err := s.assets.MarkDamaged(ctx, tx, damaged); err != nil {
			return err
		}
		if err := s.assets.MarkAvailable(ctx, tx, returned); err != nil {
			return err
		}
	}
	if err := s.ledger.CommitReturn(ctx, tx, line.LabID, line.ItemID, ret.Returned, ret.Damaged); err != nil {
		return err
	}
	if err := repo.UpdateLine(ctx, line.ID, map[string]any{
		"returned_quantity": ret.Returned,
		"damaged_quantity":  ret.Damaged,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update transaction line")
	}
	line.ReturnedQuantity = ret.Returned
	line.DamagedQuantity = ret.Damaged
	return nil
}

func (s *service) markActive(ctx context.Context, repo Repository, actor auth.Identity, txn *models.Transaction, out **models.Transaction) error {
	now := s.now().UTC()
	updates := map[string]any{
		"status":             enums.TransactionStatusActive,
		"issued_at":          now,
		"issued_by_staff_id": actor.UserID,
	}
	if err := repo.Update(ctx, txn.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "activate transaction")
	}
	txn.Status = enums.TransactionStatusActive
	txn.IssuedAt = &now
	txn.IssuedByStaffID = &actor.UserID
	*out = txn
	return nil
}

// lockScoped loads and locks a transaction, hiding it from staff of labs it
// does not touch.
func (s *service) lockScoped(ctx context.Context, repo Repository, actor auth.Identity, id uuid.UUID) (*models.Transaction, error) {
	txn, err := repo.LockByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load transaction")
	}
	if !touchesLab(txn, actor) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	return txn, nil
}

func touchesLab(txn *models.Transaction, actor auth.Identity) bool {
	if actor.IsSuperAdmin() {
		return true
	}
	if txn.SourceLabID != nil && actor.InLab(*txn.SourceLabID) {
		return true
	}
	if txn.TargetLabID != nil && actor.InLab(*txn.TargetLabID) {
		return true
	}
	for _, line := range txn.Items {
		if actor.InLab(line.LabID) {
			return true
		}
	}
	return false
}

type lineKey struct {
	labID  uuid.UUID
	itemID uuid.UUID
}

// matchReturns binds each return entry to the transaction line it describes,
// keyed by line id. An entry without a lab only matches when the item sits on
// a single line.
func matchReturns(items []models.TransactionItem, entries []ReturnLine) (map[uuid.UUID]ReturnLine, error) {
	lines := make(map[lineKey]uuid.UUID, len(items))
	soleLine := make(map[uuid.UUID]uuid.UUID, len(items))
	perItem := make(map[uuid.UUID]int, len(items))
	for _, item := range items {
		lines[lineKey{labID: item.LabID, itemID: item.ItemID}] = item.ID
		soleLine[item.ItemID] = item.ID
		perItem[item.ItemID]++
	}

	out := make(map[uuid.UUID]ReturnLine, len(entries))
	for _, entry := range entries {
		details := map[string]any{"item_id": entry.ItemID.String()}
		var (
			lineID uuid.UUID
			ok     bool
		)
		if entry.LabID == uuid.Nil {
			if perItem[entry.ItemID] > 1 {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "lab_id is required for items borrowed from more than one lab").
					WithDetails(details)
			}
			lineID, ok = soleLine[entry.ItemID]
		} else {
			details["lab_id"] = entry.LabID.String()
			lineID, ok = lines[lineKey{labID: entry.LabID, itemID: entry.ItemID}]
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "return entry does not match any line").
				WithDetails(details)
		}
		if _, dup := out[lineID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line returned more than once").
				WithDetails(details)
		}
		out[lineID] = entry
	}
	return out, nil
}

func checkDistinct(ids []uuid.UUID) error {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "damaged asset listed more than once").
				WithDetails(map[string]any{"asset_id": id.String()})
		}
		seen[id] = struct{}{}
	}
	return nil
}

func pickDamaged(line *models.TransactionItem, ret ReturnLine) ([]uuid.UUID, error) {
	if len(ret.DamagedAssetIDs) == 0 {
		if ret.Damaged > 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "damaged assets must be identified by id")
		}
		return nil, nil
	}
	owned := make(map[uuid.UUID]struct{}, len(line.AssetIDs))
	for _, id := range line.AssetIDs {
		owned[id] = struct{}{}
	}
	for _, id := range ret.DamagedAssetIDs {
		if _, ok := owned[id]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "damaged asset was not issued on this line")
		}
	}
	return ret.DamagedAssetIDs, nil
}

func subtractIDs(all, remove []uuid.UUID) []uuid.UUID {
	drop := make(map[uuid.UUID]struct{}, len(remove))
	for _, id := range remove {
		drop[id] = struct{}{}
	}
	out := make([]uuid.UUID, 0, len(all))
	for _, id := range all {
		if _, ok := drop[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func assetIDs(rows []models.ItemAsset) []uuid.UUID {
	out := make([]uuid.UUID, len(rows))
	for i, row := range rows {
		out[i] = row.ID
	}
	return out
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}
