package transactions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/auth"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db/models"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
	pkgerrors "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/errors"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/security"
)

// CreateTransfer records a request from the actor's lab for stock held by
// another lab. No hold is placed; stock is validated again on approval.
func (s *service) CreateTransfer(ctx context.Context, actor auth.Identity, input TransferInput) (*models.Transaction, error) {
	requester := actor.HomeLab()
	if !actor.IsStaff() || requester == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "lab staff access required")
	}
	if input.HoldingLabID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "holding lab required")
	}
	if input.HoldingLabID == requester {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot request a transfer from your own lab")
	}
	if !input.TransferType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer type must be temporary or permanent")
	}
	now := s.now().UTC()
	if input.TransferType == enums.TransferTypeTemporary {
		if input.ExpectedReturnDate == nil || !input.ExpectedReturnDate.After(now) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "temporary transfers need a future return date")
		}
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "No items selected")
	}
	for i := range input.Items {
		input.Items[i].LabID = input.HoldingLabID
	}
	lines, err := mergeLines(input.Items, true)
	if err != nil {
		return nil, err
	}

	code, err := security.NewReference(transferCodePrefix)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate transfer id")
	}

	var result *models.Transaction
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		source, err := s.findLab(ctx, repo, requester)
		if err != nil {
			return err
		}
		holder, err := s.findLab(ctx, repo, input.HoldingLabID)
		if err != nil {
			return err
		}
		if !holder.IsActive {
			return pkgerrors.New(pkgerrors.CodeNotFound, "lab not found")
		}
		items, err := s.loadItems(ctx, repo, lines)
		if err != nil {
			return err
		}
		for _, line := range lines {
			usable, err := s.ledger.Usable(ctx, tx, line.LabID, line.ItemID)
			if err != nil {
				return err
			}
			if usable < line.Quantity {
				return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
					WithDetails(map[string]any{"item_id": line.ItemID.String(), "requested": line.Quantity, "usable": usable})
			}
		}

		transferType := input.TransferType
		txn := &models.Transaction{
			TransactionCode: code,
			Type:            enums.TransactionTypeLabTransfer,
			TransferType:    &transferType,
			Status:          enums.TransactionStatusRaised,
			SourceLabID:     &source.ID,
			SourceLabName:   &source.Name,
			TargetLabID:     &holder.ID,
			TargetLabName:   &holder.Name,
			Items:           buildLines(lines, items),
		}
		if input.Reason != nil {
			txn.ProjectName = nullableString(*input.Reason)
		}
		if transferType == enums.TransferTypeTemporary {
			expected := input.ExpectedReturnDate.UTC()
			txn.ExpectedReturnDate = &expected
		}
		if err := repo.Create(ctx, txn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create transfer")
		}
		result = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(ctx, result, "", enums.TransactionStatusRaised)
	return result, nil
}

// DecideTransfer lets the holding lab approve or reject a raised transfer.
// Approval activates it immediately.
func (s *service) DecideTransfer(ctx context.Context, actor auth.Identity, id uuid.UUID, decision enums.Decision, reason string) (*models.Transaction, error) {
	if !actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "lab staff access required")
	}
	var (
		result *models.Transaction
		from   enums.TransactionStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		txn, err := s.lockTransfer(ctx, repo, id)
		if err != nil {
			return err
		}
		if !actor.InLab(*txn.TargetLabID) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "transfer not found")
		}
		from = txn.Status
		if txn.Status != enums.TransactionStatusRaised {
			return alreadyFinalized(txn.Status)
		}

		switch decision {
		case enums.DecisionRejected:
			now := s.now().UTC()
			decidedBy := decidedByLab
			updates := map[string]any{
				"status":              enums.TransactionStatusRejected,
				"approval_decision":   decision,
				"approval_decided_by": decidedBy,
				"approval_decided_at": now,
				"approval_reason":     nullableString(reason),
			}
			if err := repo.Update(ctx, txn.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reject transfer")
			}
			txn.Status = enums.TransactionStatusRejected
			txn.Approval = models.FacultyApproval{Decision: &decision, DecidedBy: &decidedBy, DecidedAt: &now, Reason: nullableString(reason)}
		case enums.DecisionApproved:
			if err := s.activateTransfer(ctx, tx, repo, actor, txn); err != nil {
				return err
			}
		default:
			return pkgerrors.New(pkgerrors.CodeValidation, "decision must be approved or rejected")
		}
		result = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(ctx, result, from, result.Status)
	return result, nil
}

// activateTransfer moves stock out of the holding lab for every line. A
// permanent transfer relocates totals and asset ownership and has nothing
// left to return, so it completes at once.
func (s *service) activateTransfer(ctx context.Context, tx *gorm.DB, repo Repository, actor auth.Identity, txn *models.Transaction) error {
	holder := *txn.TargetLabID
	requester := *txn.SourceLabID
	permanent := txn.TransferType != nil && *txn.TransferType == enums.TransferTypePermanent

	for i := range txn.Items {
		line := &txn.Items[i]
		if !permanent {
			if err := s.issueLine(ctx, tx, repo, txn.ID, line); err != nil {
				return err
			}
			continue
		}
		if line.TrackingType == enums.TrackingTypeAsset {
			picked, err := s.assets.Allocate(ctx, tx, line.ItemID, holder, line.Quantity)
			if err != nil {
				return err
			}
			ids := assetIDs(picked)
			if err := s.assets.TransferLab(ctx, tx, ids, requester); err != nil {
				return err
			}
			line.AssetIDs = ids
		}
		if err := s.ledger.Transfer(ctx, tx, holder, requester, line.ItemID, line.Quantity); err != nil {
			return err
		}
		line.IssuedQuantity = line.Quantity
		if err := repo.SaveLineIssue(ctx, line); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update transaction line")
		}
	}

	now := s.now().UTC()
	decision := enums.DecisionApproved
	decidedBy := decidedByLab
	status := enums.TransactionStatusActive
	updates := map[string]any{
		"issued_at":           now,
		"issued_by_staff_id":  actor.UserID,
		"approval_decision":   decision,
		"approval_decided_by": decidedBy,
		"approval_decided_at": now,
	}
	if permanent {
		status = enums.TransactionStatusCompleted
		updates["actual_return_date"] = now
		txn.ActualReturnDate = &now
	}
	updates["status"] = status
	if err := repo.Update(ctx, txn.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "activate transfer")
	}
	txn.Status = status
	txn.IssuedAt = &now
	txn.IssuedByStaffID = &actor.UserID
	txn.Approval = models.FacultyApproval{Decision: &decision, DecidedBy: &decidedBy, DecidedAt: &now}
	return nil
}

// InitiateReturn is called by the lab currently holding temporarily transferred stock.
func (s *service) InitiateReturn(ctx context.Context, actor auth.Identity, id uuid.UUID) (*models.Transaction, error) {
	if !actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "lab staff access required")
	}
	var (
		result *models.Transaction
		from   enums.TransactionStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		txn, err := s.lockTransfer(ctx, repo, id)
		if err != nil {
			return err
		}
		if !actor.InLab(*txn.SourceLabID) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "transfer not found")
		}
		from = txn.Status
		if txn.TransferType == nil || *txn.TransferType != enums.TransferTypeTemporary {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only temporary transfers are returned")
		}
		if txn.Status != enums.TransactionStatusActive && txn.Status != enums.TransactionStatusOverdue {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "transfer is not active").
				WithDetails(map[string]any{"status": txn.Status})
		}
		if err := repo.Update(ctx, txn.ID, map[string]any{"status": enums.TransactionStatusReturnRequested}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "request transfer return")
		}
		txn.Status = enums.TransactionStatusReturnRequested
		result = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(ctx, result, from, result.Status)
	return result, nil
}

// CompleteReturn is confirmed by the lab that gave up the stock.
func (s *service) CompleteReturn(ctx context.Context, actor auth.Identity, id uuid.UUID) (*models.Transaction, error) {
	if !actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "lab staff access required")
	}
	var (
		result *models.Transaction
		from   enums.TransactionStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		txn, err := s.lockTransfer(ctx, repo, id)
		if err != nil {
			return err
		}
		if !actor.InLab(*txn.TargetLabID) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "transfer not found")
		}
		from = txn.Status
		if txn.Status != enums.TransactionStatusReturnRequested {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "transfer return has not been requested").
				WithDetails(map[string]any{"status": txn.Status})
		}

		for i := range txn.Items {
			line := &txn.Items[i]
			if line.TrackingType == enums.TrackingTypeAsset {
				if err := s.assets.MarkAvailable(ctx, tx, line.AssetIDs); err != nil {
					return err
				}
			}
			if err := s.ledger.CommitReturn(ctx, tx, line.LabID, line.ItemID, line.IssuedQuantity, 0); err != nil {
				return err
			}
			if err := repo.UpdateLine(ctx, line.ID, map[string]any{"returned_quantity": line.IssuedQuantity}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update transaction line")
			}
			line.ReturnedQuantity = line.IssuedQuantity
		}

		now := s.now().UTC()
		updates := map[string]any{
			"status":             enums.TransactionStatusCompleted,
			"actual_return_date": now,
		}
		if err := repo.Update(ctx, txn.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "complete transfer return")
		}
		txn.Status = enums.TransactionStatusCompleted
		txn.ActualReturnDate = &now
		result = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(ctx, result, from, result.Status)
	return result, nil
}

func (s *service) lockTransfer(ctx context.Context, repo Repository, id uuid.UUID) (*models.Transaction, error) {
	txn, err := repo.LockByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transfer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load transfer")
	}
	if txn.Type != enums.TransactionTypeLabTransfer || txn.SourceLabID == nil || txn.TargetLabID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transfer not found")
	}
	return txn, nil
}

func (s *service) findLab(ctx context.Context, repo Repository, id uuid.UUID) (*models.Lab, error) {
	lab, err := repo.FindLab(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "lab not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load lab")
	}
	return lab, nil
}
