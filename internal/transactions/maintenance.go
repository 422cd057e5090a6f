package transactions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/notifications"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db/models"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
)

// ExpireStale auto-rejects regular requests left raised or approved past
// their hold window and releases their temp holds. Each transaction is
// handled in its own unit so one failure does not block the rest.
func (s *service) ExpireStale(ctx context.Context, now time.Time) (SweepResult, error) {
	now = now.UTC()
	windows := []struct {
		status enums.TransactionStatus
		column string
		ttl    time.Duration
	}{
		{enums.TransactionStatusRaised, "created_at", s.inventory.RaisedHoldTTL},
		{enums.TransactionStatusApproved, "approval_decided_at", s.inventory.ApprovedHoldTTL},
	}

	var (
		result SweepResult
		errs   []error
	)
	for _, w := range windows {
		ids, err := s.repo.FindStaleRegular(ctx, w.status, w.column, now.Add(-w.ttl))
		if err != nil {
			errs = append(errs, fmt.Errorf("query stale %s transactions: %w", w.status, err))
			continue
		}
		result.Scanned += len(ids)
		for _, id := range ids {
			expired, err := s.expireOne(ctx, id)
			if err != nil {
				result.Failed++
				s.logg.Error(s.logg.WithField(ctx, "transaction_id", id.String()), "auto reject failed", err)
				errs = append(errs, err)
				continue
			}
			if expired != nil {
				result.Processed++
				s.logTransition(ctx, expired, w.status, expired.Status)
				s.notifyDecision(ctx, expired)
			}
		}
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"scanned":   result.Scanned,
		"processed": result.Processed,
		"failed":    result.Failed,
	})
	s.logg.Info(logCtx, "stale transaction sweep complete")
	return result, multierr.Combine(errs...)
}

func (s *service) expireOne(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var expired *models.Transaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		txn, err := repo.LockByID(ctx, id)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		if txn.Status != enums.TransactionStatusRaised && txn.Status != enums.TransactionStatusApproved {
			return nil
		}
		if err := s.applyDecision(ctx, tx, repo, txn, enums.DecisionRejected, autoRejectReason, decidedBySystem); err != nil {
			return err
		}
		expired = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

// MarkOverdue flags active transactions past their expected return date and
// notifies the borrower once.
func (s *service) MarkOverdue(ctx context.Context, now time.Time) (SweepResult, error) {
	now = now.UTC()
	ids, err := s.repo.FindPastDue(ctx, now)
	if err != nil {
		return SweepResult{}, fmt.Errorf("query past due transactions: %w", err)
	}

	result := SweepResult{Scanned: len(ids)}
	var errs []error
	for _, id := range ids {
		var (
			flagged *models.Transaction
			notify  bool
		)
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			txn, err := repo.LockByID(ctx, id)
			if err != nil {
				if isNotFound(err) {
					return nil
				}
				return err
			}
			if txn.Status != enums.TransactionStatusActive || txn.ExpectedReturnDate == nil || !txn.ExpectedReturnDate.Before(now) {
				return nil
			}
			notify = !txn.OverdueNotified
			updates := map[string]any{
				"status":           enums.TransactionStatusOverdue,
				"overdue_notified": true,
			}
			if err := repo.Update(ctx, txn.ID, updates); err != nil {
				return err
			}
			txn.Status = enums.TransactionStatusOverdue
			txn.OverdueNotified = true
			flagged = txn
			return nil
		})
		if err != nil {
			result.Failed++
			s.logg.Error(s.logg.WithField(ctx, "transaction_id", id.String()), "mark overdue failed", err)
			errs = append(errs, err)
			continue
		}
		if flagged == nil {
			continue
		}
		result.Processed++
		s.logTransition(ctx, flagged, enums.TransactionStatusActive, flagged.Status)
		if notify {
			s.notifyOverdue(ctx, flagged)
		}
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"scanned":   result.Scanned,
		"processed": result.Processed,
		"failed":    result.Failed,
	})
	s.logg.Info(logCtx, "overdue sweep complete")
	return result, multierr.Combine(errs...)
}

func (s *service) notifyOverdue(ctx context.Context, txn *models.Transaction) {
	if txn.StudentID == nil {
		return
	}
	student, err := s.repo.FindStudent(ctx, *txn.StudentID)
	if err != nil {
		s.logg.Error(s.logg.WithTransactionID(ctx, txn.TransactionCode), "load student for overdue notice", err)
		return
	}
	heading := fmt.Sprintf("Request %s is overdue", txn.TransactionCode)
	body := fmt.Sprintf("Items on %s were due back on %s. Please return them to the lab.",
		txn.TransactionCode, txn.ExpectedReturnDate.Format("2006-01-02"))
	msg, err := notifications.BuildNotice(student.Email, heading, heading, body)
	if err != nil {
		s.logg.Error(ctx, "render overdue email", err)
		return
	}
	s.notifier.Notify(ctx, msg)
}
