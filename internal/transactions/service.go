package transactions

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/notifications"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/auth"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/config"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db/models"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
	pkgerrors "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/errors"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/pagination"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/security"
)

const (
	regularCodePrefix  = "TXN"
	transferCodePrefix = "TR"
	sessionCodePrefix  = "LS"

	decidedByFaculty = "faculty"
	decidedBySystem  = "system"
	decidedByLab     = "lab"

	autoRejectReason = "Auto-rejected due to inactivity"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockLedger interface {
	ReserveTemp(ctx context.Context, tx *gorm.DB, labID, itemID uuid.UUID, qty int) error
	ReleaseTemp(ctx context.Context, tx *gorm.DB, labID, itemID uuid.UUID, qty int) error
	CommitIssue(ctx context.Context, tx *gorm.DB, labID, itemID uuid.UUID, qty int) error
	CommitReturn(ctx context.Context, tx *gorm.DB, labID, itemID uuid.UUID, returned, damaged int) error
	Transfer(ctx context.Context, tx *gorm.DB, fromLabID, toLabID, itemID uuid.UUID, qty int) error
	Usable(ctx context.Context, conn *gorm.DB, labID, itemID uuid.UUID) (int, error)
}

type assetRegistry interface {
	Allocate(ctx context.Context, tx *gorm.DB, itemID, labID uuid.UUID, count int) ([]models.ItemAsset, error)
	MarkIssued(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, transactionID uuid.UUID) error
	MarkAvailable(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
	MarkDamaged(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
	TransferLab(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, newLabID uuid.UUID) error
}

type notifier interface {
	Notify(ctx context.Context, msg notifications.Message)
}

// Service drives the borrow and transfer lifecycle.
type Service interface {
	Raise(ctx context.Context, input RaiseInput) (*models.Transaction, error)
	DecideByToken(ctx context.Context, token string, decision enums.Decision, reason string) (*models.Transaction, error)
	PreviewByToken(ctx context.Context, token string) (*models.Transaction, error)
	DecideAsFaculty(ctx context.Context, actor auth.Identity, id uuid.UUID, decision enums.Decision, reason string) (*models.Transaction, error)
	Activate(ctx context.Context, actor auth.Identity, id uuid.UUID) (*models.Transaction, error)
	IssueLabSession(ctx context.Context, actor auth.Identity, input LabSessionInput) (*models.Transaction, error)
	ProcessReturn(ctx context.Context, actor auth.Identity, id uuid.UUID, input ReturnInput) (*models.Transaction, error)
	ExtendReturn(ctx context.Context, studentID, id uuid.UUID, newDate time.Time) (*models.Transaction, error)

	CreateTransfer(ctx context.Context, actor auth.Identity, input TransferInput) (*models.Transaction, error)
	DecideTransfer(ctx context.Context, actor auth.Identity, id uuid.UUID, decision enums.Decision, reason string) (*models.Transaction, error)
	InitiateReturn(ctx context.Context, actor auth.Identity, id uuid.UUID) (*models.Transaction, error)
	CompleteReturn(ctx context.Context, actor auth.Identity, id uuid.UUID) (*models.Transaction, error)

	ExpireStale(ctx context.Context, now time.Time) (SweepResult, error)
	MarkOverdue(ctx context.Context, now time.Time) (SweepResult, error)

	ListForStudent(ctx context.Context, studentID uuid.UUID) ([]models.Transaction, error)
	GetForStudent(ctx context.Context, studentID, id uuid.UUID) (*models.Transaction, error)
	Get(ctx context.Context, actor auth.Identity, id uuid.UUID) (*models.Transaction, error)
	LabHistory(ctx context.Context, actor auth.Identity, filters HistoryFilters, params pagination.Params) (*HistoryPage, error)
	ListOverdue(ctx context.Context, actor auth.Identity) ([]models.Transaction, error)
	ListLabSessions(ctx context.Context, actor auth.Identity) ([]models.Transaction, error)
	GetLabSession(ctx context.Context, actor auth.Identity, id uuid.UUID) (*models.Transaction, error)
	ListTransfers(ctx context.Context, actor auth.Identity, direction TransferDirection) ([]models.Transaction, error)
	GetTransfer(ctx context.Context, actor auth.Identity, id uuid.UUID) (*models.Transaction, error)
	ListFacultyPending(ctx context.Context, actor auth.Identity) ([]models.Transaction, error)
	ListFacultyHistory(ctx context.Context, actor auth.Identity) ([]models.Transaction, error)
	GetForFaculty(ctx context.Context, actor auth.Identity, id uuid.UUID) (*models.Transaction, error)
}

// Params wires the service dependencies.
type Params struct {
	Tx            txRunner
	Repo          Repository
	Ledger        stockLedger
	Assets        assetRegistry
	Notifier      notifier
	Logger        *logger.Logger
	Inventory     config.InventoryConfig
	PublicBaseURL string
	Now           func() time.Time
}

type service struct {
	tx            txRunner
	repo          Repository
	ledger        stockLedger
	assets        assetRegistry
	notifier      notifier
	logg          *logger.Logger
	inventory     config.InventoryConfig
	publicBaseURL string
	now           func() time.Time
}

// NewService builds the transaction service.
func NewService(p Params) (Service, error) {
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Repo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if p.Ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if p.Assets == nil {
		return nil, fmt.Errorf("asset registry required")
	}
	if p.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.Inventory.MaxExtensionMonths <= 0 {
		p.Inventory.MaxExtensionMonths = 2
	}
	if p.Inventory.RaisedHoldTTL <= 0 {
		p.Inventory.RaisedHoldTTL = 24 * time.Hour
	}
	if p.Inventory.ApprovedHoldTTL <= 0 {
		p.Inventory.ApprovedHoldTTL = 48 * time.Hour
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:            p.Tx,
		repo:          p.Repo,
		ledger:        p.Ledger,
		assets:        p.Assets,
		notifier:      p.Notifier,
		logg:          p.Logger,
		inventory:     p.Inventory,
		publicBaseURL: p.PublicBaseURL,
		now:           now,
	}, nil
}

func (s *service) Raise(ctx context.Context, input RaiseInput) (*models.Transaction, error) {
	if err := validateRaise(input, s.now()); err != nil {
		return nil, err
	}
	lines, err := mergeLines(input.Items, true)
	if err != nil {
		return nil, err
	}

	code, err := security.NewReference(regularCodePrefix)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate transaction id")
	}
	token, digest, err := security.NewApprovalToken()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate approval token")
	}

	var (
		created *models.Transaction
		student *models.Student
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// the student row lock serializes concurrent raises by the same student
		student, err = repo.LockStudent(ctx, input.StudentID)
		if err != nil {
			if isNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "student not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load student")
		}
		if !student.IsActive {
			return pkgerrors.New(pkgerrors.CodeForbidden, "student account is inactive")
		}
		open, err := repo.HasOpenForStudent(ctx, student.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check open transactions")
		}
		if open {
			return pkgerrors.New(pkgerrors.CodeConflict, "you already have an active transaction")
		}

		items, err := s.loadItems(ctx, repo, lines)
		if err != nil {
			return err
		}
		for _, line := range lines {
			item := items[line.ItemID]
			if !item.IsActive || !item.IsStudentVisible {
				return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
			}
			if err := s.ledger.ReserveTemp(ctx, tx, line.LabID, line.ItemID, line.Quantity); err != nil {
				return err
			}
		}

		expected := input.ExpectedReturnDate.UTC()
		txn := &models.Transaction{
			TransactionCode:    code,
			Type:               enums.TransactionTypeRegular,
			Status:             enums.TransactionStatusRaised,
			ProjectName:        strPtr(strings.TrimSpace(input.ProjectName)),
			StudentID:          &student.ID,
			StudentRegNo:       &student.RegNo,
			FacultyEmail:       strPtr(normalizeEmail(input.FacultyEmail)),
			FacultyID:          strPtr(strings.TrimSpace(input.FacultyID)),
			ExpectedReturnDate: &expected,
			Approval:           models.FacultyApproval{TokenDigest: &digest},
			Items:              buildLines(lines, items),
		}
		if err := repo.Create(ctx, txn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create transaction")
		}
		created = txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logTransition(ctx, created, "", enums.TransactionStatusRaised)
	s.sendApprovalRequest(ctx, created, student, token)
	return created, nil
}

func (s *service) PreviewByToken(ctx context.Context, token string) (*models.Transaction, error) {
	if strings.TrimSpace(token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invalid or expired approval link")
	}
	txn, err := s.repo.FindByTokenDigest(ctx, security.DigestToken(token))
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invalid or expired approval link")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load transaction")
	}
	if txn.Status != enums.TransactionStatusRaised {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invalid or expired approval link")
	}
	return txn, nil
}

func (s *service) DecideByToken(ctx context.Context, token string, decision enums.Decision, reason string) (*models.Transaction, error) {
	if strings.TrimSpace(token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invalid or expired approval link")
	}
	digest := security.DigestToken(token)

	var (
		result *models.Transaction
		from   enums.TransactionStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		txn, err := repo.LockByTokenDigest(ctx, digest)
		if err != nil {
			if isNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "invalid or expired approval link")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load transaction")
		}
		from = txn.Status
		if err := s.applyDecision(ctx, tx, repo, txn, decision, reason, decidedByFaculty); err != nil {
			return err
		}
		result = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(ctx, result, from, result.Status)
	s.notifyDecision(ctx, result)
	return result, nil
}

func (s *service) DecideAsFaculty(ctx context.Context, actor auth.Identity, id uuid.UUID, decision enums.Decision, reason string) (*models.Transaction, error) {
	faculty, err := s.facultyFor(ctx, actor)
	if err != nil {
		return nil, err
	}

	var (
		result *models.Transaction
		from   enums.TransactionStatus
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		txn, err := repo.LockByID(ctx, id)
		if err != nil {
			if isNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load transaction")
		}
		if txn.Type != enums.TransactionTypeRegular || deref(txn.FacultyEmail) != normalizeEmail(faculty.Email) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		from = txn.Status
		if err := s.applyDecision(ctx, tx, repo, txn, decision, reason, decidedByFaculty); err != nil {
			return err
		}
		result = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(ctx, result, from, result.Status)
	s.notifyDecision(ctx, result)
	return result, nil
}

// applyDecision approves from raised or rejects from raised|approved. The
// approval token is cleared on either outcome.
func (s *service) applyDecision(ctx context.Context, tx *gorm.DB, repo Repository, txn *models.Transaction, decision enums.Decision, reason, decidedBy string) error {
	switch decision {
	case enums.DecisionApproved:
		if txn.Status != enums.TransactionStatusRaised {
			return alreadyFinalized(txn.Status)
		}
	case enums.DecisionRejected:
		if txn.Status != enums.TransactionStatusRaised && txn.Status != enums.TransactionStatusApproved {
			return alreadyFinalized(txn.Status)
		}
		if err := s.releaseHolds(ctx, tx, txn); err != nil {
			return err
		}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "decision must be approved or rejected")
	}

	now := s.now().UTC()
	status := enums.TransactionStatusApproved
	if decision == enums.DecisionRejected {
		status = enums.TransactionStatusRejected
	}
	updates := map[string]any{
		"status":                status,
		"approval_token_digest": nil,
		"approval_decision":     decision,
		"approval_decided_by":   decidedBy,
		"approval_decided_at":   now,
		"approval_reason":       nullableString(reason),
	}
	if err := repo.Update(ctx, txn.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update transaction")
	}

	txn.Status = status
	txn.Approval = models.FacultyApproval{
		Decision:  &decision,
		DecidedBy: &decidedBy,
		DecidedAt: &now,
		Reason:    nullableString(reason),
	}
	return nil
}

// releaseHolds returns every line's temp hold to the ledger.
func (s *service) releaseHolds(ctx context.Context, tx *gorm.DB, txn *models.Transaction) error {
	if txn.Type != enums.TransactionTypeRegular {
		return nil
	}
	for _, line := range txn.Items {
		if err := s.ledger.ReleaseTemp(ctx, tx, line.LabID, line.ItemID, line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) ExtendReturn(ctx context.Context, studentID, id uuid.UUID, newDate time.Time) (*models.Transaction, error) {
	if newDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "new return date is required")
	}
	var result *models.Transaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		txn, err := repo.LockByID(ctx, id)
		if err != nil {
			if isNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load transaction")
		}
		if txn.StudentID == nil || *txn.StudentID != studentID || txn.Type != enums.TransactionTypeRegular {
			return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		if txn.Status != enums.TransactionStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only active transactions can be extended").
				WithDetails(map[string]any{"status": txn.Status})
		}
		if txn.IssuedAt == nil || txn.ExpectedReturnDate == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "transaction has no issue record")
		}
		if !newDate.After(*txn.ExpectedReturnDate) {
			return pkgerrors.New(pkgerrors.CodeValidation, "new return date must be after current return date")
		}
		maxDate := txn.IssuedAt.AddDate(0, s.inventory.MaxExtensionMonths, 0)
		if newDate.After(maxDate) {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("return date cannot exceed %d months from issue date", s.inventory.MaxExtensionMonths)).
				WithDetails(map[string]any{"max_return_date": maxDate.UTC()})
		}

		extended := newDate.UTC()
		if err := repo.Update(ctx, txn.ID, map[string]any{"expected_return_date": extended}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "extend return date")
		}
		txn.ExpectedReturnDate = &extended
		result = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithTransactionID(ctx, result.TransactionCode)
	s.logg.Info(s.logg.WithField(logCtx, "expected_return_date", result.ExpectedReturnDate), "return date extended")
	return result, nil
}

func (s *service) loadItems(ctx context.Context, repo Repository, lines []LineInput) (map[uuid.UUID]models.Item, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ItemID)
	}
	items, err := repo.FindItems(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load items")
	}
	for _, id := range ids {
		if _, ok := items[id]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
	}
	return items, nil
}

func (s *service) facultyFor(ctx context.Context, actor auth.Identity) (*models.Faculty, error) {
	if actor.Role != enums.ActorRoleFaculty {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "faculty access required")
	}
	faculty, err := s.repo.FindFaculty(ctx, actor.UserID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "faculty access required")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load faculty")
	}
	return faculty, nil
}

func (s *service) logTransition(ctx context.Context, txn *models.Transaction, from, to enums.TransactionStatus) {
	logCtx := s.logg.WithTransactionID(ctx, txn.TransactionCode)
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"transaction_type": txn.Type,
		"from_status":      from,
		"to_status":        to,
		"line_count":       len(txn.Items),
	}), "transaction status changed")
}

func (s *service) sendApprovalRequest(ctx context.Context, txn *models.Transaction, student *models.Student, token string) {
	lines := make([]string, 0, len(txn.Items))
	for _, line := range txn.Items {
		lines = append(lines, fmt.Sprintf("%s x %d", line.ItemID, line.Quantity))
	}
	msg, err := notifications.BuildApprovalRequest(notifications.ApprovalRequest{
		FacultyEmail: deref(txn.FacultyEmail),
		Code:         txn.TransactionCode,
		RegNo:        student.RegNo,
		Project:      deref(txn.ProjectName),
		Lines:        lines,
		ReturnDate:   *txn.ExpectedReturnDate,
		Link:         notifications.ApprovalLink(s.publicBaseURL, token),
	})
	if err != nil {
		s.logg.Error(ctx, "render approval email", err)
		return
	}
	s.notifier.Notify(ctx, msg)
}

func (s *service) notifyDecision(ctx context.Context, txn *models.Transaction) {
	if txn.StudentID == nil {
		return
	}
	student, err := s.repo.FindStudent(ctx, *txn.StudentID)
	if err != nil {
		s.logg.Error(s.logg.WithTransactionID(ctx, txn.TransactionCode), "load student for notification", err)
		return
	}
	heading := fmt.Sprintf("Request %s was %s", txn.TransactionCode, txn.Status)
	body := "Your borrow request has been " + string(txn.Status) + "."
	if reason := deref(txn.Approval.Reason); reason != "" {
		body += " Reason: " + reason
	}
	msg, err := notifications.BuildNotice(student.Email, heading, heading, body)
	if err != nil {
		s.logg.Error(ctx, "render decision email", err)
		return
	}
	s.notifier.Notify(ctx, msg)
}

func validateRaise(input RaiseInput, now time.Time) error {
	if input.StudentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "student id required")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "No items selected")
	}
	if strings.TrimSpace(input.ProjectName) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "Project name is required")
	}
	if strings.TrimSpace(input.FacultyEmail) == "" || strings.TrimSpace(input.FacultyID) == "" || input.ExpectedReturnDate.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "Faculty details and return date required")
	}
	if _, err := mail.ParseAddress(input.FacultyEmail); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "faculty email is invalid")
	}
	if !input.ExpectedReturnDate.After(now) {
		return pkgerrors.New(pkgerrors.CodeValidation, "return date must be in the future")
	}
	return nil
}

// mergeLines validates quantities and folds duplicate (lab, item) pairs.
func mergeLines(in []LineInput, requireLab bool) ([]LineInput, error) {
	type key struct{ lab, item uuid.UUID }
	index := make(map[key]int, len(in))
	out := make([]LineInput, 0, len(in))
	for _, line := range in {
		if line.ItemID == uuid.Nil || (requireLab && line.LabID == uuid.Nil) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "each line needs a lab and an item")
		}
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
		}
		k := key{line.LabID, line.ItemID}
		if i, ok := index[k]; ok {
			out[i].Quantity += line.Quantity
			continue
		}
		index[k] = len(out)
		out = append(out, line)
	}
	return out, nil
}

func buildLines(lines []LineInput, items map[uuid.UUID]models.Item) []models.TransactionItem {
	out := make([]models.TransactionItem, len(lines))
	for i, line := range lines {
		out[i] = models.TransactionItem{
			LineNo:       i + 1,
			LabID:        line.LabID,
			ItemID:       line.ItemID,
			TrackingType: items[line.ItemID].TrackingType,
			Quantity:     line.Quantity,
		}
	}
	return out
}

func alreadyFinalized(status enums.TransactionStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "transaction already finalized").
		WithDetails(map[string]any{"status": status})
}

func normalizeEmail(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func strPtr(v string) *string {
	return &v
}

func nullableString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
