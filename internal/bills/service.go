package bills

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/auth"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db/models"
	pkgerrors "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/errors"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
	blob "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/storage/s3"
)

const (
	pdfContentType = "application/pdf"
	maxBillBytes   = 10 << 20
	monthLayout    = "2006-01"
	dateLayout     = "2006-01-02"
)

type blobStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
	Get(ctx context.Context, key string) (*blob.Object, error)
}

// UploadInput describes one bill document.
type UploadInput struct {
	Title    string
	BillType string
	BillDate time.Time
	Filename string
	Body     []byte
}

// ListFilter selects bills by calendar month (YYYY-MM) or by an inclusive
// from/to date range (YYYY-MM-DD). The range wins when both are set.
type ListFilter struct {
	Month string
	From  string
	To    string
}

// Document is an open bill stream. Callers must close Body.
type Document struct {
	Bill          models.Bill
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

type Service interface {
	Upload(ctx context.Context, actor auth.Identity, input UploadInput) (*models.Bill, error)
	List(ctx context.Context, actor auth.Identity, filter ListFilter) ([]models.Bill, error)
	Open(ctx context.Context, actor auth.Identity, billID uuid.UUID) (*Document, error)
}

type service struct {
	repo  Repository
	store blobStore
	logg  *logger.Logger
	now   func() time.Time
}

func NewService(repo Repository, store blobStore, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("bill repository required")
	}
	if store == nil {
		return nil, fmt.Errorf("blob store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, store: store, logg: logg, now: time.Now}, nil
}

func (s *service) Upload(ctx context.Context, actor auth.Identity, input UploadInput) (*models.Bill, error) {
	labID, err := labOf(actor)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	filename := sanitizeFilename(input.Filename)
	if title == "" || input.BillDate.IsZero() || filename == "" || len(input.Body) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title, bill date and file are required")
	}
	if len(input.Body) > maxBillBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bill file too large").
			WithDetails(map[string]any{"max_bytes": maxBillBytes})
	}
	if detected := mimetype.Detect(input.Body); !detected.Is(pdfContentType) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bill must be a pdf").
			WithDetails(map[string]any{"detected": detected.String()})
	}

	key := fmt.Sprintf("bills/%s/%d-%s", labID, s.now().UnixNano(), filename)
	url, err := s.store.Put(ctx, key, pdfContentType, input.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store bill file")
	}

	bill := &models.Bill{
		LabID:      labID,
		Title:      title,
		BillType:   strings.TrimSpace(input.BillType),
		BillDate:   input.BillDate.UTC(),
		StorageKey: key,
		FileURL:    url,
		UploadedBy: actor.UserID,
	}
	if err := s.repo.Create(ctx, bill); err != nil {
		// the object stays behind; keys are unique so it is never reused
		s.logg.Error(s.logg.WithField(ctx, "storage_key", key), "bill row insert failed after upload", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create bill")
	}

	logCtx := s.logg.WithFields(s.logg.WithLabID(ctx, labID.String()), map[string]any{
		"bill_id":     bill.ID.String(),
		"storage_key": key,
	})
	s.logg.Info(logCtx, "bill uploaded")
	return bill, nil
}

func (s *service) List(ctx context.Context, actor auth.Identity, filter ListFilter) ([]models.Bill, error) {
	labID, err := labOf(actor)
	if err != nil {
		return nil, err
	}
	window, err := parseWindow(filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListForLab(ctx, labID, window)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list bills")
	}
	return rows, nil
}

func (s *service) Open(ctx context.Context, actor auth.Identity, billID uuid.UUID) (*Document, error) {
	labID, err := labOf(actor)
	if err != nil {
		return nil, err
	}
	bill, err := s.repo.FindForLab(ctx, labID, billID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bill not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load bill")
	}
	obj, err := s.store.Get(ctx, bill.StorageKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open bill file")
	}
	contentType := obj.ContentType
	if contentType == "" {
		contentType = pdfContentType
	}
	return &Document{Bill: *bill, Body: obj.Body, ContentType: contentType, ContentLength: obj.ContentLength}, nil
}

func parseWindow(filter ListFilter) (DateWindow, error) {
	from := strings.TrimSpace(filter.From)
	to := strings.TrimSpace(filter.To)
	if from != "" && to != "" {
		start, err := time.Parse(dateLayout, from)
		if err != nil {
			return DateWindow{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "from must be YYYY-MM-DD")
		}
		end, err := time.Parse(dateLayout, to)
		if err != nil {
			return DateWindow{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "to must be YYYY-MM-DD")
		}
		if end.Before(start) {
			return DateWindow{}, pkgerrors.New(pkgerrors.CodeValidation, "to must not be before from")
		}
		return DateWindow{From: start, Before: end.AddDate(0, 0, 1)}, nil
	}
	if month := strings.TrimSpace(filter.Month); month != "" {
		start, err := time.Parse(monthLayout, month)
		if err != nil {
			return DateWindow{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "month must be YYYY-MM")
		}
		return DateWindow{From: start, Before: start.AddDate(0, 1, 0)}, nil
	}
	return DateWindow{}, nil
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return strings.ReplaceAll(name, " ", "_")
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
