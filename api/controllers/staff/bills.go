package staff

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/middleware"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/responses"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/validators"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/bills"
	pkgerrors "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/errors"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
)

const (
	maxBillUpload  = 10 << 20
	multipartSlack = 1 << 20
	billFileField  = "file"
)

// UploadBill accepts multipart form fields title, bill_type, bill_date and file.
func UploadBill(svc bills.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "bill storage is not configured"))
			return
		}
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBillUpload+multipartSlack)
		if err := r.ParseMultipartForm(maxBillUpload); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "bill file exceeds 10MB"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form"))
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		billDate, err := validators.ParseDate("bill_date", r.FormValue("bill_date"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		file, header, err := r.FormFile(billFileField)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "bill file is required"))
			return
		}
		defer file.Close()
		body, err := io.ReadAll(io.LimitReader(file, maxBillUpload+1))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read bill file"))
			return
		}

		bill, err := svc.Upload(r.Context(), actor, bills.UploadInput{
			Title:    r.FormValue("title"),
			BillType: r.FormValue("bill_type"),
			BillDate: billDate,
			Filename: header.Filename,
			Body:     body,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, bills.NewView(bill))
	}
}

// ListBills filters by ?month=YYYY-MM or ?from=&to= (YYYY-MM-DD).
func ListBills(svc bills.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "bill storage is not configured"))
			return
		}
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		q := r.URL.Query()
		rows, err := svc.List(r.Context(), actor, bills.ListFilter{
			Month: q.Get("month"),
			From:  q.Get("from"),
			To:    q.Get("to"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, bills.NewViews(rows))
	}
}

// OpenBill streams the stored document inline.
func OpenBill(svc bills.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "bill storage is not configured"))
			return
		}
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		billID, err := validators.ParseUUIDParam(r, "billId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		doc, err := svc.Open(r.Context(), actor, billID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer doc.Body.Close()

		w.Header().Set("Content-Type", doc.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.Bill.Title+".pdf"))
		if doc.ContentLength > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(doc.ContentLength, 10))
		}
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, doc.Body); err != nil {
			logg.Error(logg.WithField(r.Context(), "bill_id", billID.String()), "stream bill", err)
		}
	}
}
