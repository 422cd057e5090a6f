package staff

import (
	"net/http"
	"strings"
	"time"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/middleware"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/responses"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/validators"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/transactions"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
	pkgerrors "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/errors"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/pagination"
)

type returnRequest struct {
	Items       []transactions.ReturnLine `json:"items" validate:"required,min=1,dive"`
	DamageNotes *string                   `json:"damage_notes" validate:"omitempty,max=2000"`
}

// History pages through every transaction touching the caller's lab.
func History(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters, err := buildHistoryFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		page, err := svc.LabHistory(r.Context(), actor, filters, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactions.NewPageView(page))
	}
}

func GetTransaction(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "transactionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txn, err := svc.Get(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactions.NewView(txn))
	}
}

// Activate hands approved stock to the student.
func Activate(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "transactionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txn, err := svc.Activate(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactions.NewView(txn))
	}
}

// Return closes a loan or lab session with per-line returned and damaged counts.
func Return(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "transactionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req returnRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txn, err := svc.ProcessReturn(r.Context(), actor, id, transactions.ReturnInput{
			Lines:       req.Items,
			DamageNotes: req.DamageNotes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactions.NewView(txn))
	}
}

func Overdue(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txns, err := svc.ListOverdue(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, transactions.NewViews(txns))
	}
}

func buildHistoryFilters(r *http.Request) (transactions.HistoryFilters, error) {
	q := r.URL.Query()
	filters := transactions.HistoryFilters{
		TransactionCode: q.Get("transaction_id"),
		StudentRegNo:    q.Get("reg_no"),
		FacultyEmail:    q.Get("faculty_email"),
		FacultyID:       q.Get("faculty_id"),
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := enums.ParseTransactionStatus(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		filters.Status = &status
	}
	if raw := strings.TrimSpace(q.Get("type")); raw != "" {
		txnType, err := enums.ParseTransactionType(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type")
		}
		filters.Type = &txnType
	}
	from, err := validators.ParseQueryDate(r, "from")
	if err != nil {
		return filters, err
	}
	to, err := validators.ParseQueryDate(r, "to")
	if err != nil {
		return filters, err
	}
	if to != nil {
		end := to.Add(24*time.Hour - time.Nanosecond)
		to = &end
	}
	if from != nil && to != nil && from.After(*to) {
		return filters, pkgerrors.New(pkgerrors.CodeValidation, "from must not be after to")
	}
	filters.From = from
	filters.To = to
	return filters, nil
}
