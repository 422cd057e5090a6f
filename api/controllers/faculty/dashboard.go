package faculty

import (
	"net/http"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/middleware"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/responses"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/validators"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/transactions"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
	pkgerrors "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/errors"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
)

type decisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
	Reason   string `json:"reason" validate:"required_if=Decision rejected,max=1000"`
}

// Pending lists raised requests addressed to the faculty member.
func Pending(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txns, err := svc.ListFacultyPending(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, transactions.NewViews(txns))
	}
}

func History(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txns, err := svc.ListFacultyHistory(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, transactions.NewViews(txns))
	}
}

func Detail(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
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
		txn, err := svc.GetForFaculty(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactions.NewView(txn))
	}
}

// Decide approves or rejects from the dashboard, the same transition the
// emailed token performs.
func Decide(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
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
		var req decisionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		decision, err := enums.ParseDecision(req.Decision)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid decision"))
			return
		}
		txn, err := svc.DecideAsFaculty(r.Context(), actor, id, decision, req.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactions.NewView(txn))
	}
}
