package student

import (
	"net/http"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/middleware"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/responses"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/validators"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/transactions"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
)

type raiseRequest struct {
	Items              []transactions.LineInput `json:"items" validate:"required,min=1,dive"`
	FacultyEmail       string                   `json:"faculty_email" validate:"required,email"`
	FacultyID          string                   `json:"faculty_id" validate:"required"`
	ExpectedReturnDate string                   `json:"expected_return_date" validate:"required"`
	ProjectName        string                   `json:"project_name" validate:"required,max=200"`
}

type extendRequest struct {
	NewReturnDate string `json:"new_return_date" validate:"required"`
}

// Raise opens a borrow request and emails the faculty approval link.
func Raise(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req raiseRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		due, err := validators.ParseDueDate("expected_return_date", req.ExpectedReturnDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.Raise(r.Context(), transactions.RaiseInput{
			StudentID:          actor.UserID,
			Items:              req.Items,
			FacultyEmail:       req.FacultyEmail,
			FacultyID:          req.FacultyID,
			ExpectedReturnDate: due,
			ProjectName:        req.ProjectName,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, transactions.NewView(txn))
	}
}

func ListTransactions(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txns, err := svc.ListForStudent(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, transactions.NewViews(txns))
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
		txn, err := svc.GetForStudent(r.Context(), actor.UserID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactions.NewView(txn))
	}
}

// Extend pushes the return date of an active loan.
func Extend(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
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
		var req extendRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		newDate, err := validators.ParseDueDate("new_return_date", req.NewReturnDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txn, err := svc.ExtendReturn(r.Context(), actor.UserID, id, newDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactions.NewView(txn))
	}
}
