package staff

import (
	"net/http"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/middleware"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/responses"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/validators"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/transactions"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
)

type labSessionRequest struct {
	StudentRegNo       string                   `json:"student_reg_no" validate:"required,max=32"`
	LabSlot            string                   `json:"lab_slot" validate:"required,max=64"`
	Items              []transactions.LineInput `json:"items" validate:"required,min=1,dive"`
	ExpectedReturnDate *string                  `json:"expected_return_date"`
}

// IssueLabSession hands stock straight to a student working in the lab.
func IssueLabSession(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req labSessionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := transactions.LabSessionInput{
			StudentRegNo: req.StudentRegNo,
			LabSlot:      req.LabSlot,
			Items:        req.Items,
		}
		if req.ExpectedReturnDate != nil && *req.ExpectedReturnDate != "" {
			due, err := validators.ParseDueDate("expected_return_date", *req.ExpectedReturnDate)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.ExpectedReturnDate = &due
		}

		txn, err := svc.IssueLabSession(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, transactions.NewView(txn))
	}
}

func ListLabSessions(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txns, err := svc.ListLabSessions(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, transactions.NewViews(txns))
	}
}

func GetLabSession(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txn, err := svc.GetLabSession(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactions.NewView(txn))
	}
}
