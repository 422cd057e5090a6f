package approvals

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/responses"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/validators"
	internalapprovals "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/approvals"
	pkgerrors "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/errors"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
)

type rejectRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// Preview renders the request behind an emailed approval token.
func Preview(svc internalapprovals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := tokenParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.Preview(r.Context(), token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

func Approve(svc internalapprovals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := tokenParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.Approve(r.Context(), token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

func Reject(svc internalapprovals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := tokenParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req rejectRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.Reject(r.Context(), token, req.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

func tokenParam(r *http.Request) (string, error) {
	token := strings.TrimSpace(chi.URLParam(r, "token"))
	if token == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "approval token is required")
	}
	return token, nil
}
