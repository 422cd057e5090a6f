package staff

import (
	"net/http"
	"strings"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/middleware"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/responses"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/validators"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/componentrequests"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
	pkgerrors "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/errors"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
)

type componentStatusRequest struct {
	Status       string  `json:"status" validate:"required,oneof=reviewed approved rejected"`
	AdminRemarks *string `json:"admin_remarks" validate:"omitempty,max=2000"`
}

func ListComponentRequests(svc componentrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var status *enums.ComponentRequestStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			s := enums.ComponentRequestStatus(raw)
			switch s {
			case enums.ComponentRequestStatusPending, enums.ComponentRequestStatusReviewed,
				enums.ComponentRequestStatusApproved, enums.ComponentRequestStatusRejected:
				status = &s
			default:
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid status"))
				return
			}
		}
		reqs, err := svc.ListForLab(r.Context(), actor, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, componentrequests.NewViews(reqs))
	}
}

func GetComponentRequest(svc componentrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, err := svc.Get(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, componentrequests.NewView(req))
	}
}

// UpdateComponentRequestStatus reviews, approves or rejects a pending request.
func UpdateComponentRequestStatus(svc componentrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body componentStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseComponentRequestDecision(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}
		updated, err := svc.UpdateStatus(r.Context(), actor, id, status, body.AdminRemarks)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, componentrequests.NewView(updated))
	}
}
