package student

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/middleware"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/responses"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/validators"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/componentrequests"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
)

type componentRequestBody struct {
	LabID             uuid.UUID `json:"lab_id" validate:"required"`
	ComponentName     string    `json:"component_name" validate:"required,max=200"`
	Category          *string   `json:"category" validate:"omitempty,max=100"`
	QuantityRequested int       `json:"quantity_requested" validate:"required,gte=1"`
	UseCase           string    `json:"use_case" validate:"required,max=2000"`
	Urgency           string    `json:"urgency" validate:"omitempty,oneof=low medium high"`
}

func CreateComponentRequest(svc componentrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req componentRequestBody
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		created, err := svc.Create(r.Context(), actor.UserID, componentrequests.CreateInput{
			LabID:             req.LabID,
			ComponentName:     req.ComponentName,
			Category:          req.Category,
			QuantityRequested: req.QuantityRequested,
			UseCase:           req.UseCase,
			Urgency:           req.Urgency,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, componentrequests.NewView(created))
	}
}

func ListComponentRequests(svc componentrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reqs, err := svc.ListMine(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, componentrequests.NewViews(reqs))
	}
}
