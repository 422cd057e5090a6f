package staff

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/middleware"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/responses"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/validators"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/transactions"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/auth"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db/models"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
	pkgerrors "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/errors"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
)

type transferLine struct {
	ItemID   uuid.UUID `json:"item_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"required,gt=0"`
}

type transferRequest struct {
	HoldingLabID       uuid.UUID      `json:"holding_lab_id" validate:"required"`
	TransferType       string         `json:"transfer_type" validate:"required,oneof=temporary permanent"`
	Items              []transferLine `json:"items" validate:"required,min=1,dive"`
	ExpectedReturnDate *string        `json:"expected_return_date"`
	Reason             *string        `json:"reason" validate:"omitempty,max=1000"`
}

type transferDecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
	Reason   string `json:"reason" validate:"required_if=Decision rejected,max=1000"`
}

// CreateTransfer asks the holding lab to lend or hand over stock.
func CreateTransfer(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req transferRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		transferType, err := enums.ParseTransferType(req.TransferType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transfer_type"))
			return
		}

		input := transactions.TransferInput{
			HoldingLabID: req.HoldingLabID,
			TransferType: transferType,
			Reason:       req.Reason,
		}
		for _, line := range req.Items {
			input.Items = append(input.Items, transactions.LineInput{
				LabID:    req.HoldingLabID,
				ItemID:   line.ItemID,
				Quantity: line.Quantity,
			})
		}
		if req.ExpectedReturnDate != nil && *req.ExpectedReturnDate != "" {
			due, err := validators.ParseDueDate("expected_return_date", *req.ExpectedReturnDate)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.ExpectedReturnDate = &due
		}

		txn, err := svc.CreateTransfer(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, transactions.NewView(txn))
	}
}

// ListTransfers accepts ?direction=incoming|outgoing; no direction lists both.
func ListTransfers(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		direction := transactions.TransferDirection(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("direction"))))
		switch direction {
		case transactions.TransferDirectionAny, transactions.TransferDirectionIncoming, transactions.TransferDirectionOutgoing:
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "direction must be incoming or outgoing"))
			return
		}
		txns, err := svc.ListTransfers(r.Context(), actor, direction)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, transactions.NewViews(txns))
	}
}

func GetTransfer(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return transferAction(logg, func(r *http.Request, call transferCall) (*transactions.View, error) {
		txn, err := svc.GetTransfer(r.Context(), call.actor, call.id)
		return viewOf(txn, err)
	})
}

// DecideTransfer is answered by the holding lab. Approval moves stock at once.
func DecideTransfer(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return transferAction(logg, func(r *http.Request, call transferCall) (*transactions.View, error) {
		var req transferDecisionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		decision, err := enums.ParseDecision(req.Decision)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid decision")
		}
		txn, err := svc.DecideTransfer(r.Context(), call.actor, call.id, decision, req.Reason)
		return viewOf(txn, err)
	})
}

func InitiateReturn(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return transferAction(logg, func(r *http.Request, call transferCall) (*transactions.View, error) {
		txn, err := svc.InitiateReturn(r.Context(), call.actor, call.id)
		return viewOf(txn, err)
	})
}

func CompleteReturn(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return transferAction(logg, func(r *http.Request, call transferCall) (*transactions.View, error) {
		txn, err := svc.CompleteReturn(r.Context(), call.actor, call.id)
		return viewOf(txn, err)
	})
}

type transferCall struct {
	actor auth.Identity
	id    uuid.UUID
}

// transferAction resolves the caller and {transferId} before running fn.
func transferAction(logg *logger.Logger, fn func(r *http.Request, call transferCall) (*transactions.View, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "transferId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := fn(r, transferCall{actor: actor, id: id})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func viewOf(txn *models.Transaction, err error) (*transactions.View, error) {
	if err != nil {
		return nil, err
	}
	view := transactions.NewView(txn)
	return &view, nil
}
