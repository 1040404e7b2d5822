package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmexchange-backend/api/responses"
	"github.com/angelmondragon/farmexchange-backend/api/validators"
	"github.com/angelmondragon/farmexchange-backend/internal/marketplace"
	"github.com/angelmondragon/farmexchange-backend/internal/transactions"
	"github.com/angelmondragon/farmexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmexchange-backend/pkg/errors"
	"github.com/angelmondragon/farmexchange-backend/pkg/logger"
)

type purchaseRequest struct {
	Quantity *decimal.Decimal `json:"quantity" validate:"required"`
	Notes    string           `json:"notes" validate:"max=1000"`
}

// PurchaseHarvest reserves stock for the caller and opens a pending order.
func PurchaseHarvest(svc marketplace.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		harvestID, err := validators.ParseURLUUID(r, "harvestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload purchaseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Purchase(r.Context(), transactions.PurchaseInput{
			Actor:     actor,
			HarvestID: harvestID,
			Quantity:  *payload.Quantity,
			Notes:     payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, mutationResponse{Message: "Order placed! Stock reserved waiting for approval.", Result: result})
	}
}

type decideFunc func(context.Context, transactions.DecisionInput) (*transactions.Result, error)

func decisionHandler(decide decideFunc, message string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseURLUUID(r, "transactionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := decide(r.Context(), transactions.DecisionInput{Actor: actor, TransactionID: id})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, mutationResponse{Message: message, Result: result})
	}
}

func ApproveTransaction(svc marketplace.Service, logg *logger.Logger) http.HandlerFunc {
	return decisionHandler(svc.Approve, "Order approved successfully!", logg)
}

func RejectTransaction(svc marketplace.Service, logg *logger.Logger) http.HandlerFunc {
	return decisionHandler(svc.Reject, "Order rejected. Stock returned to inventory.", logg)
}

func CancelTransaction(svc marketplace.Service, logg *logger.Logger) http.HandlerFunc {
	return decisionHandler(svc.Cancel, "Order cancelled. Stock returned to inventory.", logg)
}

func GetTransaction(svc marketplace.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseURLUUID(r, "transactionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txn, err := svc.GetTransaction(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}

// ListTransactions pages through the caller's purchases or sales together
// with summary stats. view and status are optional query filters.
func ListTransactions(svc marketplace.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := paginationFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := transactions.ListInput{Actor: actor, Pagination: params}

		query := r.URL.Query()
		switch view := transactions.View(strings.ToLower(strings.TrimSpace(query.Get("view")))); view {
		case "":
		case transactions.ViewBuyer, transactions.ViewSeller:
			input.View = view
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "view must be buyer or seller").WithDetails(map[string]any{"field": "view"}))
			return
		}
		if raw := strings.TrimSpace(query.Get("status")); raw != "" {
			status, err := enums.ParseTransactionStatus(strings.ToLower(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter").WithDetails(map[string]any{"field": "status"}))
				return
			}
			input.Status = &status
		}

		result, err := svc.ListTransactions(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
