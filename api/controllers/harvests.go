package controllers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmexchange-backend/api/responses"
	"github.com/angelmondragon/farmexchange-backend/api/validators"
	"github.com/angelmondragon/farmexchange-backend/internal/harvests"
	"github.com/angelmondragon/farmexchange-backend/internal/marketplace"
	"github.com/angelmondragon/farmexchange-backend/pkg/logger"
)

type createHarvestRequest struct {
	Title             string           `json:"title" validate:"required,max=200"`
	Description       *string          `json:"description" validate:"omitempty,max=2000"`
	Category          string           `json:"category" validate:"required,max=50"`
	Price             *decimal.Decimal `json:"price" validate:"required"`
	Unit              string           `json:"unit" validate:"omitempty,max=20"`
	QuantityAvailable *decimal.Decimal `json:"quantity_available" validate:"required"`
	ImageURL          *string          `json:"image_url" validate:"omitempty,max=500"`
	HarvestDate       *time.Time       `json:"harvest_date"`
}

func (r createHarvestRequest) toInput() harvests.CreateInput {
	return harvests.CreateInput{
		Title:             r.Title,
		Description:       r.Description,
		Category:          r.Category,
		Price:             *r.Price,
		Unit:              r.Unit,
		QuantityAvailable: *r.QuantityAvailable,
		ImageURL:          r.ImageURL,
		HarvestDate:       r.HarvestDate,
	}
}

type updateHarvestRequest struct {
	Title             *string          `json:"title" validate:"omitempty,max=200"`
	Description       *string          `json:"description" validate:"omitempty,max=2000"`
	Category          *string          `json:"category" validate:"omitempty,max=50"`
	Price             *decimal.Decimal `json:"price"`
	Unit              *string          `json:"unit" validate:"omitempty,max=20"`
	QuantityAvailable *decimal.Decimal `json:"quantity_available"`
	ImageURL          *string          `json:"image_url" validate:"omitempty,max=500"`
	HarvestDate       *time.Time       `json:"harvest_date"`
}

func (r updateHarvestRequest) toInput() harvests.UpdateInput {
	return harvests.UpdateInput{
		Title:             r.Title,
		Description:       r.Description,
		Category:          r.Category,
		Price:             r.Price,
		Unit:              r.Unit,
		QuantityAvailable: r.QuantityAvailable,
		ImageURL:          r.ImageURL,
		HarvestDate:       r.HarvestDate,
	}
}

// BrowseHarvests lists in-stock harvests, optionally filtered by category and
// a free text query.
func BrowseHarvests(svc marketplace.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := paginationFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query := r.URL.Query()
		page, err := svc.Browse(r.Context(), marketplace.BrowseInput{
			Category:   query.Get("category"),
			Query:      query.Get("q"),
			Pagination: params,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func GetHarvest(svc marketplace.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseURLUUID(r, "harvestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		harvest, err := svc.GetHarvest(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, harvest)
	}
}

// HarvestMovements returns the stock movement history to the owner.
func HarvestMovements(svc marketplace.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseURLUUID(r, "harvestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		movements, err := svc.HarvestHistory(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, movements)
	}
}

func CreateHarvest(svc marketplace.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload createHarvestRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		harvest, err := svc.CreateHarvest(r.Context(), actor, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, mutationResponse{Message: "Harvest listed successfully!", Result: harvest})
	}
}

func EditHarvest(svc marketplace.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseURLUUID(r, "harvestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateHarvestRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.EditHarvest(r.Context(), actor, id, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		msg := "Harvest updated successfully!"
		if result.Restocked {
			msg = "Harvest restocked successfully! It will now appear in buyers' browse listings."
		}
		responses.WriteSuccess(w, mutationResponse{Message: msg, Result: result})
	}
}

func DeleteHarvest(svc marketplace.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseURLUUID(r, "harvestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.DeleteHarvest(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, mutationResponse{Message: "Harvest deleted along with its orders.", Result: result})
	}
}

// ManageInventory is the farmer's dashboard: owned listings after a status
// resync plus pending incoming orders.
func ManageInventory(svc marketplace.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		inventory, err := svc.ManageInventory(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, inventory)
	}
}
