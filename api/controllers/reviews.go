package controllers

import (
	"net/http"

	"github.com/angelmondragon/farmexchange-backend/api/responses"
	"github.com/angelmondragon/farmexchange-backend/api/validators"
	"github.com/angelmondragon/farmexchange-backend/internal/marketplace"
	"github.com/angelmondragon/farmexchange-backend/internal/reviews"
	"github.com/angelmondragon/farmexchange-backend/pkg/logger"
)

type leaveReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

func LeaveReview(svc marketplace.Service, logg *logger.Logger) http.HandlerFunc {
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
		var payload leaveReviewRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		review, err := svc.LeaveReview(r.Context(), reviews.LeaveReviewInput{
			Actor:         actor,
			TransactionID: id,
			Rating:        payload.Rating,
			Comment:       payload.Comment,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, mutationResponse{Message: "Thanks for reviewing this order!", Result: review})
	}
}

func SellerReviews(svc marketplace.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, err := validators.ParseURLUUID(r, "sellerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := paginationFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.SellerReviews(r.Context(), sellerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
