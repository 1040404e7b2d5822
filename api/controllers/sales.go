package controllers

import (
	"net/http"

	"github.com/angelmondragon/farmexchange-backend/api/responses"
	"github.com/angelmondragon/farmexchange-backend/api/validators"
	"github.com/angelmondragon/farmexchange-backend/internal/analytics"
	"github.com/angelmondragon/farmexchange-backend/internal/marketplace"
	"github.com/angelmondragon/farmexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmexchange-backend/pkg/errors"
	"github.com/angelmondragon/farmexchange-backend/pkg/logger"
)

// SalesAnalytics reports the farmer's own sales and market demand over a
// period preset or a custom from/to range.
func SalesAnalytics(svc marketplace.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		period, err := enums.ParseAnalyticsPeriod(r.URL.Query().Get("period"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid period").WithDetails(map[string]any{"field": "period"}))
			return
		}
		from, err := validators.ParseQueryTime(r, "from")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.ParseQueryTime(r, "to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.SalesAnalytics(r.Context(), analytics.SalesRequest{
			Actor:  actor,
			Period: period,
			From:   from,
			To:     to,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
