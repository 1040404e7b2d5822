package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/farmexchange-backend/api/middleware"
	"github.com/angelmondragon/farmexchange-backend/api/validators"
	pkgerrors "github.com/angelmondragon/farmexchange-backend/pkg/errors"
	"github.com/angelmondragon/farmexchange-backend/pkg/pagination"
	"github.com/angelmondragon/farmexchange-backend/pkg/types"
)

// mutationResponse pairs an updated resource with a message for the user.
type mutationResponse struct {
	Message string `json:"message"`
	Result  any    `json:"result"`
}

func actorFrom(r *http.Request) (types.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return types.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity is required")
	}
	return actor, nil
}

func paginationFrom(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}
