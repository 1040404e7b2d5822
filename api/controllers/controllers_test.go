package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/farmexchange-backend/api/middleware"
	"github.com/angelmondragon/farmexchange-backend/internal/analytics"
	"github.com/angelmondragon/farmexchange-backend/internal/harvests"
	"github.com/angelmondragon/farmexchange-backend/internal/marketplace"
	"github.com/angelmondragon/farmexchange-backend/internal/reviews"
	"github.com/angelmondragon/farmexchange-backend/internal/transactions"
	"github.com/angelmondragon/farmexchange-backend/pkg/config"
	"github.com/angelmondragon/farmexchange-backend/pkg/db/models"
	"github.com/angelmondragon/farmexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmexchange-backend/pkg/errors"
	"github.com/angelmondragon/farmexchange-backend/pkg/pagination"
	"github.com/angelmondragon/farmexchange-backend/pkg/types"
)

// stubMarketplace implements marketplace.Service; unset methods panic via the
// nil embedded interface.
type stubMarketplace struct {
	marketplace.Service

	browse   func(marketplace.BrowseInput) (*pagination.Page[models.Harvest], error)
	create   func(types.Actor, harvests.CreateInput) (*models.Harvest, error)
	edit     func(types.Actor, uuid.UUID, harvests.UpdateInput) (*marketplace.EditResult, error)
	purchase func(transactions.PurchaseInput) (*transactions.Result, error)
	approve  func(transactions.DecisionInput) (*transactions.Result, error)
	list     func(transactions.ListInput) (*transactions.ListResult, error)
	review   func(reviews.LeaveReviewInput) (*models.Review, error)
	sales    func(analytics.SalesRequest) (*analytics.SalesReport, error)
}

func (s stubMarketplace) Browse(_ context.Context, in marketplace.BrowseInput) (*pagination.Page[models.Harvest], error) {
	return s.browse(in)
}

func (s stubMarketplace) CreateHarvest(_ context.Context, actor types.Actor, in harvests.CreateInput) (*models.Harvest, error) {
	return s.create(actor, in)
}

func (s stubMarketplace) EditHarvest(_ context.Context, actor types.Actor, id uuid.UUID, in harvests.UpdateInput) (*marketplace.EditResult, error) {
	return s.edit(actor, id, in)
}

func (s stubMarketplace) Purchase(_ context.Context, in transactions.PurchaseInput) (*transactions.Result, error) {
	return s.purchase(in)
}

func (s stubMarketplace) Approve(_ context.Context, in transactions.DecisionInput) (*transactions.Result, error) {
	return s.approve(in)
}

func (s stubMarketplace) ListTransactions(_ context.Context, in transactions.ListInput) (*transactions.ListResult, error) {
	return s.list(in)
}

func (s stubMarketplace) LeaveReview(_ context.Context, in reviews.LeaveReviewInput) (*models.Review, error) {
	return s.review(in)
}

func (s stubMarketplace) SalesAnalytics(_ context.Context, in analytics.SalesRequest) (*analytics.SalesReport, error) {
	return s.sales(in)
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func withActor(req *http.Request, actor types.Actor) *http.Request {
	return req.WithContext(middleware.WithActor(req.Context(), actor))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rc := chi.RouteContext(req.Context())
	if rc == nil {
		rc = chi.NewRouteContext()
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
	}
	rc.URLParams.Add(key, value)
	return req
}

var (
	farmer = types.Actor{UserID: uuid.New(), Role: enums.UserTypeFarmer}
	buyer  = types.Actor{UserID: uuid.New(), Role: enums.UserTypeBuyer}
)

func TestBrowseHarvestsPassesFilters(t *testing.T) {
	var got marketplace.BrowseInput
	svc := stubMarketplace{browse: func(in marketplace.BrowseInput) (*pagination.Page[models.Harvest], error) {
		got = in
		return &pagination.Page[models.Harvest]{Items: []models.Harvest{{Title: "Tomatoes"}}, NextCursor: "next"}, nil
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/harvests?category=vegetables&q=tom&limit=5&cursor=abc", nil)
	rec := httptest.NewRecorder()
	BrowseHarvests(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "vegetables", got.Category)
	assert.Equal(t, "tom", got.Query)
	assert.Equal(t, pagination.Params{Limit: 5, Cursor: "abc"}, got.Pagination)
	assert.Contains(t, string(decodeEnvelope(t, rec).Data), "Tomatoes")
}

func TestBrowseHarvestsRejectsBadLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/harvests?limit=0", nil)
	rec := httptest.NewRecorder()
	BrowseHarvests(stubMarketplace{}, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateHarvest(t *testing.T) {
	svc := stubMarketplace{create: func(actor types.Actor, in harvests.CreateInput) (*models.Harvest, error) {
		assert.Equal(t, farmer, actor)
		assert.True(t, in.Price.Equal(decimal.RequireFromString("45.50")))
		assert.True(t, in.QuantityAvailable.Equal(decimal.NewFromInt(100)))
		return &models.Harvest{ID: uuid.New(), Title: in.Title, Status: enums.HarvestStatusAvailable}, nil
	}}

	body := `{"title":"Carrots","category":"vegetables","price":"45.50","quantity_available":100}`
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/harvests", strings.NewReader(body)), farmer)
	rec := httptest.NewRecorder()
	CreateHarvest(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var data struct {
		Message string         `json:"message"`
		Result  models.Harvest `json:"result"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &data))
	assert.Equal(t, "Harvest listed successfully!", data.Message)
	assert.Equal(t, "Carrots", data.Result.Title)
}

func TestCreateHarvestRequiresPriceAndQuantity(t *testing.T) {
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/harvests", strings.NewReader(`{"title":"Carrots","category":"vegetables"}`)), farmer)
	rec := httptest.NewRecorder()
	CreateHarvest(stubMarketplace{}, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, string(pkgerrors.CodeValidation), env.Error.Code)
	assert.Contains(t, env.Error.Details, "price")
	assert.Contains(t, env.Error.Details, "quantity_available")
}

func TestCreateHarvestWithoutIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/harvests", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	CreateHarvest(stubMarketplace{}, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEditHarvestRestockMessage(t *testing.T) {
	id := uuid.New()
	svc := stubMarketplace{edit: func(actor types.Actor, got uuid.UUID, in harvests.UpdateInput) (*marketplace.EditResult, error) {
		assert.Equal(t, id, got)
		require.NotNil(t, in.QuantityAvailable)
		assert.Nil(t, in.Title)
		return &marketplace.EditResult{Harvest: &models.Harvest{ID: id}, Restocked: true}, nil
	}}

	req := withActor(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"quantity_available":"12.5"}`)), farmer)
	req = withURLParam(req, "harvestId", id.String())
	rec := httptest.NewRecorder()
	EditHarvest(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decodeEnvelope(t, rec).Data), "restocked successfully")
}

func TestEditHarvestRejectsBadID(t *testing.T) {
	req := withActor(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{}`)), farmer)
	req = withURLParam(req, "harvestId", "nope")
	rec := httptest.NewRecorder()
	EditHarvest(stubMarketplace{}, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPurchaseHarvest(t *testing.T) {
	harvestID := uuid.New()
	svc := stubMarketplace{purchase: func(in transactions.PurchaseInput) (*transactions.Result, error) {
		assert.Equal(t, buyer, in.Actor)
		assert.Equal(t, harvestID, in.HarvestID)
		assert.True(t, in.Quantity.Equal(decimal.NewFromInt(3)))
		assert.Equal(t, "deliver friday", in.Notes)
		return &transactions.Result{Transaction: &models.Transaction{Status: enums.TransactionStatusPending}}, nil
	}}

	req := withActor(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":3,"notes":"deliver friday"}`)), buyer)
	req = withURLParam(req, "harvestId", harvestID.String())
	rec := httptest.NewRecorder()
	PurchaseHarvest(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, string(decodeEnvelope(t, rec).Data), "Stock reserved")
}

func TestPurchaseHarvestInsufficientStock(t *testing.T) {
	svc := stubMarketplace{purchase: func(transactions.PurchaseInput) (*transactions.Result, error) {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "requested quantity exceeds available stock").
			WithDetails(map[string]any{"available": "5"})
	}}

	req := withActor(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":6}`)), buyer)
	req = withURLParam(req, "harvestId", uuid.NewString())
	rec := httptest.NewRecorder()
	PurchaseHarvest(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, string(pkgerrors.CodeInsufficientStock), env.Error.Code)
	assert.Equal(t, "5", env.Error.Details["available"])
}

func TestApproveTransactionStateConflict(t *testing.T) {
	svc := stubMarketplace{approve: func(in transactions.DecisionInput) (*transactions.Result, error) {
		assert.Equal(t, farmer, in.Actor)
		return nil, pkgerrors.New(pkgerrors.CodeInvalidStateTransition, "transaction is not pending")
	}}

	req := withActor(httptest.NewRequest(http.MethodPost, "/", nil), farmer)
	req = withURLParam(req, "transactionId", uuid.NewString())
	rec := httptest.NewRecorder()
	ApproveTransaction(svc, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestListTransactionsParsesFilters(t *testing.T) {
	var got transactions.ListInput
	svc := stubMarketplace{list: func(in transactions.ListInput) (*transactions.ListResult, error) {
		got = in
		return &transactions.ListResult{Stats: transactions.Stats{Total: 3, Revenue: decimal.NewFromInt(12)}}, nil
	}}

	req := withActor(httptest.NewRequest(http.MethodGet, "/?view=Seller&status=pending", nil), farmer)
	rec := httptest.NewRecorder()
	ListTransactions(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, transactions.ViewSeller, got.View)
	require.NotNil(t, got.Status)
	assert.Equal(t, enums.TransactionStatusPending, *got.Status)
	assert.Equal(t, pagination.DefaultLimit, got.Pagination.Limit)
}

func TestListTransactionsRejectsUnknownFilters(t *testing.T) {
	for _, query := range []string{"?view=admin", "?status=shipped"} {
		req := withActor(httptest.NewRequest(http.MethodGet, "/"+query, nil), buyer)
		rec := httptest.NewRecorder()
		ListTransactions(stubMarketplace{}, nil).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestLeaveReviewValidatesRating(t *testing.T) {
	req := withActor(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"rating":6}`)), buyer)
	req = withURLParam(req, "transactionId", uuid.NewString())
	rec := httptest.NewRecorder()
	LeaveReview(stubMarketplace{}, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeaveReviewDuplicate(t *testing.T) {
	svc := stubMarketplace{review: func(in reviews.LeaveReviewInput) (*models.Review, error) {
		assert.Equal(t, 4, in.Rating)
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "transaction already reviewed")
	}}
	req := withActor(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"rating":4,"comment":"sweet"}`)), buyer)
	req = withURLParam(req, "transactionId", uuid.NewString())
	rec := httptest.NewRecorder()
	LeaveReview(svc, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSalesAnalyticsParsesWindow(t *testing.T) {
	var got analytics.SalesRequest
	svc := stubMarketplace{sales: func(in analytics.SalesRequest) (*analytics.SalesReport, error) {
		got = in
		return &analytics.SalesReport{Period: in.Period}, nil
	}}

	req := withActor(httptest.NewRequest(http.MethodGet, "/?period=custom&from=2024-01-01&to=2024-01-31", nil), farmer)
	rec := httptest.NewRecorder()
	SalesAnalytics(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, enums.AnalyticsPeriodCustom, got.Period)
	require.NotNil(t, got.From)
	require.NotNil(t, got.To)
	assert.Equal(t, 31, got.To.Day())
}

func TestSalesAnalyticsRejectsUnknownPeriod(t *testing.T) {
	req := withActor(httptest.NewRequest(http.MethodGet, "/?period=decade", nil), farmer)
	rec := httptest.NewRecorder()
	SalesAnalytics(stubMarketplace{}, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	rec := httptest.NewRecorder()
	HealthReady(cfg, nil,
		Dependency{Name: "database", Pinger: pingerFunc(func(context.Context) error { return nil })},
		Dependency{Name: "redis"},
	).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-FarmExchange-Env"))
	assert.Contains(t, string(decodeEnvelope(t, rec).Data), `"redis":"disabled"`)

	rec = httptest.NewRecorder()
	HealthReady(cfg, nil,
		Dependency{Name: "database", Pinger: pingerFunc(func(context.Context) error { return errors.New("down") })},
	).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
