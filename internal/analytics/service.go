package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmexchange-backend/pkg/errors"
	"github.com/angelmondragon/farmexchange-backend/pkg/types"
)

// Service builds the farmer sales dashboard.
type Service interface {
	// Sales returns the actor's completed sales and the market's top demand.
	Sales(ctx context.Context, req SalesRequest) (*SalesReport, error)
}

// SalesRequest selects the reporting window.
type SalesRequest struct {
	Actor  types.Actor
	Period enums.AnalyticsPeriod
	From   *time.Time
	To     *time.Time
}

// PersonalSale aggregates the actor's completed sales of one harvest title.
type PersonalSale struct {
	ItemName      string          `json:"item_name"`
	TotalSales    decimal.Decimal `json:"total_sales"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
}

// MarketDemand compares completed demand for a title with its listed supply.
type MarketDemand struct {
	ItemName string          `json:"item_name"`
	Demand   decimal.Decimal `json:"demand"`
	Supply   decimal.Decimal `json:"supply"`
}

// SalesReport is the dashboard payload.
type SalesReport struct {
	Period   enums.AnalyticsPeriod `json:"period"`
	Window   Window                `json:"window"`
	Personal []PersonalSale        `json:"personal"`
	Market   []MarketDemand        `json:"market"`
}

// amountScale matches numeric(10,2). Sums come back as floats on sqlite and
// are rounded to it before they leave the service.
const amountScale = 2

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds an analytics service over the marketplace tables.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("analytics repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Sales(ctx context.Context, req SalesRequest) (*SalesReport, error) {
	if req.Actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity is required")
	}
	if !req.Actor.IsFarmer() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "sales analytics are available to farmers only")
	}
	if req.Period == "" {
		req.Period = enums.AnalyticsPeriodMonth
	}
	window, err := ResolveWindow(req.Period, req.From, req.To, s.now())
	if err != nil {
		return nil, err
	}

	personal, err := s.repo.PersonalSales(ctx, req.Actor.UserID, window)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to aggregate sales")
	}
	market, err := s.repo.TopDemand(ctx, window, topDemandLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to aggregate demand")
	}

	titles := make([]string, 0, len(market))
	for _, item := range market {
		titles = append(titles, item.ItemName)
	}
	supply, err := s.repo.Supply(ctx, titles)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to aggregate supply")
	}
	for i := range market {
		market[i].Demand = market[i].Demand.Round(amountScale)
		if available, ok := supply[market[i].ItemName]; ok {
			market[i].Supply = available.Round(amountScale)
		} else {
			market[i].Supply = decimal.Zero
		}
	}
	for i := range personal {
		personal[i].TotalSales = personal[i].TotalSales.Round(amountScale)
		personal[i].TotalQuantity = personal[i].TotalQuantity.Round(amountScale)
	}

	if personal == nil {
		personal = []PersonalSale{}
	}
	if market == nil {
		market = []MarketDemand{}
	}
	return &SalesReport{Period: req.Period, Window: window, Personal: personal, Market: market}, nil
}
