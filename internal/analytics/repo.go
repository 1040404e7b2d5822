package analytics

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmexchange-backend/pkg/db/models"
	"github.com/angelmondragon/farmexchange-backend/pkg/enums"
)

const topDemandLimit = 10

// Repository runs the sales aggregates over transactions and harvests.
type Repository interface {
	PersonalSales(ctx context.Context, sellerID uuid.UUID, window Window) ([]PersonalSale, error)
	TopDemand(ctx context.Context, window Window, limit int) ([]MarketDemand, error)
	Supply(ctx context.Context, titles []string) (map[string]decimal.Decimal, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an analytics repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) completedIn(ctx context.Context, window Window) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Joins("JOIN harvests ON harvests.id = transactions.harvest_id").
		Where("transactions.status = ?", enums.TransactionStatusCompleted).
		Where("transactions.transaction_date >= ? AND transactions.transaction_date <= ?", window.Start, window.End)
}

func (r *repository) PersonalSales(ctx context.Context, sellerID uuid.UUID, window Window) ([]PersonalSale, error) {
	var rows []PersonalSale
	if err := r.completedIn(ctx, window).
		Select("harvests.title AS item_name, SUM(transactions.total_price) AS total_sales, SUM(transactions.quantity) AS total_quantity").
		Where("transactions.seller_id = ?", sellerID).
		Group("harvests.title").
		Order("total_sales DESC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) TopDemand(ctx context.Context, window Window, limit int) ([]MarketDemand, error) {
	var rows []MarketDemand
	if err := r.completedIn(ctx, window).
		Select("harvests.title AS item_name, SUM(transactions.quantity) AS demand").
		Group("harvests.title").
		Order("demand DESC").
		Order("item_name ASC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Supply(ctx context.Context, titles []string) (map[string]decimal.Decimal, error) {
	supply := make(map[string]decimal.Decimal, len(titles))
	if len(titles) == 0 {
		return supply, nil
	}
	var rows []struct {
		Title string
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Harvest{}).
		Select("title, SUM(quantity_available) AS total").
		Where("title IN ? AND status = ?", titles, enums.HarvestStatusAvailable).
		Group("title").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		supply[row.Title] = row.Total
	}
	return supply, nil
}
