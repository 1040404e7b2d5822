package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/farmexchange-backend/pkg/db/models"
	"github.com/angelmondragon/farmexchange-backend/pkg/enums"
)

// Repository manages the stock columns of harvests and their movement history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockHarvest(ctx context.Context, harvestID uuid.UUID) (*models.Harvest, error)
	UpdateStock(ctx context.Context, harvestID uuid.UUID, version int64, quantity decimal.Decimal, status enums.HarvestStatus) (bool, error)
	RecordMovement(ctx context.Context, movement *models.StockMovement) error
	ListMovements(ctx context.Context, harvestID uuid.UUID) ([]models.StockMovement, error)
	DeleteMovements(ctx context.Context, harvestID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// LockHarvest reads the harvest row with FOR UPDATE so concurrent ledger
// writers on Postgres queue behind the current transaction.
func (r *repository) LockHarvest(ctx context.Context, harvestID uuid.UUID) (*models.Harvest, error) {
	var harvest models.Harvest
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", harvestID).
		First(&harvest).Error; err != nil {
		return nil, err
	}
	return &harvest, nil
}

// UpdateStock writes quantity and status only if the row still carries the
// version read under lock. It reports false when another writer got there
// first.
func (r *repository) UpdateStock(ctx context.Context, harvestID uuid.UUID, version int64, quantity decimal.Decimal, status enums.HarvestStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Harvest{}).
		Where("id = ? AND version = ?", harvestID, version).
		Updates(map[string]any{
			"quantity_available": quantity,
			"status":             status,
			"version":            gorm.Expr("version + 1"),
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) RecordMovement(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListMovements(ctx context.Context, harvestID uuid.UUID) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	if err := r.db.WithContext(ctx).
		Where("harvest_id = ?", harvestID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

func (r *repository) DeleteMovements(ctx context.Context, harvestID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("harvest_id = ?", harvestID).
		Delete(&models.StockMovement{}).Error
}
