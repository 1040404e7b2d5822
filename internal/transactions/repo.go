package transactions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/farmexchange-backend/pkg/db/models"
	"github.com/angelmondragon/farmexchange-backend/pkg/enums"
	"github.com/angelmondragon/farmexchange-backend/pkg/pagination"
)

// Repository persists transactions and answers the listing queries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.TransactionStatus) (bool, error)
	List(ctx context.Context, query listQuery) ([]models.Transaction, error)
	Aggregate(ctx context.Context, column string, partyID uuid.UUID) ([]statusAggregate, error)
	ListPendingForSeller(ctx context.Context, sellerID uuid.UUID) ([]models.Transaction, error)
	DeleteByHarvest(ctx context.Context, harvestID uuid.UUID) (int64, error)
}

type listQuery struct {
	column  string
	partyID uuid.UUID
	status  *enums.TransactionStatus
	cursor  *pagination.Cursor
	limit   int
}

type statusAggregate struct {
	Status enums.TransactionStatus
	Count  int64
	Total  decimal.Decimal
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a transactions repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// UpdateStatus moves a transaction only if it is still in the expected
// status; false means another decision already landed.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.TransactionStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) List(ctx context.Context, query listQuery) ([]models.Transaction, error) {
	qb := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where(query.column+" = ?", query.partyID)
	if query.status != nil {
		qb = qb.Where("status = ?", *query.status)
	}
	if query.cursor != nil {
		qb = qb.Where("(transaction_date < ?) OR (transaction_date = ? AND id < ?)", query.cursor.CreatedAt, query.cursor.CreatedAt, query.cursor.ID)
	}

	var rows []models.Transaction
	if err := qb.Order("transaction_date DESC").
		Order("id DESC").
		Limit(query.limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Aggregate(ctx context.Context, column string, partyID uuid.UUID) ([]statusAggregate, error) {
	var rows []statusAggregate
	if err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(total_price), 0) AS total").
		Where(column+" = ?", partyID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListPendingForSeller(ctx context.Context, sellerID uuid.UUID) ([]models.Transaction, error) {
	var rows []models.Transaction
	if err := r.db.WithContext(ctx).
		Where("seller_id = ? AND status = ?", sellerID, enums.TransactionStatusPending).
		Order("transaction_date DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteByHarvest removes every transaction of a harvest whatever its status.
// Reviews keep their rating but lose the link to the removed transaction.
func (r *repository) DeleteByHarvest(ctx context.Context, harvestID uuid.UUID) (int64, error) {
	db := r.db.WithContext(ctx)
	ids := db.Model(&models.Transaction{}).Select("id").Where("harvest_id = ?", harvestID)

	if err := db.Model(&models.Review{}).
		Where("transaction_id IN (?)", ids).
		Update("transaction_id", nil).Error; err != nil {
		return 0, err
	}
	if err := db.Model(&models.StockMovement{}).
		Where("transaction_id IN (?)", ids).
		Update("transaction_id", nil).Error; err != nil {
		return 0, err
	}

	res := db.Where("harvest_id = ?", harvestID).Delete(&models.Transaction{})
	return res.RowsAffected, res.Error
}
