package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmexchange-backend/pkg/db/models"
	"github.com/angelmondragon/farmexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmexchange-backend/pkg/errors"
)

// QuantityScale is the number of decimal places stored for stock quantities.
const QuantityScale = 2

// MaxAmount is the largest value a numeric(10,2) column holds. Quantities,
// prices and transaction totals above it are rejected before any write.
var MaxAmount = decimal.RequireFromString("99999999.99")

// Binder runs under the harvest row lock after the stock check has passed.
// It returns the transaction the reservation is recorded against.
type Binder func(locked *models.Harvest) (uuid.UUID, error)

// Service is the authoritative writer of harvest stock. Every method accepts
// the caller's transaction; passing nil runs the operation in its own
// transaction.
type Service interface {
	Reserve(ctx context.Context, tx *gorm.DB, harvestID, transactionID uuid.UUID, quantity decimal.Decimal) (*models.Harvest, error)
	ReserveFor(ctx context.Context, tx *gorm.DB, harvestID uuid.UUID, quantity decimal.Decimal, bind Binder) (*models.Harvest, error)
	Release(ctx context.Context, tx *gorm.DB, harvestID, transactionID uuid.UUID, quantity decimal.Decimal) (*models.Harvest, error)
	Finalize(ctx context.Context, tx *gorm.DB, harvestID, transactionID uuid.UUID) (*models.Harvest, error)
	Resync(ctx context.Context, tx *gorm.DB, harvestID uuid.UUID) (*models.Harvest, error)
	Adjust(ctx context.Context, tx *gorm.DB, harvestID uuid.UUID, quantity decimal.Decimal) (*AdjustResult, error)
	History(ctx context.Context, harvestID uuid.UUID) ([]models.StockMovement, error)
	DeleteHistory(ctx context.Context, tx *gorm.DB, harvestID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// AdjustResult reports the outcome of setting an absolute quantity.
type AdjustResult struct {
	Harvest   *models.Harvest
	Restocked bool
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

// DeriveStatus is the single source of truth for the status a quantity implies.
func DeriveStatus(quantity decimal.Decimal) enums.HarvestStatus {
	if quantity.IsPositive() {
		return enums.HarvestStatusAvailable
	}
	return enums.HarvestStatusSoldOut
}

// ValidateQuantity rejects non-positive quantities, those finer than the
// stored scale and those the column cannot hold.
func ValidateQuantity(quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be greater than zero")
	}
	if !quantity.Equal(quantity.Round(QuantityScale)) {
		return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity supports at most two decimal places")
	}
	if quantity.GreaterThan(MaxAmount) {
		return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity exceeds the maximum of "+MaxAmount.StringFixed(QuantityScale))
	}
	return nil
}

func (s *service) Reserve(ctx context.Context, tx *gorm.DB, harvestID, transactionID uuid.UUID, quantity decimal.Decimal) (*models.Harvest, error) {
	return s.ReserveFor(ctx, tx, harvestID, quantity, func(*models.Harvest) (uuid.UUID, error) {
		return transactionID, nil
	})
}

// ReserveFor takes quantity out of stock and lets bind create the owning
// transaction from the locked row before the movement is written.
func (s *service) ReserveFor(ctx context.Context, tx *gorm.DB, harvestID uuid.UUID, quantity decimal.Decimal, bind Binder) (*models.Harvest, error) {
	if err := ValidateQuantity(quantity); err != nil {
		return nil, err
	}
	op := operation{
		kind: enums.StockMovementReserve,
		bind: bind,
		next: func(current decimal.Decimal) (decimal.Decimal, error) {
			if quantity.GreaterThan(current) {
				return current, pkgerrors.New(pkgerrors.CodeInsufficientStock, "requested quantity exceeds available stock").
					WithDetails(map[string]any{
						"requested": quantity.String(),
						"available": current.String(),
					})
			}
			return current.Sub(quantity), nil
		},
	}
	return s.run(ctx, tx, harvestID, op)
}

func (s *service) Release(ctx context.Context, tx *gorm.DB, harvestID, transactionID uuid.UUID, quantity decimal.Decimal) (*models.Harvest, error) {
	if err := ValidateQuantity(quantity); err != nil {
		return nil, err
	}
	op := operation{
		kind:          enums.StockMovementRelease,
		transactionID: optionalID(transactionID),
		next: func(current decimal.Decimal) (decimal.Decimal, error) {
			return current.Add(quantity), nil
		},
	}
	return s.run(ctx, tx, harvestID, op)
}

func (s *service) Finalize(ctx context.Context, tx *gorm.DB, harvestID, transactionID uuid.UUID) (*models.Harvest, error) {
	op := operation{
		kind:          enums.StockMovementFinalize,
		transactionID: optionalID(transactionID),
		next:          unchanged,
	}
	return s.run(ctx, tx, harvestID, op)
}

func (s *service) Resync(ctx context.Context, tx *gorm.DB, harvestID uuid.UUID) (*models.Harvest, error) {
	op := operation{
		kind:        enums.StockMovementResync,
		next:        unchanged,
		skipIfClean: true,
	}
	return s.run(ctx, tx, harvestID, op)
}

func (s *service) Adjust(ctx context.Context, tx *gorm.DB, harvestID uuid.UUID, quantity decimal.Decimal) (*AdjustResult, error) {
	if quantity.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity cannot be negative")
	}
	if !quantity.Equal(quantity.Round(QuantityScale)) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity supports at most two decimal places")
	}
	if quantity.GreaterThan(MaxAmount) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity exceeds the maximum of "+MaxAmount.StringFixed(QuantityScale))
	}

	var restocked bool
	op := operation{
		kind:        enums.StockMovementAdjust,
		skipIfClean: true,
		next: func(current decimal.Decimal) (decimal.Decimal, error) {
			restocked = !current.IsPositive() && quantity.GreaterThan(current)
			return quantity, nil
		},
	}
	harvest, err := s.run(ctx, tx, harvestID, op)
	if err != nil {
		return nil, err
	}
	return &AdjustResult{Harvest: harvest, Restocked: restocked}, nil
}

func (s *service) History(ctx context.Context, harvestID uuid.UUID) ([]models.StockMovement, error) {
	movements, err := s.repo.ListMovements(ctx, harvestID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load stock history")
	}
	return movements, nil
}

func (s *service) DeleteHistory(ctx context.Context, tx *gorm.DB, harvestID uuid.UUID) error {
	if err := s.repo.WithTx(tx).DeleteMovements(ctx, harvestID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to delete stock history")
	}
	return nil
}

type operation struct {
	kind          enums.StockMovementType
	transactionID *uuid.UUID
	next          func(current decimal.Decimal) (decimal.Decimal, error)
	bind          Binder
	// skipIfClean suppresses the write and the movement when neither quantity
	// nor status would change.
	skipIfClean bool
}

func unchanged(current decimal.Decimal) (decimal.Decimal, error) {
	return current, nil
}

func (s *service) run(ctx context.Context, tx *gorm.DB, harvestID uuid.UUID, op operation) (*models.Harvest, error) {
	if harvestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "harvest id is required")
	}
	if tx != nil {
		return s.apply(ctx, tx, harvestID, op)
	}

	var harvest *models.Harvest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		harvest, err = s.apply(ctx, tx, harvestID, op)
		return err
	})
	if err != nil {
		return nil, pkgerrors.EnsureTyped(err, "stock update failed")
	}
	return harvest, nil
}

func (s *service) apply(ctx context.Context, tx *gorm.DB, harvestID uuid.UUID, op operation) (*models.Harvest, error) {
	repo := s.repo.WithTx(tx)

	harvest, err := repo.LockHarvest(ctx, harvestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "harvest not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load harvest")
	}

	current := harvest.QuantityAvailable
	next, err := op.next(current)
	if err != nil {
		return nil, err
	}
	if next.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "stock cannot go negative")
	}
	if next.GreaterThan(MaxAmount) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "stock would exceed the maximum of "+MaxAmount.StringFixed(QuantityScale))
	}
	status := DeriveStatus(next)

	if op.skipIfClean && next.Equal(current) && status == harvest.Status {
		return harvest, nil
	}
	if op.bind != nil {
		id, err := op.bind(harvest)
		if err != nil {
			return nil, err
		}
		op.transactionID = optionalID(id)
	}

	ok, err := repo.UpdateStock(ctx, harvest.ID, harvest.Version, next, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to update stock")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "harvest was modified concurrently")
	}

	movement := &models.StockMovement{
		HarvestID:     harvest.ID,
		TransactionID: op.transactionID,
		Type:          op.kind,
		Quantity:      next.Sub(current),
		BalanceAfter:  next,
		StatusAfter:   status,
	}
	if err := repo.RecordMovement(ctx, movement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to record stock movement")
	}

	harvest.QuantityAvailable = next
	harvest.Status = status
	harvest.Version++
	return harvest, nil
}

func optionalID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
