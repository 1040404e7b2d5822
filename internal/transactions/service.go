package transactions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmexchange-backend/internal/ledger"
	"github.com/angelmondragon/farmexchange-backend/pkg/db/models"
	"github.com/angelmondragon/farmexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmexchange-backend/pkg/errors"
	"github.com/angelmondragon/farmexchange-backend/pkg/outbox"
	"github.com/angelmondragon/farmexchange-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/farmexchange-backend/pkg/pagination"
	"github.com/angelmondragon/farmexchange-backend/pkg/types"
)

const maxNotesLength = 1000

// Service drives the purchase approval workflow.
type Service interface {
	Purchase(ctx context.Context, input PurchaseInput) (*Result, error)
	Approve(ctx context.Context, input DecisionInput) (*Result, error)
	Reject(ctx context.Context, input DecisionInput) (*Result, error)
	Cancel(ctx context.Context, input DecisionInput) (*Result, error)
	Get(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.Transaction, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
	ListPendingForSeller(ctx context.Context, sellerID uuid.UUID) ([]models.Transaction, error)
	DeleteForHarvest(ctx context.Context, tx *gorm.DB, harvestID uuid.UUID) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// StockLedger is the subset of the inventory ledger the workflow drives.
type StockLedger interface {
	ReserveFor(ctx context.Context, tx *gorm.DB, harvestID uuid.UUID, quantity decimal.Decimal, bind ledger.Binder) (*models.Harvest, error)
	Release(ctx context.Context, tx *gorm.DB, harvestID, transactionID uuid.UUID, quantity decimal.Decimal) (*models.Harvest, error)
	Finalize(ctx context.Context, tx *gorm.DB, harvestID, transactionID uuid.UUID) (*models.Harvest, error)
}

// PurchaseInput captures a buyer's request for harvest stock.
type PurchaseInput struct {
	Actor     types.Actor
	HarvestID uuid.UUID
	Quantity  decimal.Decimal
	Notes     string
}

// DecisionInput identifies the transaction a seller decides on.
type DecisionInput struct {
	Actor         types.Actor
	TransactionID uuid.UUID
}

// Result pairs a transaction with the harvest stock after the operation.
type Result struct {
	Transaction *models.Transaction `json:"transaction"`
	Harvest     *models.Harvest     `json:"harvest"`
}

type service struct {
	repo   Repository
	tx     txRunner
	ledger StockLedger
	outbox outboxPublisher
}

// NewService wires the workflow with its persistence and ledger collaborators.
func NewService(repo Repository, tx txRunner, stock StockLedger, outbox outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, ledger: stock, outbox: outbox}, nil
}

func (s *service) Purchase(ctx context.Context, input PurchaseInput) (*Result, error) {
	if input.Actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity is required")
	}
	if input.HarvestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "harvest id is required")
	}
	if err := ledger.ValidateQuantity(input.Quantity); err != nil {
		return nil, err
	}
	notes := strings.TrimSpace(input.Notes)
	if len(notes) > maxNotesLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notes must be at most 1000 characters")
	}

	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var txn *models.Transaction
		updated, err := s.ledger.ReserveFor(ctx, tx, input.HarvestID, input.Quantity, func(harvest *models.Harvest) (uuid.UUID, error) {
			total := input.Quantity.Mul(harvest.Price).Round(2)
			if total.GreaterThan(ledger.MaxAmount) {
				return uuid.Nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "transaction total exceeds the maximum amount").
					WithDetails(map[string]any{
						"total":   total.String(),
						"maximum": ledger.MaxAmount.String(),
					})
			}
			txn = &models.Transaction{
				HarvestID:  harvest.ID,
				BuyerID:    input.Actor.UserID,
				SellerID:   harvest.SellerID,
				Quantity:   input.Quantity,
				TotalPrice: total,
				Status:     enums.TransactionStatusPending,
			}
			if notes != "" {
				txn.Notes = &notes
			}
			if err := repo.Create(ctx, txn); err != nil {
				return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create transaction")
			}
			return txn.ID, nil
		})
		if err != nil {
			return err
		}

		if err := s.emit(ctx, tx, input.Actor, enums.EventTransactionCreated, txn, updated, nil); err != nil {
			return err
		}
		result = &Result{Transaction: txn, Harvest: updated}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.EnsureTyped(err, "purchase failed")
	}
	return result, nil
}

func (s *service) Approve(ctx context.Context, input DecisionInput) (*Result, error) {
	return s.decide(ctx, input, enums.TransactionDecisionApprove)
}

func (s *service) Reject(ctx context.Context, input DecisionInput) (*Result, error) {
	return s.decide(ctx, input, enums.TransactionDecisionReject)
}

// Cancel is the same stock-restoring transition as Reject under the same
// seller-only rule; only the decision recorded on the event differs.
func (s *service) Cancel(ctx context.Context, input DecisionInput) (*Result, error) {
	return s.decide(ctx, input, enums.TransactionDecisionCancel)
}

func (s *service) decide(ctx context.Context, input DecisionInput, decision enums.TransactionDecision) (*Result, error) {
	if input.Actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "seller identity is required")
	}
	if input.TransactionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}

	target := decision.TargetStatus()
	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		txn, err := repo.FindForUpdate(ctx, input.TransactionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load transaction")
		}
		if txn.SellerID != input.Actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("only the seller can %s this transaction", decision))
		}
		if txn.Status != enums.TransactionStatusPending {
			return invalidTransition(txn.Status, decision)
		}

		moved, err := repo.UpdateStatus(ctx, txn.ID, enums.TransactionStatusPending, target)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to update transaction status")
		}
		if !moved {
			return invalidTransition(txn.Status, decision)
		}

		var harvest *models.Harvest
		if target == enums.TransactionStatusCompleted {
			harvest, err = s.ledger.Finalize(ctx, tx, txn.HarvestID, txn.ID)
		} else {
			harvest, err = s.ledger.Release(ctx, tx, txn.HarvestID, txn.ID, txn.Quantity)
		}
		if err != nil {
			return err
		}
		txn.Status = target

		eventType := enums.EventTransactionCancelled
		if target == enums.TransactionStatusCompleted {
			eventType = enums.EventTransactionCompleted
		}
		if err := s.emit(ctx, tx, input.Actor, eventType, txn, harvest, &decision); err != nil {
			return err
		}
		result = &Result{Transaction: txn, Harvest: harvest}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.EnsureTyped(err, "transaction decision failed")
	}
	return result, nil
}

func invalidTransition(current enums.TransactionStatus, decision enums.TransactionDecision) error {
	return pkgerrors.New(pkgerrors.CodeInvalidStateTransition, "cannot change status of a completed or cancelled order").
		WithDetails(map[string]any{
			"current_status": current,
			"decision":       decision,
		})
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, actor types.Actor, eventType enums.OutboxEventType, txn *models.Transaction, harvest *models.Harvest, decision *enums.TransactionDecision) error {
	data := payloads.TransactionEvent{
		TransactionID: txn.ID,
		HarvestID:     txn.HarvestID,
		BuyerID:       txn.BuyerID,
		SellerID:      txn.SellerID,
		Quantity:      txn.Quantity,
		TotalPrice:    txn.TotalPrice,
		Status:        txn.Status,
		Decision:      decision,
	}
	if harvest != nil {
		data.StockAfter = harvest.QuantityAvailable
	}
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateTransaction,
		AggregateID:   txn.ID,
		Actor:         outbox.ActorFrom(actor),
		Data:          data,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to emit transaction event")
	}
	return nil
}

func (s *service) Get(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.Transaction, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity is required")
	}
	txn, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load transaction")
	}
	if txn.BuyerID != actor.UserID && txn.SellerID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "transaction belongs to other parties")
	}
	return txn, nil
}

func (s *service) ListPendingForSeller(ctx context.Context, sellerID uuid.UUID) ([]models.Transaction, error) {
	rows, err := s.repo.ListPendingForSeller(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list pending orders")
	}
	return rows, nil
}

func (s *service) DeleteForHarvest(ctx context.Context, tx *gorm.DB, harvestID uuid.UUID) (int64, error) {
	if tx == nil {
		return 0, pkgerrors.New(pkgerrors.CodeInternal, "cascade delete must run inside a transaction")
	}
	removed, err := s.repo.WithTx(tx).DeleteByHarvest(ctx, harvestID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to delete harvest transactions")
	}
	return removed, nil
}

// View selects which side of the order book a listing shows.
type View string

const (
	ViewBuyer  View = "buyer"
	ViewSeller View = "seller"
)

// ListInput scopes a transaction listing to the actor.
type ListInput struct {
	Actor      types.Actor
	View       View
	Status     *enums.TransactionStatus
	Pagination pagination.Params
}

// Stats summarises every transaction in the actor's scope regardless of the
// status filter or page.
type Stats struct {
	Total     int64           `json:"total"`
	Pending   int64           `json:"pending"`
	Completed int64           `json:"completed"`
	Cancelled int64           `json:"cancelled"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// ListResult is one page of transactions plus their scope statistics.
type ListResult struct {
	Page  pagination.Page[models.Transaction] `json:"page"`
	Stats Stats                               `json:"stats"`
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	if input.Actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity is required")
	}
	view := input.View
	if view == "" {
		view = ViewBuyer
		if input.Actor.IsFarmer() {
			view = ViewSeller
		}
	}
	var column string
	switch view {
	case ViewBuyer:
		column = "buyer_id"
	case ViewSeller:
		column = "seller_id"
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "view must be buyer or seller")
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown transaction status")
	}

	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.List(ctx, listQuery{
		column:  column,
		partyID: input.Actor.UserID,
		status:  input.Status,
		cursor:  cursor,
		limit:   pagination.LimitWithBuffer(input.Pagination.Limit),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list transactions")
	}

	aggregates, err := s.repo.Aggregate(ctx, column, input.Actor.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to summarise transactions")
	}

	page := pagination.BuildPage(rows, input.Pagination.Limit, func(t models.Transaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: t.TransactionDate, ID: t.ID}
	})
	return &ListResult{Page: page, Stats: summarise(aggregates)}, nil
}

// summarise folds per-status aggregates into Stats. Revenue counts completed
// transactions only and is rounded back to the column scale because sqlite
// sums numeric columns as floats.
func summarise(rows []statusAggregate) Stats {
	stats := Stats{Revenue: decimal.Zero}
	for _, row := range rows {
		stats.Total += row.Count
		switch row.Status {
		case enums.TransactionStatusPending:
			stats.Pending += row.Count
		case enums.TransactionStatusCompleted:
			stats.Completed += row.Count
			stats.Revenue = stats.Revenue.Add(row.Total)
		case enums.TransactionStatusCancelled:
			stats.Cancelled += row.Count
		}
	}
	stats.Revenue = stats.Revenue.Round(2)
	return stats
}
