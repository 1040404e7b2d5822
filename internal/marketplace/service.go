package marketplace

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmexchange-backend/internal/analytics"
	"github.com/angelmondragon/farmexchange-backend/internal/harvests"
	"github.com/angelmondragon/farmexchange-backend/internal/ledger"
	"github.com/angelmondragon/farmexchange-backend/internal/reviews"
	"github.com/angelmondragon/farmexchange-backend/internal/transactions"
	"github.com/angelmondragon/farmexchange-backend/pkg/db/models"
	"github.com/angelmondragon/farmexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmexchange-backend/pkg/errors"
	"github.com/angelmondragon/farmexchange-backend/pkg/logger"
	"github.com/angelmondragon/farmexchange-backend/pkg/metrics"
	"github.com/angelmondragon/farmexchange-backend/pkg/outbox"
	"github.com/angelmondragon/farmexchange-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/farmexchange-backend/pkg/pagination"
	"github.com/angelmondragon/farmexchange-backend/pkg/types"
)

// Service is the single entry point the HTTP layer talks to. It checks who
// may act and hands the work to the ledger and the workflow.
type Service interface {
	CreateHarvest(ctx context.Context, actor types.Actor, input harvests.CreateInput) (*models.Harvest, error)
	EditHarvest(ctx context.Context, actor types.Actor, id uuid.UUID, input harvests.UpdateInput) (*EditResult, error)
	DeleteHarvest(ctx context.Context, actor types.Actor, id uuid.UUID) (*DeleteResult, error)
	Browse(ctx context.Context, input BrowseInput) (*pagination.Page[models.Harvest], error)
	GetHarvest(ctx context.Context, id uuid.UUID) (*models.Harvest, error)
	HarvestHistory(ctx context.Context, actor types.Actor, id uuid.UUID) ([]models.StockMovement, error)
	ManageInventory(ctx context.Context, actor types.Actor) (*Inventory, error)

	Purchase(ctx context.Context, input transactions.PurchaseInput) (*transactions.Result, error)
	Approve(ctx context.Context, input transactions.DecisionInput) (*transactions.Result, error)
	Reject(ctx context.Context, input transactions.DecisionInput) (*transactions.Result, error)
	Cancel(ctx context.Context, input transactions.DecisionInput) (*transactions.Result, error)
	GetTransaction(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.Transaction, error)
	ListTransactions(ctx context.Context, input transactions.ListInput) (*transactions.ListResult, error)

	LeaveReview(ctx context.Context, input reviews.LeaveReviewInput) (*models.Review, error)
	SellerReviews(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*reviews.SellerReviews, error)
	SalesAnalytics(ctx context.Context, req analytics.SalesRequest) (*analytics.SalesReport, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Deps groups the collaborators of the facade.
type Deps struct {
	Tx           txRunner
	Harvests     harvests.Repository
	Ledger       ledger.Service
	Transactions transactions.Service
	Reviews      reviews.Service
	Analytics    analytics.Service
	Outbox       outboxPublisher
	Metrics      *metrics.Marketplace
	Logger       *logger.Logger
}

// BrowseInput filters the public catalogue.
type BrowseInput struct {
	Category   string
	Query      string
	Pagination pagination.Params
}

// EditResult reports an edited listing and whether it came back into stock.
type EditResult struct {
	Harvest   *models.Harvest `json:"harvest"`
	Restocked bool            `json:"restocked"`
}

// DeleteResult reports what a harvest deletion removed.
type DeleteResult struct {
	HarvestID           uuid.UUID `json:"harvest_id"`
	RemovedTransactions int64     `json:"removed_transactions"`
}

// Inventory is a farmer's management view.
type Inventory struct {
	Harvests       []models.Harvest     `json:"harvests"`
	IncomingOrders []models.Transaction `json:"incoming_orders"`
}

type service struct {
	Deps
}

// NewService validates the dependencies and builds the facade.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Harvests == nil:
		return nil, fmt.Errorf("harvest repository required")
	case deps.Ledger == nil:
		return nil, fmt.Errorf("ledger service required")
	case deps.Transactions == nil:
		return nil, fmt.Errorf("transactions service required")
	case deps.Reviews == nil:
		return nil, fmt.Errorf("reviews service required")
	case deps.Analytics == nil:
		return nil, fmt.Errorf("analytics service required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{Deps: deps}, nil
}

func requireFarmer(actor types.Actor) error {
	if actor.IsZero() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "identity is required")
	}
	if !actor.IsFarmer() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only farmers can manage harvests")
	}
	return nil
}

// loadOwned fetches a harvest and checks the actor owns it. With lock set the
// row stays locked until the surrounding transaction ends.
func (s *service) loadOwned(ctx context.Context, repo harvests.Repository, actor types.Actor, id uuid.UUID, lock bool) (*models.Harvest, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity is required")
	}
	find := repo.FindByID
	if lock {
		find = repo.FindForUpdate
	}
	harvest, err := find(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "harvest not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load harvest")
	}
	if harvest.SellerID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "harvest belongs to another farmer")
	}
	return harvest, nil
}

func (s *service) CreateHarvest(ctx context.Context, actor types.Actor, input harvests.CreateInput) (*models.Harvest, error) {
	if err := requireFarmer(actor); err != nil {
		return nil, err
	}
	if input.QuantityAvailable.IsNegative() || !input.QuantityAvailable.Equal(input.QuantityAvailable.Round(ledger.QuantityScale)) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be zero or more with at most two decimal places")
	}
	if input.QuantityAvailable.GreaterThan(ledger.MaxAmount) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity exceeds the maximum of "+ledger.MaxAmount.StringFixed(ledger.QuantityScale))
	}
	harvest, err := harvests.NewHarvest(input)
	if err != nil {
		return nil, err
	}
	harvest.SellerID = actor.UserID
	harvest.Status = ledger.DeriveStatus(harvest.QuantityAvailable)

	err = s.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.Harvests.WithTx(tx).Create(ctx, harvest); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create harvest")
		}
		return s.emitHarvest(ctx, tx, actor, enums.EventHarvestCreated, harvest, false, 0)
	})
	if err != nil {
		return nil, s.fail(ctx, "create harvest", err)
	}
	s.info(ctx, actor, harvest.ID, uuid.Nil, "harvest created")
	return harvest, nil
}

func (s *service) EditHarvest(ctx context.Context, actor types.Actor, id uuid.UUID, input harvests.UpdateInput) (*EditResult, error) {
	if err := requireFarmer(actor); err != nil {
		return nil, err
	}
	changes, err := input.Changes()
	if err != nil {
		return nil, err
	}

	result := &EditResult{}
	err = s.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.Harvests.WithTx(tx)
		if _, err := s.loadOwned(ctx, repo, actor, id, true); err != nil {
			return err
		}
		if err := repo.UpdateListing(ctx, id, changes); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to update harvest")
		}
		if input.QuantityAvailable != nil {
			adjusted, err := s.Ledger.Adjust(ctx, tx, id, *input.QuantityAvailable)
			if err != nil {
				return err
			}
			result.Restocked = adjusted.Restocked
		}
		harvest, err := repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to reload harvest")
		}
		result.Harvest = harvest
		return s.emitHarvest(ctx, tx, actor, enums.EventHarvestUpdated, harvest, result.Restocked, 0)
	})
	if err != nil {
		return nil, s.fail(ctx, "edit harvest", err)
	}
	s.info(ctx, actor, id, uuid.Nil, "harvest updated")
	return result, nil
}

// DeleteHarvest removes the stock history, every transaction and then the
// harvest itself as one unit.
func (s *service) DeleteHarvest(ctx context.Context, actor types.Actor, id uuid.UUID) (*DeleteResult, error) {
	if err := requireFarmer(actor); err != nil {
		return nil, err
	}

	result := &DeleteResult{HarvestID: id}
	err := s.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.Harvests.WithTx(tx)
		harvest, err := s.loadOwned(ctx, repo, actor, id, true)
		if err != nil {
			return err
		}
		if err := s.Ledger.DeleteHistory(ctx, tx, id); err != nil {
			return err
		}
		removed, err := s.Transactions.DeleteForHarvest(ctx, tx, id)
		if err != nil {
			return err
		}
		result.RemovedTransactions = removed
		if _, err := repo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to delete harvest")
		}
		return s.emitHarvest(ctx, tx, actor, enums.EventHarvestDeleted, harvest, false, removed)
	})
	if err != nil {
		return nil, s.fail(ctx, "delete harvest", err)
	}
	s.info(ctx, actor, id, uuid.Nil, "harvest deleted")
	return result, nil
}

func (s *service) Browse(ctx context.Context, input BrowseInput) (*pagination.Page[models.Harvest], error) {
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.Harvests.Browse(ctx, harvests.BrowseQuery{
		Category: harvests.NormalizeBrowseCategory(input.Category),
		Search:   input.Query,
		Cursor:   cursor,
		Limit:    pagination.LimitWithBuffer(input.Pagination.Limit),
	})
	if err != nil {
		return nil, s.fail(ctx, "browse harvests", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to browse harvests"))
	}
	page := pagination.BuildPage(rows, input.Pagination.Limit, func(h models.Harvest) pagination.Cursor {
		return pagination.Cursor{CreatedAt: h.CreatedAt, ID: h.ID}
	})
	return &page, nil
}

func (s *service) GetHarvest(ctx context.Context, id uuid.UUID) (*models.Harvest, error) {
	harvest, err := s.Harvests.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "harvest not found")
		}
		return nil, s.fail(ctx, "get harvest", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load harvest"))
	}
	return harvest, nil
}

func (s *service) HarvestHistory(ctx context.Context, actor types.Actor, id uuid.UUID) ([]models.StockMovement, error) {
	if err := requireFarmer(actor); err != nil {
		return nil, err
	}
	if _, err := s.loadOwned(ctx, s.Harvests, actor, id, false); err != nil {
		return nil, err
	}
	return s.Ledger.History(ctx, id)
}

// ManageInventory repairs any listing whose status drifted from its quantity
// before returning the farmer's listings and incoming orders.
func (s *service) ManageInventory(ctx context.Context, actor types.Actor) (*Inventory, error) {
	if err := requireFarmer(actor); err != nil {
		return nil, err
	}

	var owned []models.Harvest
	err := s.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.Harvests.WithTx(tx).ListBySeller(ctx, actor.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list harvests")
		}
		for i := range rows {
			synced, err := s.Ledger.Resync(ctx, tx, rows[i].ID)
			if err != nil {
				return err
			}
			rows[i] = *synced
		}
		owned = rows
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "manage inventory", err)
	}

	incoming, err := s.Transactions.ListPendingForSeller(ctx, actor.UserID)
	if err != nil {
		return nil, s.fail(ctx, "manage inventory", err)
	}
	if owned == nil {
		owned = []models.Harvest{}
	}
	if incoming == nil {
		incoming = []models.Transaction{}
	}
	return &Inventory{Harvests: owned, IncomingOrders: incoming}, nil
}

func (s *service) Purchase(ctx context.Context, input transactions.PurchaseInput) (*transactions.Result, error) {
	res, err := s.Transactions.Purchase(ctx, input)
	s.Metrics.ObservePurchase(outcome(err))
	if err != nil {
		return nil, s.fail(ctx, "purchase", err)
	}
	s.info(ctx, input.Actor, input.HarvestID, res.Transaction.ID, "purchase reserved")
	return res, nil
}

func (s *service) Approve(ctx context.Context, input transactions.DecisionInput) (*transactions.Result, error) {
	return s.decide(ctx, enums.TransactionDecisionApprove, input, s.Transactions.Approve)
}

func (s *service) Reject(ctx context.Context, input transactions.DecisionInput) (*transactions.Result, error) {
	return s.decide(ctx, enums.TransactionDecisionReject, input, s.Transactions.Reject)
}

func (s *service) Cancel(ctx context.Context, input transactions.DecisionInput) (*transactions.Result, error) {
	return s.decide(ctx, enums.TransactionDecisionCancel, input, s.Transactions.Cancel)
}

func (s *service) decide(ctx context.Context, decision enums.TransactionDecision, input transactions.DecisionInput, call func(context.Context, transactions.DecisionInput) (*transactions.Result, error)) (*transactions.Result, error) {
	res, err := call(ctx, input)
	s.Metrics.ObserveDecision(string(decision), outcome(err))
	if err != nil {
		return nil, s.fail(ctx, string(decision)+" transaction", err)
	}
	s.info(ctx, input.Actor, res.Transaction.HarvestID, input.TransactionID, "transaction "+string(res.Transaction.Status))
	return res, nil
}

func (s *service) GetTransaction(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.Transaction, error) {
	return s.Transactions.Get(ctx, actor, id)
}

func (s *service) ListTransactions(ctx context.Context, input transactions.ListInput) (*transactions.ListResult, error) {
	return s.Transactions.List(ctx, input)
}

func (s *service) LeaveReview(ctx context.Context, input reviews.LeaveReviewInput) (*models.Review, error) {
	review, err := s.Reviews.LeaveReview(ctx, input)
	if err != nil {
		return nil, s.fail(ctx, "leave review", err)
	}
	return review, nil
}

func (s *service) SellerReviews(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*reviews.SellerReviews, error) {
	return s.Reviews.SellerReviews(ctx, sellerID, params)
}

func (s *service) SalesAnalytics(ctx context.Context, req analytics.SalesRequest) (*analytics.SalesReport, error) {
	return s.Analytics.Sales(ctx, req)
}

func (s *service) emitHarvest(ctx context.Context, tx *gorm.DB, actor types.Actor, eventType enums.OutboxEventType, harvest *models.Harvest, restocked bool, removed int64) error {
	err := s.Outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateHarvest,
		AggregateID:   harvest.ID,
		Actor:         outbox.ActorFrom(actor),
		Data: payloads.HarvestEvent{
			HarvestID:         harvest.ID,
			SellerID:          harvest.SellerID,
			Title:             harvest.Title,
			Category:          harvest.Category,
			Price:             harvest.Price,
			QuantityAvailable: harvest.QuantityAvailable,
			Status:            harvest.Status,
			Restocked:         restocked,
			RemovedOrders:     removed,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to emit harvest event")
	}
	return nil
}

func outcome(err error) string {
	if err == nil {
		return metrics.ResultSuccess
	}
	if typed := pkgerrors.As(err); typed != nil {
		return string(typed.Code())
	}
	return metrics.ResultFailure
}

// fail types the error and logs the ones that point at infrastructure.
func (s *service) fail(ctx context.Context, op string, err error) error {
	err = pkgerrors.EnsureTyped(err, op+" failed")
	if s.Logger == nil {
		return err
	}
	switch pkgerrors.As(err).Code() {
	case pkgerrors.CodeDependency, pkgerrors.CodeInternal:
		s.Logger.Error(s.Logger.WithField(ctx, "operation", op), op+" failed", err)
	case pkgerrors.CodeConflict:
		s.Logger.Warn(s.Logger.WithField(ctx, "operation", op), op+" lost a concurrent update")
	}
	return err
}

func (s *service) info(ctx context.Context, actor types.Actor, harvestID, transactionID uuid.UUID, msg string) {
	if s.Logger == nil {
		return
	}
	ctx = s.Logger.WithUserID(ctx, actor.UserID.String())
	ctx = s.Logger.WithActorRole(ctx, string(actor.Role))
	ctx = s.Logger.WithHarvestID(ctx, harvestID.String())
	if transactionID != uuid.Nil {
		ctx = s.Logger.WithTransactionID(ctx, transactionID.String())
	}
	s.Logger.Info(ctx, msg)
}
