package transactions

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmexchange-backend/internal/ledger"
	"github.com/angelmondragon/farmexchange-backend/pkg/db"
	"github.com/angelmondragon/farmexchange-backend/pkg/db/dbtest"
	"github.com/angelmondragon/farmexchange-backend/pkg/db/models"
	"github.com/angelmondragon/farmexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmexchange-backend/pkg/errors"
	"github.com/angelmondragon/farmexchange-backend/pkg/outbox"
	"github.com/angelmondragon/farmexchange-backend/pkg/pagination"
	"github.com/angelmondragon/farmexchange-backend/pkg/types"
)

func qty(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

type fixture struct {
	svc    Service
	client *db.Client
	farmer types.Actor
	buyer  types.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	return &fixture{
		svc:    newService(t, client),
		client: client,
		farmer: types.Actor{UserID: uuid.New(), Role: enums.UserTypeFarmer},
		buyer:  types.Actor{UserID: uuid.New(), Role: enums.UserTypeBuyer},
	}
}

func newService(t *testing.T, client *db.Client) Service {
	t.Helper()
	stock, err := ledger.NewService(ledger.NewRepository(client.DB()), client)
	require.NoError(t, err)
	events := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	svc, err := NewService(NewRepository(client.DB()), client, stock, events)
	require.NoError(t, err)
	return svc
}

func (f *fixture) seedHarvest(t *testing.T, quantity, price string) *models.Harvest {
	t.Helper()
	q := qty(quantity)
	harvest := &models.Harvest{
		SellerID:          f.farmer.UserID,
		Title:             "Sweet Corn",
		Category:          "vegetables",
		Price:             qty(price),
		Unit:              "kg",
		QuantityAvailable: q,
		Status:            ledger.DeriveStatus(q),
	}
	require.NoError(t, f.client.DB().Create(harvest).Error)
	return harvest
}

func (f *fixture) harvest(t *testing.T, id uuid.UUID) *models.Harvest {
	t.Helper()
	var harvest models.Harvest
	require.NoError(t, f.client.DB().First(&harvest, "id = ?", id).Error)
	return &harvest
}

func (f *fixture) purchase(t *testing.T, harvestID uuid.UUID, quantity string) *models.Transaction {
	t.Helper()
	res, err := f.svc.Purchase(context.Background(), PurchaseInput{Actor: f.buyer, HarvestID: harvestID, Quantity: qty(quantity)})
	require.NoError(t, err)
	return res.Transaction
}

func (f *fixture) events(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.client.DB().Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}

func assertQuantity(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, qty(want).Equal(got), "expected quantity %s, got %s", want, got)
}

func TestPurchaseReservesStock(t *testing.T) {
	f := newFixture(t)
	harvest := f.seedHarvest(t, "10", "2.50")

	res, err := f.svc.Purchase(context.Background(), PurchaseInput{
		Actor:     f.buyer,
		HarvestID: harvest.ID,
		Quantity:  qty("4"),
		Notes:     "  pick up friday  ",
	})
	require.NoError(t, err)

	txn := res.Transaction
	assert.Equal(t, enums.TransactionStatusPending, txn.Status)
	assert.Equal(t, f.buyer.UserID, txn.BuyerID)
	assert.Equal(t, f.farmer.UserID, txn.SellerID)
	assertQuantity(t, "10", txn.TotalPrice)
	require.NotNil(t, txn.Notes)
	assert.Equal(t, "pick up friday", *txn.Notes)

	assertQuantity(t, "6", res.Harvest.QuantityAvailable)
	assertQuantity(t, "6", f.harvest(t, harvest.ID).QuantityAvailable)
	assert.EqualValues(t, 1, f.events(t, enums.EventTransactionCreated))
}

func TestPurchaseOfEntireStockMarksSoldOut(t *testing.T) {
	f := newFixture(t)
	harvest := f.seedHarvest(t, "10", "1")

	f.purchase(t, harvest.ID, "10")

	stored := f.harvest(t, harvest.ID)
	assertQuantity(t, "0", stored.QuantityAvailable)
	assert.Equal(t, enums.HarvestStatusSoldOut, stored.Status)
}

func TestPurchaseExceedingStockChangesNothing(t *testing.T) {
	f := newFixture(t)
	harvest := f.seedHarvest(t, "3", "1")

	_, err := f.svc.Purchase(context.Background(), PurchaseInput{Actor: f.buyer, HarvestID: harvest.ID, Quantity: qty("3.01")})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock), "got %v", err)

	assertQuantity(t, "3", f.harvest(t, harvest.ID).QuantityAvailable)
	var count int64
	require.NoError(t, f.client.DB().Model(&models.Transaction{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Zero(t, f.events(t, enums.EventTransactionCreated))
}

func TestPurchaseValidation(t *testing.T) {
	f := newFixture(t)
	harvest := f.seedHarvest(t, "3", "1")
	ctx := context.Background()

	_, err := f.svc.Purchase(ctx, PurchaseInput{HarvestID: harvest.ID, Quantity: qty("1")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "got %v", err)

	_, err = f.svc.Purchase(ctx, PurchaseInput{Actor: f.buyer, HarvestID: harvest.ID, Quantity: decimal.Zero})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidQuantity), "got %v", err)

	_, err = f.svc.Purchase(ctx, PurchaseInput{Actor: f.buyer, HarvestID: uuid.New(), Quantity: qty("1")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	_, err = f.svc.Purchase(ctx, PurchaseInput{Actor: f.buyer, HarvestID: harvest.ID, Quantity: qty("1000000000")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidQuantity), "got %v", err)
}

func TestPurchaseTotalAboveColumnMaximumIsRejected(t *testing.T) {
	f := newFixture(t)
	harvest := f.seedHarvest(t, "10000", "99999")

	_, err := f.svc.Purchase(context.Background(), PurchaseInput{Actor: f.buyer, HarvestID: harvest.ID, Quantity: qty("10000")})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidQuantity), "got %v", err)

	stored := f.harvest(t, harvest.ID)
	assertQuantity(t, "10000", stored.QuantityAvailable)
	assert.Equal(t, harvest.Version, stored.Version)
	var count int64
	require.NoError(t, f.client.DB().Model(&models.Transaction{}).Count(&count).Error)
	assert.Zero(t, count)

	txn := f.purchase(t, harvest.ID, "1000")
	assertQuantity(t, "99999000", txn.TotalPrice)
}

func TestApproveKeepsReservation(t *testing.T) {
	f := newFixture(t)
	harvest := f.seedHarvest(t, "10", "2")
	txn := f.purchase(t, harvest.ID, "4")

	res, err := f.svc.Approve(context.Background(), DecisionInput{Actor: f.farmer, TransactionID: txn.ID})
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusCompleted, res.Transaction.Status)
	assertQuantity(t, "6", res.Harvest.QuantityAvailable)
	assertQuantity(t, "6", f.harvest(t, harvest.ID).QuantityAvailable)
	assert.EqualValues(t, 1, f.events(t, enums.EventTransactionCompleted))
}

func TestRejectAndCancelRestoreStock(t *testing.T) {
	for _, decide := range []struct {
		name string
		call func(Service, context.Context, DecisionInput) (*Result, error)
	}{
		{"reject", Service.Reject},
		{"cancel", Service.Cancel},
	} {
		t.Run(decide.name, func(t *testing.T) {
			f := newFixture(t)
			harvest := f.seedHarvest(t, "10", "2")
			txn := f.purchase(t, harvest.ID, "10")
			assert.Equal(t, enums.HarvestStatusSoldOut, f.harvest(t, harvest.ID).Status)

			res, err := decide.call(f.svc, context.Background(), DecisionInput{Actor: f.farmer, TransactionID: txn.ID})
			require.NoError(t, err)
			assert.Equal(t, enums.TransactionStatusCancelled, res.Transaction.Status)

			stored := f.harvest(t, harvest.ID)
			assertQuantity(t, "10", stored.QuantityAvailable)
			assert.Equal(t, enums.HarvestStatusAvailable, stored.Status)
			assert.EqualValues(t, 1, f.events(t, enums.EventTransactionCancelled))
		})
	}
}

func TestDecisionOnFinishedTransactionFails(t *testing.T) {
	f := newFixture(t)
	harvest := f.seedHarvest(t, "10", "2")
	ctx := context.Background()
	txn := f.purchase(t, harvest.ID, "3")

	_, err := f.svc.Approve(ctx, DecisionInput{Actor: f.farmer, TransactionID: txn.ID})
	require.NoError(t, err)

	for _, call := range []func(context.Context, DecisionInput) (*Result, error){f.svc.Approve, f.svc.Reject, f.svc.Cancel} {
		_, err := call(ctx, DecisionInput{Actor: f.farmer, TransactionID: txn.ID})
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidStateTransition), "got %v", err)
	}

	assertQuantity(t, "7", f.harvest(t, harvest.ID).QuantityAvailable)
	assert.EqualValues(t, 1, f.events(t, enums.EventTransactionCompleted))
	assert.Zero(t, f.events(t, enums.EventTransactionCancelled))
}

func TestDecisionRequiresSeller(t *testing.T) {
	f := newFixture(t)
	harvest := f.seedHarvest(t, "10", "2")
	txn := f.purchase(t, harvest.ID, "3")
	ctx := context.Background()

	_, err := f.svc.Approve(ctx, DecisionInput{Actor: f.buyer, TransactionID: txn.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "got %v", err)

	_, err = f.svc.Cancel(ctx, DecisionInput{Actor: f.buyer, TransactionID: txn.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "got %v", err)

	_, err = f.svc.Approve(ctx, DecisionInput{Actor: f.farmer, TransactionID: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	stored, err := f.svc.Get(ctx, f.buyer, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusPending, stored.Status)
}

func TestSellerMayBuyOwnHarvest(t *testing.T) {
	f := newFixture(t)
	harvest := f.seedHarvest(t, "5", "1")

	res, err := f.svc.Purchase(context.Background(), PurchaseInput{Actor: f.farmer, HarvestID: harvest.ID, Quantity: qty("1")})
	require.NoError(t, err)
	assert.Equal(t, res.Transaction.BuyerID, res.Transaction.SellerID)
}

func TestConcurrentPurchasesNeverOversell(t *testing.T) {
	f := newFixture(t)
	harvest := f.seedHarvest(t, "10", "1")

	var (
		g         errgroup.Group
		succeeded atomic.Int64
		refused   atomic.Int64
	)
	for i := 0; i < 12; i++ {
		buyer := types.Actor{UserID: uuid.New(), Role: enums.UserTypeBuyer}
		g.Go(func() error {
			_, err := f.svc.Purchase(context.Background(), PurchaseInput{Actor: buyer, HarvestID: harvest.ID, Quantity: qty("1")})
			switch {
			case err == nil:
				succeeded.Add(1)
			case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock):
				refused.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 10, succeeded.Load())
	assert.EqualValues(t, 2, refused.Load())
	stored := f.harvest(t, harvest.ID)
	assertQuantity(t, "0", stored.QuantityAvailable)
	assert.Equal(t, enums.HarvestStatusSoldOut, stored.Status)
}

func TestConcurrentPurchasesOfSixFromTen(t *testing.T) {
	f := newFixture(t)
	harvest := f.seedHarvest(t, "10", "1")

	var (
		g         errgroup.Group
		succeeded atomic.Int64
		refused   atomic.Int64
	)
	for i := 0; i < 2; i++ {
		buyer := types.Actor{UserID: uuid.New(), Role: enums.UserTypeBuyer}
		g.Go(func() error {
			_, err := f.svc.Purchase(context.Background(), PurchaseInput{Actor: buyer, HarvestID: harvest.ID, Quantity: qty("6")})
			switch {
			case err == nil:
				succeeded.Add(1)
			case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock):
				refused.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 1, succeeded.Load())
	assert.EqualValues(t, 1, refused.Load())
	stored := f.harvest(t, harvest.ID)
	assertQuantity(t, "4", stored.QuantityAvailable)
	assert.Equal(t, enums.HarvestStatusAvailable, stored.Status)
}

func TestConcurrentDecisionsApplyOnce(t *testing.T) {
	f := newFixture(t)
	harvest := f.seedHarvest(t, "10", "1")
	txn := f.purchase(t, harvest.ID, "4")

	var (
		g       errgroup.Group
		applied atomic.Int64
	)
	for i := 0; i < 6; i++ {
		call := f.svc.Approve
		if i%2 == 1 {
			call = f.svc.Reject
		}
		g.Go(func() error {
			_, err := call(context.Background(), DecisionInput{Actor: f.farmer, TransactionID: txn.ID})
			if err == nil {
				applied.Add(1)
				return nil
			}
			if pkgerrors.IsCode(err, pkgerrors.CodeInvalidStateTransition) {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.EqualValues(t, 1, applied.Load())

	stored, err := f.svc.Get(context.Background(), f.farmer, txn.ID)
	require.NoError(t, err)
	want := "6"
	if stored.Status == enums.TransactionStatusCancelled {
		want = "10"
	}
	assertQuantity(t, want, f.harvest(t, harvest.ID).QuantityAvailable)
}

func TestGetIsLimitedToParties(t *testing.T) {
	f := newFixture(t)
	harvest := f.seedHarvest(t, "5", "1")
	txn := f.purchase(t, harvest.ID, "1")

	_, err := f.svc.Get(context.Background(), types.Actor{UserID: uuid.New(), Role: enums.UserTypeBuyer}, txn.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "got %v", err)

	_, err = f.svc.Get(context.Background(), f.farmer, txn.ID)
	assert.NoError(t, err)
}

func TestListPagesAndSummarises(t *testing.T) {
	f := newFixture(t)
	harvest := f.seedHarvest(t, "100", "2")
	ctx := context.Background()

	var created []*models.Transaction
	for i := 0; i < 5; i++ {
		created = append(created, f.purchase(t, harvest.ID, "1"))
	}
	_, err := f.svc.Approve(ctx, DecisionInput{Actor: f.farmer, TransactionID: created[0].ID})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, DecisionInput{Actor: f.farmer, TransactionID: created[1].ID})
	require.NoError(t, err)
	_, err = f.svc.Reject(ctx, DecisionInput{Actor: f.farmer, TransactionID: created[2].ID})
	require.NoError(t, err)

	first, err := f.svc.List(ctx, ListInput{Actor: f.farmer, Pagination: pagination.Params{Limit: 3}})
	require.NoError(t, err)
	assert.Len(t, first.Page.Items, 3)
	require.NotEmpty(t, first.Page.NextCursor)
	assert.Equal(t, Stats{Total: 5, Pending: 2, Completed: 2, Cancelled: 1, Revenue: first.Stats.Revenue}, first.Stats)
	assertQuantity(t, "4", first.Stats.Revenue)

	second, err := f.svc.List(ctx, ListInput{Actor: f.farmer, Pagination: pagination.Params{Limit: 3, Cursor: first.Page.NextCursor}})
	require.NoError(t, err)
	assert.Len(t, second.Page.Items, 2)
	assert.Empty(t, second.Page.NextCursor)

	seen := map[uuid.UUID]bool{}
	for _, txn := range append(first.Page.Items, second.Page.Items...) {
		seen[txn.ID] = true
	}
	assert.Len(t, seen, 5)

	pending := enums.TransactionStatusPending
	filtered, err := f.svc.List(ctx, ListInput{Actor: f.buyer, Status: &pending})
	require.NoError(t, err)
	assert.Len(t, filtered.Page.Items, 2)
	assert.EqualValues(t, 5, filtered.Stats.Total)

	incoming, err := f.svc.ListPendingForSeller(ctx, f.farmer.UserID)
	require.NoError(t, err)
	assert.Len(t, incoming, 2)

	empty, err := f.svc.List(ctx, ListInput{Actor: f.buyer, View: ViewSeller})
	require.NoError(t, err)
	assert.Empty(t, empty.Page.Items)
	assert.True(t, empty.Stats.Revenue.IsZero())
}

func TestRevenueIsExactForFractionalPrices(t *testing.T) {
	f := newFixture(t)
	harvest := f.seedHarvest(t, "10", "0.10")
	ctx := context.Background()

	for _, quantity := range []string{"1", "2"} {
		txn := f.purchase(t, harvest.ID, quantity)
		_, err := f.svc.Approve(ctx, DecisionInput{Actor: f.farmer, TransactionID: txn.ID})
		require.NoError(t, err)
	}

	res, err := f.svc.List(ctx, ListInput{Actor: f.farmer})
	require.NoError(t, err)
	assert.Truef(t, qty("0.3").Equal(res.Stats.Revenue), "revenue %s", res.Stats.Revenue)
	assert.Equal(t, "0.3", res.Stats.Revenue.String())
}

func TestDeleteForHarvestDetachesReviews(t *testing.T) {
	f := newFixture(t)
	harvest := f.seedHarvest(t, "10", "1")
	other := f.seedHarvest(t, "10", "1")
	ctx := context.Background()

	done := f.purchase(t, harvest.ID, "2")
	_, err := f.svc.Approve(ctx, DecisionInput{Actor: f.farmer, TransactionID: done.ID})
	require.NoError(t, err)
	f.purchase(t, harvest.ID, "1")
	kept := f.purchase(t, other.ID, "1")

	review := &models.Review{BuyerID: f.buyer.UserID, SellerID: f.farmer.UserID, TransactionID: &done.ID, Rating: 5}
	require.NoError(t, f.client.DB().Create(review).Error)

	_, err = f.svc.DeleteForHarvest(ctx, nil, harvest.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal), "got %v", err)

	var removed int64
	require.NoError(t, f.client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		removed, err = f.svc.DeleteForHarvest(ctx, tx, harvest.ID)
		return err
	}))
	assert.EqualValues(t, 2, removed)

	var stored models.Review
	require.NoError(t, f.client.DB().First(&stored, "id = ?", review.ID).Error)
	assert.Nil(t, stored.TransactionID)
	assert.Equal(t, 5, stored.Rating)

	_, err = f.svc.Get(ctx, f.buyer, kept.ID)
	assert.NoError(t, err)
}

func TestStoreFailureIsDependencyError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	conn, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	svc := newService(t, db.FromConn(conn))
	_, err = svc.Purchase(context.Background(), PurchaseInput{
		Actor:     types.Actor{UserID: uuid.New(), Role: enums.UserTypeBuyer},
		HarvestID: uuid.New(),
		Quantity:  qty("1"),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
