package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/ecocoin-market/internal/models"
)

// afterGrace сдвигает часы сверки так, что все записи старше окна ожидания.
func (e *testEnv) afterGrace() {
	e.reconciler.now = func() time.Time { return time.Now().Add(time.Hour) }
}

func TestReconcile_RepairsPurchaseTail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller, buyer := uuid.New(), uuid.New()
	env.fund(t, buyer, 1000)
	listing := env.listing(t, seller, "Yoga Mat and Accessories", 600)
	env.store.failNext("CreateTransaction", errors.New("timeout"))
	env.store.failNext("UpdateListingStatus", errors.New("timeout"))
	order := env.buy(t, buyer, listing, "")
	before := env.store.TotalCoins()

	env.afterGrace()
	report, err := env.reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.PendingScanned)
	assert.Equal(t, 1, report.Repaired)
	assert.Zero(t, report.Failed)

	exists, err := env.store.TransactionExists(ctx, buyer, order.ID, models.TransactionTypePurchase)
	require.NoError(t, err)
	assert.True(t, exists)
	stored, _ := env.store.GetListing(ctx, listing.ID)
	assert.Equal(t, models.ListingStatusSold, stored.Status)
	assert.Equal(t, before, env.store.TotalCoins())

	// Второй проход ничего не меняет.
	report, err = env.reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Repaired)
	count, _ := env.store.CountTransactions(ctx, buyer)
	assert.Equal(t, 1, count)
}

func TestReconcile_SkipsRecentOrders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller, buyer := uuid.New(), uuid.New()
	env.fund(t, buyer, 1000)
	env.store.failNext("CreateTransaction", errors.New("timeout"))
	order := env.buy(t, buyer, env.listing(t, seller, "Nike Running Shoes", 800), "")

	report, err := env.reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.PendingScanned)

	exists, _ := env.store.TransactionExists(ctx, buyer, order.ID, models.TransactionTypePurchase)
	assert.False(t, exists)
}

func TestReconcile_CancelsOrderWithoutEscrow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := &models.Order{
		ID:        uuid.New(),
		BuyerID:   uuid.New(),
		SellerID:  uuid.New(),
		ListingID: uuid.New(),
		Amount:    500,
		Status:    models.OrderStatusPending,
	}
	require.NoError(t, env.store.CreateOrder(ctx, order))

	env.afterGrace()
	report, err := env.reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Repaired)

	stored, err := env.store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, stored.Status)
}

func TestReconcile_CompletesReleasedSettlement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller, buyer, affiliate := uuid.New(), uuid.New(), uuid.New()
	env.fund(t, buyer, 999)
	listing := env.listing(t, seller, "Designer Handbag Collection", 999)
	link := env.link(t, affiliate, listing)
	order := env.buy(t, buyer, listing, link.Code)
	env.ship(t, order)

	env.store.failNext("CreateEarning", errors.New("timeout"))
	_, err := env.settlement.ConfirmDelivery(ctx, buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(900), env.balance(t, seller))
	assert.Equal(t, int64(99), env.balance(t, affiliate))
	before := env.store.TotalCoins()

	env.afterGrace()
	report, err := env.reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ShippedScanned)
	assert.Equal(t, 1, report.Repaired)

	stored, err := env.store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, stored.Status)
	sales, earned, err := env.store.EarningsByLink(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sales)
	assert.Equal(t, int64(99), earned)
	for _, user := range []uuid.UUID{seller, affiliate} {
		count, _ := env.store.CountTransactions(ctx, user)
		assert.Equal(t, 1, count)
	}

	assert.Equal(t, int64(900), env.balance(t, seller))
	assert.Equal(t, int64(99), env.balance(t, affiliate))
	assert.Equal(t, before, env.store.TotalCoins())
}

func TestReconcile_CompletesWhenSaleRecordMissing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller, buyer, affiliate := uuid.New(), uuid.New(), uuid.New()
	env.fund(t, buyer, 1000)
	listing := env.listing(t, seller, "Vintage Record Player", 1000)
	link := env.link(t, affiliate, listing)
	order := env.buy(t, buyer, listing, link.Code)
	env.ship(t, order)

	env.store.failNext("CreateTransaction", errors.New("timeout"))
	_, err := env.settlement.ConfirmDelivery(ctx, buyer, order.ID)
	require.NoError(t, err)
	before := env.store.TotalCoins()

	env.afterGrace()
	report, err := env.reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Repaired)
	assert.Zero(t, report.Failed)

	stored, err := env.store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, stored.Status)
	exists, err := env.store.TransactionExists(ctx, seller, order.ID, models.TransactionTypeSale)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, int64(900), env.balance(t, seller))
	assert.Equal(t, int64(100), env.balance(t, affiliate))
	assert.Equal(t, before, env.store.TotalCoins())
}

func TestReconcile_ReleasedWithoutPayoutIsNotRecorded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller, buyer := uuid.New(), uuid.New()
	env.fund(t, buyer, 500)
	listing := env.listing(t, seller, "Acoustic Guitar", 500)
	order := env.buy(t, buyer, listing, "")
	env.ship(t, order)

	// Зачисление продавцу не прошло, и возврат удержания тоже не удался.
	env.store.failNext("UpdateBalance", errors.New("connection reset by peer"))
	env.store.failNext("TransitionEscrow", nil, errors.New("connection reset by peer"))
	_, err := env.settlement.ConfirmDelivery(ctx, buyer, order.ID)
	require.Error(t, err)

	escrow, err := env.store.GetEscrowByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, models.EscrowStatusReleased, escrow.Status)

	env.afterGrace()
	report, err := env.reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ShippedScanned)
	assert.Zero(t, report.Repaired)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.reconciled.WithLabelValues("unverified_payout")))

	stored, err := env.store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, stored.Status)
	exists, err := env.store.TransactionExists(ctx, seller, order.ID, models.TransactionTypeSale)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Zero(t, env.balance(t, seller))
}

func TestReconcile_VisitsEveryPageWhileCancelling(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	total := reconcileBatchSize + 50
	ids := make([]uuid.UUID, 0, total)
	for i := 0; i < total; i++ {
		order := &models.Order{
			ID:        uuid.New(),
			BuyerID:   uuid.New(),
			SellerID:  uuid.New(),
			ListingID: uuid.New(),
			Amount:    10,
			Status:    models.OrderStatusPending,
		}
		require.NoError(t, env.store.CreateOrder(ctx, order))
		ids = append(ids, order.ID)
	}

	env.afterGrace()
	report, err := env.reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, total, report.PendingScanned)
	assert.Equal(t, total, report.Repaired)

	for _, id := range ids {
		stored, err := env.store.GetOrder(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusCancelled, stored.Status)
	}
}

func TestReconcile_LeavesHealthyOrders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller, buyer := uuid.New(), uuid.New()
	env.fund(t, buyer, 3000)
	pending := env.buy(t, buyer, env.listing(t, seller, "Wooden Dining Table Set", 1000), "")
	shipped := env.buy(t, buyer, env.listing(t, seller, "Canon EOS Camera Bundle", 1000), "")
	env.ship(t, shipped)

	env.afterGrace()
	report, err := env.reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.PendingScanned)
	assert.Equal(t, 1, report.ShippedScanned)
	assert.Zero(t, report.Repaired)
	assert.Zero(t, report.Failed)

	stored, _ := env.store.GetOrder(ctx, pending.ID)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
	stored, _ = env.store.GetOrder(ctx, shipped.ID)
	assert.Equal(t, models.OrderStatusShipped, stored.Status)
}

func TestReconcile_StartStopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		env.reconciler.Start(ctx, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("сверка не остановилась после отмены контекста")
	}
}
