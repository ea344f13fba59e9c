package service

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/ecocoin-market/internal/domain/valueobject"
	"github.com/ignatzorin/ecocoin-market/internal/logger"
	"github.com/ignatzorin/ecocoin-market/internal/models"
	"github.com/ignatzorin/ecocoin-market/internal/repository/common"
	"github.com/ignatzorin/ecocoin-market/internal/repository/memory"
)

func TestMain(m *testing.M) {
	logger.Silence()
	os.Exit(m.Run())
}

// faultyStore хранилище в памяти, которое возвращает заданные ошибки из выбранных методов.
type faultyStore struct {
	*memory.Store

	mu     sync.Mutex
	faults map[string][]error
	lost   map[string]int
	calls  map[string]int

	// afterUpdate вызывается один раз после первого успешного UpdateBalance.
	afterUpdate func()
}

func newFaultyStore() *faultyStore {
	return &faultyStore{
		Store:  memory.NewStore(),
		faults: make(map[string][]error),
		lost:   make(map[string]int),
		calls:  make(map[string]int),
	}
}

// failNext ставит в очередь ошибки для следующих вызовов метода.
func (f *faultyStore) failNext(method string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[method] = append(f.faults[method], errs...)
}

func (f *faultyStore) fault(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	queue := f.faults[method]
	if len(queue) == 0 {
		return nil
	}
	f.faults[method] = queue[1:]
	return queue[0]
}

// loseResponse: следующий успешный вызов метода применяется, но возвращает ErrUnavailable.
func (f *faultyStore) loseResponse(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lost[method]++
}

func (f *faultyStore) responseLost(method string, err error) error {
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lost[method] == 0 {
		return nil
	}
	f.lost[method]--
	return common.ErrUnavailable
}

func (f *faultyStore) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *faultyStore) UpdateBalance(ctx context.Context, userID uuid.UUID, expectedVersion, newBalance int64, opID uuid.UUID) error {
	if err := f.fault("UpdateBalance"); err != nil {
		return err
	}
	err := f.Store.UpdateBalance(ctx, userID, expectedVersion, newBalance, opID)
	if err == nil {
		f.mu.Lock()
		hook := f.afterUpdate
		f.afterUpdate = nil
		f.mu.Unlock()
		if hook != nil {
			hook()
		}
	}
	return f.responseLost("UpdateBalance", err)
}

func (f *faultyStore) CreateOrder(ctx context.Context, order *models.Order) error {
	if err := f.fault("CreateOrder"); err != nil {
		return err
	}
	return f.Store.CreateOrder(ctx, order)
}

func (f *faultyStore) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	if err := f.fault("DeleteOrder"); err != nil {
		return err
	}
	return f.Store.DeleteOrder(ctx, id)
}

func (f *faultyStore) CreateEscrow(ctx context.Context, escrow *models.Escrow) error {
	if err := f.fault("CreateEscrow"); err != nil {
		return err
	}
	return f.Store.CreateEscrow(ctx, escrow)
}

func (f *faultyStore) TransitionEscrow(ctx context.Context, orderID uuid.UUID, from, to string, releasedAt *time.Time) error {
	if err := f.fault("TransitionEscrow"); err != nil {
		return err
	}
	return f.responseLost("TransitionEscrow", f.Store.TransitionEscrow(ctx, orderID, from, to, releasedAt))
}

func (f *faultyStore) TransitionOrder(ctx context.Context, id uuid.UUID, t models.OrderTransition) error {
	if err := f.fault("TransitionOrder"); err != nil {
		return err
	}
	return f.responseLost("TransitionOrder", f.Store.TransitionOrder(ctx, id, t))
}

func (f *faultyStore) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	if err := f.fault("CreateTransaction"); err != nil {
		return err
	}
	return f.Store.CreateTransaction(ctx, txn)
}

func (f *faultyStore) UpdateListingStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	if err := f.fault("UpdateListingStatus"); err != nil {
		return err
	}
	return f.Store.UpdateListingStatus(ctx, id, from, to)
}

func (f *faultyStore) AddListingPhoto(ctx context.Context, id uuid.UUID, url string) error {
	if err := f.fault("AddListingPhoto"); err != nil {
		return err
	}
	return f.Store.AddListingPhoto(ctx, id, url)
}

func (f *faultyStore) CreateEarning(ctx context.Context, earning *models.AffiliateEarning) error {
	if err := f.fault("CreateEarning"); err != nil {
		return err
	}
	return f.Store.CreateEarning(ctx, earning)
}

type notification struct {
	userID uuid.UUID
	event  string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification
}

func (n *recordingNotifier) BroadcastToUser(userID uuid.UUID, event string, _ interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notification{userID: userID, event: event})
}

func (n *recordingNotifier) received(userID uuid.UUID, event string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e.userID == userID && e.event == event {
			return true
		}
	}
	return false
}

type testEnv struct {
	store      *faultyStore
	wallets    *WalletService
	engine     *EscrowEngine
	affiliates *AffiliateService
	purchases  *PurchaseService
	settlement *SettlementService
	orders     *OrderService
	reconciler *ReconcileService
	notifier   *recordingNotifier
	metrics    *Metrics
}

func testRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxTries: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newFaultyStore()
	retry := testRetryPolicy()
	notifier := &recordingNotifier{}
	metrics := NewMetrics(prometheus.NewRegistry())

	wallets := NewWalletService(store, retry)
	engine := NewEscrowEngine(store, store, retry)
	affiliates := NewAffiliateService(store, "test-key", retry)
	settlement := NewSettlementService(store, wallets, engine, valueobject.DefaultCommissionRate,
		notifier, metrics, retry)

	return &testEnv{
		store:      store,
		wallets:    wallets,
		engine:     engine,
		affiliates: affiliates,
		purchases:  NewPurchaseService(store, wallets, engine, affiliates, notifier, metrics, retry),
		settlement: settlement,
		orders:     NewOrderService(store, engine, notifier),
		reconciler: NewReconcileService(store, engine, settlement, metrics, time.Minute),
		notifier:   notifier,
		metrics:    metrics,
	}
}

func (e *testEnv) fund(t *testing.T, userID uuid.UUID, amount int64) {
	t.Helper()
	require.NoError(t, e.wallets.EnsureWallet(context.Background(), userID, amount))
}

func (e *testEnv) balance(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	w, err := e.wallets.GetWallet(context.Background(), userID)
	require.NoError(t, err)
	return w.Balance
}

func (e *testEnv) listing(t *testing.T, ownerID uuid.UUID, title string, price int64) *models.Listing {
	t.Helper()
	l := &models.Listing{OwnerID: ownerID, Title: title, Price: price, Status: models.ListingStatusActive}
	require.NoError(t, e.store.Store.CreateListing(context.Background(), l))
	return l
}

func (e *testEnv) buy(t *testing.T, buyerID uuid.UUID, listing *models.Listing, code string) *models.Order {
	t.Helper()
	order, err := e.purchases.Purchase(context.Background(), PurchaseRequest{
		BuyerID:       buyerID,
		ListingID:     listing.ID,
		AffiliateCode: code,
		ClientIP:      "203.0.113.7",
	})
	require.NoError(t, err)
	return order
}

func (e *testEnv) ship(t *testing.T, order *models.Order) {
	t.Helper()
	_, err := e.orders.MarkShipped(context.Background(), order.SellerID, order.ID, "TRK-0001")
	require.NoError(t, err)
}

// link создаёт партнёрскую ссылку на объявление.
func (e *testEnv) link(t *testing.T, affiliateID uuid.UUID, listing *models.Listing) *models.AffiliateLink {
	t.Helper()
	link, err := e.affiliates.GetOrCreateLink(context.Background(), affiliateID, models.RoleAffiliate, listing.ID)
	require.NoError(t, err)
	return link
}
