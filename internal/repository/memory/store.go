// Package memory реализует хранилище маркетплейса в памяти процесса.
// Используется для локального запуска и в тестах сервисов.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignatzorin/ecocoin-market/internal/domain/valueobject"
	"github.com/ignatzorin/ecocoin-market/internal/models"
	"github.com/ignatzorin/ecocoin-market/internal/repository/common"
)

type txKey struct {
	orderID uuid.UUID
	userID  uuid.UUID
	txType  string
}

type pairKey struct {
	affiliateID uuid.UUID
	listingID   uuid.UUID
}

// Store хранит записи с теми же ограничениями уникальности и условными обновлениями,
// что и схема PostgreSQL. Наружу отдаются только копии.
type Store struct {
	mu sync.RWMutex

	wallets      map[uuid.UUID]models.Wallet
	listings     map[uuid.UUID]models.Listing
	orders       map[uuid.UUID]models.Order
	escrows      map[uuid.UUID]models.Escrow
	transactions []models.Transaction
	txIndex      map[txKey]struct{}
	links        map[uuid.UUID]models.AffiliateLink
	linkCodes    map[string]uuid.UUID
	linkPairs    map[pairKey]uuid.UUID
	clicks       []models.AffiliateClick
	earnings     map[uuid.UUID]models.AffiliateEarning

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		wallets:   make(map[uuid.UUID]models.Wallet),
		listings:  make(map[uuid.UUID]models.Listing),
		orders:    make(map[uuid.UUID]models.Order),
		escrows:   make(map[uuid.UUID]models.Escrow),
		txIndex:   make(map[txKey]struct{}),
		links:     make(map[uuid.UUID]models.AffiliateLink),
		linkCodes: make(map[string]uuid.UUID),
		linkPairs: make(map[pairKey]uuid.UUID),
		earnings:  make(map[uuid.UUID]models.AffiliateEarning),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}
	return nil
}

// Wallets

func (s *Store) GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[userID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &w, nil
}

func (s *Store) CreateWallet(ctx context.Context, userID uuid.UUID, balance int64) (*models.Wallet, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	if balance < 0 {
		return nil, common.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wallets[userID]; ok {
		return nil, common.ErrAlreadyExists
	}
	now := s.now()
	w := models.Wallet{UserID: userID, Balance: balance, CreatedAt: now, UpdatedAt: now}
	s.wallets[userID] = w
	return &w, nil
}

func (s *Store) UpdateBalance(ctx context.Context, userID uuid.UUID, expectedVersion, newBalance int64, opID uuid.UUID) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if newBalance < 0 {
		return common.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	if !ok || w.Version != expectedVersion {
		return common.ErrConflict
	}
	w.Balance = newBalance
	w.Version++
	w.RecentOps = prependOp(w.RecentOps, opID)
	w.UpdatedAt = s.now()
	s.wallets[userID] = w
	return nil
}

// prependOp возвращает новый срез, чтобы ранее выданные копии кошелька не менялись.
func prependOp(ops []string, opID uuid.UUID) []string {
	n := len(ops) + 1
	if n > models.WalletRecentOpsLimit {
		n = models.WalletRecentOpsLimit
	}
	out := make([]string, 0, n)
	out = append(out, opID.String())
	return append(out, ops[:n-1]...)
}

// Listings

func (s *Store) CreateListing(ctx context.Context, listing *models.Listing) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if listing.ID == uuid.Nil {
		listing.ID = uuid.New()
	}
	if listing.Status == "" {
		listing.Status = models.ListingStatusActive
	}
	if listing.Photos == nil {
		listing.Photos = pq.StringArray{}
	}
	if listing.OwnerID == uuid.Nil || strings.TrimSpace(listing.Title) == "" || listing.Price <= 0 {
		return common.ErrInvalidInput
	}
	if _, ok := models.ValidListingStatuses[listing.Status]; !ok {
		return common.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listings[listing.ID]; ok {
		return common.ErrAlreadyExists
	}
	now := s.now()
	listing.CreatedAt, listing.UpdatedAt = now, now
	s.listings[listing.ID] = copyListing(*listing)
	return nil
}

func (s *Store) GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	l = copyListing(l)
	return &l, nil
}

func (s *Store) ListActiveListings(ctx context.Context, limit, offset int) ([]models.Listing, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var out []models.Listing
	for _, l := range s.listings {
		if l.Status == models.ListingStatusActive {
			out = append(out, copyListing(l))
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (s *Store) ListListingsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Listing, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var out []models.Listing
	for _, l := range s.listings {
		if l.OwnerID == ownerID {
			out = append(out, copyListing(l))
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateListingStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if _, ok := models.ValidListingStatuses[to]; !ok {
		return common.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok || l.Status != from {
		return common.ErrConflict
	}
	l.Status = to
	l.UpdatedAt = s.now()
	s.listings[id] = l
	return nil
}

func (s *Store) AddListingPhoto(ctx context.Context, id uuid.UUID, url string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return common.ErrNotFound
	}
	l = copyListing(l)
	l.Photos = append(l.Photos, url)
	l.UpdatedAt = s.now()
	s.listings[id] = l
	return nil
}

// Orders

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	if order.Amount <= 0 || order.BuyerID == uuid.Nil || order.SellerID == uuid.Nil || order.Status != models.OrderStatusPending {
		return common.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.ID]; ok {
		return common.ErrAlreadyExists
	}
	now := s.now()
	order.CreatedAt, order.UpdatedAt = now, now
	stored := *order
	stored.Listing = nil
	s.orders[order.ID] = stored
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &o, nil
}

func (s *Store) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != models.OrderStatusPending {
		return common.ErrConflict
	}
	delete(s.orders, id)
	delete(s.escrows, id)
	return nil
}

func (s *Store) TransitionOrder(ctx context.Context, id uuid.UUID, t models.OrderTransition) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if !valueobject.OrderStatus(t.From).CanTransitionTo(valueobject.OrderStatus(t.To)) {
		return common.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != t.From {
		return common.ErrConflict
	}
	o.Status = t.To
	if t.TrackingNumber != nil {
		v := *t.TrackingNumber
		o.TrackingNumber = &v
	}
	if t.ShippedAt != nil {
		v := *t.ShippedAt
		o.ShippedAt = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		o.CompletedAt = &v
	}
	o.UpdatedAt = s.now()
	s.orders[id] = o
	return nil
}

func (s *Store) ListOrdersByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	return s.filterOrders(ctx, func(o models.Order) bool { return o.BuyerID == buyerID })
}

func (s *Store) ListOrdersBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Order, error) {
	return s.filterOrders(ctx, func(o models.Order) bool { return o.SellerID == sellerID })
}

func (s *Store) ListOrdersByStatus(ctx context.Context, status string, before time.Time, after *models.OrderCursor, limit int) ([]models.Order, error) {
	orders, err := s.filterOrders(ctx, func(o models.Order) bool {
		return o.Status == status && o.UpdatedAt.Before(before) && (after == nil || cursorLess(after, o))
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].UpdatedAt.Equal(orders[j].UpdatedAt) {
			return orders[i].ID.String() < orders[j].ID.String()
		}
		return orders[i].UpdatedAt.Before(orders[j].UpdatedAt)
	})
	return page(orders, limit, 0), nil
}

// cursorLess сравнивает как (updated_at, id) > (c.UpdatedAt, c.ID) в Postgres.
func cursorLess(c *models.OrderCursor, o models.Order) bool {
	if !o.UpdatedAt.Equal(c.UpdatedAt) {
		return o.UpdatedAt.After(c.UpdatedAt)
	}
	return o.ID.String() > c.ID.String()
}

func (s *Store) filterOrders(ctx context.Context, keep func(models.Order) bool) ([]models.Order, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var out []models.Order
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Escrow

func (s *Store) CreateEscrow(ctx context.Context, escrow *models.Escrow) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if escrow.ID == uuid.Nil {
		escrow.ID = uuid.New()
	}
	escrow.Status = models.EscrowStatusHeld
	if escrow.Amount <= 0 || escrow.OrderID == uuid.Nil {
		return common.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[escrow.OrderID]; !ok {
		return common.ErrInvalidInput
	}
	if _, ok := s.escrows[escrow.OrderID]; ok {
		return common.ErrAlreadyExists
	}
	escrow.CreatedAt = s.now()
	s.escrows[escrow.OrderID] = *escrow
	return nil
}

func (s *Store) GetEscrowByOrder(ctx context.Context, orderID uuid.UUID) (*models.Escrow, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.escrows[orderID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &e, nil
}

func (s *Store) TransitionEscrow(ctx context.Context, orderID uuid.UUID, from, to string, releasedAt *time.Time) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if !valueobject.EscrowStatus(from).CanTransitionTo(valueobject.EscrowStatus(to)) {
		return common.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.escrows[orderID]
	if !ok || e.Status != from {
		return common.ErrConflict
	}
	e.Status = to
	e.ReleasedAt = nil
	if releasedAt != nil {
		v := *releasedAt
		e.ReleasedAt = &v
	}
	s.escrows[orderID] = e
	return nil
}

// Transactions

func (s *Store) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	switch txn.Type {
	case models.TransactionTypePurchase, models.TransactionTypeSale, models.TransactionTypeCommission:
	default:
		return common.ErrInvalidInput
	}
	if txn.UserID == uuid.Nil {
		return common.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if txn.OrderID != nil {
		key := txKey{orderID: *txn.OrderID, userID: txn.UserID, txType: txn.Type}
		if _, ok := s.txIndex[key]; ok {
			return common.ErrAlreadyExists
		}
		s.txIndex[key] = struct{}{}
	}
	txn.CreatedAt = s.now()
	s.transactions = append(s.transactions, *txn)
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var out []models.Transaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if s.transactions[i].UserID == userID {
			out = append(out, s.transactions[i])
		}
	}
	s.mu.RUnlock()
	return page(out, limit, offset), nil
}

func (s *Store) CountTransactions(ctx context.Context, userID uuid.UUID) (int, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, t := range s.transactions {
		if t.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (s *Store) TransactionExists(ctx context.Context, userID, orderID uuid.UUID, txType string) (bool, error) {
	if err := ctxErr(ctx); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.txIndex[txKey{orderID: orderID, userID: userID, txType: txType}]
	return ok, nil
}

// Affiliate

func (s *Store) CreateLink(ctx context.Context, link *models.AffiliateLink) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	if strings.TrimSpace(link.Code) == "" || link.AffiliateID == uuid.Nil || link.ListingID == uuid.Nil {
		return common.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pair := pairKey{affiliateID: link.AffiliateID, listingID: link.ListingID}
	if _, ok := s.linkPairs[pair]; ok {
		return fmt.Errorf("%w: affiliate_links_affiliate_id_listing_id_key", common.ErrAlreadyExists)
	}
	if _, ok := s.linkCodes[link.Code]; ok {
		return fmt.Errorf("%w: affiliate_links_code_key", common.ErrAlreadyExists)
	}
	link.CreatedAt = s.now()
	s.links[link.ID] = *link
	s.linkCodes[link.Code] = link.ID
	s.linkPairs[pair] = link.ID
	return nil
}

func (s *Store) GetLink(ctx context.Context, id uuid.UUID) (*models.AffiliateLink, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.links[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &l, nil
}

func (s *Store) GetLinkByCode(ctx context.Context, code string) (*models.AffiliateLink, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.linkCodes[code]
	if !ok {
		return nil, common.ErrNotFound
	}
	l := s.links[id]
	return &l, nil
}

func (s *Store) GetLinkByPair(ctx context.Context, affiliateID, listingID uuid.UUID) (*models.AffiliateLink, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.linkPairs[pairKey{affiliateID: affiliateID, listingID: listingID}]
	if !ok {
		return nil, common.ErrNotFound
	}
	l := s.links[id]
	return &l, nil
}

func (s *Store) ListLinksByAffiliate(ctx context.Context, affiliateID uuid.UUID) ([]models.AffiliateLink, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var out []models.AffiliateLink
	for _, l := range s.links {
		if l.AffiliateID == affiliateID {
			out = append(out, l)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) RecordClick(ctx context.Context, click *models.AffiliateClick) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if click.ID == uuid.Nil {
		click.ID = uuid.New()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[click.LinkID]; !ok {
		return common.ErrInvalidInput
	}
	click.ClickedAt = s.now()
	s.clicks = append(s.clicks, *click)
	return nil
}

func (s *Store) CountClicks(ctx context.Context, linkID uuid.UUID) (int64, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, c := range s.clicks {
		if c.LinkID == linkID {
			count++
		}
	}
	return count, nil
}

func (s *Store) CreateEarning(ctx context.Context, earning *models.AffiliateEarning) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if earning.ID == uuid.Nil {
		earning.ID = uuid.New()
	}
	if earning.Amount < 0 {
		return common.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.earnings[earning.OrderID]; ok {
		return common.ErrAlreadyExists
	}
	earning.CreatedAt = s.now()
	s.earnings[earning.OrderID] = *earning
	return nil
}

func (s *Store) EarningsByLink(ctx context.Context, linkID uuid.UUID) (int64, int64, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sales, total int64
	for _, e := range s.earnings {
		if e.LinkID == linkID {
			sales++
			total += e.Amount
		}
	}
	return sales, total, nil
}

// TotalCoins сумма балансов всех кошельков и удержаний в статусе held.
func (s *Store) TotalCoins() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, w := range s.wallets {
		total += w.Balance
	}
	for _, e := range s.escrows {
		if e.Status == models.EscrowStatusHeld {
			total += e.Amount
		}
	}
	return total
}

func copyListing(l models.Listing) models.Listing {
	if l.Photos != nil {
		photos := make(pq.StringArray, len(l.Photos))
		copy(photos, l.Photos)
		l.Photos = photos
	}
	return l
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
