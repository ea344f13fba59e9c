package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/ecocoin-market/internal/models"
)

// WalletStore хранит балансы. UpdateBalance применяется только при совпадении версии
// и запоминает opID в Wallet.RecentOps.
type WalletStore interface {
	GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	CreateWallet(ctx context.Context, userID uuid.UUID, balance int64) (*models.Wallet, error)
	UpdateBalance(ctx context.Context, userID uuid.UUID, expectedVersion, newBalance int64, opID uuid.UUID) error
}

type ListingStore interface {
	CreateListing(ctx context.Context, listing *models.Listing) error
	GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	ListActiveListings(ctx context.Context, limit, offset int) ([]models.Listing, error)
	ListListingsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Listing, error)
	UpdateListingStatus(ctx context.Context, id uuid.UUID, from, to string) error
	AddListingPhoto(ctx context.Context, id uuid.UUID, url string) error
}

type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	TransitionOrder(ctx context.Context, id uuid.UUID, t models.OrderTransition) error
	ListOrdersByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error)
	ListOrdersBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Order, error)
	ListOrdersByStatus(ctx context.Context, status string, before time.Time, after *models.OrderCursor, limit int) ([]models.Order, error)
}

type EscrowStore interface {
	CreateEscrow(ctx context.Context, escrow *models.Escrow) error
	GetEscrowByOrder(ctx context.Context, orderID uuid.UUID) (*models.Escrow, error)
	TransitionEscrow(ctx context.Context, orderID uuid.UUID, from, to string, releasedAt *time.Time) error
}

type TransactionStore interface {
	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
	CountTransactions(ctx context.Context, userID uuid.UUID) (int, error)
	TransactionExists(ctx context.Context, userID, orderID uuid.UUID, txType string) (bool, error)
}

type AffiliateStore interface {
	CreateLink(ctx context.Context, link *models.AffiliateLink) error
	GetLink(ctx context.Context, id uuid.UUID) (*models.AffiliateLink, error)
	GetLinkByCode(ctx context.Context, code string) (*models.AffiliateLink, error)
	GetLinkByPair(ctx context.Context, affiliateID, listingID uuid.UUID) (*models.AffiliateLink, error)
	ListLinksByAffiliate(ctx context.Context, affiliateID uuid.UUID) ([]models.AffiliateLink, error)
	RecordClick(ctx context.Context, click *models.AffiliateClick) error
	CountClicks(ctx context.Context, linkID uuid.UUID) (int64, error)
	CreateEarning(ctx context.Context, earning *models.AffiliateEarning) error
	EarningsByLink(ctx context.Context, linkID uuid.UUID) (sales int64, total int64, err error)
}

// Ledger полный набор хранилищ маркетплейса. Реализуется repository.Ledger и memory.Store.
type Ledger interface {
	WalletStore
	ListingStore
	OrderStore
	EscrowStore
	TransactionStore
	AffiliateStore
}

// Notifier доставляет пользователю событие в реальном времени.
type Notifier interface {
	BroadcastToUser(userID uuid.UUID, event string, data interface{})
}

type noopNotifier struct{}

func (noopNotifier) BroadcastToUser(uuid.UUID, string, interface{}) {}

// События уведомлений
const (
	EventOrderCreated   = "order_created"
	EventOrderShipped   = "order_shipped"
	EventOrderCompleted = "order_completed"
	EventCommission     = "affiliate_commission"
)
