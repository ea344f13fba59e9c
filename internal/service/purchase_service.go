package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/ecocoin-market/internal/logger"
	"github.com/ignatzorin/ecocoin-market/internal/models"
	"github.com/ignatzorin/ecocoin-market/internal/pkg/apperror"
	"github.com/ignatzorin/ecocoin-market/internal/repository/common"
	"github.com/ignatzorin/ecocoin-market/internal/validation"
)

// PurchaseRequest входные данные покупки.
type PurchaseRequest struct {
	BuyerID       uuid.UUID
	ListingID     uuid.UUID
	AffiliateCode string
	BuyerNotes    *string
	ClientIP      string
}

// PurchaseService проводит покупку: списание, заказ, удержание.
type PurchaseService struct {
	store      Ledger
	wallets    *WalletService
	engine     *EscrowEngine
	affiliates *AffiliateService
	notifier   Notifier
	metrics    *Metrics
	retry      RetryPolicy
}

func NewPurchaseService(store Ledger, wallets *WalletService, engine *EscrowEngine, affiliates *AffiliateService,
	notifier Notifier, metrics *Metrics, retry RetryPolicy) *PurchaseService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &PurchaseService{
		store:      store,
		wallets:    wallets,
		engine:     engine,
		affiliates: affiliates,
		notifier:   notifier,
		metrics:    metrics,
		retry:      retry,
	}
}

// Purchase покупает объявление. Ошибки предусловий не оставляют следов в хранилище.
// После создания удержания покупка считается состоявшейся: запись транзакции
// и пометка объявления проданным выполняются без отката.
func (s *PurchaseService) Purchase(ctx context.Context, req PurchaseRequest) (*models.Order, error) {
	order, err := s.purchase(ctx, req)
	s.metrics.purchase(resultLabel(err))
	return order, err
}

func (s *PurchaseService) purchase(ctx context.Context, req PurchaseRequest) (*models.Order, error) {
	if req.BuyerID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}
	if req.BuyerNotes != nil {
		if err := validation.ValidateLength("комментарий покупателя", *req.BuyerNotes, 0, validation.MaxBuyerNotesLength); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
	}

	listing, err := withRetry(ctx, s.retry, func() (*models.Listing, error) {
		return s.store.GetListing(ctx, req.ListingID)
	})
	if err != nil {
		return nil, storeError(err, apperror.ErrListingNotFound)
	}
	if listing.Status != models.ListingStatusActive {
		return nil, apperror.ErrNotAvailable
	}
	if listing.OwnerID == req.BuyerID {
		return nil, apperror.ErrSelfPurchase
	}

	wallet, err := withRetry(ctx, s.retry, func() (*models.Wallet, error) {
		return s.store.GetWallet(ctx, req.BuyerID)
	})
	if errors.Is(err, common.ErrNotFound) {
		return nil, apperror.ErrInsufficientFunds
	}
	if err != nil {
		return nil, storeError(err, nil)
	}
	if wallet.Balance < listing.Price {
		return nil, apperror.ErrInsufficientFunds
	}

	var linkID *uuid.UUID
	if link := s.affiliates.Attribute(ctx, req.AffiliateCode, listing.ID, req.BuyerID, req.ClientIP); link != nil {
		id := link.ID
		linkID = &id
	}

	order := &models.Order{
		ID:              uuid.New(),
		BuyerID:         req.BuyerID,
		SellerID:        listing.OwnerID,
		ListingID:       listing.ID,
		AffiliateLinkID: linkID,
		Amount:          listing.Price,
		Status:          models.OrderStatusPending,
		BuyerNotes:      req.BuyerNotes,
	}
	fields := logrus.Fields{
		"order_id":   order.ID,
		"listing_id": listing.ID,
		"buyer_id":   req.BuyerID,
		"amount":     listing.Price,
	}

	err = newSaga("purchase", fields, s.metrics).
		step("debit_buyer",
			func(ctx context.Context) error {
				return s.wallets.Debit(ctx, req.BuyerID, listing.Price)
			},
			func(ctx context.Context) error {
				return s.wallets.Credit(ctx, req.BuyerID, listing.Price)
			}).
		step("create_order",
			func(ctx context.Context) error {
				return retryExec(ctx, s.retry, func() error {
					err := s.store.CreateOrder(ctx, order)
					if errors.Is(err, common.ErrAlreadyExists) {
						// Первая попытка дошла до хранилища, ответ потерян.
						return nil
					}
					return err
				})
			},
			s.discardOrder(order.ID)).
		step("create_escrow",
			func(ctx context.Context) error {
				escrow := &models.Escrow{
					OrderID:  order.ID,
					BuyerID:  order.BuyerID,
					SellerID: order.SellerID,
					Amount:   order.Amount,
				}
				return retryExec(ctx, s.retry, func() error {
					err := s.store.CreateEscrow(ctx, escrow)
					if errors.Is(err, common.ErrAlreadyExists) {
						return nil
					}
					return err
				})
			}, nil).
		tail("record_purchase", func(ctx context.Context) error {
			return createTransaction(ctx, s.store, &models.Transaction{
				UserID:      req.BuyerID,
				OrderID:     &order.ID,
				Type:        models.TransactionTypePurchase,
				Amount:      -listing.Price,
				Description: PurchaseDescription(listing.Title),
			})
		}).
		tail("mark_listing_sold", func(ctx context.Context) error {
			return s.store.UpdateListingStatus(ctx, listing.ID, models.ListingStatusActive, models.ListingStatusSold)
		}).
		run(ctx)
	if err != nil {
		return nil, storeError(err, nil)
	}

	logger.Log.WithFields(fields).Info("purchase: заказ создан, средства удержаны")
	s.notifier.BroadcastToUser(order.SellerID, EventOrderCreated, map[string]interface{}{
		"order_id":   order.ID,
		"listing_id": listing.ID,
		"title":      listing.Title,
		"amount":     order.Amount,
	})

	order.Listing = listing
	return order, nil
}

// discardOrder компенсирует создание заказа: удаление, а если оно невозможно, отмена.
func (s *PurchaseService) discardOrder(orderID uuid.UUID) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		err := retryExec(ctx, s.retry, func() error {
			return stopOnConflict(s.store.DeleteOrder(ctx, orderID))
		})
		if err == nil {
			return nil
		}
		logger.Log.WithField("order_id", orderID).WithError(err).Warn("purchase: не удалось удалить заказ, отменяем")
		return s.engine.Cancel(ctx, orderID)
	}
}

// createTransaction добавляет запись журнала. Уже существующая запись не ошибка.
func createTransaction(ctx context.Context, store TransactionStore, txn *models.Transaction) error {
	err := store.CreateTransaction(ctx, txn)
	if errors.Is(err, common.ErrAlreadyExists) {
		return nil
	}
	return err
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apperror.CodeOf(err))
}
