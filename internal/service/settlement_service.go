package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/ecocoin-market/internal/domain/valueobject"
	"github.com/ignatzorin/ecocoin-market/internal/logger"
	"github.com/ignatzorin/ecocoin-market/internal/models"
	"github.com/ignatzorin/ecocoin-market/internal/pkg/apperror"
	"github.com/ignatzorin/ecocoin-market/internal/repository/common"
)

// SettlementResult итог выплаты по заказу.
type SettlementResult struct {
	OrderID      uuid.UUID  `json:"order_id"`
	SellerAmount int64      `json:"seller_amount"`
	Commission   int64      `json:"commission"`
	AffiliateID  *uuid.UUID `json:"affiliate_id,omitempty"`
	CompletedAt  time.Time  `json:"completed_at"`
}

// SettlementService подтверждает доставку и распределяет удержанные монеты.
type SettlementService struct {
	store    Ledger
	wallets  *WalletService
	engine   *EscrowEngine
	rate     decimal.Decimal
	notifier Notifier
	metrics  *Metrics
	retry    RetryPolicy
}

func NewSettlementService(store Ledger, wallets *WalletService, engine *EscrowEngine, rate decimal.Decimal,
	notifier Notifier, metrics *Metrics, retry RetryPolicy) *SettlementService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &SettlementService{
		store:    store,
		wallets:  wallets,
		engine:   engine,
		rate:     rate,
		notifier: notifier,
		metrics:  metrics,
		retry:    retry,
	}
}

// settlementPlan всё, что нужно для выплаты и записей по ней.
type settlementPlan struct {
	order  *models.Order
	escrow *models.Escrow
	link   *models.AffiliateLink
	split  valueobject.Split
	title  string
}

func (p *settlementPlan) fields() logrus.Fields {
	f := logrus.Fields{
		"order_id":   p.order.ID,
		"seller_id":  p.order.SellerID,
		"buyer_id":   p.order.BuyerID,
		"amount":     p.escrow.Amount,
		"commission": p.split.Commission,
	}
	if p.link != nil {
		f["affiliate_id"] = p.link.AffiliateID
	}
	return f
}

// ConfirmDelivery выполняет выплату по заказу от имени покупателя.
// Повторный вызов возвращает ALREADY_SETTLED и ничего не меняет.
func (s *SettlementService) ConfirmDelivery(ctx context.Context, callerID, orderID uuid.UUID) (*SettlementResult, error) {
	res, err := s.confirm(ctx, callerID, orderID)
	s.metrics.settlement(resultLabel(err))
	return res, err
}

func (s *SettlementService) confirm(ctx context.Context, callerID, orderID uuid.UUID) (*SettlementResult, error) {
	if callerID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}

	order, err := s.engine.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != callerID {
		return nil, apperror.ErrOnlyBuyerConfirms
	}
	switch order.Status {
	case models.OrderStatusShipped:
	case models.OrderStatusCompleted:
		return nil, apperror.ErrAlreadySettled
	default:
		return nil, apperror.ErrNotShipped
	}

	escrow, err := withRetry(ctx, s.retry, func() (*models.Escrow, error) {
		return s.store.GetEscrowByOrder(ctx, orderID)
	})
	if errors.Is(err, common.ErrNotFound) {
		return nil, apperror.ErrAlreadySettled
	}
	if err != nil {
		return nil, storeError(err, nil)
	}
	if escrow.Status != models.EscrowStatusHeld {
		return nil, apperror.ErrAlreadySettled
	}

	plan, err := s.plan(ctx, order, escrow)
	if err != nil {
		return nil, err
	}

	var completedAt time.Time
	sg := newSaga("settlement", plan.fields(), s.metrics).
		step("release_escrow",
			func(ctx context.Context) error {
				at, err := s.engine.Release(ctx, orderID)
				if errors.Is(err, common.ErrConflict) {
					current, rerr := s.store.GetEscrowByOrder(ctx, orderID)
					if rerr == nil && current.Status == models.EscrowStatusReleased {
						return apperror.ErrAlreadySettled
					}
					return apperror.Wrap(err, apperror.ErrCodeConflict, apperror.ErrConflict.Message)
				}
				completedAt = at
				return err
			},
			func(ctx context.Context) error {
				return s.engine.Rehold(ctx, orderID)
			}).
		step("credit_seller",
			func(ctx context.Context) error {
				return s.wallets.CreditOp(ctx, order.SellerID, plan.split.Seller,
					payoutOpID(orderID, models.TransactionTypeSale, completedAt))
			},
			func(ctx context.Context) error {
				return s.wallets.Debit(ctx, order.SellerID, plan.split.Seller)
			})
	if plan.split.Commission > 0 {
		sg.step("credit_affiliate", func(ctx context.Context) error {
			return s.wallets.CreditOp(ctx, plan.link.AffiliateID, plan.split.Commission,
				payoutOpID(orderID, models.TransactionTypeCommission, completedAt))
		}, nil)
	}
	sg.tail("record_settlement", func(ctx context.Context) error {
		return runRecords(ctx, plan.recordSteps(s.store, s.engine, completedAt))
	})
	if err := sg.run(ctx); err != nil {
		return nil, storeError(err, nil)
	}

	logger.Log.WithFields(plan.fields()).Info("settlement: доставка подтверждена, средства выплачены")

	result := &SettlementResult{
		OrderID:      order.ID,
		SellerAmount: plan.split.Seller,
		Commission:   plan.split.Commission,
		CompletedAt:  completedAt,
	}
	s.notifier.BroadcastToUser(order.SellerID, EventOrderCompleted, map[string]interface{}{
		"order_id": order.ID,
		"amount":   plan.split.Seller,
		"title":    plan.title,
	})
	if plan.split.Commission > 0 {
		affiliateID := plan.link.AffiliateID
		result.AffiliateID = &affiliateID
		s.notifier.BroadcastToUser(affiliateID, EventCommission, map[string]interface{}{
			"order_id": order.ID,
			"amount":   plan.split.Commission,
			"title":    plan.title,
		})
	}
	return result, nil
}

// plan определяет доли выплаты. Комиссия начисляется, только если ссылка заказа
// существует и принадлежит не покупателю.
func (s *SettlementService) plan(ctx context.Context, order *models.Order, escrow *models.Escrow) (*settlementPlan, error) {
	p := &settlementPlan{order: order, escrow: escrow, title: fallbackTitle}

	if order.AffiliateLinkID != nil {
		link, err := withRetry(ctx, s.retry, func() (*models.AffiliateLink, error) {
			return s.store.GetLink(ctx, *order.AffiliateLinkID)
		})
		switch {
		case err == nil && link.AffiliateID != order.BuyerID:
			p.link = link
		case err == nil:
		case errors.Is(err, common.ErrNotFound):
			logger.Log.WithField("order_id", order.ID).Warn("settlement: реферальная ссылка заказа не найдена, комиссия не начисляется")
		default:
			return nil, storeError(err, nil)
		}
	}
	p.split = valueobject.SplitCommission(escrow.Amount, s.rate, p.link != nil)

	if listing, err := s.store.GetListing(ctx, order.ListingID); err == nil {
		p.title = titleOrFallback(listing.Title)
	}
	return p, nil
}

// payoutOpID идентификатор зачисления по выплате. Зависит от момента освобождения
// удержания, поэтому повторная выплата после возврата удержания получает новый.
func payoutOpID(orderID uuid.UUID, txType string, releasedAt time.Time) uuid.UUID {
	return uuid.NewSHA1(orderID, []byte(txType+"@"+releasedAt.UTC().Format(time.RFC3339Nano)))
}

// payoutApplied проверяет, что зачисления по освобождённому удержанию действительно прошли.
// Запись о продаже делается только после всех зачислений и сама служит подтверждением.
// Иначе ищем операции выплаты в последних изменениях кошельков.
func (s *SettlementService) payoutApplied(ctx context.Context, p *settlementPlan, releasedAt time.Time) (bool, error) {
	recorded, err := s.store.TransactionExists(ctx, p.order.SellerID, p.order.ID, models.TransactionTypeSale)
	if err != nil || recorded {
		return recorded, err
	}

	ok, err := s.walletHasOp(ctx, p.order.SellerID, payoutOpID(p.order.ID, models.TransactionTypeSale, releasedAt))
	if err != nil || !ok {
		return false, err
	}
	if p.split.Commission == 0 {
		return true, nil
	}
	return s.walletHasOp(ctx, p.link.AffiliateID, payoutOpID(p.order.ID, models.TransactionTypeCommission, releasedAt))
}

func (s *SettlementService) walletHasOp(ctx context.Context, userID, opID uuid.UUID) (bool, error) {
	wallet, err := s.store.GetWallet(ctx, userID)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return wallet.HasOp(opID), nil
}

// recordSteps записи после выплаты. Каждая идемпотентна, поэтому сверка
// использует те же шаги. Заказ завершается последним: пока записи не сделаны,
// он остаётся shipped с освобождённым удержанием и виден сверке.
func (p *settlementPlan) recordSteps(store Ledger, engine *EscrowEngine, completedAt time.Time) []sagaStep {
	orderID := p.order.ID
	steps := []sagaStep{
		{name: "record_sale", action: func(ctx context.Context) error {
			return createTransaction(ctx, store, &models.Transaction{
				UserID:      p.order.SellerID,
				OrderID:     &orderID,
				Type:        models.TransactionTypeSale,
				Amount:      p.split.Seller,
				Description: SaleDescription(p.title),
			})
		}},
	}
	if p.split.Commission > 0 {
		steps = append(steps,
			sagaStep{name: "record_earning", action: func(ctx context.Context) error {
				err := store.CreateEarning(ctx, &models.AffiliateEarning{
					AffiliateID: p.link.AffiliateID,
					LinkID:      p.link.ID,
					OrderID:     orderID,
					Amount:      p.split.Commission,
				})
				if errors.Is(err, common.ErrAlreadyExists) {
					return nil
				}
				return err
			}},
			sagaStep{name: "record_commission", action: func(ctx context.Context) error {
				return createTransaction(ctx, store, &models.Transaction{
					UserID:      p.link.AffiliateID,
					OrderID:     &orderID,
					Type:        models.TransactionTypeCommission,
					Amount:      p.split.Commission,
					Description: CommissionDescription(p.title),
				})
			}},
		)
	}
	return append(steps, sagaStep{name: "complete_order", action: func(ctx context.Context) error {
		return engine.Complete(ctx, orderID, completedAt)
	}})
}

// runRecords выполняет шаги по порядку и останавливается на первой ошибке.
func runRecords(ctx context.Context, steps []sagaStep) error {
	for _, st := range steps {
		if err := st.action(ctx); err != nil {
			return fmt.Errorf("%s: %w", st.name, err)
		}
	}
	return nil
}
