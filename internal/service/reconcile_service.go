package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/ecocoin-market/internal/logger"
	"github.com/ignatzorin/ecocoin-market/internal/models"
	"github.com/ignatzorin/ecocoin-market/internal/repository/common"
)

const (
	defaultReconcileGrace = 2 * time.Minute
	reconcileBatchSize    = 200
)

// ReconcileReport итог одного прохода сверки.
type ReconcileReport struct {
	PendingScanned int `json:"pending_scanned"`
	ShippedScanned int `json:"shipped_scanned"`
	Repaired       int `json:"repaired"`
	Failed         int `json:"failed"`
}

// ReconcileService досоздаёт записи, которые покупка и выплата делают без отката.
// Монеты сверка не двигает: балансы меняют только покупка и выплата.
type ReconcileService struct {
	store      Ledger
	engine     *EscrowEngine
	settlement *SettlementService
	metrics    *Metrics
	grace      time.Duration
	now        func() time.Time
}

// NewReconcileService создаёт сверку. Заказы, изменённые позже чем grace назад,
// не трогаются: их запросы могут ещё выполняться.
func NewReconcileService(store Ledger, engine *EscrowEngine, settlement *SettlementService, metrics *Metrics, grace time.Duration) *ReconcileService {
	if grace <= 0 {
		grace = defaultReconcileGrace
	}
	return &ReconcileService{
		store:      store,
		engine:     engine,
		settlement: settlement,
		metrics:    metrics,
		grace:      grace,
		now:        time.Now,
	}
}

// Start запускает периодическую сверку до отмены ctx.
func (s *ReconcileService) Start(ctx context.Context, interval time.Duration) {
	log := logger.Component("reconciler")
	log.WithField("interval", interval.String()).Info("reconciler: запуск")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("reconciler: остановка")
			return
		case <-ticker.C:
			report, err := s.RunOnce(ctx)
			if err != nil {
				log.WithError(err).Error("reconciler: проход не завершён")
				continue
			}
			if report.Repaired > 0 || report.Failed > 0 {
				log.WithFields(logrus.Fields{
					"pending":  report.PendingScanned,
					"shipped":  report.ShippedScanned,
					"repaired": report.Repaired,
					"failed":   report.Failed,
				}).Info("reconciler: проход завершён")
			}
		}
	}
}

// RunOnce выполняет один проход по незавершённым заказам.
func (s *ReconcileService) RunOnce(ctx context.Context) (*ReconcileReport, error) {
	cutoff := s.now().Add(-s.grace)
	report := &ReconcileReport{}

	err := s.scan(ctx, models.OrderStatusPending, cutoff, func(order *models.Order) {
		report.PendingScanned++
		repaired, err := s.repairPending(ctx, order)
		s.tally(report, order, repaired, err)
	})
	if err != nil {
		return report, err
	}

	err = s.scan(ctx, models.OrderStatusShipped, cutoff, func(order *models.Order) {
		report.ShippedScanned++
		repaired, err := s.repairShipped(ctx, order)
		s.tally(report, order, repaired, err)
	})
	return report, err
}

func (s *ReconcileService) tally(report *ReconcileReport, order *models.Order, repaired bool, err error) {
	if err != nil {
		report.Failed++
		logger.Log.WithFields(logrus.Fields{
			"order_id": order.ID,
			"status":   order.Status,
		}).WithError(err).Warn("reconciler: заказ не сверен")
		return
	}
	if repaired {
		report.Repaired++
	}
}

func (s *ReconcileService) scan(ctx context.Context, status string, cutoff time.Time, fn func(order *models.Order)) error {
	var after *models.OrderCursor
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		orders, err := s.store.ListOrdersByStatus(ctx, status, cutoff, after, reconcileBatchSize)
		if err != nil {
			return err
		}
		for i := range orders {
			fn(&orders[i])
		}
		if len(orders) < reconcileBatchSize {
			return nil
		}
		after = orders[len(orders)-1].CursorAfter()
	}
}

// repairPending: у заказа с удержанием должны быть транзакция покупки и проданное объявление.
// Заказ без удержания остался от прерванной покупки и отменяется.
func (s *ReconcileService) repairPending(ctx context.Context, order *models.Order) (bool, error) {
	escrow, err := s.store.GetEscrowByOrder(ctx, order.ID)
	if errors.Is(err, common.ErrNotFound) {
		if err := s.engine.Cancel(ctx, order.ID); err != nil {
			return false, err
		}
		logger.Log.WithFields(logrus.Fields{
			"order_id": order.ID,
			"buyer_id": order.BuyerID,
			"amount":   order.Amount,
		}).Error("reconciler: заказ без удержания отменён, проверьте баланс покупателя")
		s.metrics.reconcile("orphan_order")
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if escrow.Status != models.EscrowStatusHeld {
		return false, nil
	}

	repaired := false
	exists, err := s.store.TransactionExists(ctx, order.BuyerID, order.ID, models.TransactionTypePurchase)
	if err != nil {
		return false, err
	}
	if !exists {
		title := fallbackTitle
		if listing, err := s.store.GetListing(ctx, order.ListingID); err == nil {
			title = listing.Title
		}
		orderID := order.ID
		if err := createTransaction(ctx, s.store, &models.Transaction{
			UserID:      order.BuyerID,
			OrderID:     &orderID,
			Type:        models.TransactionTypePurchase,
			Amount:      -order.Amount,
			Description: PurchaseDescription(title),
		}); err != nil {
			return false, err
		}
		s.metrics.reconcile("purchase_transaction")
		repaired = true
	}

	err = s.store.UpdateListingStatus(ctx, order.ListingID, models.ListingStatusActive, models.ListingStatusSold)
	switch {
	case err == nil:
		s.metrics.reconcile("listing_sold")
		repaired = true
	case errors.Is(err, common.ErrConflict):
		// уже продано
	default:
		return repaired, err
	}
	return repaired, nil
}

// errPayoutUnverified удержание освобождено, но зачисления по нему не найдены.
var errPayoutUnverified = errors.New("payout not found in wallets")

// repairShipped: освобождённое удержание с подтверждённым зачислением.
// Досоздаются записи выплаты и заказ завершается. Без подтверждения
// записи не делаются, заказ остаётся для ручной проверки.
func (s *ReconcileService) repairShipped(ctx context.Context, order *models.Order) (bool, error) {
	escrow, err := s.store.GetEscrowByOrder(ctx, order.ID)
	if err != nil {
		return false, err
	}
	if escrow.Status != models.EscrowStatusReleased || escrow.ReleasedAt == nil {
		return false, nil
	}
	if escrow.ReleasedAt.After(s.now().Add(-s.grace)) {
		return false, nil
	}

	plan, err := s.settlement.plan(ctx, order, escrow)
	if err != nil {
		return false, err
	}
	paid, err := s.settlement.payoutApplied(ctx, plan, *escrow.ReleasedAt)
	if err != nil {
		return false, err
	}
	if !paid {
		logger.Log.WithFields(plan.fields()).
			WithField("released_at", *escrow.ReleasedAt).
			Error("reconciler: удержание освобождено без выплаты, требуется ручная проверка")
		s.metrics.reconcile("unverified_payout")
		return false, errPayoutUnverified
	}
	if err := runRecords(ctx, plan.recordSteps(s.store, s.engine, *escrow.ReleasedAt)); err != nil {
		return false, err
	}

	logger.Log.WithFields(plan.fields()).Info("reconciler: выплата дозавершена")
	s.metrics.reconcile("settlement")
	return true, nil
}
