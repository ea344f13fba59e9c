package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/ecocoin-market/internal/models"
	"github.com/ignatzorin/ecocoin-market/internal/pkg/apperror"
	"github.com/ignatzorin/ecocoin-market/internal/repository/common"
	"github.com/ignatzorin/ecocoin-market/internal/validation"
)

// EscrowEngine управляет статусами заказа и удержания.
//
//	pending -> shipped    продавец, с трек-номером
//	shipped -> completed  только через подтверждение доставки
//	pending -> cancelled  только при откате покупки
//
// Каждый переход выполняется условным обновлением по текущему статусу.
type EscrowEngine struct {
	orders  OrderStore
	escrows EscrowStore
	retry   RetryPolicy
	now     func() time.Time
}

func NewEscrowEngine(orders OrderStore, escrows EscrowStore, retry RetryPolicy) *EscrowEngine {
	return &EscrowEngine{
		orders:  orders,
		escrows: escrows,
		retry:   retry,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func invalidTransition(from, to string) *apperror.AppError {
	return apperror.New(apperror.ErrCodeInvalidTransition,
		fmt.Sprintf("недопустимый переход заказа: %s -> %s", from, to))
}

func (e *EscrowEngine) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := withRetry(ctx, e.retry, func() (*models.Order, error) {
		return e.orders.GetOrder(ctx, orderID)
	})
	if err != nil {
		return nil, storeError(err, apperror.ErrOrderNotFound)
	}
	return order, nil
}

// MarkShipped переводит заказ в shipped от имени продавца.
func (e *EscrowEngine) MarkShipped(ctx context.Context, sellerID, orderID uuid.UUID, trackingNumber string) (*models.Order, error) {
	if strings.TrimSpace(trackingNumber) == "" {
		return nil, apperror.ErrMissingTracking
	}

	order, err := e.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != sellerID {
		return nil, apperror.ErrOnlySellerShips
	}
	tracking, err := validation.NormalizeTrackingNumber(trackingNumber)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if order.Status != models.OrderStatusPending {
		return nil, invalidTransition(order.Status, models.OrderStatusShipped)
	}

	shippedAt := e.now()
	err = retryExec(ctx, e.retry, func() error {
		return stopOnConflict(e.orders.TransitionOrder(ctx, orderID, models.OrderTransition{
			From:           models.OrderStatusPending,
			To:             models.OrderStatusShipped,
			TrackingNumber: &tracking,
			ShippedAt:      &shippedAt,
		}))
	})
	if errors.Is(err, common.ErrConflict) {
		current, rerr := e.loadOrder(ctx, orderID)
		if rerr != nil {
			return nil, rerr
		}
		// Повтор после потерянного ответа: переход уже применён этим же запросом.
		if current.Status == models.OrderStatusShipped && current.TrackingNumber != nil && *current.TrackingNumber == tracking {
			return current, nil
		}
		if current.Status != models.OrderStatusPending {
			return nil, invalidTransition(current.Status, models.OrderStatusShipped)
		}
		return nil, storeError(err, nil)
	}
	if err != nil {
		return nil, storeError(err, apperror.ErrOrderNotFound)
	}

	order.Status = models.OrderStatusShipped
	order.TrackingNumber = &tracking
	order.ShippedAt = &shippedAt
	return order, nil
}

// Cancel переводит pending заказ в cancelled. Только для отката покупки.
func (e *EscrowEngine) Cancel(ctx context.Context, orderID uuid.UUID) error {
	return retryExec(ctx, e.retry, func() error {
		return stopOnConflict(e.orders.TransitionOrder(ctx, orderID, models.OrderTransition{
			From: models.OrderStatusPending,
			To:   models.OrderStatusCancelled,
		}))
	})
}

// Release переводит удержание held -> released.
// Возвращает common.ErrConflict, если удержание уже освобождено другим запросом.
func (e *EscrowEngine) Release(ctx context.Context, orderID uuid.UUID) (time.Time, error) {
	releasedAt := e.now()
	attempts := 0
	err := retryExec(ctx, e.retry, func() error {
		attempts++
		return stopOnConflict(e.escrows.TransitionEscrow(ctx, orderID, models.EscrowStatusHeld, models.EscrowStatusReleased, &releasedAt))
	})
	if errors.Is(err, common.ErrConflict) && attempts > 1 {
		// Ответ на предыдущую попытку мог потеряться: своё освобождение узнаём по отметке времени.
		escrow, rerr := e.escrows.GetEscrowByOrder(ctx, orderID)
		if rerr == nil && escrow.Status == models.EscrowStatusReleased &&
			escrow.ReleasedAt != nil && escrow.ReleasedAt.Equal(releasedAt) {
			return releasedAt, nil
		}
	}
	return releasedAt, err
}

// Rehold возвращает удержание в held. Компенсация неудачной выплаты.
func (e *EscrowEngine) Rehold(ctx context.Context, orderID uuid.UUID) error {
	return retryExec(ctx, e.retry, func() error {
		return stopOnConflict(e.escrows.TransitionEscrow(ctx, orderID, models.EscrowStatusReleased, models.EscrowStatusHeld, nil))
	})
}

// Complete переводит shipped заказ в completed. Повторный вызов для завершённого заказа не ошибка.
func (e *EscrowEngine) Complete(ctx context.Context, orderID uuid.UUID, completedAt time.Time) error {
	err := retryExec(ctx, e.retry, func() error {
		return stopOnConflict(e.orders.TransitionOrder(ctx, orderID, models.OrderTransition{
			From:        models.OrderStatusShipped,
			To:          models.OrderStatusCompleted,
			CompletedAt: &completedAt,
		}))
	})
	if errors.Is(err, common.ErrConflict) {
		order, rerr := e.orders.GetOrder(ctx, orderID)
		if rerr == nil && order.Status == models.OrderStatusCompleted {
			return nil
		}
	}
	return err
}
