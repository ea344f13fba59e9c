package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/ignatzorin/ecocoin-market/internal/repository/common"
)

// RetryPolicy параметры повторов при конфликте версий и временных сбоях хранилища.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxTries: 3, InitialInterval: 20 * time.Millisecond, MaxInterval: 500 * time.Millisecond}
}

func (p RetryPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	return b
}

// withRetry повторяет op, пока она возвращает common.ErrConflict или common.ErrUnavailable.
// Остальные ошибки возвращаются сразу.
func withRetry[T any](ctx context.Context, p RetryPolicy, op func() (T, error)) (T, error) {
	tries := p.MaxTries
	if tries == 0 {
		tries = 1
	}
	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !common.IsTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(p.backOff()), backoff.WithMaxTries(tries))
}

// retryExec вариант withRetry для операций без результата.
func retryExec(ctx context.Context, p RetryPolicy, op func() error) error {
	_, err := withRetry(ctx, p, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// stopOnConflict делает конфликт окончательным: условный переход статуса
// при повторе с тем же ожидаемым значением не изменит результат.
func stopOnConflict(err error) error {
	if errors.Is(err, common.ErrConflict) {
		return backoff.Permanent(err)
	}
	return err
}
