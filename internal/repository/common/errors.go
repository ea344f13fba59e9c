package common

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"
)

// Общие ошибки для всех хранилищ
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidInput  = errors.New("invalid input")
	// ErrConflict условное обновление не применилось: запись изменилась после чтения.
	ErrConflict = errors.New("concurrent modification")
	// ErrUnavailable временный сбой хранилища, запрос можно повторить.
	ErrUnavailable = errors.New("store unavailable")
)

// Classify переводит ошибки драйвера в общие ошибки хранилища.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyExists) || errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrUnavailable) || errors.Is(err, ErrInvalidInput) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrAlreadyExists, pqErr.Constraint)
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %w", ErrConflict, err)
		case "23503", "23514", "22P02", "23502":
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		switch pqErr.Code.Class() {
		case "08", "53", "57":
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return err
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

// IsTransient true для ошибок, после которых запрос можно повторить как есть.
func IsTransient(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrUnavailable)
}
