package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden         ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest        ErrorCode = "BAD_REQUEST"
	ErrCodeConflict          ErrorCode = "CONFLICT"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation        ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotAvailable      ErrorCode = "NOT_AVAILABLE"
	ErrCodeSelfPurchase      ErrorCode = "SELF_PURCHASE"
	ErrCodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"
	ErrCodeInvalidState      ErrorCode = "INVALID_STATE"
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeAlreadySettled    ErrorCode = "ALREADY_SETTLED"
	ErrCodeMissingTracking   ErrorCode = "MISSING_TRACKING"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду, чтобы errors.Is работал с предопределёнными ошибками.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation, ErrCodeMissingTracking, ErrCodeSelfPurchase:
		return http.StatusBadRequest
	case ErrCodeInsufficientFunds:
		return http.StatusPaymentRequired
	case ErrCodeConflict, ErrCodeNotAvailable, ErrCodeInvalidState, ErrCodeInvalidTransition, ErrCodeAlreadySettled:
		return http.StatusConflict
	case ErrCodeInternal:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки; для ошибок вне таксономии это INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// HasCode проверяет код ошибки в цепочке.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// Retryable сообщает, можно ли повторить запрос без изменения состояния:
// конфликт версий и временная недоступность хранилища.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case ErrCodeConflict, ErrCodeInternal:
		return true
	}
	return false
}

var (
	ErrUnauthorized      = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden         = New(ErrCodeForbidden, "недостаточно прав")
	ErrOrderNotFound     = New(ErrCodeNotFound, "заказ не найден")
	ErrListingNotFound   = New(ErrCodeNotFound, "объявление не найдено")
	ErrWalletNotFound    = New(ErrCodeNotFound, "кошелёк не найден")
	ErrNotAvailable      = New(ErrCodeNotAvailable, "объявление недоступно для покупки")
	ErrSelfPurchase      = New(ErrCodeSelfPurchase, "нельзя купить собственное объявление")
	ErrInsufficientFunds = New(ErrCodeInsufficientFunds, "недостаточно EcoCoins на балансе")
	ErrOnlyBuyerConfirms = New(ErrCodeForbidden, "подтвердить доставку может только покупатель")
	ErrOnlySellerShips   = New(ErrCodeForbidden, "отметить отправку может только продавец")
	ErrNotShipped        = New(ErrCodeInvalidState, "заказ должен быть отправлен до подтверждения доставки")
	ErrAlreadySettled    = New(ErrCodeAlreadySettled, "заказ уже завершён, средства выплачены")
	ErrMissingTracking   = New(ErrCodeMissingTracking, "трек-номер обязателен")
	ErrConflict          = New(ErrCodeConflict, "данные изменились параллельно, повторите запрос")
)
