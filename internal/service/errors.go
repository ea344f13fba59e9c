package service

import (
	"errors"

	"github.com/ignatzorin/ecocoin-market/internal/pkg/apperror"
	"github.com/ignatzorin/ecocoin-market/internal/repository/common"
)

// storeError переводит ошибку хранилища в AppError.
// notFound подставляется для common.ErrNotFound, nil даёт общий NOT_FOUND.
func storeError(err error, notFound *apperror.AppError) error {
	if err == nil {
		return nil
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, common.ErrNotFound):
		if notFound != nil {
			return notFound
		}
		return apperror.Wrap(err, apperror.ErrCodeNotFound, "запись не найдена")
	case errors.Is(err, common.ErrConflict):
		return apperror.Wrap(err, apperror.ErrCodeConflict, apperror.ErrConflict.Message)
	case errors.Is(err, common.ErrAlreadyExists):
		return apperror.Wrap(err, apperror.ErrCodeConflict, "запись уже существует")
	case errors.Is(err, common.ErrInvalidInput):
		return apperror.Wrap(err, apperror.ErrCodeValidation, "некорректные данные")
	case errors.Is(err, common.ErrUnavailable):
		return apperror.Wrap(err, apperror.ErrCodeInternal, "хранилище временно недоступно, повторите запрос")
	}
	return apperror.Wrap(err, apperror.ErrCodeInternal, "внутренняя ошибка сервера")
}
