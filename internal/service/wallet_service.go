package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ignatzorin/ecocoin-market/internal/models"
	"github.com/ignatzorin/ecocoin-market/internal/pkg/apperror"
	"github.com/ignatzorin/ecocoin-market/internal/repository/common"
)

type WalletRepository interface {
	WalletStore
	TransactionStore
}

// WalletService изменяет балансы через условное обновление по версии.
type WalletService struct {
	repo  WalletRepository
	retry RetryPolicy
}

func NewWalletService(repo WalletRepository, retry RetryPolicy) *WalletService {
	return &WalletService{repo: repo, retry: retry}
}

// GetWallet возвращает кошелёк пользователя. Отсутствующий кошелёк отдаётся с нулевым балансом.
func (s *WalletService) GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet, err := withRetry(ctx, s.retry, func() (*models.Wallet, error) {
		return s.repo.GetWallet(ctx, userID)
	})
	if errors.Is(err, common.ErrNotFound) {
		return &models.Wallet{UserID: userID}, nil
	}
	if err != nil {
		return nil, storeError(err, apperror.ErrWalletNotFound)
	}
	return wallet, nil
}

// ListTransactions возвращает историю транзакций и общее количество.
func (s *WalletService) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	txns, err := s.repo.ListTransactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, storeError(err, nil)
	}
	total, err := s.repo.CountTransactions(ctx, userID)
	if err != nil {
		return nil, 0, storeError(err, nil)
	}
	if txns == nil {
		txns = []models.Transaction{}
	}
	return txns, total, nil
}

// Debit списывает amount. Каждая попытка перечитывает кошелёк и заново проверяет баланс.
// Если ответ на запись потерян, следующая попытка находит opID в кошельке и не списывает повторно.
func (s *WalletService) Debit(ctx context.Context, userID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return apperror.New(apperror.ErrCodeValidation, "сумма списания должна быть положительной")
	}

	opID := uuid.New()
	err := retryExec(ctx, s.retry, func() error {
		wallet, err := s.repo.GetWallet(ctx, userID)
		if errors.Is(err, common.ErrNotFound) {
			return apperror.ErrInsufficientFunds
		}
		if err != nil {
			return err
		}
		if wallet.HasOp(opID) {
			return nil
		}
		if wallet.Balance < amount {
			return apperror.ErrInsufficientFunds
		}
		return s.repo.UpdateBalance(ctx, userID, wallet.Version, wallet.Balance-amount, opID)
	})
	if err != nil {
		return storeError(err, apperror.ErrWalletNotFound)
	}
	return nil
}

// Credit зачисляет amount. Отсутствующий кошелёк сначала создаётся пустым.
func (s *WalletService) Credit(ctx context.Context, userID uuid.UUID, amount int64) error {
	return s.CreditOp(ctx, userID, amount, uuid.New())
}

// CreditOp зачисляет amount под заданным идентификатором операции.
// Уже применённая операция с тем же opID не зачисляется повторно.
func (s *WalletService) CreditOp(ctx context.Context, userID uuid.UUID, amount int64, opID uuid.UUID) error {
	if amount < 0 {
		return apperror.New(apperror.ErrCodeValidation, "сумма зачисления не может быть отрицательной")
	}
	if amount == 0 {
		return nil
	}

	err := retryExec(ctx, s.retry, func() error {
		wallet, err := s.loadOrCreate(ctx, userID)
		if err != nil {
			return err
		}
		if wallet.HasOp(opID) {
			return nil
		}
		return s.repo.UpdateBalance(ctx, userID, wallet.Version, wallet.Balance+amount, opID)
	})
	if err != nil {
		return storeError(err, apperror.ErrWalletNotFound)
	}
	return nil
}

// loadOrCreate создаёт пустой кошелёк, чтобы зачисление всегда шло через UpdateBalance с opID.
func (s *WalletService) loadOrCreate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet, err := s.repo.GetWallet(ctx, userID)
	if !errors.Is(err, common.ErrNotFound) {
		return wallet, err
	}
	if _, err := s.repo.CreateWallet(ctx, userID, 0); err != nil && !errors.Is(err, common.ErrAlreadyExists) {
		return nil, err
	}
	return s.repo.GetWallet(ctx, userID)
}

// EnsureWallet создаёт пустой кошелёк, если его ещё нет.
func (s *WalletService) EnsureWallet(ctx context.Context, userID uuid.UUID, initial int64) error {
	_, err := s.repo.CreateWallet(ctx, userID, initial)
	if err != nil && !errors.Is(err, common.ErrAlreadyExists) {
		return storeError(err, nil)
	}
	return nil
}
