package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/ecocoin-market/internal/models"
	"github.com/ignatzorin/ecocoin-market/internal/repository/common"
)

// WalletRepository хранит балансы EcoCoins.
// Баланс меняется только условным обновлением по версии.
type WalletRepository struct {
	db *sqlx.DB
}

func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// GetWallet возвращает кошелёк пользователя или common.ErrNotFound.
func (r *WalletRepository) GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet, err := common.GetByField[models.Wallet](ctx, r.db, "wallets", "user_id", userID)
	if err != nil {
		return nil, fmt.Errorf("wallet repository: get: %w", err)
	}
	return wallet, nil
}

// CreateWallet создаёт кошелёк. Повторное создание возвращает common.ErrAlreadyExists.
func (r *WalletRepository) CreateWallet(ctx context.Context, userID uuid.UUID, balance int64) (*models.Wallet, error) {
	if balance < 0 {
		return nil, fmt.Errorf("wallet repository: create: %w", common.ErrInvalidInput)
	}

	var wallet models.Wallet
	query := `
		INSERT INTO wallets (user_id, balance, version)
		VALUES ($1, $2, 0)
		RETURNING user_id, balance, version, recent_ops, created_at, updated_at
	`
	if err := r.db.GetContext(ctx, &wallet, query, userID, balance); err != nil {
		return nil, fmt.Errorf("wallet repository: create: %w", common.Classify(err))
	}
	return &wallet, nil
}

// UpdateBalance записывает новый баланс, если версия кошелька не изменилась с момента чтения.
// opID добавляется в recent_ops той же строкой, по нему повтор узнаёт уже применённое изменение.
func (r *WalletRepository) UpdateBalance(ctx context.Context, userID uuid.UUID, expectedVersion, newBalance int64, opID uuid.UUID) error {
	if newBalance < 0 {
		return fmt.Errorf("wallet repository: update balance: %w", common.ErrInvalidInput)
	}

	query := `
		UPDATE wallets
		SET balance = $3,
		    version = version + 1,
		    recent_ops = (array_prepend($4::uuid, recent_ops))[1:$5::int],
		    updated_at = NOW()
		WHERE user_id = $1 AND version = $2
	`
	err := common.ExecConditional(ctx, r.db, query, userID, expectedVersion, newBalance, opID, models.WalletRecentOpsLimit)
	if err != nil {
		return fmt.Errorf("wallet repository: update balance: %w", err)
	}
	return nil
}
