package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/ecocoin-market/internal/models"
	"github.com/ignatzorin/ecocoin-market/internal/repository/common"
)

var validTransactionTypes = map[string]struct{}{
	models.TransactionTypePurchase:   {},
	models.TransactionTypeSale:       {},
	models.TransactionTypeCommission: {},
}

// TransactionRepository журнал движения монет. Записи только добавляются.
type TransactionRepository struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// CreateTransaction добавляет запись. Вторая запись того же типа по заказу и пользователю
// отклоняется с common.ErrAlreadyExists.
func (r *TransactionRepository) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if _, ok := validTransactionTypes[txn.Type]; !ok || txn.UserID == uuid.Nil {
		return fmt.Errorf("transaction repository: create: %w", common.ErrInvalidInput)
	}

	query := `
		INSERT INTO transactions (id, user_id, order_id, type, amount, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		txn.ID, txn.UserID, txn.OrderID, txn.Type, txn.Amount, txn.Description,
	).Scan(&txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("transaction repository: create: %w", common.Classify(err))
	}
	return nil
}

// ListTransactions возвращает историю пользователя, новые первыми.
func (r *TransactionRepository) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	var txns []models.Transaction
	query := `
		SELECT id, user_id, order_id, type, amount, description, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &txns, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("transaction repository: list: %w", common.Classify(err))
	}
	return txns, nil
}

func (r *TransactionRepository) CountTransactions(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM transactions WHERE user_id = $1`, userID); err != nil {
		return 0, fmt.Errorf("transaction repository: count: %w", common.Classify(err))
	}
	return count, nil
}

// TransactionExists проверяет наличие записи типа txType по заказу.
func (r *TransactionRepository) TransactionExists(ctx context.Context, userID, orderID uuid.UUID, txType string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM transactions WHERE user_id = $1 AND order_id = $2 AND type = $3)`
	if err := r.db.GetContext(ctx, &exists, query, userID, orderID, txType); err != nil {
		return false, fmt.Errorf("transaction repository: exists: %w", common.Classify(err))
	}
	return exists, nil
}
