package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/ecocoin-market/internal/domain/valueobject"
	"github.com/ignatzorin/ecocoin-market/internal/models"
	"github.com/ignatzorin/ecocoin-market/internal/repository/common"
)

// EscrowRepository хранит удержания по заказам, одно на заказ.
type EscrowRepository struct {
	db *sqlx.DB
}

func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

// CreateEscrow создаёт удержание в статусе held.
func (r *EscrowRepository) CreateEscrow(ctx context.Context, escrow *models.Escrow) error {
	if escrow.ID == uuid.Nil {
		escrow.ID = uuid.New()
	}
	escrow.Status = models.EscrowStatusHeld
	if escrow.Amount <= 0 || escrow.OrderID == uuid.Nil {
		return fmt.Errorf("escrow repository: create: %w", common.ErrInvalidInput)
	}

	query := `
		INSERT INTO escrow (id, order_id, buyer_id, seller_id, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		escrow.ID, escrow.OrderID, escrow.BuyerID, escrow.SellerID, escrow.Amount, escrow.Status,
	).Scan(&escrow.CreatedAt)
	if err != nil {
		return fmt.Errorf("escrow repository: create: %w", common.Classify(err))
	}
	return nil
}

func (r *EscrowRepository) GetEscrowByOrder(ctx context.Context, orderID uuid.UUID) (*models.Escrow, error) {
	escrow, err := common.GetByField[models.Escrow](ctx, r.db, "escrow", "order_id", orderID)
	if err != nil {
		return nil, fmt.Errorf("escrow repository: get: %w", err)
	}
	return escrow, nil
}

// TransitionEscrow меняет статус удержания, если текущий равен from.
func (r *EscrowRepository) TransitionEscrow(ctx context.Context, orderID uuid.UUID, from, to string, releasedAt *time.Time) error {
	if !valueobject.EscrowStatus(from).CanTransitionTo(valueobject.EscrowStatus(to)) {
		return fmt.Errorf("escrow repository: transition %s -> %s: %w", from, to, common.ErrInvalidInput)
	}

	query := `UPDATE escrow SET status = $3, released_at = $4 WHERE order_id = $1 AND status = $2`
	if err := common.ExecConditional(ctx, r.db, query, orderID, from, to, releasedAt); err != nil {
		return fmt.Errorf("escrow repository: transition: %w", err)
	}
	return nil
}
