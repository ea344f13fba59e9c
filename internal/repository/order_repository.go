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

const orderColumns = `id, buyer_id, seller_id, listing_id, affiliate_link_id, amount, status, tracking_number,
	buyer_notes, created_at, shipped_at, completed_at, updated_at`

// OrderRepository отвечает за заказы.
type OrderRepository struct {
	db *sqlx.DB
}

func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreateOrder сохраняет новый заказ в статусе pending.
func (r *OrderRepository) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	if order.Amount <= 0 || order.BuyerID == uuid.Nil || order.SellerID == uuid.Nil || order.Status != models.OrderStatusPending {
		return fmt.Errorf("order repository: create: %w", common.ErrInvalidInput)
	}

	query := `
		INSERT INTO orders (id, buyer_id, seller_id, listing_id, affiliate_link_id, amount, status, buyer_notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		order.ID, order.BuyerID, order.SellerID, order.ListingID, order.AffiliateLinkID,
		order.Amount, order.Status, order.BuyerNotes,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("order repository: create: %w", common.Classify(err))
	}
	return nil
}

func (r *OrderRepository) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := common.GetByID[models.Order](ctx, r.db, "orders", id)
	if err != nil {
		return nil, fmt.Errorf("order repository: get: %w", err)
	}
	return order, nil
}

// DeleteOrder удаляет заказ, пока он в статусе pending. Используется только при откате покупки.
func (r *OrderRepository) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM orders WHERE id = $1 AND status = 'pending'`
	if err := common.ExecConditional(ctx, r.db, query, id); err != nil {
		return fmt.Errorf("order repository: delete: %w", err)
	}
	return nil
}

// TransitionOrder меняет статус, если текущий равен t.From.
// Недопустимый переход отклоняется до запроса, несовпадение статуса даёт common.ErrConflict.
func (r *OrderRepository) TransitionOrder(ctx context.Context, id uuid.UUID, t models.OrderTransition) error {
	if !valueobject.OrderStatus(t.From).CanTransitionTo(valueobject.OrderStatus(t.To)) {
		return fmt.Errorf("order repository: transition %s -> %s: %w", t.From, t.To, common.ErrInvalidInput)
	}

	query := `
		UPDATE orders
		SET status = $3,
			tracking_number = COALESCE($4, tracking_number),
			shipped_at = COALESCE($5, shipped_at),
			completed_at = COALESCE($6, completed_at),
			updated_at = NOW()
		WHERE id = $1 AND status = $2
	`
	if err := common.ExecConditional(ctx, r.db, query, id, t.From, t.To, t.TrackingNumber, t.ShippedAt, t.CompletedAt); err != nil {
		return fmt.Errorf("order repository: transition: %w", err)
	}
	return nil
}

func (r *OrderRepository) ListOrdersByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	return r.listBy(ctx, "buyer_id", buyerID)
}

func (r *OrderRepository) ListOrdersBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Order, error) {
	return r.listBy(ctx, "seller_id", sellerID)
}

// ListOrdersByStatus возвращает страницу заказов в статусе status, не менявшихся с before.
// Страницы идут по (updated_at, id) строго после after, поэтому заказы, сменившие статус
// во время обхода, не сдвигают следующие страницы.
func (r *OrderRepository) ListOrdersByStatus(ctx context.Context, status string, before time.Time, after *models.OrderCursor, limit int) ([]models.Order, error) {
	var orders []models.Order
	query := `SELECT ` + orderColumns + ` FROM orders WHERE status = $1 AND updated_at < $2`
	args := []interface{}{status, before}
	if after != nil {
		query += ` AND (updated_at, id) > ($3, $4)`
		args = append(args, after.UpdatedAt, after.ID)
	}
	query += fmt.Sprintf(` ORDER BY updated_at, id LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("order repository: list by status: %w", common.Classify(err))
	}
	return orders, nil
}

func (r *OrderRepository) listBy(ctx context.Context, field string, id uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + field + ` = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &orders, query, id); err != nil {
		return nil, fmt.Errorf("order repository: list by %s: %w", field, common.Classify(err))
	}
	return orders, nil
}
