package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/ecocoin-market/internal/models"
	"github.com/ignatzorin/ecocoin-market/internal/repository/common"
)

func TestOrderRepository_CreateOrder(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)

	order := &models.Order{
		BuyerID:   uuid.New(),
		SellerID:  uuid.New(),
		ListingID: uuid.New(),
		Amount:    2500,
	}
	now := time.Now()
	mock.ExpectQuery(`INSERT INTO orders`).
		WithArgs(sqlmock.AnyArg(), order.BuyerID, order.SellerID, order.ListingID, nil, int64(2500), "pending", nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	require.NoError(t, repo.CreateOrder(context.Background(), order))
	assert.NotEqual(t, uuid.Nil, order.ID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_CreateOrder_Invalid(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewOrderRepository(db)

	err := repo.CreateOrder(context.Background(), &models.Order{BuyerID: uuid.New(), SellerID: uuid.New()})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestOrderRepository_TransitionOrder(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)
	id := uuid.New()
	tracking := "TRK123"
	shippedAt := time.Now()

	mock.ExpectExec(`UPDATE orders`).
		WithArgs(id, "pending", "shipped", &tracking, &shippedAt, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.TransitionOrder(context.Background(), id, models.OrderTransition{
		From:           models.OrderStatusPending,
		To:             models.OrderStatusShipped,
		TrackingNumber: &tracking,
		ShippedAt:      &shippedAt,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_TransitionOrder_StatusChanged(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)

	mock.ExpectExec(`UPDATE orders`).WillReturnResult(sqlmock.NewResult(0, 0))

	now := time.Now()
	err := repo.TransitionOrder(context.Background(), uuid.New(), models.OrderTransition{
		From:        models.OrderStatusShipped,
		To:          models.OrderStatusCompleted,
		CompletedAt: &now,
	})
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestOrderRepository_TransitionOrder_Illegal(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)

	err := repo.TransitionOrder(context.Background(), uuid.New(), models.OrderTransition{
		From: models.OrderStatusPending,
		To:   models.OrderStatusCompleted,
	})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_DeleteOrder(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)
	id := uuid.New()

	mock.ExpectExec(`DELETE FROM orders WHERE id = \$1 AND status = 'pending'`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeleteOrder(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_ListOrdersByStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)
	cutoff := time.Now()
	id := uuid.New()

	cols := []string{"id", "buyer_id", "seller_id", "listing_id", "affiliate_link_id", "amount", "status",
		"tracking_number", "buyer_notes", "created_at", "shipped_at", "completed_at", "updated_at"}
	mock.ExpectQuery(`SELECT .+ FROM orders WHERE status = \$1 AND updated_at < \$2 ORDER BY updated_at, id LIMIT \$3`).
		WithArgs("shipped", cutoff, 50).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(id, uuid.New(), uuid.New(), uuid.New(), nil, int64(900),
			"shipped", "TRK1", nil, cutoff, cutoff, nil, cutoff))

	orders, err := repo.ListOrdersByStatus(context.Background(), models.OrderStatusShipped, cutoff, nil, 50)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, id, orders[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_ListOrdersByStatus_AfterCursor(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)
	cutoff := time.Now()
	after := &models.OrderCursor{UpdatedAt: cutoff.Add(-time.Hour), ID: uuid.New()}

	mock.ExpectQuery(`SELECT .+ FROM orders WHERE status = \$1 AND updated_at < \$2 AND \(updated_at, id\) > \(\$3, \$4\) ORDER BY updated_at, id LIMIT \$5`).
		WithArgs("pending", cutoff, after.UpdatedAt, after.ID, 200).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	orders, err := repo.ListOrdersByStatus(context.Background(), models.OrderStatusPending, cutoff, after, 200)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.NoError(t, mock.ExpectationsWereMet())
}
