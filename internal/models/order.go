package models

import (
	"time"

	"github.com/google/uuid"
)

// Order описывает покупку объявления.
// Amount фиксирует цену на момент покупки.
type Order struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	BuyerID         uuid.UUID  `db:"buyer_id" json:"buyer_id"`
	SellerID        uuid.UUID  `db:"seller_id" json:"seller_id"`
	ListingID       uuid.UUID  `db:"listing_id" json:"listing_id"`
	AffiliateLinkID *uuid.UUID `db:"affiliate_link_id" json:"affiliate_link_id,omitempty"`
	Amount          int64      `db:"amount" json:"amount"`
	Status          string     `db:"status" json:"status"`
	TrackingNumber  *string    `db:"tracking_number" json:"tracking_number,omitempty"`
	BuyerNotes      *string    `db:"buyer_notes" json:"buyer_notes,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	ShippedAt       *time.Time `db:"shipped_at" json:"shipped_at,omitempty"`
	CompletedAt     *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
	Listing         *Listing   `db:"-" json:"listing,omitempty"`
}

// OrderCursor позиция постраничного обхода заказов по (updated_at, id).
type OrderCursor struct {
	UpdatedAt time.Time
	ID        uuid.UUID
}

// CursorAfter возвращает курсор, указывающий сразу за заказом.
func (o *Order) CursorAfter() *OrderCursor {
	return &OrderCursor{UpdatedAt: o.UpdatedAt, ID: o.ID}
}

// OrderTransition условное изменение статуса заказа.
// Применяется только если текущий статус равен From.
type OrderTransition struct {
	From           string
	To             string
	TrackingNumber *string
	ShippedAt      *time.Time
	CompletedAt    *time.Time
}
