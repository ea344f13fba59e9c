package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Статусы escrow
const (
	EscrowStatusHeld     = "held"
	EscrowStatusReleased = "released"
)

// Категории транзакций
const (
	TransactionTypePurchase   = "purchase"
	TransactionTypeSale       = "sale"
	TransactionTypeCommission = "commission"
)

// WalletRecentOpsLimit сколько последних операций помнит кошелёк.
const WalletRecentOpsLimit = 16

// Wallet хранит баланс EcoCoins пользователя.
// Version увеличивается при каждом изменении баланса.
// RecentOps идентификаторы последних применённых изменений, новые в начале.
type Wallet struct {
	UserID    uuid.UUID      `db:"user_id" json:"user_id"`
	Balance   int64          `db:"balance" json:"balance"`
	Version   int64          `db:"version" json:"-"`
	RecentOps pq.StringArray `db:"recent_ops" json:"-"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// HasOp сообщает, применено ли к кошельку изменение с этим идентификатором.
func (w *Wallet) HasOp(opID uuid.UUID) bool {
	id := opID.String()
	for _, op := range w.RecentOps {
		if op == id {
			return true
		}
	}
	return false
}

// Transaction запись журнала движения монет. Только добавляется.
type Transaction struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	UserID      uuid.UUID  `db:"user_id" json:"user_id"`
	OrderID     *uuid.UUID `db:"order_id" json:"order_id,omitempty"`
	Type        string     `db:"type" json:"type"`
	Amount      int64      `db:"amount" json:"amount"`
	Description string     `db:"description" json:"description"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Escrow удерживает сумму заказа до подтверждения доставки.
type Escrow struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	OrderID    uuid.UUID  `db:"order_id" json:"order_id"`
	BuyerID    uuid.UUID  `db:"buyer_id" json:"buyer_id"`
	SellerID   uuid.UUID  `db:"seller_id" json:"seller_id"`
	Amount     int64      `db:"amount" json:"amount"`
	Status     string     `db:"status" json:"status"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ReleasedAt *time.Time `db:"released_at" json:"released_at,omitempty"`
}
