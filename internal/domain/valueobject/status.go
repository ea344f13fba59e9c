package valueobject

import "github.com/ignatzorin/ecocoin-market/internal/pkg/apperror"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusShipped, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo описывает автомат escrow-заказа.
// Отмена возможна только из pending и используется при откате покупки.
func (s OrderStatus) CanTransitionTo(newStatus OrderStatus) bool {
	transitions := map[OrderStatus][]OrderStatus{
		OrderStatusPending:   {OrderStatusShipped, OrderStatusCancelled},
		OrderStatusShipped:   {OrderStatusCompleted},
		OrderStatusCompleted: {},
		OrderStatusCancelled: {},
	}

	allowed, ok := transitions[s]
	if !ok {
		return false
	}

	for _, status := range allowed {
		if status == newStatus {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

func NewOrderStatus(status string) (OrderStatus, error) {
	s := OrderStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус заказа")
	}
	return s, nil
}

type EscrowStatus string

const (
	EscrowStatusHeld     EscrowStatus = "held"
	EscrowStatusReleased EscrowStatus = "released"
)

func (s EscrowStatus) IsValid() bool {
	return s == EscrowStatusHeld || s == EscrowStatusReleased
}

// CanTransitionTo допускает возврат released -> held только как компенсацию выплаты.
func (s EscrowStatus) CanTransitionTo(newStatus EscrowStatus) bool {
	switch s {
	case EscrowStatusHeld:
		return newStatus == EscrowStatusReleased
	case EscrowStatusReleased:
		return newStatus == EscrowStatusHeld
	}
	return false
}

type ListingStatus string

const (
	ListingStatusActive ListingStatus = "active"
	ListingStatusSold   ListingStatus = "sold"
)

func (s ListingStatus) IsValid() bool {
	return s == ListingStatusActive || s == ListingStatusSold
}

func NewListingStatus(status string) (ListingStatus, error) {
	s := ListingStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус объявления")
	}
	return s, nil
}
