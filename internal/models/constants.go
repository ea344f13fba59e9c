package models

// Статусы заказа
const (
	OrderStatusPending   = "pending"
	OrderStatusShipped   = "shipped"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// Статусы объявления
const (
	ListingStatusActive = "active"
	ListingStatusSold   = "sold"
)

// Роли пользователей
const (
	RoleUser      = "user"
	RoleAffiliate = "affiliate"
	RoleAdmin     = "admin"
)

// Состояние товара
const (
	ConditionNew     = "new"
	ConditionLikeNew = "like_new"
	ConditionGood    = "good"
	ConditionFair    = "fair"
)

// ValidOrderStatuses список валидных статусов заказов
var ValidOrderStatuses = map[string]struct{}{
	OrderStatusPending:   {},
	OrderStatusShipped:   {},
	OrderStatusCompleted: {},
	OrderStatusCancelled: {},
}

// ValidListingStatuses список валидных статусов объявлений
var ValidListingStatuses = map[string]struct{}{
	ListingStatusActive: {},
	ListingStatusSold:   {},
}

// ValidConditions список допустимых состояний товара
var ValidConditions = map[string]struct{}{
	ConditionNew:     {},
	ConditionLikeNew: {},
	ConditionGood:    {},
	ConditionFair:    {},
}
