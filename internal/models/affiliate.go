package models

import (
	"time"

	"github.com/google/uuid"
)

// AffiliateLink реферальная ссылка партнёра на конкретное объявление.
// Пара (affiliate, listing) и код уникальны.
type AffiliateLink struct {
	ID          uuid.UUID `db:"id" json:"id"`
	AffiliateID uuid.UUID `db:"affiliate_id" json:"affiliate_id"`
	ListingID   uuid.UUID `db:"listing_id" json:"listing_id"`
	Code        string    `db:"code" json:"code"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// AffiliateClick переход по реферальной ссылке.
type AffiliateClick struct {
	ID        uuid.UUID `db:"id" json:"id"`
	LinkID    uuid.UUID `db:"link_id" json:"link_id"`
	IPHash    string    `db:"ip_hash" json:"-"`
	ClickedAt time.Time `db:"clicked_at" json:"clicked_at"`
}

// AffiliateEarning начисление партнёру за завершённую продажу.
// На один заказ не больше одного начисления.
type AffiliateEarning struct {
	ID          uuid.UUID `db:"id" json:"id"`
	AffiliateID uuid.UUID `db:"affiliate_id" json:"affiliate_id"`
	LinkID      uuid.UUID `db:"link_id" json:"link_id"`
	OrderID     uuid.UUID `db:"order_id" json:"order_id"`
	Amount      int64     `db:"amount" json:"amount"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// AffiliateLinkStats статистика по одной ссылке.
type AffiliateLinkStats struct {
	LinkID       uuid.UUID `json:"link_id"`
	ListingID    uuid.UUID `json:"listing_id"`
	ListingTitle string    `json:"listing_title"`
	Code         string    `json:"code"`
	Clicks       int64     `json:"clicks"`
	Sales        int64     `json:"sales"`
	Earnings     int64     `json:"earnings"`
}

// AffiliateStats сводка для кабинета партнёра.
type AffiliateStats struct {
	TotalEarnings int64                `json:"total_earnings"`
	TotalSales    int64                `json:"total_sales"`
	TotalClicks   int64                `json:"total_clicks"`
	Links         []AffiliateLinkStats `json:"links"`
}
