package dto

// PurchaseRequest тело POST /api/purchases.
type PurchaseRequest struct {
	ListingID     string  `json:"listing_id" binding:"required,uuid"`
	AffiliateCode string  `json:"affiliate_code"`
	BuyerNotes    *string `json:"buyer_notes" binding:"omitempty,max=1000"`
}

// ShipRequest тело POST /api/orders/:id/ship.
type ShipRequest struct {
	TrackingNumber string `json:"tracking_number"`
}

// CreateListingRequest тело POST /api/listings.
type CreateListingRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description" binding:"required"`
	Category    string   `json:"category" binding:"required"`
	Condition   string   `json:"condition"`
	Price       int64    `json:"price" binding:"required,gt=0"`
	Photos      []string `json:"photos"`
}

// SuggestPriceRequest тело POST /api/listings/suggest-price.
type SuggestPriceRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Condition   string `json:"condition"`
}

// AffiliateLinkRequest тело POST /api/affiliate/links.
type AffiliateLinkRequest struct {
	ListingID string `json:"listing_id" binding:"required,uuid"`
}

// SeedRequest тело POST /api/dev/seed.
type SeedRequest struct {
	BuyerBalance int64 `json:"buyer_balance" binding:"omitempty,gte=0"`
}

// DevTokenRequest тело POST /api/dev/token.
type DevTokenRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
	Role   string `json:"role" binding:"required,oneof=user affiliate admin"`
}
