package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Listing объявление о продаже вещи за EcoCoins.
type Listing struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	OwnerID        uuid.UUID      `db:"owner_id" json:"owner_id"`
	Title          string         `db:"title" json:"title"`
	Description    string         `db:"description" json:"description"`
	Category       string         `db:"category" json:"category"`
	Condition      string         `db:"condition" json:"condition"`
	Price          int64          `db:"price" json:"price"`
	SuggestedPrice *int64         `db:"suggested_price" json:"suggested_price,omitempty"`
	AIValuation    *string        `db:"ai_valuation" json:"ai_valuation,omitempty"`
	Photos         pq.StringArray `db:"photos" json:"photos"`
	Status         string         `db:"status" json:"status"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// PriceSuggestion ответ сервиса оценки.
type PriceSuggestion struct {
	Price     int64  `json:"price"`
	Narrative string `json:"narrative"`
}

// ValuationRequest данные объявления для оценки цены.
type ValuationRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Condition   string `json:"condition"`
}
