package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/ecocoin-market/internal/domain/valueobject"
	"github.com/ignatzorin/ecocoin-market/internal/models"
	"github.com/ignatzorin/ecocoin-market/internal/repository/common"
)

const listingColumns = `id, owner_id, title, description, category, condition, price, suggested_price,
	ai_valuation, photos, status, created_at, updated_at`

// ListingRepository отвечает за объявления.
type ListingRepository struct {
	db *sqlx.DB
}

func NewListingRepository(db *sqlx.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

// CreateListing сохраняет объявление. Пустой ID и статус заполняются значениями по умолчанию.
func (r *ListingRepository) CreateListing(ctx context.Context, listing *models.Listing) error {
	if listing.ID == uuid.Nil {
		listing.ID = uuid.New()
	}
	if listing.Status == "" {
		listing.Status = models.ListingStatusActive
	}
	if listing.Photos == nil {
		listing.Photos = pq.StringArray{}
	}
	if err := validateListing(listing); err != nil {
		return fmt.Errorf("listing repository: create: %w", err)
	}

	query := `
		INSERT INTO listings (id, owner_id, title, description, category, condition, price,
			suggested_price, ai_valuation, photos, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		listing.ID, listing.OwnerID, listing.Title, listing.Description, listing.Category, listing.Condition,
		listing.Price, listing.SuggestedPrice, listing.AIValuation, listing.Photos, listing.Status,
	).Scan(&listing.CreatedAt, &listing.UpdatedAt)
	if err != nil {
		return fmt.Errorf("listing repository: create: %w", common.Classify(err))
	}
	return nil
}

func (r *ListingRepository) GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	listing, err := common.GetByID[models.Listing](ctx, r.db, "listings", id)
	if err != nil {
		return nil, fmt.Errorf("listing repository: get: %w", err)
	}
	return listing, nil
}

// ListActiveListings возвращает активные объявления, новые первыми.
func (r *ListingRepository) ListActiveListings(ctx context.Context, limit, offset int) ([]models.Listing, error) {
	var listings []models.Listing
	query := `SELECT ` + listingColumns + ` FROM listings WHERE status = 'active' ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &listings, query, limit, offset); err != nil {
		return nil, fmt.Errorf("listing repository: list active: %w", common.Classify(err))
	}
	return listings, nil
}

func (r *ListingRepository) ListListingsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Listing, error) {
	var listings []models.Listing
	query := `SELECT ` + listingColumns + ` FROM listings WHERE owner_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &listings, query, ownerID); err != nil {
		return nil, fmt.Errorf("listing repository: list by owner: %w", common.Classify(err))
	}
	return listings, nil
}

// UpdateListingStatus переводит объявление из from в to.
// common.ErrConflict, если статус уже другой.
func (r *ListingRepository) UpdateListingStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	if _, err := valueobject.NewListingStatus(to); err != nil {
		return fmt.Errorf("listing repository: update status: %w", common.ErrInvalidInput)
	}
	query := `UPDATE listings SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`
	if err := common.ExecConditional(ctx, r.db, query, id, from, to); err != nil {
		return fmt.Errorf("listing repository: update status: %w", err)
	}
	return nil
}

// AddListingPhoto добавляет URL фотографии в конец списка.
func (r *ListingRepository) AddListingPhoto(ctx context.Context, id uuid.UUID, url string) error {
	query := `UPDATE listings SET photos = array_append(photos, $2), updated_at = NOW() WHERE id = $1`
	err := common.ExecConditional(ctx, r.db, query, id, url)
	if errors.Is(err, common.ErrConflict) {
		err = common.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("listing repository: add photo: %w", err)
	}
	return nil
}

func validateListing(listing *models.Listing) error {
	if listing.OwnerID == uuid.Nil || strings.TrimSpace(listing.Title) == "" || listing.Price <= 0 {
		return common.ErrInvalidInput
	}
	if _, ok := models.ValidListingStatuses[listing.Status]; !ok {
		return common.ErrInvalidInput
	}
	return nil
}
