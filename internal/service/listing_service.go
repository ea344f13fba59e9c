package service

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/ecocoin-market/internal/logger"
	"github.com/ignatzorin/ecocoin-market/internal/models"
	"github.com/ignatzorin/ecocoin-market/internal/pkg/apperror"
	"github.com/ignatzorin/ecocoin-market/internal/validation"
)

const (
	valuationTimeout  = 20 * time.Second
	valuationCacheTTL = 30 * time.Minute
	maxListingPhotos  = 10
)

// Valuator сервис оценки цены. Ошибка означает отсутствие подсказки.
type Valuator interface {
	SuggestPrice(ctx context.Context, req models.ValuationRequest) (*models.PriceSuggestion, error)
}

// PhotoStorage хранилище файлов фотографий.
type PhotoStorage interface {
	Save(ctx context.Context, ownerID uuid.UUID, originalName string, r io.Reader) (string, int64, error)
	URL(relativePath string) string
	Delete(ctx context.Context, relativePath string) error
}

// ListingInput данные нового объявления.
type ListingInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Condition   string   `json:"condition"`
	Price       int64    `json:"price"`
	Photos      []string `json:"photos"`
}

// ListingService объявления, фотографии и подсказка цены.
type ListingService struct {
	repo     ListingStore
	valuator Valuator
	photos   PhotoStorage
	cache    *CacheService
}

// NewListingService создаёт сервис. valuator, photos и cache могут быть nil.
func NewListingService(repo ListingStore, valuator Valuator, photos PhotoStorage, cache *CacheService) *ListingService {
	return &ListingService{repo: repo, valuator: valuator, photos: photos, cache: cache}
}

// CreateListing создаёт активное объявление. Недоступность сервиса оценки
// не мешает созданию: цена остаётся без подсказки.
func (s *ListingService) CreateListing(ctx context.Context, ownerID uuid.UUID, in ListingInput) (*models.Listing, error) {
	if ownerID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}
	if err := validateListingInput(&in); err != nil {
		return nil, err
	}

	listing := &models.Listing{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Condition:   in.Condition,
		Price:       in.Price,
		Photos:      pq.StringArray(in.Photos),
		Status:      models.ListingStatusActive,
	}
	if listing.Photos == nil {
		listing.Photos = pq.StringArray{}
	}

	if suggestion := s.suggest(ctx, valuationRequest(listing)); suggestion != nil {
		price := suggestion.Price
		narrative := suggestion.Narrative
		listing.SuggestedPrice = &price
		listing.AIValuation = &narrative
	}

	if err := s.repo.CreateListing(ctx, listing); err != nil {
		return nil, storeError(err, nil)
	}

	logger.Log.WithFields(logrus.Fields{
		"listing_id": listing.ID,
		"owner_id":   ownerID,
		"price":      listing.Price,
	}).Info("listing: объявление создано")
	return listing, nil
}

// GetListing возвращает объявление по id.
func (s *ListingService) GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	listing, err := s.repo.GetListing(ctx, id)
	if err != nil {
		return nil, storeError(err, apperror.ErrListingNotFound)
	}
	return listing, nil
}

// ListActive возвращает страницу активных объявлений.
func (s *ListingService) ListActive(ctx context.Context, limit, offset int) ([]models.Listing, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	listings, err := s.repo.ListActiveListings(ctx, limit, offset)
	if err != nil {
		return nil, storeError(err, nil)
	}
	if listings == nil {
		listings = []models.Listing{}
	}
	return listings, nil
}

// ListMine возвращает все объявления владельца.
func (s *ListingService) ListMine(ctx context.Context, ownerID uuid.UUID) ([]models.Listing, error) {
	listings, err := s.repo.ListListingsByOwner(ctx, ownerID)
	if err != nil {
		return nil, storeError(err, nil)
	}
	if listings == nil {
		listings = []models.Listing{}
	}
	return listings, nil
}

// SuggestPrice запрашивает подсказку цены. Без сервиса оценки возвращает nil.
func (s *ListingService) SuggestPrice(ctx context.Context, req models.ValuationRequest) (*models.PriceSuggestion, error) {
	if err := validation.ValidateListingTitle(req.Title); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	return s.suggest(ctx, req), nil
}

func (s *ListingService) suggest(ctx context.Context, req models.ValuationRequest) *models.PriceSuggestion {
	if s.valuator == nil {
		return nil
	}
	key := ValuationCacheKey(req)
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			if cached, ok := v.(*models.PriceSuggestion); ok {
				return cached
			}
		}
	}

	vctx, cancel := context.WithTimeout(ctx, valuationTimeout)
	defer cancel()
	suggestion, err := s.valuator.SuggestPrice(vctx, req)
	if err != nil {
		logger.Component("valuation").WithError(err).WithField("title", req.Title).
			Warn("listing: сервис оценки недоступен, цена без подсказки")
		return nil
	}
	if s.cache != nil {
		s.cache.Set(key, suggestion, valuationCacheTTL)
	}
	return suggestion
}

// UploadPhoto сохраняет фото объявления и возвращает его публичный адрес.
func (s *ListingService) UploadPhoto(ctx context.Context, ownerID, listingID uuid.UUID, fileName string, r io.Reader) (string, error) {
	if s.photos == nil {
		return "", apperror.New(apperror.ErrCodeInternal, "хранилище фотографий не настроено")
	}

	listing, err := s.repo.GetListing(ctx, listingID)
	if err != nil {
		return "", storeError(err, apperror.ErrListingNotFound)
	}
	if listing.OwnerID != ownerID {
		return "", apperror.New(apperror.ErrCodeForbidden, "добавлять фото может только владелец объявления")
	}
	if len(listing.Photos) >= maxListingPhotos {
		return "", apperror.New(apperror.ErrCodeValidation, "достигнут лимит фотографий объявления")
	}

	rel, _, err := s.photos.Save(ctx, ownerID, fileName, r)
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrCodeBadRequest, "не удалось сохранить фото")
	}
	url := s.photos.URL(rel)

	if err := s.repo.AddListingPhoto(ctx, listingID, url); err != nil {
		if derr := s.photos.Delete(context.WithoutCancel(ctx), rel); derr != nil {
			logger.Log.WithError(derr).WithField("path", rel).Warn("listing: не удалось удалить файл после ошибки")
		}
		return "", storeError(err, apperror.ErrListingNotFound)
	}
	return url, nil
}

func valuationRequest(l *models.Listing) models.ValuationRequest {
	return models.ValuationRequest{
		Title:       l.Title,
		Description: l.Description,
		Category:    l.Category,
		Condition:   l.Condition,
	}
}

func validateListingInput(in *ListingInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.Condition = strings.TrimSpace(in.Condition)

	if err := validation.ValidateListingTitle(in.Title); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateListingDescription(in.Description); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateLength("категория", in.Category, 0, validation.MaxCategoryLength); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if in.Condition != "" {
		if _, ok := models.ValidConditions[in.Condition]; !ok {
			return apperror.New(apperror.ErrCodeValidation, "некорректное состояние товара")
		}
	}
	if err := validation.ValidatePrice(in.Price); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if len(in.Photos) > maxListingPhotos {
		return apperror.New(apperror.ErrCodeValidation, "слишком много фотографий")
	}
	return nil
}
