package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/ecocoin-market/internal/logger"
	"github.com/ignatzorin/ecocoin-market/internal/models"
)

// DefaultSeedBalance стартовый баланс тестового покупателя.
const DefaultSeedBalance int64 = 10000

// SeedUser созданный тестовый пользователь и его токен.
type SeedUser struct {
	ID          uuid.UUID `json:"id"`
	Role        string    `json:"role"`
	AccessToken string    `json:"access_token"`
	Balance     int64     `json:"balance"`
}

// SeedResult итог наполнения.
type SeedResult struct {
	Affiliate SeedUser    `json:"affiliate"`
	Buyer     SeedUser    `json:"buyer"`
	Listings  []uuid.UUID `json:"listings"`
}

// SeedService наполняет хранилище тестовыми данными для разработки.
type SeedService struct {
	store   Ledger
	wallets *WalletService
	tokens  *TokenManager
}

// NewSeedService создаёт сервис наполнения.
func NewSeedService(store Ledger, wallets *WalletService, tokens *TokenManager) *SeedService {
	return &SeedService{store: store, wallets: wallets, tokens: tokens}
}

type seedListing struct {
	title       string
	description string
	category    string
	condition   string
	price       int64
	photo       string
}

var sampleListings = []seedListing{
	{"Vintage Leather Jacket", "Classic brown leather jacket in excellent condition. Perfect for sustainable fashion lovers.",
		"Fashion", models.ConditionLikeNew, 2500, "https://images.unsplash.com/photo-1551028719-00167b16eac5?w=800"},
	{"MacBook Pro 2019", "13-inch MacBook Pro with Touch Bar. 256GB SSD, 8GB RAM. Gently used.",
		"Electronics", models.ConditionGood, 4500, "https://images.unsplash.com/photo-1517336714731-489689fd1ca8?w=800"},
	{"Wooden Dining Table Set", "Beautiful handcrafted oak dining table with 6 chairs. Perfect for eco-conscious homes.",
		"Home", models.ConditionGood, 3200, "https://images.unsplash.com/photo-1617806118233-18e1de247200?w=800"},
	{"Nike Running Shoes", "Size 10 Nike Air Zoom running shoes. Barely worn, excellent condition.",
		"Sports", models.ConditionLikeNew, 800, "https://images.unsplash.com/photo-1542291026-7eec264c27ff?w=800"},
	{"Canon EOS Camera Bundle", "Canon EOS Rebel T7 with 18-55mm lens, battery, charger, and camera bag.",
		"Electronics", models.ConditionGood, 3500, "https://images.unsplash.com/photo-1606983340126-99ab4feaa64a?w=800"},
	{"Designer Handbag Collection", "Authentic Michael Kors handbag. Classic design, genuine leather.",
		"Fashion", models.ConditionLikeNew, 1800, "https://images.unsplash.com/photo-1584917865442-de89df76afd3?w=800"},
	{"Yoga Mat and Accessories", "Premium yoga mat with blocks, strap, and carrying bag. Lightly used.",
		"Sports", models.ConditionGood, 600, "https://images.unsplash.com/photo-1601925260368-ae2f83cf8b7f?w=800"},
	{"Bookshelf - Modern Design", "Contemporary 5-tier bookshelf in white. Sturdy and spacious.",
		"Home", models.ConditionGood, 1200, "https://images.unsplash.com/photo-1594620302200-9a762244a156?w=800"},
	{"Mountain Bike - Trek", "21-speed mountain bike in great working condition. Recently serviced.",
		"Sports", models.ConditionGood, 2800, "https://images.unsplash.com/photo-1576435728678-68d0fbf94e91?w=800"},
	{"Coffee Table - Industrial Style", "Reclaimed wood coffee table with metal frame. Unique sustainable piece.",
		"Home", models.ConditionLikeNew, 1500, "https://images.unsplash.com/photo-1533090161767-e6ffed986c88?w=800"},
}

// Seed создаёт партнёра с десятью объявлениями и покупателя с балансом buyerBalance.
func (s *SeedService) Seed(ctx context.Context, buyerBalance int64) (*SeedResult, error) {
	if buyerBalance <= 0 {
		buyerBalance = DefaultSeedBalance
	}

	affiliateID := uuid.New()
	buyerID := uuid.New()

	if err := s.wallets.EnsureWallet(ctx, affiliateID, 0); err != nil {
		return nil, fmt.Errorf("seed service: affiliate wallet: %w", err)
	}
	if err := s.wallets.EnsureWallet(ctx, buyerID, buyerBalance); err != nil {
		return nil, fmt.Errorf("seed service: buyer wallet: %w", err)
	}

	result := &SeedResult{Listings: make([]uuid.UUID, 0, len(sampleListings))}
	for _, sample := range sampleListings {
		listing := &models.Listing{
			ID:          uuid.New(),
			OwnerID:     affiliateID,
			Title:       sample.title,
			Description: sample.description,
			Category:    sample.category,
			Condition:   sample.condition,
			Price:       sample.price,
			Photos:      pq.StringArray{sample.photo},
			Status:      models.ListingStatusActive,
		}
		if err := s.store.CreateListing(ctx, listing); err != nil {
			return nil, fmt.Errorf("seed service: listing %q: %w", sample.title, err)
		}
		result.Listings = append(result.Listings, listing.ID)
	}

	affiliate, err := s.seedUser(affiliateID, models.RoleAffiliate, 0)
	if err != nil {
		return nil, err
	}
	buyer, err := s.seedUser(buyerID, models.RoleUser, buyerBalance)
	if err != nil {
		return nil, err
	}
	result.Affiliate, result.Buyer = *affiliate, *buyer

	logger.Log.WithFields(logrus.Fields{
		"affiliate_id": affiliateID,
		"buyer_id":     buyerID,
		"listings":     len(result.Listings),
	}).Info("seed service: тестовые данные созданы")
	return result, nil
}

func (s *SeedService) seedUser(id uuid.UUID, role string, balance int64) (*SeedUser, error) {
	token, err := s.tokens.IssueAccess(id, role)
	if err != nil {
		return nil, fmt.Errorf("seed service: token for %s: %w", role, err)
	}
	return &SeedUser{ID: id, Role: role, AccessToken: token.AccessToken, Balance: balance}, nil
}
