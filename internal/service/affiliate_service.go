package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"github.com/ignatzorin/ecocoin-market/internal/logger"
	"github.com/ignatzorin/ecocoin-market/internal/models"
	"github.com/ignatzorin/ecocoin-market/internal/pkg/apperror"
	"github.com/ignatzorin/ecocoin-market/internal/repository/common"
	"github.com/ignatzorin/ecocoin-market/internal/validation"
)

const (
	linkCreateAttempts = 3
	statsConcurrency   = 8
)

type AffiliateRepository interface {
	AffiliateStore
	GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error)
}

// AffiliateService управляет реферальными ссылками и атрибуцией покупок.
type AffiliateService struct {
	repo    AffiliateRepository
	hashKey []byte
	retry   RetryPolicy
}

// NewAffiliateService создаёт сервис. hashKey используется для хеширования IP кликов
// и может быть пустым.
func NewAffiliateService(repo AffiliateRepository, hashKey string, retry RetryPolicy) *AffiliateService {
	return &AffiliateService{repo: repo, hashKey: []byte(hashKey), retry: retry}
}

// LinkCode формирует код ссылки из первых восьми символов идентификаторов.
func LinkCode(affiliateID, listingID uuid.UUID) string {
	return affiliateID.String()[:8] + "-" + listingID.String()[:8]
}

// GetOrCreateLink возвращает ссылку партнёра на объявление, создавая её при первом обращении.
func (s *AffiliateService) GetOrCreateLink(ctx context.Context, affiliateID uuid.UUID, role string, listingID uuid.UUID) (*models.AffiliateLink, error) {
	if role != models.RoleAffiliate && role != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeForbidden, "реферальные ссылки доступны только партнёрам")
	}

	if _, err := s.repo.GetListing(ctx, listingID); err != nil {
		return nil, storeError(err, apperror.ErrListingNotFound)
	}

	link, err := s.repo.GetLinkByPair(ctx, affiliateID, listingID)
	if err == nil {
		return link, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, storeError(err, nil)
	}

	code := LinkCode(affiliateID, listingID)
	for attempt := 0; attempt < linkCreateAttempts; attempt++ {
		link = &models.AffiliateLink{AffiliateID: affiliateID, ListingID: listingID, Code: code}
		err = s.repo.CreateLink(ctx, link)
		if err == nil {
			return link, nil
		}
		if !errors.Is(err, common.ErrAlreadyExists) {
			return nil, storeError(err, nil)
		}

		// Параллельный запрос мог создать ссылку для этой же пары.
		existing, perr := s.repo.GetLinkByPair(ctx, affiliateID, listingID)
		if perr == nil {
			return existing, nil
		}
		// Иначе занят код: добавляем случайный суффикс.
		code = LinkCode(affiliateID, listingID) + "-" + uuid.NewString()[:4]
	}
	return nil, apperror.Wrap(err, apperror.ErrCodeConflict, "не удалось создать уникальный код ссылки")
}

// Attribute находит ссылку по коду для покупки объявления listingID.
// Возвращает nil, если код пустой, не найден, относится к другому объявлению
// или принадлежит самому покупателю. Ошибки поиска не прерывают покупку.
// Для учтённой ссылки записывается клик.
func (s *AffiliateService) Attribute(ctx context.Context, code string, listingID, buyerID uuid.UUID, clientIP string) *models.AffiliateLink {
	if code == "" {
		return nil
	}
	log := logger.Component("affiliate").WithFields(logrus.Fields{
		"code":       code,
		"listing_id": listingID,
		"buyer_id":   buyerID,
	})
	if err := validation.ValidateAffiliateCode(code); err != nil {
		log.Debug("affiliate: некорректный код, игнорируем")
		return nil
	}

	link, err := withRetry(ctx, s.retry, func() (*models.AffiliateLink, error) {
		return s.repo.GetLinkByCode(ctx, code)
	})
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			log.WithError(err).Warn("affiliate: не удалось найти ссылку, покупка без атрибуции")
		}
		return nil
	}
	if link.ListingID != listingID {
		log.Debug("affiliate: код относится к другому объявлению")
		return nil
	}
	if link.AffiliateID == buyerID {
		log.Info("affiliate: самореферал не учитывается")
		return nil
	}

	click := &models.AffiliateClick{LinkID: link.ID, IPHash: s.HashIP(clientIP)}
	if err := s.repo.RecordClick(context.WithoutCancel(ctx), click); err != nil {
		log.WithError(err).Warn("affiliate: не удалось записать клик")
	}
	return link
}

// HashIP возвращает ключевой BLAKE2b хеш адреса. Пустой адрес хешируется как "unknown".
func (s *AffiliateService) HashIP(ip string) string {
	if ip == "" {
		ip = "unknown"
	}
	h, err := blake2b.New256(s.hashKey)
	if err != nil {
		// ключ длиннее 64 байт
		sum := blake2b.Sum256(append(s.hashKey, ip...))
		return hex.EncodeToString(sum[:])
	}
	h.Write([]byte(ip))
	return hex.EncodeToString(h.Sum(nil))
}

// Stats собирает статистику партнёра. Ссылки обрабатываются параллельно.
func (s *AffiliateService) Stats(ctx context.Context, affiliateID uuid.UUID) (*models.AffiliateStats, error) {
	links, err := s.repo.ListLinksByAffiliate(ctx, affiliateID)
	if err != nil {
		return nil, storeError(err, nil)
	}

	perLink := make([]models.AffiliateLinkStats, len(links))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statsConcurrency)
	for i, link := range links {
		g.Go(func() error {
			clicks, err := s.repo.CountClicks(gctx, link.ID)
			if err != nil {
				return fmt.Errorf("clicks for link %s: %w", link.ID, err)
			}
			sales, earned, err := s.repo.EarningsByLink(gctx, link.ID)
			if err != nil {
				return fmt.Errorf("earnings for link %s: %w", link.ID, err)
			}
			title := "Item"
			if listing, err := s.repo.GetListing(gctx, link.ListingID); err == nil {
				title = listing.Title
			}
			perLink[i] = models.AffiliateLinkStats{
				LinkID:       link.ID,
				ListingID:    link.ListingID,
				ListingTitle: title,
				Code:         link.Code,
				Clicks:       clicks,
				Sales:        sales,
				Earnings:     earned,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, storeError(err, nil)
	}

	stats := &models.AffiliateStats{Links: perLink}
	for _, l := range perLink {
		stats.TotalClicks += l.Clicks
		stats.TotalSales += l.Sales
		stats.TotalEarnings += l.Earnings
	}
	return stats, nil
}
