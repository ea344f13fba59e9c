package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/ecocoin-market/internal/models"
	"github.com/ignatzorin/ecocoin-market/internal/repository/common"
)

// AffiliateRepository хранит реферальные ссылки, переходы и начисления партнёрам.
type AffiliateRepository struct {
	db *sqlx.DB
}

func NewAffiliateRepository(db *sqlx.DB) *AffiliateRepository {
	return &AffiliateRepository{db: db}
}

// CreateLink сохраняет ссылку. Занятый код или пара (affiliate, listing) дают common.ErrAlreadyExists.
func (r *AffiliateRepository) CreateLink(ctx context.Context, link *models.AffiliateLink) error {
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	if strings.TrimSpace(link.Code) == "" || link.AffiliateID == uuid.Nil || link.ListingID == uuid.Nil {
		return fmt.Errorf("affiliate repository: create link: %w", common.ErrInvalidInput)
	}

	query := `
		INSERT INTO affiliate_links (id, affiliate_id, listing_id, code)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	err := r.db.QueryRowxContext(ctx, query, link.ID, link.AffiliateID, link.ListingID, link.Code).Scan(&link.CreatedAt)
	if err != nil {
		return fmt.Errorf("affiliate repository: create link: %w", common.Classify(err))
	}
	return nil
}

func (r *AffiliateRepository) GetLink(ctx context.Context, id uuid.UUID) (*models.AffiliateLink, error) {
	link, err := common.GetByID[models.AffiliateLink](ctx, r.db, "affiliate_links", id)
	if err != nil {
		return nil, fmt.Errorf("affiliate repository: get link: %w", err)
	}
	return link, nil
}

func (r *AffiliateRepository) GetLinkByCode(ctx context.Context, code string) (*models.AffiliateLink, error) {
	link, err := common.GetByField[models.AffiliateLink](ctx, r.db, "affiliate_links", "code", code)
	if err != nil {
		return nil, fmt.Errorf("affiliate repository: get link by code: %w", err)
	}
	return link, nil
}

func (r *AffiliateRepository) GetLinkByPair(ctx context.Context, affiliateID, listingID uuid.UUID) (*models.AffiliateLink, error) {
	var link models.AffiliateLink
	query := `
		SELECT id, affiliate_id, listing_id, code, created_at
		FROM affiliate_links
		WHERE affiliate_id = $1 AND listing_id = $2
	`
	if err := r.db.GetContext(ctx, &link, query, affiliateID, listingID); err != nil {
		return nil, fmt.Errorf("affiliate repository: get link by pair: %w", common.Classify(err))
	}
	return &link, nil
}

func (r *AffiliateRepository) ListLinksByAffiliate(ctx context.Context, affiliateID uuid.UUID) ([]models.AffiliateLink, error) {
	var links []models.AffiliateLink
	query := `
		SELECT id, affiliate_id, listing_id, code, created_at
		FROM affiliate_links
		WHERE affiliate_id = $1
		ORDER BY created_at DESC
	`
	if err := r.db.SelectContext(ctx, &links, query, affiliateID); err != nil {
		return nil, fmt.Errorf("affiliate repository: list links: %w", common.Classify(err))
	}
	return links, nil
}

func (r *AffiliateRepository) RecordClick(ctx context.Context, click *models.AffiliateClick) error {
	if click.ID == uuid.Nil {
		click.ID = uuid.New()
	}
	query := `INSERT INTO affiliate_clicks (id, link_id, ip_hash) VALUES ($1, $2, $3) RETURNING clicked_at`
	if err := r.db.QueryRowxContext(ctx, query, click.ID, click.LinkID, click.IPHash).Scan(&click.ClickedAt); err != nil {
		return fmt.Errorf("affiliate repository: record click: %w", common.Classify(err))
	}
	return nil
}

func (r *AffiliateRepository) CountClicks(ctx context.Context, linkID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM affiliate_clicks WHERE link_id = $1`, linkID); err != nil {
		return 0, fmt.Errorf("affiliate repository: count clicks: %w", common.Classify(err))
	}
	return count, nil
}

// CreateEarning фиксирует начисление. Повтор по тому же заказу даёт common.ErrAlreadyExists.
func (r *AffiliateRepository) CreateEarning(ctx context.Context, earning *models.AffiliateEarning) error {
	if earning.ID == uuid.Nil {
		earning.ID = uuid.New()
	}
	if earning.Amount < 0 {
		return fmt.Errorf("affiliate repository: create earning: %w", common.ErrInvalidInput)
	}

	query := `
		INSERT INTO affiliate_earnings (id, affiliate_id, link_id, order_id, amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		earning.ID, earning.AffiliateID, earning.LinkID, earning.OrderID, earning.Amount,
	).Scan(&earning.CreatedAt)
	if err != nil {
		return fmt.Errorf("affiliate repository: create earning: %w", common.Classify(err))
	}
	return nil
}

// EarningsByLink возвращает число оплаченных продаж и сумму начислений по ссылке.
func (r *AffiliateRepository) EarningsByLink(ctx context.Context, linkID uuid.UUID) (int64, int64, error) {
	var row struct {
		Sales int64 `db:"sales"`
		Total int64 `db:"total"`
	}
	query := `SELECT COUNT(*) AS sales, COALESCE(SUM(amount), 0) AS total FROM affiliate_earnings WHERE link_id = $1`
	if err := r.db.GetContext(ctx, &row, query, linkID); err != nil {
		return 0, 0, fmt.Errorf("affiliate repository: earnings: %w", common.Classify(err))
	}
	return row.Sales, row.Total, nil
}
