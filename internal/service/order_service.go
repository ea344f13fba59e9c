package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ignatzorin/ecocoin-market/internal/logger"
	"github.com/ignatzorin/ecocoin-market/internal/models"
	"github.com/ignatzorin/ecocoin-market/internal/pkg/apperror"
)

type OrderRepository interface {
	OrderStore
	GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error)
}

// MyOrders заказы пользователя в обеих ролях.
type MyOrders struct {
	Purchases []models.Order `json:"purchases"`
	Sales     []models.Order `json:"sales"`
}

// OrderService отвечает за просмотр заказов и отметку отправки.
type OrderService struct {
	repo     OrderRepository
	engine   *EscrowEngine
	notifier Notifier
}

func NewOrderService(repo OrderRepository, engine *EscrowEngine, notifier Notifier) *OrderService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &OrderService{repo: repo, engine: engine, notifier: notifier}
}

// MarkShipped отмечает отправку и уведомляет покупателя.
func (s *OrderService) MarkShipped(ctx context.Context, sellerID, orderID uuid.UUID, trackingNumber string) (*models.Order, error) {
	order, err := s.engine.MarkShipped(ctx, sellerID, orderID, trackingNumber)
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{
		"order_id":  order.ID,
		"seller_id": sellerID,
	}).Info("order: заказ отправлен")

	s.notifier.BroadcastToUser(order.BuyerID, EventOrderShipped, map[string]interface{}{
		"order_id":        order.ID,
		"tracking_number": order.TrackingNumber,
	})
	return order, nil
}

// GetOrder доступен только покупателю и продавцу.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.engine.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != userID && order.SellerID != userID {
		return nil, apperror.ErrForbidden
	}
	s.attachListings(ctx, []*models.Order{order})
	return order, nil
}

// ListMyOrders возвращает покупки и продажи пользователя.
func (s *OrderService) ListMyOrders(ctx context.Context, userID uuid.UUID) (*MyOrders, error) {
	var result MyOrders
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		orders, err := s.repo.ListOrdersByBuyer(gctx, userID)
		result.Purchases = orders
		return err
	})
	g.Go(func() error {
		orders, err := s.repo.ListOrdersBySeller(gctx, userID)
		result.Sales = orders
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, storeError(err, nil)
	}

	if result.Purchases == nil {
		result.Purchases = []models.Order{}
	}
	if result.Sales == nil {
		result.Sales = []models.Order{}
	}

	all := make([]*models.Order, 0, len(result.Purchases)+len(result.Sales))
	for i := range result.Purchases {
		all = append(all, &result.Purchases[i])
	}
	for i := range result.Sales {
		all = append(all, &result.Sales[i])
	}
	s.attachListings(ctx, all)
	return &result, nil
}

// attachListings подставляет объявления в заказы. Ошибки чтения пропускаются.
func (s *OrderService) attachListings(ctx context.Context, orders []*models.Order) {
	cache := make(map[uuid.UUID]*models.Listing)
	for _, o := range orders {
		listing, ok := cache[o.ListingID]
		if !ok {
			l, err := s.repo.GetListing(ctx, o.ListingID)
			if err != nil {
				logger.Log.WithField("listing_id", o.ListingID).WithError(err).Debug("order: объявление не загружено")
			}
			listing = l
			cache[o.ListingID] = l
		}
		o.Listing = listing
	}
}
