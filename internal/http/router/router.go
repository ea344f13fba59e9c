package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignatzorin/ecocoin-market/internal/config"
	"github.com/ignatzorin/ecocoin-market/internal/http/handlers"
	"github.com/ignatzorin/ecocoin-market/internal/http/middleware"
	"github.com/ignatzorin/ecocoin-market/internal/service"
)

// Handlers набор хэндлеров API. Seed может быть nil.
type Handlers struct {
	Health    *handlers.HealthHandler
	Purchase  *handlers.PurchaseHandler
	Order     *handlers.OrderHandler
	Wallet    *handlers.WalletHandler
	Affiliate *handlers.AffiliateHandler
	Listing   *handlers.ListingHandler
	WS        *handlers.WSHandler
	Seed      *handlers.SeedHandler
}

func SetupRouter(cfg *config.Config, h Handlers, tokens *service.TokenManager, metrics prometheus.Gatherer) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics, promhttp.HandlerOpts{})))
	}
	if cfg.MediaStoragePath != "" {
		r.StaticFS("/media", http.Dir(cfg.MediaStoragePath))
	}

	api := r.Group("/api")

	if h.Seed != nil && !cfg.IsProduction() {
		dev := api.Group("/dev")
		dev.POST("/seed", h.Seed.Seed)
		dev.POST("/token", h.Seed.IssueToken)
	}

	api.GET("/listings", h.Listing.ListActive)
	api.GET("/listings/:id", middleware.UUIDValidator("id"), h.Listing.GetListing)
	if h.WS != nil {
		api.GET("/ws", h.WS.Handle)
	}

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(tokens))

	// Перемещающие монеты запросы ограничиваются отдельно.
	moneyLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)

	protected.POST("/purchases", moneyLimit, h.Purchase.Purchase)

	orders := protected.Group("/orders")
	{
		orders.GET("/my", h.Order.ListMyOrders)
		orders.GET("/:id", middleware.UUIDValidator("id"), h.Order.GetOrder)
		orders.POST("/:id/ship", middleware.UUIDValidator("id"), moneyLimit, h.Order.MarkShipped)
		orders.POST("/:id/confirm", middleware.UUIDValidator("id"), moneyLimit, h.Order.ConfirmDelivery)
	}

	wallet := protected.Group("/wallet")
	{
		wallet.GET("", h.Wallet.GetWallet)
		wallet.GET("/transactions", h.Wallet.ListTransactions)
	}

	affiliate := protected.Group("/affiliate")
	{
		affiliate.POST("/links", h.Affiliate.CreateLink)
		affiliate.GET("/stats", h.Affiliate.Stats)
	}

	listings := protected.Group("/listings")
	{
		listings.POST("", h.Listing.CreateListing)
		listings.GET("/mine", h.Listing.ListMine)
		listings.POST("/suggest-price", h.Listing.SuggestPrice)
		listings.POST("/:id/photos", middleware.UUIDValidator("id"), h.Listing.UploadPhoto)
	}

	return r
}
