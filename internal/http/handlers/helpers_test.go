package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/ecocoin-market/internal/domain/valueobject"
	"github.com/ignatzorin/ecocoin-market/internal/dto"
	"github.com/ignatzorin/ecocoin-market/internal/http/middleware"
	"github.com/ignatzorin/ecocoin-market/internal/logger"
	"github.com/ignatzorin/ecocoin-market/internal/models"
	"github.com/ignatzorin/ecocoin-market/internal/repository/memory"
	"github.com/ignatzorin/ecocoin-market/internal/service"
	"github.com/ignatzorin/ecocoin-market/internal/storage"
)

const testSecret = "handlers-test-secret-handlers-test-secret"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Silence()
	os.Exit(m.Run())
}

type apiEnv struct {
	store   *memory.Store
	tokens  *service.TokenManager
	wallets *service.WalletService
	router  *gin.Engine
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	store := memory.NewStore()
	retry := service.RetryPolicy{MaxTries: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
	metrics := service.NewMetrics(prometheus.NewRegistry())
	tokens := service.NewTokenManager(testSecret, time.Hour)

	photos, err := storage.NewPhotoStorage(t.TempDir(), "/media", 1)
	require.NoError(t, err)

	wallets := service.NewWalletService(store, retry)
	engine := service.NewEscrowEngine(store, store, retry)
	affiliates := service.NewAffiliateService(store, "click-key", retry)
	settlement := service.NewSettlementService(store, wallets, engine, valueobject.DefaultCommissionRate, nil, metrics, retry)

	purchase := NewPurchaseHandler(service.NewPurchaseService(store, wallets, engine, affiliates, nil, metrics, retry))
	order := NewOrderHandler(service.NewOrderService(store, engine, nil), settlement)
	wallet := NewWalletHandler(wallets)
	affiliate := NewAffiliateHandler(affiliates)
	listing := NewListingHandler(service.NewListingService(store, nil, photos, nil))
	seed := NewSeedHandler(service.NewSeedService(store, wallets, tokens), tokens)

	r := gin.New()
	r.Use(middleware.ErrorHandler())
	api := r.Group("/api")
	api.GET("/listings/:id", listing.GetListing)
	api.GET("/listings", listing.ListActive)
	api.POST("/dev/seed", seed.Seed)
	api.POST("/dev/token", seed.IssueToken)

	p := api.Group("")
	p.Use(middleware.AuthMiddleware(tokens))
	p.POST("/purchases", purchase.Purchase)
	p.GET("/orders/my", order.ListMyOrders)
	p.GET("/orders/:id", order.GetOrder)
	p.POST("/orders/:id/ship", order.MarkShipped)
	p.POST("/orders/:id/confirm", order.ConfirmDelivery)
	p.GET("/wallet", wallet.GetWallet)
	p.GET("/wallet/transactions", wallet.ListTransactions)
	p.POST("/affiliate/links", affiliate.CreateLink)
	p.GET("/affiliate/stats", affiliate.Stats)
	p.POST("/listings", listing.CreateListing)
	p.GET("/listings/mine", listing.ListMine)
	p.POST("/listings/suggest-price", listing.SuggestPrice)
	p.POST("/listings/:id/photos", listing.UploadPhoto)

	return &apiEnv{store: store, tokens: tokens, wallets: wallets, router: r}
}

func (e *apiEnv) token(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	issued, err := e.tokens.IssueAccess(userID, role)
	require.NoError(t, err)
	return issued.AccessToken
}

func (e *apiEnv) fund(t *testing.T, userID uuid.UUID, amount int64) {
	t.Helper()
	require.NoError(t, e.wallets.EnsureWallet(context.Background(), userID, amount))
}

func (e *apiEnv) listing(t *testing.T, ownerID uuid.UUID, price int64) *models.Listing {
	t.Helper()
	l := &models.Listing{OwnerID: ownerID, Title: "Винтажный фотоаппарат", Price: price}
	require.NoError(t, e.store.CreateListing(context.Background(), l))
	return l
}

func (e *apiEnv) serve(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return e.serve(req, token)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[dto.ErrorResponse](t, w).Code
}
