package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/ecocoin-market/internal/ai"
	"github.com/ignatzorin/ecocoin-market/internal/config"
	"github.com/ignatzorin/ecocoin-market/internal/db"
	httpHandlers "github.com/ignatzorin/ecocoin-market/internal/http/handlers"
	httpRouter "github.com/ignatzorin/ecocoin-market/internal/http/router"
	"github.com/ignatzorin/ecocoin-market/internal/logger"
	"github.com/ignatzorin/ecocoin-market/internal/repository"
	"github.com/ignatzorin/ecocoin-market/internal/repository/memory"
	"github.com/ignatzorin/ecocoin-market/internal/service"
	"github.com/ignatzorin/ecocoin-market/internal/storage"
	"github.com/ignatzorin/ecocoin-market/internal/ws"
	"github.com/ignatzorin/ecocoin-market/migrations"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel)
	if !cfg.IsProduction() {
		logger.SetTextFormatter()
	}

	if err := run(ctx, cfg); err != nil {
		logger.Log.WithError(err).Fatal("main: сервер завершился с ошибкой")
	}
	logger.Log.Info("main: сервер остановлен")
}

func run(ctx context.Context, cfg *config.Config) error {
	store, pinger, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// Метрики.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := service.NewMetrics(registry)

	// Вспомогательные сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)

	photoStorage, err := storage.NewPhotoStorage(cfg.MediaStoragePath, cfg.MediaPublicURL, cfg.MaxUploadSizeMB)
	if err != nil {
		return err
	}

	valuationCache := service.NewCacheService(10 * time.Minute)
	defer valuationCache.Close()

	var valuator service.Valuator
	if cfg.ValuationBaseURL != "" && cfg.ValuationModel != "" {
		valuator = ai.NewClient(cfg.ValuationBaseURL, cfg.ValuationModel, cfg.ValuationAPIKey)
	}

	// Вебсокеты.
	hub := ws.NewHub(ctx)
	go hub.Run()

	// Сервисы.
	retry := service.DefaultRetryPolicy()
	retry.MaxTries = cfg.StoreRetries

	wallets := service.NewWalletService(store, retry)
	engine := service.NewEscrowEngine(store, store, retry)
	affiliates := service.NewAffiliateService(store, cfg.ClickHashKey, retry)
	purchases := service.NewPurchaseService(store, wallets, engine, affiliates, hub, metrics, retry)
	settlement := service.NewSettlementService(store, wallets, engine, cfg.CommissionRate, hub, metrics, retry)
	orders := service.NewOrderService(store, engine, hub)
	listings := service.NewListingService(store, valuator, photoStorage, valuationCache)

	if cfg.ReconcileEvery > 0 {
		reconciler := service.NewReconcileService(store, engine, settlement, metrics, cfg.ReconcileGrace)
		go reconciler.Start(ctx, cfg.ReconcileEvery)
	}

	// HTTP хэндлеры.
	h := httpRouter.Handlers{
		Health:    httpHandlers.NewHealthHandler(pinger, cfg.StoreDriver),
		Purchase:  httpHandlers.NewPurchaseHandler(purchases),
		Order:     httpHandlers.NewOrderHandler(orders, settlement),
		Wallet:    httpHandlers.NewWalletHandler(wallets),
		Affiliate: httpHandlers.NewAffiliateHandler(affiliates),
		Listing:   httpHandlers.NewListingHandler(listings),
		WS:        httpHandlers.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
	}
	if !cfg.IsProduction() {
		h.Seed = httpHandlers.NewSeedHandler(service.NewSeedService(store, wallets, tokenManager), tokenManager)
	}

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           httpRouter.SetupRouter(cfg, h, tokenManager, registry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.WithError(err).Error("main: ошибка остановки http сервера")
		}
	}()

	logger.Log.WithFields(logrus.Fields{
		"port":  cfg.HTTPPort,
		"store": cfg.StoreDriver,
		"env":   cfg.Env,
	}).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// openStore выбирает хранилище по STORE_DRIVER. Для postgres применяет миграции.
func openStore(ctx context.Context, cfg *config.Config) (service.Ledger, httpHandlers.Pinger, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Log.Warn("main: данные хранятся в памяти и пропадут при перезапуске")
		return memory.NewStore(), nil, func() {}, nil
	}

	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	closeDB := func() {
		if err := dbConn.Close(); err != nil {
			logger.Log.WithError(err).Error("main: ошибка закрытия базы")
		}
	}

	var migrationsFS fs.FS = migrations.FS
	if cfg.MigrationsPath != "" {
		migrationsFS = os.DirFS(cfg.MigrationsPath)
	}
	if err := db.RunMigrations(ctx, dbConn, migrationsFS); err != nil {
		closeDB()
		return nil, nil, nil, err
	}

	return repository.NewLedger(dbConn), dbConn, closeDB, nil
}
