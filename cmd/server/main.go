package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appfulfillment "github.com/orderbridge/backend/internal/application/fulfillment"
	"github.com/orderbridge/backend/internal/domain/company"
	"github.com/orderbridge/backend/internal/domain/fulfillment"
	"github.com/orderbridge/backend/internal/domain/shared"
	"github.com/orderbridge/backend/internal/infrastructure/anaf"
	"github.com/orderbridge/backend/internal/infrastructure/cache"
	"github.com/orderbridge/backend/internal/infrastructure/config"
	"github.com/orderbridge/backend/internal/infrastructure/logger"
	"github.com/orderbridge/backend/internal/infrastructure/oblio"
	"github.com/orderbridge/backend/internal/infrastructure/sameday"
	"github.com/orderbridge/backend/internal/infrastructure/shopcommerce"
	"github.com/orderbridge/backend/internal/infrastructure/telemetry"
	"github.com/orderbridge/backend/internal/interfaces/http/handler"
	"github.com/orderbridge/backend/internal/interfaces/http/middleware"
	"github.com/orderbridge/backend/internal/interfaces/http/router"
)

const appVersion = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting orderbridge",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	// Metrics
	serviceName := cfg.Telemetry.ServiceName
	if serviceName == "" {
		serviceName = cfg.App.Name
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		ServiceName:       serviceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down metrics", zap.Error(err))
		}
	}()

	var fulfillmentMetrics *telemetry.FulfillmentMetrics
	if meterProvider.IsEnabled() {
		fulfillmentMetrics, err = telemetry.NewFulfillmentMetrics(telemetry.FulfillmentMetricsConfig{
			Meter:  meterProvider.Meter("orderbridge"),
			Logger: log,
		})
		if err != nil {
			log.Fatal("Failed to create fulfillment metrics", zap.Error(err))
		}
	}

	// Commerce platform client (order state store)
	shopCfg := &shopcommerce.Config{
		ShopDomain:     cfg.Shop.Domain,
		AccessToken:    cfg.Shop.AccessToken,
		APIVersion:     cfg.Shop.APIVersion,
		WebhookSecret:  cfg.Shop.WebhookSecret,
		TimeoutSeconds: cfg.Shop.TimeoutSeconds,
	}
	shopClient, err := shopcommerce.NewClient(shopCfg, log)
	if err != nil {
		log.Fatal("Failed to create platform client", zap.Error(err))
	}

	// Invoicing provider
	oblioClient, err := oblio.NewClient(&oblio.Config{
		Email:           cfg.Oblio.Email,
		APISecret:       cfg.Oblio.APISecret,
		CIF:             cfg.Oblio.CIF,
		Series:          cfg.Oblio.Series,
		AlternateSeries: cfg.Oblio.AlternateSeries,
		TimeoutSeconds:  cfg.Oblio.TimeoutSeconds,
	}, log)
	if err != nil {
		log.Fatal("Failed to create invoicing client", zap.Error(err))
	}

	// Courier adapter
	samedayAdapter, err := sameday.NewAdapter(&sameday.Config{
		Username:       cfg.Sameday.Username,
		Password:       cfg.Sameday.Password,
		PickupPointID:  cfg.Sameday.PickupPointID,
		ServiceID:      cfg.Sameday.ServiceID,
		TimeoutSeconds: cfg.Sameday.TimeoutSeconds,
	}, log)
	if err != nil {
		log.Fatal("Failed to create courier adapter", zap.Error(err))
	}

	// Company registry verifier behind its rate limiter
	anafClient, err := anaf.NewClient(&anaf.Config{
		TimeoutSeconds: cfg.Anaf.TimeoutSeconds,
	}, log)
	if err != nil {
		log.Fatal("Failed to create registry client", zap.Error(err))
	}
	verifier := company.NewVerifier(anaf.NewIntervalLimiter(cfg.Anaf.RequestInterval), anafClient, log)

	// Webhook delivery deduplication store
	var dedupStore shared.IdempotencyStore
	if cfg.Webhook.DedupEnabled {
		if cfg.Redis.Enabled {
			dedupStore, err = cache.NewRedisIdempotencyStore(cache.RedisConfig{
				Host:     cfg.Redis.Host,
				Port:     cfg.Redis.Port,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			if err != nil {
				log.Fatal("Failed to connect to Redis", zap.Error(err))
			}
			log.Info("Webhook dedup using Redis",
				zap.String("host", cfg.Redis.Host),
				zap.Int("port", cfg.Redis.Port),
			)
		} else {
			dedupStore = cache.NewInMemoryIdempotencyStore()
			log.Info("Webhook dedup using in-memory store")
		}
		defer func() {
			if err := dedupStore.Close(); err != nil {
				log.Error("Error closing dedup store", zap.Error(err))
			}
		}()
	}

	// Application services
	orchOpts := []fulfillment.OrchestratorOption{
		fulfillment.WithMaxRetries(cfg.Retry.MaxRetries),
	}
	if fulfillmentMetrics != nil {
		orchOpts = append(orchOpts, fulfillment.WithMetricsRecorder(fulfillmentMetrics))
	}

	invoicingSvc := appfulfillment.NewInvoicingService(shopClient, oblioClient, verifier,
		appfulfillment.InvoicingConfig{
			Series:          cfg.Oblio.Series,
			AlternateSeries: cfg.Oblio.AlternateSeries,
			SendEmail:       cfg.Oblio.SendEmail,
			DecrementStock:  cfg.Oblio.UseStock,
		}, log, orchOpts...)

	shippingSvc := appfulfillment.NewShippingService(shopClient, samedayAdapter,
		appfulfillment.ShippingConfig{
			ServiceID:         cfg.Sameday.ServiceID,
			PickupPointID:     cfg.Sameday.PickupPointID,
			CollectOnDelivery: true,
		}, log, orchOpts...)

	retrySvc := appfulfillment.NewRetryService(invoicingSvc, shippingSvc, cfg.Retry.BatchConcurrency, log)

	// HTTP surface
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(logger.GinMiddleware(log), logger.Recovery(log))
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Invalid trusted proxies", zap.Error(err))
		}
	}

	var webhookMetrics handler.WebhookMetrics
	if fulfillmentMetrics != nil {
		webhookMetrics = fulfillmentMetrics
	}

	router.Setup(engine, router.Config{
		Webhooks: handler.NewWebhookHandler(invoicingSvc, shippingSvc, shippingSvc,
			dedupStore, cfg.Webhook.DedupTTL, webhookMetrics, log),
		Admin:            handler.NewAdminHandler(retrySvc, log),
		Health:           handler.NewHealthHandler(appVersion),
		WebhookSignature: middleware.WebhookSignature(shopCfg.VerifyWebhookSignature),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
