package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	rd "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/client"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/config"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/handler"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/logger"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/model"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/notify"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/pricing"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/provider"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/repository"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/server"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/service"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Printf("Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	db, err := client.InitDBClient(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("init database", zap.Error(err))
	}

	registry := provider.NewRegistry(
		provider.NewStripeProvider(&cfg.Stripe),
		provider.NewPaypalProvider(&cfg.Paypal),
		provider.NewBraintreeProvider(&cfg.Braintree),
	)
	active, ok := registry.Get(model.PaymentProvider(cfg.ActiveProvider))
	if !ok {
		log.Fatal("unknown active provider", zap.String("provider", cfg.ActiveProvider))
	}

	paymentRepo := repository.NewPaymentRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	productRepo := repository.NewProductRepository(db)
	cartRepo := repository.NewCartRepository(db)
	addressRepo := repository.NewAddressRepository(db)
	planRepo := repository.NewPlanRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	if err := seedCatalog(productRepo, planRepo); err != nil {
		log.Fatal("seed catalog", zap.Error(err))
	}

	var notifier service.Notifier
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaNotifier := notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		defer kafkaNotifier.Close() //nolint:errcheck
		notifier = kafkaNotifier
	} else {
		notifier = notify.NewLogNotifier(log)
	}
	mailer := notify.NewLogMailer(log)

	var globalDiscount *pricing.GlobalDiscount
	if cfg.Checkout.GlobalDiscountPercent.IsPositive() {
		globalDiscount = &pricing.GlobalDiscount{
			Percent:     cfg.Checkout.GlobalDiscountPercent,
			MinSubtotal: cfg.Checkout.GlobalDiscountMinSubtotal,
		}
	}

	checkoutService := service.NewCheckoutService(
		db, log, active,
		service.CheckoutConfig{
			Currency:       "GBP",
			SuccessURL:     cfg.BaseURL + "/api/payment/redirect/success",
			CancelURL:      cfg.BaseURL + "/api/payment/redirect/cancel",
			GlobalDiscount: globalDiscount,
		},
		service.FlatRateShipping{Rate: cfg.Checkout.ShippingFlatRate},
		cartRepo, productRepo, addressRepo, orderRepo, paymentRepo, planRepo, subscriptionRepo,
	)

	reconcileService := service.NewReconciliationService(
		db, log, registry, notifier, mailer,
		paymentRepo, orderRepo, productRepo, cartRepo, subscriptionRepo, planRepo, webhookEventRepo,
	)

	paymentHandler := handler.NewPaymentHandler(checkoutService, reconcileService, cfg.FrontendURL, log)

	var redisClient *rd.Client
	if cfg.Redis.Addr != "" {
		redisClient = rd.NewClient(&rd.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		defer redisClient.Close() //nolint:errcheck
	}

	srv := server.NewServer(log, paymentHandler, server.Options{
		JWTSecret:     cfg.JWTSecret,
		RedisClient:   redisClient,
		RateLimit:     cfg.Checkout.RateLimit,
		RateWindowSec: cfg.Checkout.RateWindowSec,
	})

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	log.Info("starting HTTP server",
		zap.String("addr", serverAddr),
		zap.String("active_provider", cfg.ActiveProvider),
	)
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Info("signal received, starting graceful shutdown")

	_, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(); err != nil {
		log.Fatal("HTTP server shutdown error", zap.Error(err))
	}
}

// seedCatalog inserts the demo catalog; existing rows are left untouched.
func seedCatalog(productRepo repository.ProductRepository, planRepo repository.PlanRepository) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	products := []model.Product{
		{
			ID:        "prod-collagen-powder",
			Name:      "Marine Collagen Powder",
			Price:     decimal.RequireFromString("24.00"),
			Currency:  "GBP",
			Stock:     120,
			Published: true,
		},
		{
			ID:        "prod-vitamin-d3",
			Name:      "Vitamin D3 4000iu",
			Price:     decimal.RequireFromString("9.50"),
			Currency:  "GBP",
			Stock:     300,
			Published: true,
		},
		{
			ID:         "prod-retreat-journal",
			Name:       "Wellness Retreat Journal",
			Price:      decimal.RequireFromString("15.00"),
			Currency:   "GBP",
			Stock:      0,
			Published:  true,
			IsPreOrder: true,
		},
	}
	if err := productRepo.Seed(ctx, products); err != nil {
		return err
	}

	plans := []model.Plan{
		{
			ID:           "plan-monthly",
			Name:         "Monthly Membership",
			Price:        decimal.RequireFromString("12.99"),
			Currency:     "GBP",
			DurationDays: 30,
			Active:       true,
		},
		{
			ID:           "plan-annual",
			Name:         "Annual Membership",
			Price:        decimal.RequireFromString("129.00"),
			Currency:     "GBP",
			DurationDays: 365,
			Active:       true,
		},
	}
	return planRepo.Seed(ctx, plans)
}
