package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/tshop/backend/internal/config"
	"github.com/tshop/backend/internal/db"
	"github.com/tshop/backend/internal/es"
	"github.com/tshop/backend/internal/events"
	"github.com/tshop/backend/internal/httpserver"
	"github.com/tshop/backend/internal/logging"
	"github.com/tshop/backend/internal/middleware/auth"
	"github.com/tshop/backend/internal/middleware/loggingmw"
	"github.com/tshop/backend/internal/payment"
	"github.com/tshop/backend/internal/payment/paypal"
	"github.com/tshop/backend/internal/payment/stripe"
	"github.com/tshop/backend/internal/repo"
	"github.com/tshop/backend/internal/service"
)

func main() {
	cfg := config.Load()
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTSecret, "JWT_SECRET")

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	database, err := db.Open(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	esClient, err := es.NewClient(cfg)
	if err != nil {
		log.Fatalf("elasticsearch: %v", err)
	}

	producer := events.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()

	paypalClient := paypal.NewClient(paypal.Config{
		ClientID:     cfg.PayPalClientID,
		ClientSecret: cfg.PayPalClientSecret,
		Environment:  cfg.PayPalEnvironment,
		Currency:     cfg.CurrencyCode,
		BrandName:    "T-Shop",
	})
	stripeGateway := stripe.New(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.CurrencyCode)

	store := &repo.GormRepo{DB: database}
	authSvc := &service.AuthService{Repo: store, JWTSecret: cfg.JWTSecret}
	userSvc := &service.UserService{Repo: store}
	cartSvc := &service.CartService{Repo: store}
	orderSvc := &service.OrderService{Repo: store}
	finalizeSvc := &service.FinalizeService{
		Repo:   store,
		Orders: orderSvc,
		Carts:  cartSvc,
		Providers: map[string]payment.Provider{
			paypalClient.Name():  paypalClient,
			stripeGateway.Name(): stripeGateway,
		},
	}

	handlers := httpserver.Handlers{
		Auth:    &httpserver.AuthHTTP{Svc: authSvc, Producer: producer},
		User:    &httpserver.UserHTTP{Svc: userSvc, Producer: producer},
		Product: &httpserver.ProductHTTP{Repo: store, ES: esClient, Producer: producer},
		Cart:    &httpserver.CartHTTP{Svc: cartSvc, Producer: producer},
		Order:   &httpserver.OrderHTTP{Svc: orderSvc, Producer: producer},
		PayPal:  &httpserver.PayPalHTTP{Client: paypalClient, Carts: cartSvc, Finalize: finalizeSvc, Producer: producer},
		Stripe:  &httpserver.StripeHTTP{Gateway: stripeGateway, Carts: cartSvc, Finalize: finalizeSvc, Producer: producer},
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(echomw.CORS())

	httpserver.Register(e, handlers, auth.New(cfg.JWTSecret))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", srv.Addr)
		if err := e.StartServer(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
	logger.Info("server stopped")
}
