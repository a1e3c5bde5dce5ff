package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/atarasov/supplyhub/internal/cache"
	"github.com/atarasov/supplyhub/internal/config"
	"github.com/atarasov/supplyhub/internal/es"
	"github.com/atarasov/supplyhub/internal/events"
	"github.com/atarasov/supplyhub/internal/handlers"
	"github.com/atarasov/supplyhub/internal/logging"
	"github.com/atarasov/supplyhub/internal/middleware/csrf"
	"github.com/atarasov/supplyhub/internal/service/cart"
	"github.com/atarasov/supplyhub/internal/service/catalog"
	"github.com/atarasov/supplyhub/internal/service/notification"
	"github.com/atarasov/supplyhub/internal/service/order"
	"github.com/atarasov/supplyhub/internal/service/payment"
	"github.com/atarasov/supplyhub/internal/service/token"
	httpserver "github.com/atarasov/supplyhub/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(os.Getenv("LOG_LEVEL"))

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("database init failed: %v", err)
	}

	producer := events.NewProducer([]string{configuration.KAFKA_ADDRESS})
	defer producer.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: configuration.REDIS_ADDR})
	counters := cache.NewCounters(redisClient, 24*time.Hour)

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatalf("elasticsearch init failed: %v", err)
	}

	tokens := &token.Service{
		DB:            db,
		JWTSecret:     []byte(configuration.JWT_SECRET),
		RefreshSecret: []byte(configuration.REFRESH_SECRET),
	}

	orderSvc := &order.Service{DB: db, Events: producer, Badges: counters}
	notifSvc := &notification.Service{DB: db, Orders: orderSvc, Events: producer, Badges: counters}
	cartSvc := &cart.Service{DB: db}
	catalogSvc := &catalog.Service{DB: db, ES: esClient, Index: es.ProductIndex, Events: producer}
	gateway := payment.NewStubGateway(configuration.PaymentFailureRate, time.Now().UnixNano())

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(logging.RequestLogger(logger))

	csrfCfg := csrf.DefaultConfig()
	csrfCfg.SkipPaths = []string{
		"/health/live", "/health/ready",
		"/api/v1/register", "/api/v1/login",
	}
	e.Use(csrf.Middleware(csrfCfg))

	deps := httpserver.Deps{
		Auth:          &handlers.AuthHandler{DB: db, Tokens: tokens},
		Profiles:      &handlers.ProfileHandler{DB: db},
		Products:      &handlers.ProductHandler{Catalog: catalogSvc},
		Cart:          &handlers.CartHandler{Cart: cartSvc},
		Orders:        &handlers.OrderHandler{Orders: orderSvc, Gateway: gateway},
		Notifications: &handlers.NotificationHandler{Notifications: notifSvc},
		Search:        &handlers.SearchHandler{ES: esClient, Index: es.ProductIndex},
		Tokens:        tokens,
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         configuration.HTTP_ADDR,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if err := redisClient.Close(); err != nil {
		log.Printf("redis close error: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}
}
