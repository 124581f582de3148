package main // Entry point package

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
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/charge-slot-reservation/internal/clock"
	"github.com/iliyamo/charge-slot-reservation/internal/config"
	"github.com/iliyamo/charge-slot-reservation/internal/handler"
	"github.com/iliyamo/charge-slot-reservation/internal/middleware"
	"github.com/iliyamo/charge-slot-reservation/internal/queue"
	"github.com/iliyamo/charge-slot-reservation/internal/router"
	"github.com/iliyamo/charge-slot-reservation/internal/service"
	"github.com/iliyamo/charge-slot-reservation/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	config.LoadDotEnv()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	stores, err := store.Open(startupCtx, cfg)
	cancel()
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer stores.Close()

	// Redis is optional: without it the cache is skipped and the rate
	// limiter falls back to an in-process bucket.
	rdb, err := config.NewRedisClient(config.LoadRedisConfig())
	if err != nil {
		log.Printf("redis: %v; continuing without it", err)
	} else {
		defer rdb.Close()
	}

	opts := []service.Option{
		service.WithLocation(cfg.PricingLocation),
		service.WithLookAhead(cfg.LookAhead),
		service.WithGateway(service.NewSimulatedGateway(cfg.PaymentSuccessRate)),
	}
	if cfg.EventsEnabled {
		pub := queue.NewPublisher(cfg.AMQPURL)
		defer pub.Close()
		opts = append(opts, service.WithPublisher(pub))
	}
	svc := service.New(stores.Catalog, stores.Reservations, clock.NewSystem(), opts...)

	if cfg.ConsumerEnabled {
		go func() {
			if err := queue.NewConsumer(cfg.AMQPURL, cfg.EventLogDir).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("reservation-consumer: stopped: %v", err)
			}
		}()
	}
	if cfg.SweepInterval > 0 {
		go service.NewSweeper(svc, cfg.SweepInterval).Run(ctx)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	router.RegisterRoutes(e)
	router.RegisterPublic(e, handler.NewPublicHandler(stores.Catalog, svc), middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	router.RegisterCustomer(e, handler.NewReservationHandler(svc), cfg.JWTSecret)
	router.RegisterOperator(e, handler.NewOperatorHandler(svc), cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, store=%s)", addr, cfg.Env, cfg.StoreDriver)

	srvErr := make(chan error, 1)
	go func() { srvErr <- e.Start(addr) }()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
		}
	case <-ctx.Done():
		log.Printf("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("server shutdown error: %v", err)
	}
	log.Printf("server stopped")
}
