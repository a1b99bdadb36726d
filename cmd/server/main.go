package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/concert-booking/internal/config"
	"github.com/iliyamo/concert-booking/internal/database"
	"github.com/iliyamo/concert-booking/internal/handler"
	"github.com/iliyamo/concert-booking/internal/mail"
	"github.com/iliyamo/concert-booking/internal/middleware"
	"github.com/iliyamo/concert-booking/internal/queue"
	"github.com/iliyamo/concert-booking/internal/repository"
	"github.com/iliyamo/concert-booking/internal/router"
	"github.com/iliyamo/concert-booking/internal/service"
	"github.com/iliyamo/concert-booking/internal/ticket"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal("database connect failed", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	// Redis is optional: a nil client turns rate limiting and catalog
	// caching into pass-throughs.
	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable, rate limiting and caching disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	concerts := repository.NewConcertRepo(db)
	bookings := repository.NewBookingRepo(db)

	reservations := service.NewReservation(concerts, bookings, users, logger)

	smtp := config.LoadSMTPConfig()
	var mailer service.Deliverer
	if smtp.Host != "" {
		mailer = mail.NewDispatcher(smtp)
	} else {
		logger.Warn("no SMTP host configured, ticket mail disabled")
	}
	amqpURL := config.AMQPURL()
	issuer := service.NewIssuer(ticket.NewRenderer(), mailer, queue.NewPublisher(amqpURL, logger), logger)

	// The consumer tails booking.confirmed into the audit log and
	// reconnects on its own for the life of the process.
	go queue.StartBookingConsumer(amqpURL, logger)

	authH := handler.NewAuthHandler(cfg, users, tokens)
	concertH := handler.NewConcertHandler(concerts, bookings)
	bookingH := handler.NewBookingHandler(reservations, issuer, bookings)

	e := echo.New()
	e.HideBanner = true

	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewCatalogCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterCatalog(e, concertH, cache)
	router.RegisterBooking(e, bookingH, cfg.JWTSecret, limit)
	router.RegisterAdmin(e, concertH, cfg.JWTSecret)

	addr := ":" + cfg.Port
	logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := e.Start(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

// newLogger picks the zap preset for the environment: human-readable in
// dev, JSON elsewhere.
func newLogger(env string) (*zap.Logger, error) {
	if env == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
