package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/vehicle-rental-booking/internal/config"
	"github.com/iliyamo/vehicle-rental-booking/internal/database"
	"github.com/iliyamo/vehicle-rental-booking/internal/events"
	"github.com/iliyamo/vehicle-rental-booking/internal/handler"
	"github.com/iliyamo/vehicle-rental-booking/internal/jobs"
	"github.com/iliyamo/vehicle-rental-booking/internal/mailer"
	"github.com/iliyamo/vehicle-rental-booking/internal/middleware"
	"github.com/iliyamo/vehicle-rental-booking/internal/notify"
	"github.com/iliyamo/vehicle-rental-booking/internal/queue"
	"github.com/iliyamo/vehicle-rental-booking/internal/repository"
	"github.com/iliyamo/vehicle-rental-booking/internal/router"
	"github.com/iliyamo/vehicle-rental-booking/internal/service"
	"github.com/iliyamo/vehicle-rental-booking/internal/validation"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.Load() // Load environment config
	pricing := config.LoadPricingConfig()
	mailCfg := config.LoadMailConfig()
	jobsCfg := config.LoadJobsConfig()
	eventsCfg := config.LoadEventsConfig()
	rlCfg := config.LoadRateLimitConfig()
	cacheCfg := config.LoadCacheConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	db, err := database.Open(database.Options{
		User:         cfg.DBUser,
		Pass:         cfg.DBPass,
		Host:         cfg.DBHost,
		Port:         cfg.DBPort,
		Name:         cfg.DBName,
		MaxOpenConns: cfg.DBMaxOpenConns,
	})
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if cfg.DBAutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := database.Migrate(ctx, db)
		cancel()
		if err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig(), logger) // nil when Redis is down

	// Repositories
	bookingRepo := repository.NewBookingRepo(db)
	vehicleRepo := repository.NewVehicleRepo(db)
	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)
	notificationRepo := repository.NewNotificationRepo(db)
	threadRepo := repository.NewThreadRepo(db)

	// Side effects run on the in-process bus after each stored mutation.
	bus := events.NewBus(logger, eventsCfg.HandlerTimeout)
	deps := notify.Deps{
		Notifications: notificationRepo,
		Threads:       threadRepo,
		Users:         userRepo,
		Log:           logger,
	}
	switch smtp, err := mailer.NewSMTP(mailCfg); {
	case err == nil:
		deps.Mail = smtp
	case errors.Is(err, mailer.ErrDisabled):
		logger.Info("smtp not configured, confirmation emails disabled")
	default:
		logger.Warn("smtp setup failed, confirmation emails disabled", "err", err)
	}

	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()

	if cfg.AMQPURL != "" {
		deps.Broker = queue.NewPublisher(cfg.AMQPURL, eventsCfg.Queue)
		if eventsCfg.ConsumerEnabled {
			consumer := &queue.Consumer{
				URL:     cfg.AMQPURL,
				Queue:   eventsCfg.Queue,
				LogPath: eventsCfg.AuditLogPath,
				Log:     logger.With("component", "audit-consumer"),
			}
			go func() {
				if err := consumer.Run(appCtx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("audit consumer stopped", "err", err)
				}
			}()
		}
	}
	notify.Register(bus, deps)

	manager := service.NewManager(bookingRepo, vehicleRepo, bus,
		service.Fees{ServiceBps: pricing.ServiceFeeBps, InsurancePerDayCents: pricing.InsurancePerDayCents},
		service.WithLogger(logger),
	)

	// HTTP
	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Validator = validation.New()
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.NewTokenBucket(rlCfg, rdb, logger)) // per IP and route; runs before auth

	purge := func(ctx context.Context) { middleware.PurgeCache(ctx, rdb, cacheCfg.Prefix, logger) }
	vehicles := handler.NewVehicleHandler(vehicleRepo, manager, purge, logger, cfg.RequestTimeout)
	bookings := handler.NewBookingHandler(manager, threadRepo, logger, cfg.RequestTimeout)
	notifications := &handler.NotificationHandler{Store: notificationRepo, Log: logger, Timeout: cfg.RequestTimeout}
	auth := handler.NewAuthHandler(cfg, userRepo, tokenRepo, logger)

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, auth, cfg.JWTSecret)
	router.RegisterPublic(e, vehicles, middleware.NewRedisCache(cacheCfg, rdb))
	router.RegisterOwner(e, vehicles, cfg.JWTSecret)
	router.RegisterAdmin(e, vehicles, cfg.JWTSecret)
	router.RegisterBookings(e, bookings, cfg.JWTSecret, middleware.NewTokenBucket(rlCfg.Booking(), rdb, logger))
	router.RegisterNotifications(e, notifications, cfg.JWTSecret)

	var runner *jobs.Runner
	if jobsCfg.Enabled {
		runner, err = jobs.New(manager, jobsCfg.ExpireInterval, logger)
		if err != nil {
			log.Fatalf("jobs: %v", err)
		}
		runner.Start()
	}

	addr := ":" + cfg.Port // Address string with port
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err) // Log and exit if server fails
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("http shutdown", "err", err)
	}
	if runner != nil {
		if err := runner.Stop(); err != nil {
			logger.Error("scheduler shutdown", "err", err)
		}
	}
	stopApp()
	if rdb != nil {
		_ = rdb.Close()
	}
	if err := db.Close(); err != nil {
		logger.Error("db close", "err", err)
	}
}
