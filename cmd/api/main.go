package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/medimeet/telehealth-api/internal/cache"
	"github.com/medimeet/telehealth-api/internal/config"
	"github.com/medimeet/telehealth-api/internal/email"
	"github.com/medimeet/telehealth-api/internal/handler"
	adminHandler "github.com/medimeet/telehealth-api/internal/handler/admin"
	appointmentHandler "github.com/medimeet/telehealth-api/internal/handler/appointment"
	doctorHandler "github.com/medimeet/telehealth-api/internal/handler/doctor"
	userHandler "github.com/medimeet/telehealth-api/internal/handler/user"
	"github.com/medimeet/telehealth-api/internal/repository/postgres"
	"github.com/medimeet/telehealth-api/internal/router"
	adminService "github.com/medimeet/telehealth-api/internal/service/admin"
	appointmentService "github.com/medimeet/telehealth-api/internal/service/appointment"
	availabilityService "github.com/medimeet/telehealth-api/internal/service/availability"
	bookingService "github.com/medimeet/telehealth-api/internal/service/booking"
	ledgerService "github.com/medimeet/telehealth-api/internal/service/ledger"
	scheduleService "github.com/medimeet/telehealth-api/internal/service/schedule"
	userService "github.com/medimeet/telehealth-api/internal/service/user"
	"github.com/medimeet/telehealth-api/pkg/identity"
	"github.com/medimeet/telehealth-api/pkg/messaging"
	redisBroker "github.com/medimeet/telehealth-api/pkg/messaging/redis"
	"github.com/medimeet/telehealth-api/pkg/metrics"
	"github.com/medimeet/telehealth-api/pkg/video"
	"github.com/medimeet/telehealth-api/pkg/worker"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := log.Logger

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	store := postgres.NewStore(db)
	m := metrics.New("medimeet")

	// Optional collaborators degrade to no-ops when unconfigured so the
	// API still runs in a minimal local setup.
	var broker messaging.Broker = messaging.NopBroker{}
	var slotCache cache.SlotCache = cache.NopSlotCache{}
	if cfg.Redis.URL != "" {
		broker, err = redisBroker.NewBroker(redisBroker.Config{URL: cfg.Redis.URL}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer broker.Close()

		redisCache, err := cache.NewRedisSlotCache(cfg.Redis.URL, cfg.Redis.SlotCacheTTL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build slot cache")
		}
		slotCache = redisCache
	}

	var notifier email.Notifier = email.NopNotifier{}
	if cfg.SMTP.Host != "" {
		notifier = email.NewSMTPNotifier(email.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}

	videoProvider, err := video.NewVonageProvider(video.VonageConfig{
		ApplicationID: cfg.Video.ApplicationID,
		PrivateKeyPEM: cfg.Video.PrivateKeyPEM,
		APIURL:        cfg.Video.APIURL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize video provider")
	}

	verifier := identity.NewJWTVerifier(cfg.Identity.JWTSecret)
	planOracle := identity.NewHTTPPlanOracle(identity.PlanOracleConfig{
		BaseURL:  cfg.Identity.BaseURL,
		APIKey:   cfg.Identity.APIKey,
		CacheTTL: cfg.Identity.PlanCacheTTL,
	})

	userSvc := userService.NewService(store, logger)
	ledgerSvc := ledgerService.NewService(store, planOracle, m, logger)
	scheduleSvc := scheduleService.NewService(store, slotCache, m)
	availabilitySvc := availabilityService.NewService(store, logger)
	bookingSvc := bookingService.NewService(store, videoProvider, m, logger)
	appointmentSvc := appointmentService.NewService(store, videoProvider, m, logger)
	adminSvc := adminService.NewService(store, logger)

	r := router.New(
		router.Config{
			RateLimitRPS:   cfg.Server.RateLimitRPS,
			RateLimitBurst: cfg.Server.RateLimitBurst,
			RequestTimeout: cfg.Server.RequestTimeout,
		},
		verifier,
		userSvc,
		handler.NewHealthHandler(db),
		userHandler.NewHandler(userSvc, ledgerSvc),
		doctorHandler.NewHandler(userSvc, availabilitySvc, scheduleSvc),
		appointmentHandler.NewHandler(bookingSvc, appointmentSvc),
		adminHandler.NewHandler(adminSvc),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	processor := worker.NewOutboxProcessor(store, broker, notifier, worker.OutboxProcessorConfig{
		BatchSize:    cfg.Outbox.BatchSize,
		PollInterval: cfg.Outbox.PollInterval,
	}, logger, m)
	go processor.Start(ctx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}
}
