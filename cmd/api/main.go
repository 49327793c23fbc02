package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/telecare/telemed-api/config"
	"github.com/telecare/telemed-api/internal/handler"
	appointmentHandler "github.com/telecare/telemed-api/internal/handler/appointment"
	authzHandler "github.com/telecare/telemed-api/internal/handler/authz"
	directoryHandler "github.com/telecare/telemed-api/internal/handler/directory"
	sessionHandler "github.com/telecare/telemed-api/internal/handler/session"
	"github.com/telecare/telemed-api/internal/middleware"
	"github.com/telecare/telemed-api/internal/repository/postgres"
	"github.com/telecare/telemed-api/internal/router"
	directoryService "github.com/telecare/telemed-api/internal/service/directory"
	rbacService "github.com/telecare/telemed-api/internal/service/rbac"
	schedulerService "github.com/telecare/telemed-api/internal/service/scheduler"
	sessionService "github.com/telecare/telemed-api/internal/service/session"
	"github.com/telecare/telemed-api/pkg/auth"
	applogger "github.com/telecare/telemed-api/pkg/logger"
	"github.com/telecare/telemed-api/pkg/metrics"
)

func main() {
	// Configuration is validated up front: a missing DSN, auth secret
	// or service URL is fatal before anything runs.
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// The gateway connects lazily; first use establishes the cached
	// connection under the configured timeout.
	gateway := postgres.NewGateway(cfg.Database)
	defer gateway.Close()

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to parse redis URL")
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid log level")
	}
	logger := applogger.New(&applogger.Config{
		Level:      level,
		TimeFormat: time.RFC3339,
		Pretty:     cfg.Logging.Pretty,
	})

	m := metrics.NewMetrics("telemed", "api")

	// Repositories
	userRepo := postgres.NewUserRepository(gateway, cfg.Database.QueryTimeout)
	appointmentRepo := postgres.NewAppointmentRepository(gateway, cfg.Database.QueryTimeout)
	sessionRepo := postgres.NewSessionRepository(gateway, cfg.Database.QueryTimeout)

	// Services
	rbacSvc := rbacService.NewService()
	directorySvc := directoryService.NewService(userRepo, redisClient, cfg.Redis.CacheTTL, m, &logger)
	schedulerSvc := schedulerService.NewService(appointmentRepo, userRepo, rbacSvc, m, &logger)
	sessionSvc := sessionService.NewService(sessionRepo, appointmentRepo, rbacSvc, m, &logger)

	// Middleware
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour, cfg.JWT.Issuer)
	authMiddleware := middleware.NewAuthMiddleware(jwtSvc, rbacSvc)

	// Handlers
	h := handler.NewHandler(gateway)
	directoryH := directoryHandler.NewHandler(directorySvc)
	appointmentH := appointmentHandler.NewHandler(schedulerSvc)
	sessionH := sessionHandler.NewHandler(sessionSvc)
	authzH := authzHandler.NewHandler(rbacSvc)

	r := router.NewRouter(
		authMiddleware,
		directoryH,
		appointmentH,
		sessionH,
		authzH,
		h,
		router.Config{
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimitRPS:     cfg.RateLimit.RequestsPerSecond,
			RateLimitBurst:   cfg.RateLimit.Burst,
			CORSConfig:       middleware.DefaultCORSConfig(),
			MetricsPrefix:    "telemed",
			MetricsPath:      cfg.Monitoring.MetricsPath,
		},
	)
	r.Setup(cfg.Monitoring.MetricsPath)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("service_url", cfg.ServiceURL).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}
