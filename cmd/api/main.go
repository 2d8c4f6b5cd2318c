// Package main - точка входа REST API сервера Internship Hub.
//
// API обслуживает весь жизненный цикл стажировки:
// - Зачисление стажёров и сдача задач
// - Ревью решений и подсчёт баллов
// - Воркфлоу платного сертификата (оплата, верификация, доставка, подтверждение)
// - Лидерборд и запросы доступности задач
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/internforge/internship-hub/config"
	"github.com/internforge/internship-hub/internal/application/command"
	"github.com/internforge/internship-hub/internal/application/eventhandler"
	"github.com/internforge/internship-hub/internal/application/query"
	"github.com/internforge/internship-hub/internal/application/saga"
	"github.com/internforge/internship-hub/internal/application/scoring"
	"github.com/internforge/internship-hub/internal/domain/enrollment"
	"github.com/internforge/internship-hub/internal/domain/notification"
	"github.com/internforge/internship-hub/internal/domain/shared"
	"github.com/internforge/internship-hub/internal/infrastructure/messaging"
	"github.com/internforge/internship-hub/internal/infrastructure/persistence/postgres"
	"github.com/internforge/internship-hub/internal/infrastructure/persistence/redis"
	"github.com/internforge/internship-hub/internal/infrastructure/service"
	httpapi "github.com/internforge/internship-hub/internal/interface/http"
	"github.com/internforge/internship-hub/internal/interface/http/handlers"
	"github.com/internforge/internship-hub/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}

	log := setupLogger(cfg)
	log.Info("starting Internship Hub API",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. POSTGRESQL И МИГРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS (опционально, для кеша лидерборда)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	var leaderboardCache enrollment.LeaderboardCache

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, leaderboard cache disabled", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			leaderboardCache = redis.NewLeaderboardCache(redisCache)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. РЕПОЗИТОРИИ
	// ─────────────────────────────────────────────────────────────────────────
	enrollmentRepo := postgres.NewEnrollmentRepository(dbConn)
	programRepo := postgres.NewProgramRepository(dbConn)
	submissionRepo := postgres.NewSubmissionRepository(dbConn)
	unlockRepo := postgres.NewUnlockRepository(dbConn)
	paymentRepo := postgres.NewPaymentRepository(dbConn)
	sessionRepo := postgres.NewSessionRepository(dbConn)
	validationRepo := postgres.NewValidationRepository(dbConn)

	clock := shared.SystemClock{}
	engine := scoring.DefaultEngine()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS, ДИСПЕТЧЕР И УВЕДОМЛЕНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	eventBus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	var sender notification.NotificationSender
	if cfg.Notifications.WebhookURL != "" {
		sender = service.NewWebhookNotificationSender(cfg.Notifications.WebhookURL, log)
	} else {
		sender = service.NewLogNotificationSender(log)
	}

	dispatcherConfig := messaging.DefaultDispatcherConfig()
	dispatcherConfig.Logger = log
	dispatcher := messaging.NewDispatcher(dispatcherConfig)
	dispatcher.Use(messaging.RecoveryMiddleware(log))
	dispatcher.Use(messaging.LoggingMiddleware(log))
	defer func() { _ = dispatcher.Stop() }()

	taskUnlocked := eventhandler.NewTaskUnlockedHandler(unlockRepo, sender, clock, log)
	reviewed := eventhandler.NewSubmissionReviewedHandler(leaderboardCache, sender, clock, log)
	certProgress := eventhandler.NewCertificateProgressHandler(sender, clock, log)

	registrations := map[shared.EventType]shared.EventHandler{
		shared.EventTaskUnlocked:           taskUnlocked,
		shared.EventSubmissionApproved:     reviewed,
		shared.EventSubmissionRejected:     reviewed,
		shared.EventEnrollmentCompleted:    certProgress,
		shared.EventPaymentVerified:        certProgress,
		shared.EventPaymentRejected:        certProgress,
		shared.EventCertificateIssued:      certProgress,
		shared.EventCertValidationReviewed: certProgress,
	}
	for eventType, handler := range registrations {
		if err := dispatcher.Register(eventType, handler); err != nil {
			return fmt.Errorf("register handler for %s: %w", eventType, err)
		}
	}

	if err := dispatcher.AttachTo(eventBus); err != nil {
		return fmt.Errorf("attach dispatcher: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ОБРАБОТЧИКИ КОМАНД И ЗАПРОСОВ
	// ─────────────────────────────────────────────────────────────────────────
	unlockScheduler := command.NewUnlockScheduler(unlockRepo, submissionRepo, clock)

	enrollHandler := command.NewEnrollInternHandler(enrollmentRepo, programRepo, unlockScheduler, clock)
	finalizeHandler := command.NewFinalizeEnrollmentHandler(
		enrollmentRepo, programRepo, submissionRepo, engine, eventBus, clock)
	reviewHandler := command.NewReviewSubmissionHandler(
		submissionRepo, enrollmentRepo, programRepo, unlockScheduler, finalizeHandler, engine, eventBus, clock)
	submitHandler := command.NewSubmitTaskHandler(
		submissionRepo, enrollmentRepo, programRepo, validationRepo, unlockScheduler, clock)

	certificateFlow := saga.NewCertificateFlowSaga(
		enrollmentRepo, paymentRepo, sessionRepo, validationRepo, eventBus, clock,
		saga.CertificateFlowConfig{
			NumberPrefix: cfg.Certificate.NumberPrefix,
			NumberDigits: cfg.Certificate.NumberDigits,
		},
	)

	leaderboardHandler := query.NewGetLeaderboardHandler(enrollmentRepo, leaderboardCache, clock)
	scoreHandler := query.NewGetScoreBreakdownHandler(
		enrollmentRepo, programRepo, submissionRepo, engine, clock)
	unlockedHandler := query.NewIsTaskUnlockedHandler(enrollmentRepo, unlockRepo, unlockScheduler)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HEALTH CHECKS И HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	healthChecker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	healthChecker.AddCheck("database", handlers.NewPingCheck(dbConn))
	if redisCache != nil {
		healthChecker.AddCheck("redis", handlers.NewPingCheck(redisCache))
	}

	serverConfig := httpapi.DefaultConfig()
	serverConfig.Host = cfg.HTTP.Host
	serverConfig.Port = cfg.HTTP.Port
	serverConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	serverConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	serverConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	serverConfig.EnableCORS = cfg.HTTP.EnableCORS
	serverConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverConfig.EnableMetrics = cfg.Observability.MetricsEnabled
	serverConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	serverConfig.APIKeyHeader = cfg.HTTP.APIKeyHeader
	serverConfig.AdminAPIKeys = cfg.HTTP.AdminAPIKeys

	httpLog := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  parseAPILogLevel(cfg.Observability.LogLevel),
	})

	server := httpapi.NewServer(serverConfig, httpapi.Dependencies{
		EnrollIntern:       enrollHandler,
		SubmitTask:         submitHandler,
		ReviewSubmission:   reviewHandler,
		FinalizeEnrollment: finalizeHandler,
		CertificateFlow:    certificateFlow,
		GetLeaderboard:     leaderboardHandler,
		GetScoreBreakdown:  scoreHandler,
		IsTaskUnlocked:     unlockedHandler,
		Logger:             httpLog,
		HealthChecker:      healthChecker,
	})

	errCh := server.StartAsync()
	log.Info("HTTP server started", "address", server.Address())

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	log.Info("shutting down HTTP server...", "timeout", cfg.App.ShutdownTimeout.String())
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown returned error", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Observability.LogLevel),
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Observability.LogFormat, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseAPILogLevel(level string) logger.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logger.LevelDebug
	case "warn":
		return logger.LevelWarn
	case "error":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}
