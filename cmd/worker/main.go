// Package main - точка входа фонового процесса (Worker) Internship Hub.
//
// Worker отвечает за периодические задачи:
// - Фоновое открытие задач, у которых истёк период ожидания
// - Напоминания администраторам о просроченных доставках сертификатов
// - Доставка уведомлений по доменным событиям
//
// Ленивое открытие на чтении и фоновая зачистка дополняют друг друга:
// Worker гарантирует, что задача откроется вовремя, даже если стажёр
// не заходит в систему.
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
	"github.com/internforge/internship-hub/internal/application/eventhandler"
	"github.com/internforge/internship-hub/internal/domain/enrollment"
	"github.com/internforge/internship-hub/internal/domain/notification"
	"github.com/internforge/internship-hub/internal/domain/shared"
	"github.com/internforge/internship-hub/internal/infrastructure/messaging"
	"github.com/internforge/internship-hub/internal/infrastructure/persistence/postgres"
	"github.com/internforge/internship-hub/internal/infrastructure/persistence/redis"
	"github.com/internforge/internship-hub/internal/infrastructure/scheduler"
	"github.com/internforge/internship-hub/internal/infrastructure/scheduler/jobs"
	"github.com/internforge/internship-hub/internal/infrastructure/service"
	"github.com/internforge/internship-hub/pkg/timeutil"
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
	log.Info("starting Internship Hub worker",
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

		redisCache, err := redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, leaderboard cache disabled", "error", err)
		} else {
			defer redisCache.Close()
			leaderboardCache = redis.NewLeaderboardCache(redisCache)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. РЕПОЗИТОРИИ И ОТПРАВКА УВЕДОМЛЕНИЙ
	// ─────────────────────────────────────────────────────────────────────────
	enrollmentRepo := postgres.NewEnrollmentRepository(dbConn)
	unlockRepo := postgres.NewUnlockRepository(dbConn)
	sessionRepo := postgres.NewSessionRepository(dbConn)

	clock := shared.SystemClock{}

	var sender notification.NotificationSender
	if cfg.Notifications.WebhookURL != "" {
		sender = service.NewWebhookNotificationSender(cfg.Notifications.WebhookURL, log)
		log.Info("notifications: webhook delivery", "url", cfg.Notifications.WebhookURL)
	} else {
		sender = service.NewLogNotificationSender(log)
		log.Info("notifications: log-only delivery")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS И ДИСПЕТЧЕР
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	eventBus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

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
	// 6. ПЛАНИРОВЩИК ФОНОВЫХ ЗАДАЧ
	// ─────────────────────────────────────────────────────────────────────────
	if !cfg.Scheduler.Enabled {
		log.Warn("scheduler is disabled, worker will idle")
		waitForShutdown(log)
		return nil
	}

	schedulerConfig := scheduler.DefaultSchedulerConfig()
	schedulerConfig.Logger = log
	schedulerConfig.Timezone = timeutil.AlmatyTZ
	sched := scheduler.NewScheduler(schedulerConfig)

	sweepJob := jobs.NewSweepUnlocksJob(
		unlockRepo,
		enrollmentRepo,
		eventBus,
		clock,
		log,
		jobs.SweepUnlocksConfig{
			BatchSize: cfg.Scheduler.UnlockSweepBatchSize,
			Timeout:   cfg.Scheduler.JobTimeout,
		},
	)
	if err := sched.Register(sweepJob, scheduler.NewIntervalSchedule(cfg.Scheduler.UnlockSweepInterval)); err != nil {
		return fmt.Errorf("register sweep job: %w", err)
	}

	remindersJob := jobs.NewDeliveryRemindersJob(
		sessionRepo,
		sender,
		clock,
		log,
		jobs.DeliveryRemindersConfig{
			AdminRecipients: cfg.Notifications.AdminRecipients,
			BatchSize:       cfg.Scheduler.DeliveryReminderBatchSize,
			Timeout:         cfg.Scheduler.JobTimeout,
		},
	)
	reminderCron, err := scheduler.ParseCronExpression(
		fmt.Sprintf("0 %d * * *", cfg.Scheduler.DeliveryReminderHour))
	if err != nil {
		return fmt.Errorf("parse reminder schedule: %w", err)
	}
	if err := sched.Register(remindersJob, reminderCron); err != nil {
		return fmt.Errorf("register reminders job: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	log.Info("scheduler started",
		"sweep_interval", cfg.Scheduler.UnlockSweepInterval.String(),
		"reminder_hour", cfg.Scheduler.DeliveryReminderHour,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	waitForShutdown(log)

	log.Info("stopping scheduler...", "timeout", cfg.App.ShutdownTimeout.String())
	if err := sched.Stop(); err != nil {
		log.Warn("scheduler stop returned error", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// waitForShutdown блокируется до получения сигнала завершения.
func waitForShutdown(log *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())
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
