package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"pool_maintenance_service/internal/app"
	"pool_maintenance_service/internal/infra/config"
	idb "pool_maintenance_service/internal/infra/database"
	"pool_maintenance_service/internal/infra/httpapi"
	"pool_maintenance_service/internal/infra/logger"
	"pool_maintenance_service/internal/infra/metrics"
	"pool_maintenance_service/internal/infra/scheduler"
	"pool_maintenance_service/internal/infra/telegram"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")

	mainLogger.WithFields(logrus.Fields{
		"db_driver":   cfg.DBDriver,
		"http":        cfg.HTTPAddress,
		"environment": cfg.Environment,
	}).Info("Configuration loaded")

	// Initialize Database Connection (schema is applied on open)
	ctx := context.Background()
	db, dialect, err := idb.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	mainLogger.Info("Database connection established successfully")

	// Initialize Repositories
	maintenanceRepo := idb.NewMaintenanceRepository(db, dialect)
	parameterRepo := idb.NewParameterRepository(db)
	notificationRepo := idb.NewNotificationRepository(db)

	promMetrics := metrics.NewPrometheus()

	// Initialize Telegram Bot (optional)
	var bot *telebot.Bot
	var notifier app.Notifier
	if cfg.TelegramToken != "" {
		bot, err = telebot.NewBot(telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) { // Global error handler
				entry := logger.Component("telebot").WithError(err)
				if c != nil && c.Sender() != nil && c.Chat() != nil {
					entry = entry.WithFields(logrus.Fields{"sender": c.Sender().ID, "chat": c.Chat().ID})
				}
				entry.Error("Telegram handler failed")
			},
		})
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not create Telegram bot")
		}
		notifier = telegram.NewManagerNotifier(telegram.NewTelebotAdapter(bot), cfg.ManagerTelegramID,
			cfg.ManagerCompanyID, logger.Component("manager_notifier"))
	} else {
		mainLogger.Info("TELEGRAM_TOKEN not set, notifications are stored without dispatch")
	}

	// Initialize Services
	trigger := app.NewNotificationTrigger(notificationRepo, notifier, app.DefaultThresholds(), promMetrics,
		logger.Component("notification_trigger"), cfg.TriggerTimeout)
	workflowService := app.NewWorkflowServiceImpl(maintenanceRepo, trigger, promMetrics, logger.Component("workflow_service"))
	resetService := app.NewResetServiceImpl(maintenanceRepo, promMetrics, logger.Component("reset_service"))
	parameterService := app.NewParameterService(parameterRepo, logger.Component("parameter_service"))
	notificationService := app.NewNotificationServiceImpl(notificationRepo, logger.Component("notification_service"))

	if bot != nil {
		telegram.NewManagerHandlers(notificationService, cfg.ManagerTelegramID, cfg.ManagerCompanyID,
			logger.Component("manager_handlers")).Register(bot)
		// Start bot in a goroutine so it doesn't block graceful shutdown handling
		go bot.Start()
		mainLogger.Info("Telegram bot started")
	}

	// Initialize ResetScheduler (optional)
	var resetScheduler *scheduler.ResetScheduler
	if cfg.ResetCronSpec != "" {
		resetScheduler = scheduler.NewResetScheduler(resetService, cfg.ResetCompanyIDs, cfg.ResetCronSpec,
			logger.Component("reset_scheduler"))
		if err := resetScheduler.Start(); err != nil {
			mainLogger.WithError(err).Fatal("Could not start reset scheduler")
		}
	}

	router := httpapi.NewRouter(httpapi.Services{
		Workflow:      workflowService,
		Parameters:    parameterService,
		Notifications: notificationService,
		Reset:         resetService,
		Metrics:       promMetrics.Handler(),
	}, httpapi.Options{
		AllowedOrigins: cfg.CORSOrigins,
		Timeout:        cfg.HTTPTimeout,
	}, logger.Component("http"))

	srv := &http.Server{
		Addr:         cfg.HTTPAddress,
		Handler:      router,
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.HTTPTimeout + 5*time.Second,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	go func() {
		mainLogger.WithField("address", cfg.HTTPAddress).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			mainLogger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received

	mainLogger.Info("Shutting down application...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		mainLogger.WithError(err).Error("HTTP server shutdown failed")
	}
	trigger.Wait() // flush alerts still being sent
	if resetScheduler != nil {
		resetScheduler.Stop()
	}
	if bot != nil {
		bot.Stop()
	}
	mainLogger.Info("Application shut down gracefully")
}
