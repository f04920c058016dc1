package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rent_autopay/internal/app"
	"rent_autopay/internal/domain/notification"
	"rent_autopay/internal/domain/schedule"
	tgdomain "rent_autopay/internal/domain/telegram"
	"rent_autopay/internal/infra/config"
	idb "rent_autopay/internal/infra/database"
	"rent_autopay/internal/infra/email"
	"rent_autopay/internal/infra/gateway"
	"rent_autopay/internal/infra/httpapi"
	"rent_autopay/internal/infra/logger"
	"rent_autopay/internal/infra/memstore"
	"rent_autopay/internal/infra/redisbus"
	"rent_autopay/internal/infra/scheduler"
	"rent_autopay/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("FATAL: Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	base := logrus.NewEntry(logger.Log)
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"storage":     cfg.Storage,
		"timezone":    cfg.DefaultTimezone,
	}).Info("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage
	var (
		scheduleRepo schedule.Repository
		inboxRepo    notification.Repository
	)
	switch cfg.Storage {
	case config.StoragePostgres:
		db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not connect to database")
		}
		defer db.Close()
		if err := idb.EnsureSchema(ctx, db); err != nil {
			mainLogger.WithError(err).Fatal("Could not apply database schema")
		}
		scheduleRepo = idb.NewPostgresScheduleRepository(db)
		inboxRepo = idb.NewPostgresNotificationRepository(db)
		mainLogger.Info("Postgres repositories initialized")
	default:
		scheduleRepo = memstore.NewScheduleStore()
		inboxRepo = memstore.NewInboxStore()
		mainLogger.Warn("Using in-memory storage; data is lost on restart")
	}

	// Telegram bot is created before the bus because it doubles as an alert sink.
	var bot *telebot.Bot
	tenants := tgdomain.TenantDirectory{}
	if cfg.TelegramEnabled() {
		tenants[cfg.TenantTelegramID] = cfg.DefaultTenantID
		bot, err = telebot.NewBot(telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) {
				entry := mainLogger.WithError(err)
				if c != nil && c.Sender() != nil {
					entry = entry.WithField("sender_id", c.Sender().ID)
				}
				entry.Error("Telegram handler error")
			},
		})
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not create Telegram bot")
		}
	}

	// Alert sinks
	var sinks notification.MultiSink
	if cfg.AlertsEnabled {
		if bot != nil {
			sinks = append(sinks, telegram.NewAlertSink(telegram.NewTelebotAdapter(bot), tenants, base))
		}
		if cfg.EmailAlertsEnabled() {
			sinks = append(sinks, email.NewAlertSink(email.SMTPConfig{
				Host:     cfg.SMTPHost,
				Port:     cfg.SMTPPort,
				Username: cfg.SMTPUsername,
				Password: cfg.SMTPPassword,
				From:     cfg.SenderEmail,
				To:       strings.Split(cfg.AlertEmailTo, ","),
			}, base))
		}
	}
	var alerts notification.AlertSink
	if len(sinks) > 0 {
		alerts = sinks
	}

	clock := app.SystemClock{}
	bus := app.NewNotificationBus(inboxRepo, alerts, clock, base)

	if cfg.RedisAddr != "" {
		redisClient, err := redisbus.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not connect to Redis")
		}
		defer redisClient.Close()
		unsubscribe := bus.Subscribe(redisbus.NewPublisher(redisClient, cfg.RedisChannel, base).Handle)
		defer unsubscribe()
		mainLogger.WithField("channel", cfg.RedisChannel).Info("Redis notification bridge subscribed")
	}

	gw := gateway.NewMockGateway(cfg.GatewayFailureRate, 0, base)
	for _, phone := range cfg.GatewayDeclinePhones {
		gw.DeclinePhone(phone, "payment declined by provider")
	}
	processor := app.NewPaymentProcessor(scheduleRepo, gw, bus, clock, app.ProcessorOptions{
		GatewayTimeout:   cfg.GatewayTimeout,
		ManualPaymentURL: cfg.ManualPaymentURL,
		Currency:         cfg.Currency,
	}, base)
	service := app.NewAutopayService(scheduleRepo, processor, clock, cfg.DefaultTimezone, base)

	monitorScheduler := scheduler.NewMonitorScheduler([]scheduler.Job{
		{Monitor: app.NewAutopayMonitor(scheduleRepo, processor, bus, clock, cfg.Currency, base), Interval: cfg.AutopayTickInterval},
		{Monitor: app.NewScheduledPaymentMonitor(scheduleRepo, processor, bus, clock, cfg.Currency, base), Interval: cfg.ScheduledTickInterval},
	}, cfg.TickTimeout, base)
	if err := monitorScheduler.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not start monitor scheduler")
	}

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewHandler(service, bus, base).Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second + cfg.GatewayTimeout,
	}
	go func() {
		mainLogger.WithField("addr", cfg.HTTPAddr).Info("HTTP API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			mainLogger.WithError(err).Error("HTTP server failed")
			stop()
		}
	}()

	if bot != nil {
		handlers := telegram.NewCommandHandlers(service, bus, tenants, cfg.Currency, base)
		telegram.RegisterBotCommands(ctx, bot, handlers)
		go bot.Start()
		mainLogger.Info("Telegram bot started")
	}

	mainLogger.Info("Application setup complete")
	<-ctx.Done()

	mainLogger.Info("Shutting down application...")
	if bot != nil {
		bot.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		mainLogger.WithError(err).Warn("HTTP server did not shut down cleanly")
	}
	monitorScheduler.Stop()
	mainLogger.Info("Application shut down gracefully.")
}
