package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"community_content_bot/internal/app"
	"community_content_bot/internal/infra/config"
	idb "community_content_bot/internal/infra/database"
	"community_content_bot/internal/infra/logger"
	"community_content_bot/internal/infra/scheduler"
	"community_content_bot/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load application configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")

	mainLogger.WithFields(logrus.Fields{
		"environment":  cfg.Environment,
		"db_driver":    cfg.DatabaseDriver,
		"poll_spec":    cfg.PollCronSpec,
		"match_policy": cfg.TriggerMatchPolicy,
	}).Info("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Database Connection
	db, err := idb.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	mainLogger.Info("Database connection established and schema applied")

	// Initialize Repositories
	tenantRepo := idb.NewTenantRepository(db)
	contentRepo := idb.NewContentRepository(db)
	deliveryRepo := idb.NewDeliveryRepository(db)

	// Initialize Telegram Bot; the client timeout leaves room for the long poll.
	pollTimeout := 10 * time.Second
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: pollTimeout},
		Client: &http.Client{Timeout: pollTimeout + cfg.SendTimeout},
		OnError: func(err error, c telebot.Context) {
			entry := logger.Component("telebot").WithError(err)
			if c != nil && c.Chat() != nil {
				entry = entry.WithField("chat_id", c.Chat().ID)
			}
			entry.Error("Telegram handler error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not create Telegram bot")
	}
	senderBot, err := telegram.NewSenderBot(cfg.TelegramToken, cfg.SendTimeout)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not create Telegram sender")
	}
	sink := telegram.NewTelebotAdapter(senderBot)

	evaluator := app.NewTriggerEvaluator(cfg.TriggerMatchPolicy, cfg.PollInterval)
	deliveryService := app.NewDeliveryService(
		tenantRepo,
		contentRepo,
		deliveryRepo,
		sink,
		evaluator,
		app.NewSelector(nil),
		cfg.Recency(),
		logger.Component("delivery"),
	)
	tenantService := app.NewTenantService(tenantRepo, evaluator, cfg.DefaultTimezone)

	var notify scheduler.FailureNotifier
	if cfg.AdminTelegramID != 0 {
		notify = func(r app.TickReport) {
			msg := fmt.Sprintf("Scheduled delivery tick had %d failed unit(s) across %d tenant(s); see logs.", r.Failed, r.Tenants)
			if err := sink.SendMessage(cfg.AdminTelegramID, msg, nil); err != nil {
				mainLogger.WithError(err).Warn("Could not notify admin about tick failures")
			}
		}
	}

	pollScheduler := scheduler.NewPollScheduler(
		deliveryService,
		logger.Component("scheduler"),
		cfg.PollCronSpec,
		cfg.TickTimeout,
		notify,
	)
	if err := pollScheduler.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not start poll scheduler")
	}

	telegram.RegisterBotCommands(ctx, bot, tenantService, logger.Component("telegram"))
	mainLogger.Info("Application setup complete. Bot and scheduler are running")

	go bot.Start()

	<-ctx.Done()

	mainLogger.Info("Shutting down application...")
	bot.Stop()
	pollScheduler.Stop() // waits for an in-flight tick
	mainLogger.Info("Application shut down gracefully")
}
