package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/attractive-boy/schoolbus-back/internal/application/factories/infrastructure"
	"github.com/attractive-boy/schoolbus-back/internal/config"
	"github.com/attractive-boy/schoolbus-back/internal/infrastructure/postgres"
	"github.com/attractive-boy/schoolbus-back/internal/notify"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const consumerName = "notifier"

func main() {
	// Initialize structured JSON logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	infraFactory := infrastructure.NewFactory(cfg)
	defer infraFactory.Close()

	pgPool, err := infraFactory.Postgres(ctx)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	templates, err := infraFactory.TemplateMessages(ctx)
	if err != nil {
		logger.Error("failed to init template messages", "error", err)
		os.Exit(1)
	}

	var chat notify.AdminChat
	tg, err := infraFactory.AdminChat()
	if err != nil {
		logger.Error("failed to init telegram", "error", err)
		os.Exit(1)
	}
	if tg != nil {
		chat = tg
	} else {
		logger.Info("telegram admin chat disabled")
	}

	calendar, err := infraFactory.Calendar()
	if err != nil {
		logger.Error("failed to init calendar", "error", err)
		os.Exit(1)
	}

	dispatcher := notify.NewDispatcher(
		postgres.NewRiderRepository(pgPool),
		templates,
		chat,
		notify.Templates{
			RefundRequested: cfg.WeChat.RefundTemplateID,
			TicketVerified:  cfg.WeChat.VerificationTemplateID,
		},
		calendar.Location(),
	)

	consumer := notify.NewConsumer(consumerName, infraFactory.KafkaConsumer(), postgres.NewInboxRepository(pgPool), dispatcher)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics server starting", "port", cfg.Notifier.MetricsPort)
		if err := http.ListenAndServe(":"+cfg.Notifier.MetricsPort, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	logger.Info("notifier starting", "topic", cfg.Kafka.Topic, "group", cfg.Kafka.GroupID)
	if err := consumer.Run(ctx); err != nil {
		logger.Error("notifier stopped with error", "error", err)
	}

	logger.Info("notifier exited")
}
