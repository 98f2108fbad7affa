package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/attractive-boy/schoolbus-back/internal/api"
	"github.com/attractive-boy/schoolbus-back/internal/application/factories/infrastructure"
	"github.com/attractive-boy/schoolbus-back/internal/auth"
	"github.com/attractive-boy/schoolbus-back/internal/config"
	"github.com/attractive-boy/schoolbus-back/internal/infrastructure/postgres"
	"github.com/attractive-boy/schoolbus-back/internal/usecase"
)

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
	if cfg.Auth.JWTSecret == "" {
		logger.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	infraFactory := infrastructure.NewFactory(cfg)
	defer infraFactory.Close()

	// Initialize dependencies
	pgPool, err := infraFactory.Postgres(ctx)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	redisClient, err := infraFactory.Redis(ctx)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	orderCache, err := infraFactory.OrderCache(ctx)
	if err != nil {
		logger.Error("failed to init order cache", "error", err)
		os.Exit(1)
	}

	calendar, err := infraFactory.Calendar()
	if err != nil {
		logger.Error("failed to init calendar", "error", err)
		os.Exit(1)
	}

	gateway, err := infraFactory.WeChatPay()
	if err != nil {
		logger.Error("failed to init wechat pay client", "error", err)
		os.Exit(1)
	}

	// Repositories
	orderRepo := postgres.NewOrderRepository(pgPool)
	paymentRepo := postgres.NewPaymentRepository(pgPool)
	refundRepo := postgres.NewRefundRepository(pgPool)
	routeRepo := postgres.NewRouteRepository(pgPool)
	riderRepo := postgres.NewRiderRepository(pgPool)
	verificationRepo := postgres.NewVerificationRepository(pgPool)
	outboxRepo := postgres.NewOutboxRepository(pgPool)
	inboxRepo := postgres.NewInboxRepository(pgPool)
	txManager := postgres.NewTxManager(pgPool)

	// UseCases
	issuePaymentUC := usecase.NewIssuePayment(orderRepo, paymentRepo, riderRepo, gateway)
	deps := api.Deps{
		CreateOrder:   usecase.NewCreateOrder(txManager, orderRepo, paymentRepo, routeRepo, riderRepo, outboxRepo, issuePaymentUC, calendar),
		GetOrder:      usecase.NewGetOrder(orderCache, orderRepo),
		ListOrders:    usecase.NewListOrders(orderRepo),
		CancelOrder:   usecase.NewCancelOrder(txManager, orderRepo, outboxRepo, orderCache, calendar),
		IssuePayment:  issuePaymentUC,
		PaymentNotify: usecase.NewHandlePaymentNotification(txManager, paymentRepo, orderRepo, outboxRepo, gateway, orderCache, calendar),
		RequestRefund: usecase.NewRequestRefund(txManager, orderRepo, refundRepo, outboxRepo, orderCache, calendar),
		ApproveRefund: usecase.NewApproveRefund(txManager, orderRepo, paymentRepo, refundRepo, outboxRepo, gateway, orderCache, calendar),
		VerifyTicket:  usecase.NewVerifyTicket(txManager, riderRepo, orderRepo, verificationRepo, outboxRepo, calendar),
		ExportOrders:  usecase.NewExportOrders(orderRepo, calendar),
		GetWorkflow:   usecase.NewGetWorkflow(orderRepo, paymentRepo, refundRepo, outboxRepo, inboxRepo),
	}

	// REST API Handler
	handlers := api.NewHandlers(deps, calendar.Location())
	apiHandler := api.NewRouter(handlers, auth.NewVerifier(cfg.Auth.JWTSecret), redisClient)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           apiHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.HTTP.Port, "version", cfg.App.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("Server exiting")
}
