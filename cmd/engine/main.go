package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	automationapp "github.com/Edness1/ColorCompete-sub001/internal/automation/app"
	automationpg "github.com/Edness1/ColorCompete-sub001/internal/automation/repository/postgres"
	campaignapp "github.com/Edness1/ColorCompete-sub001/internal/campaign/app"
	campaignpg "github.com/Edness1/ColorCompete-sub001/internal/campaign/repository/postgres"
	drawingapp "github.com/Edness1/ColorCompete-sub001/internal/drawing/app"
	drawingpg "github.com/Edness1/ColorCompete-sub001/internal/drawing/repository/postgres"
	"github.com/Edness1/ColorCompete-sub001/internal/giftcard"
	"github.com/Edness1/ColorCompete-sub001/internal/mailer"
	memberdomain "github.com/Edness1/ColorCompete-sub001/internal/member/domain"
	memberpg "github.com/Edness1/ColorCompete-sub001/internal/member/repository/postgres"
	"github.com/Edness1/ColorCompete-sub001/internal/platform/config"
	"github.com/Edness1/ColorCompete-sub001/internal/platform/database"
	"github.com/Edness1/ColorCompete-sub001/internal/platform/logger"
	"github.com/Edness1/ColorCompete-sub001/internal/platform/messagebroker"
	trackingapp "github.com/Edness1/ColorCompete-sub001/internal/tracking/app"
	trackingpg "github.com/Edness1/ColorCompete-sub001/internal/tracking/repository/postgres"
	transporthttp "github.com/Edness1/ColorCompete-sub001/internal/transport/http"
)

const (
	serviceName     = "engine"
	shutdownTimeout = 10 * time.Second
)

func main() {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(serviceName, cfg.LogLevel)
	appLogger.Info("Notification engine starting...", "log_level", cfg.LogLevel)

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("PostgreSQL connection pool initialized")

	natsClient, err := messagebroker.NewNATSClient(cfg.NATSUrl, serviceName, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	appLogger.Info("NATS connection initialized")

	// Repositories
	automationRepo := automationpg.NewPgAutomationRepository(dbPool, appLogger)
	campaignRepo := campaignpg.NewPgCampaignRepository(dbPool, appLogger)
	memberRepo := memberpg.NewPgMemberRepository(dbPool, appLogger)
	deliveryRepo := trackingpg.NewPgDeliveryLogRepository(dbPool, appLogger)
	drawingRepo := drawingpg.NewPgDrawingRepository(dbPool, appLogger)

	// Outbound providers
	mailGateway := buildMailGateway(cfg, appLogger)
	cardIssuer := buildGiftCardIssuer(cfg, appLogger)

	// Application services
	scheduler := automationapp.NewScheduler(automationRepo, natsClient, appLogger, cfg.DispatchJobSubject)
	dispatcher := campaignapp.NewDispatcher(mailGateway, deliveryRepo, campaignRepo, automationRepo, memberRepo, appLogger, campaignapp.DispatcherConfig{
		SendInterval:      cfg.SendInterval,
		UnsubscribeSecret: cfg.UnsubscribeSecret,
		PublicURL:         cfg.PublicURL,
		FromAddress:       cfg.MailFromAddress,
		FromName:          cfg.MailFromName,
	})
	tracker := trackingapp.NewTracker(deliveryRepo, campaignRepo, appLogger)
	reconciler := trackingapp.NewReconciler(mailGateway, campaignRepo, appLogger, cfg.ReconcileInterval)
	drawingEngine := drawingapp.NewEngine(drawingRepo, memberRepo, automationRepo, cardIssuer, dispatcher, appLogger, drawingapp.EngineConfig{
		PrizeAmounts: map[string]float64{
			memberdomain.TierLite: cfg.DrawingPrizeLite,
			memberdomain.TierPro:  cfg.DrawingPrizePro,
		},
	})

	// HTTP surface
	validate := validator.New()
	router := transporthttp.NewRouter(transporthttp.RouterDeps{
		Admin:       transporthttp.NewAdminHandler(scheduler, dispatcher, drawingEngine, appLogger, validate),
		Webhooks:    transporthttp.NewWebhookHandler(natsClient, cfg.DeliveryEventSubject, cfg.WebhookSigningKey, appLogger),
		Unsubscribe: transporthttp.NewUnsubscribeHandler(memberRepo, cfg.UnsubscribeSecret, appLogger),
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Broker consumers
	dispatchSub, err := dispatcher.StartConsuming(natsClient, cfg.DispatchJobSubject, cfg.DispatchQueueGroup)
	if err != nil {
		appLogger.Error("Failed to start dispatch job consumer", "error", err)
		os.Exit(1)
	}
	defer dispatchSub.Unsubscribe()

	eventSub, err := tracker.StartConsuming(natsClient, cfg.DeliveryEventSubject, cfg.DeliveryEventQueueGroup)
	if err != nil {
		appLogger.Error("Failed to start delivery event consumer", "error", err)
		os.Exit(1)
	}
	defer eventSub.Unsubscribe()

	// Arm timers for all active time-based automations.
	if err := scheduler.Start(mainCtx); err != nil {
		appLogger.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		appLogger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		err := reconciler.Run(groupCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	appLogger.Info("Engine components initialized. Service is ready.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		appLogger.Info("Received termination signal", "signal", sig.String())
	case <-groupCtx.Done():
		appLogger.Error("A critical component failed, initiating shutdown", "error", groupCtx.Err())
	}

	mainCancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Error during graceful shutdown", "error", err)
	}
	appLogger.Info("Engine shutdown complete.")
}

// buildMailGateway wires the configured mail provider, falling back to
// the mock gateway when no provider API is configured.
func buildMailGateway(cfg *config.Config, appLogger *slog.Logger) mailer.Gateway {
	if cfg.MailProviderAPIURL == "" || cfg.MailProviderName == "mock" {
		appLogger.Warn("No mail provider API configured, using mock gateway")
		return mailer.NewMockGateway(appLogger, "mock-mailer", 0, 0, 0)
	}
	return mailer.NewHTTPGateway(appLogger, cfg.MailProviderName, cfg.MailProviderAPIURL, cfg.MailProviderAPIKey,
		cfg.MailFromAddress, cfg.MailFromName, nil)
}

// buildGiftCardIssuer wires the configured gift card provider, falling
// back to the mock issuer.
func buildGiftCardIssuer(cfg *config.Config, appLogger *slog.Logger) giftcard.Issuer {
	if cfg.GiftCardAPIURL == "" {
		appLogger.Warn("No gift card provider API configured, using mock issuer")
		return giftcard.NewMockIssuer(appLogger, "mock-giftcard", 0)
	}
	return giftcard.NewHTTPIssuer(appLogger, "giftcard", cfg.GiftCardAPIURL, cfg.GiftCardAPIKey, nil)
}
