package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/textback/textback/internal/api"
	"github.com/textback/textback/internal/config"
	"github.com/textback/textback/internal/database"
	"github.com/textback/textback/internal/directory"
	"github.com/textback/textback/internal/dispatch"
	"github.com/textback/textback/internal/genai"
	"github.com/textback/textback/internal/metrics"
	"github.com/textback/textback/internal/notify"
	"github.com/textback/textback/internal/ratelimit"
	"github.com/textback/textback/internal/respond"
	"github.com/textback/textback/internal/router"
	"github.com/textback/textback/internal/sms"
	"github.com/textback/textback/internal/tracking"
	"github.com/textback/textback/internal/tracking/pgstore"

	"github.com/textback/textback/internal/database/models"
)

const sweepInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(cfg.SlogHandler(os.Stdout))
	slog.SetDefault(logger)

	slog.Info("starting textback",
		"http_port", cfg.HTTPPort,
		"rate_window", cfg.RateWindow,
		"rate_max", cfg.RateMax,
	)

	db, err := database.Open(cfg.DataDir)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	tenants := database.NewTenantRepository(db)
	msgLog := database.NewMessageLogRepository(db)

	// Tracking store: embedded SQLite unless an external DSN is configured.
	var tracker tracking.Store = database.NewTrackingStore(db)
	if cfg.TrackingDSN != "" {
		pg, err := pgstore.New(cfg.TrackingDSN)
		if err != nil {
			slog.Error("failed to open tracking store", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		tracker = pg
	}

	resolver := directory.NewResolver(tenants)

	limitStore := ratelimit.NewMemoryStore()
	limiter := ratelimit.New(limitStore, logger)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	limiter.StartSweep(sweepCtx, sweepInterval)

	dispatcher := dispatch.New(logger)
	defer dispatcher.Close()

	// Owner notification channels, each optional.
	var emailNotifier, pushNotifier notify.Notifier
	if cfg.SMTPHost != "" {
		emailNotifier = notify.NewEmailNotifier(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			From:     cfg.SMTPFrom,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			TLS:      cfg.SMTPTLS,
		}, logger)
	}
	if cfg.FCMCredentialsFile != "" {
		fcm, err := notify.NewFCMNotifier(context.Background(), cfg.FCMCredentialsFile, logger)
		if err != nil {
			slog.Warn("fcm notifier not available", "error", err)
		} else {
			pushNotifier = fcm
		}
	}
	notifier := notify.NewMultiNotifier(emailNotifier, pushNotifier, logger)

	// AI stage is only wired when an API key is configured; the template
	// stages carry lower tiers either way.
	var gen respond.Generator
	if cfg.AnthropicAPIKey != "" {
		gen = genai.New(cfg.AnthropicAPIKey, cfg.AnthropicModel, logger)
	} else {
		slog.Info("no anthropic api key, ai stage disabled")
	}

	onUsage := func(in respond.Input, u genai.Usage) {
		recordUsage(dispatcher, tracker, in, u)
	}
	engine := respond.NewEngine(respond.DefaultChain(gen, cfg.GenTimeout, onUsage), logger)

	sender := sms.New(cfg.SMSBaseURL, cfg.SMSAccount, cfg.SMSAuthToken, logger)

	pipeline := router.New(router.Config{
		Resolver:   resolver,
		Limiter:    limiter,
		Responder:  engine,
		Sender:     sender,
		Dispatcher: dispatcher,
		Tracker:    tracker,
		Notifier:   notifier,
		MessageLog: msgLog,
		RateWindow: cfg.RateWindow,
		RateMax:    cfg.RateMax,
		Logger:     logger,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewCollector(dispatcher, limitStore, msgLog, tenants, time.Now()))
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	apiServer := api.NewServer(cfg, tenants, resolver, pipeline, limiter, dispatcher, metricsHandler)
	defer apiServer.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      apiServer,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server error", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down http server")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
		os.Exit(1)
	}

	slog.Info("textback stopped")
}

// recordUsage writes one generation-usage audit record via the dispatcher.
func recordUsage(d *dispatch.Dispatcher, tracker tracking.Store, in respond.Input, u genai.Usage) {
	var tenantID *int64
	if in.Tenant != nil {
		id := in.Tenant.ID
		tenantID = &id
	}
	detail := fmt.Sprintf(`{"input_tokens":%d,"output_tokens":%d}`, u.InputTokens, u.OutputTokens)

	d.Enqueue(dispatch.Task{Name: "generation_usage", Fn: func(ctx context.Context) error {
		return tracker.RecordAudit(ctx, &models.AuditEvent{
			EventID:  in.EventID,
			TenantID: tenantID,
			Action:   "generation_usage",
			Detail:   detail,
		})
	}})
}
