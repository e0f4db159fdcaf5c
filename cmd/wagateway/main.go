package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wagateway/internal/config"
	"wagateway/internal/constants"
	"wagateway/internal/registry"
	"wagateway/internal/retry"
	"wagateway/internal/service"
	"wagateway/internal/status"
	"wagateway/internal/store"
	"wagateway/internal/throttle"
	"wagateway/internal/tracing"
	"wagateway/pkg/session"
	"wagateway/pkg/session/types"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes sensitive information)")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("wagateway %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting wagateway")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
	} else if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			logger.SetLevel(logrus.InfoLevel)
		} else {
			if level > logrus.InfoLevel {
				level = logrus.InfoLevel
			}
			logger.SetLevel(level)
		}
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	// Initialize OpenTelemetry tracing
	tracingManager := tracing.NewManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// Open the document store with exponential backoff retry
	var docs *store.Store
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultStoreRetryAttempts,
		Jitter:       true,
	})

	err = backoff.Retry(ctx, func() error {
		var openErr error
		docs, openErr = store.Open(cfg.Store.Path, logger)
		if openErr != nil {
			logger.Warnf("Failed to open document store: %v", openErr)
		}
		return openErr
	})
	if err != nil {
		return fmt.Errorf("failed to open document store after retries: %w", err)
	}
	defer docs.Close()

	// Registries over the shared document store
	configs := registry.NewConfigRegistry(docs, logger)
	devices := registry.NewDeviceRegistry(docs, logger)

	regSync := registry.NewSync(configs, devices,
		time.Duration(cfg.Sync.DebounceMs)*time.Millisecond, logger)
	go regSync.Start(ctx)
	defer regSync.Stop()

	if err := regSync.ReconcileAll(ctx); err != nil {
		logger.WithError(err).Warn("Initial device registry reconciliation failed")
	}

	// Outbound pacing and delivery status tracking
	gate := throttle.NewGate(configs, throttle.NewMemoryStore(), logger)
	tracker := status.NewTracker(status.NewMemoryStore())

	sweeper := status.NewSweeper(tracker,
		time.Duration(cfg.Status.SweepIntervalMin)*time.Minute,
		time.Duration(cfg.Status.TTLHours)*time.Hour, logger)
	go sweeper.Start(ctx)
	defer sweeper.Stop()

	// Session service client + dispatch path
	client := session.NewClient(types.ClientConfig{
		BaseURL:     cfg.Session.APIBaseURL,
		EventsWSURL: cfg.Session.EventsWSURL,
		APIKey:      cfg.Session.APIKey,
		Timeout:     time.Duration(cfg.Session.TimeoutSec) * time.Second,
	})
	dispatcher := service.NewDispatcher(client, gate, tracker, logger)

	rules := service.NewAutoReplyRules(docs, logger)
	relay := service.NewRelay(configs, dispatcher, rules,
		time.Duration(cfg.Webhook.TimeoutSec)*time.Second, logger)

	// Inbound event pump: websocket stream from the session service
	events := session.NewEventStream(cfg.Session.EventsWSURL, cfg.Session.APIKey, logger)
	events.OnMessageReceived(func(ctx context.Context, sessionID string, msg *types.IncomingMessage) {
		relay.HandleIncomingMessage(ctx, sessionID, msg)
	})
	events.OnMessageStatusUpdated(func(ctx context.Context, sessionID string, update *types.StatusUpdate) {
		extra := map[string]interface{}{}
		if update.From != "" {
			extra["from"] = update.From
		}
		if update.To != "" {
			extra["to"] = update.To
		}
		ts := time.Now()
		if update.Timestamp > 0 {
			ts = time.UnixMilli(update.Timestamp)
		}
		tracker.Record(sessionID, update.MessageID, update.Status, ts, extra)
		relay.NotifyDeliveryStatus(ctx, sessionID, update.MessageID, update.Status, update.Update)
	})
	events.OnConnectionStateChanged(func(ctx context.Context, sessionID string, update *types.ConnectionUpdate) {
		relay.NotifyDeviceStatus(ctx, sessionID, string(update.State))
	})
	events.Start(ctx)
	defer events.Stop()

	// Durable schedule queue promoting due records through the dispatcher
	engine := service.NewScheduleEngine(docs, dispatcher,
		time.Duration(cfg.Schedule.TickSec)*time.Second, cfg.Schedule.BatchSize, logger)
	go engine.Start(ctx)
	defer engine.Stop()

	server := NewServer(cfg, logger, &components{
		configs:    configs,
		devices:    devices,
		sync:       regSync,
		gate:       gate,
		tracker:    tracker,
		dispatcher: dispatcher,
		engine:     engine,
		rules:      rules,
		events:     events,
	})
	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	logger.Info("Server shutdown completed")
	return nil
}
