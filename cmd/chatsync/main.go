package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatsync/internal/config"
	"chatsync/internal/constants"
	"chatsync/internal/database"
	"chatsync/internal/features"
	"chatsync/internal/models"
	"chatsync/internal/retry"
	"chatsync/internal/syncengine"
	"chatsync/internal/tracing"
	"chatsync/pkg/backend"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes message contents)")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("chatsync %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
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
	}).Info("Starting chatsync")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - message contents will be logged")
	} else {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			level = logrus.InfoLevel
		}
		if level > logrus.InfoLevel {
			level = logrus.InfoLevel
		}
		logger.SetLevel(level)
	}

	tracingManager := tracing.NewManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	client := backend.NewClient(cfg.Backend.APIBaseURL, cfg.Backend.APIKey,
		time.Duration(cfg.Backend.TimeoutSec)*time.Second)
	feed := backend.NewRealtimeClient(cfg.Backend.RealtimeURL, cfg.Backend.APIKey, logger)

	flags := features.NewFlagManager()
	flags.InitializeDefaults()
	flags.LoadFromEnvironment()

	executor := retry.NewExecutor(logger)
	for category, rc := range retry.ConfigsFromSettings(cfg.Retry) {
		executor.SetConfig(category, rc)
	}
	if flags.IsEnabled(features.FlagDelayScaling) {
		executor.SetDelayScaler(retry.NewLatencyScaler())
	}

	engine, err := syncengine.NewEngine(db, client, feed, executor, syncengine.Options{
		SessionID:            cfg.Session.ID,
		UserID:               cfg.Session.UserID,
		MaxDisplayMessages:   cfg.Queue.MaxDisplayMessages,
		SentRetention:        time.Duration(cfg.Queue.SentRetentionSec) * time.Second,
		ConnectivityInterval: time.Duration(cfg.Connectivity.CheckIntervalSec) * time.Second,
		Callbacks: syncengine.Callbacks{
			OnFailed: func(localID string, err error) {
				logger.WithError(err).WithField("local_id", localID).Warn("Message delivery failed")
			},
			OnOperationFailed: func(op models.SyncOperation, err error) {
				logger.WithError(err).WithFields(logrus.Fields{
					"kind":       op.Kind,
					"message_id": op.MessageID,
				}).Warn("Sync operation dropped")
			},
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create sync engine: %w", err)
	}

	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sync engine: %w", err)
	}
	defer engine.Stop()

	if *verbose || flags.IsEnabled(features.FlagSnapshotLogging) {
		unsubscribe := engine.Subscribe(func(messages []models.DisplayMessage) {
			logger.WithField("count", len(messages)).Debug("Display snapshot updated")
		})
		defer unsubscribe()
	}

	server := NewServer(cfg, engine, flags, logger)
	serverErrCh := make(chan error, 1)
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
