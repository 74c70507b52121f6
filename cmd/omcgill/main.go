package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jumpman786/omcgill/internal/auth"
	"github.com/jumpman786/omcgill/internal/hub"
	"github.com/jumpman786/omcgill/internal/profile"
	"github.com/jumpman786/omcgill/internal/server"
	"github.com/jumpman786/omcgill/internal/sink"
	"github.com/jumpman786/omcgill/pkg/config"
	"github.com/jumpman786/omcgill/pkg/logging"
)

func main() {
	logger := logging.New(logging.LevelInfo)
	slog.SetDefault(logger)

	cfg, err := config.Load(logger, "config")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger = logging.New(logging.ParseLevel(cfg.Logging.Level))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resolver := auth.NewResolver(logger, auth.Config{
		SessionSecret:   cfg.Server.Auth.SessionSecret,
		FederatedIssuer: cfg.Server.Auth.FederatedIssuer,
		FederatedSecret: cfg.Server.Auth.FederatedSecret,
	})

	var profiles profile.Store
	if cfg.Profile.DSN != "" {
		store, err := profile.NewGormStore(cfg.Profile.DSN)
		if err != nil {
			logger.Error("Failed to open profile store", slog.Any("error", err))
			os.Exit(1)
		}
		profiles = profile.NewCachedStore(store, cfg.Profile.CacheTTL)
	} else {
		logger.Warn("No profile store configured; filtered matching degrades to Any/Any")
	}

	var messageSink sink.MessageSink
	if cfg.Sink.DSN != "" {
		s, err := sink.NewGormSink(cfg.Sink.DSN)
		if err != nil {
			logger.Error("Failed to open message sink", slog.Any("error", err))
			os.Exit(1)
		}
		messageSink = s
	} else {
		logger.Warn("No message sink configured; relayed messages are not persisted")
	}

	h := hub.New(logger, hub.Config{
		PresenceBroadcastMinInterval: cfg.Hub.PresenceBroadcastMinInterval,
		DuplicateOfferWindow:         cfg.Hub.DuplicateOfferWindow,
		PairConfirmationDelay:        cfg.Hub.PairConfirmationDelay,
		HeartbeatInterval:            cfg.Hub.HeartbeatInterval,
	}, profiles, messageSink)

	app := server.NewApp(logger, ctx, cfg, h, resolver)
	if err := app.Run(); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down successfully.")
}
