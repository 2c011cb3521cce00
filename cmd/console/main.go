package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/pagi-labs/operator-console/internal/attribution"
	"github.com/pagi-labs/operator-console/internal/clients/orchestrator"
	"github.com/pagi-labs/operator-console/internal/config"
	"github.com/pagi-labs/operator-console/internal/feeds"
	consolehttp "github.com/pagi-labs/operator-console/internal/http"
	httpH "github.com/pagi-labs/operator-console/internal/http/handlers"
	"github.com/pagi-labs/operator-console/internal/identity"
	"github.com/pagi-labs/operator-console/internal/platform/logger"
	"github.com/pagi-labs/operator-console/internal/session"
	"github.com/pagi-labs/operator-console/internal/twin"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg := config.Load(log)
	log.Info("Console starting",
		"http_addr", cfg.HTTPAddr,
		"chat_url", cfg.ChatBaseURL,
		"orchestrator_url", cfg.OrchestratorBaseURL,
		"telemetry_url", cfg.TelemetryBaseURL,
	)

	// Identity: degrade to in-memory identity when local storage is broken.
	var kv identity.KV
	sqliteKV, err := identity.NewSQLiteKV(cfg.DataDir, log)
	if err != nil {
		log.Warn("Local KV store unavailable, identity will not survive restarts", "error", err)
		kv = identity.NewMemoryKV()
	} else {
		kv = sqliteKV
	}
	ids := identity.NewStore(kv, log)

	// Attribution + session controller over the twin protocol client.
	agg := attribution.NewAggregator()
	factory := func(sessionID string) session.ProtocolClient {
		return twin.NewClient(cfg.ChatBaseURL, ids.UserID(), sessionID, twin.Options{
			RetryDelay: cfg.ReconnectDelay,
		}, log)
	}
	controller := session.NewController(ids, agg, factory, log)

	// Feeds
	streamOpts := feeds.StreamOptions{Window: cfg.FeedWindow, RetryDelay: cfg.ReconnectDelay}
	telemetry := feeds.NewTelemetryFeed(cfg.TelemetryBaseURL, streamOpts, log)
	memoryFlow := feeds.NewMemoryFlowFeed(cfg.OrchestratorBaseURL, streamOpts, agg, log)

	// REST collaborators
	orch := orchestrator.NewClient(cfg.OrchestratorBaseURL, log)

	// HTTP surface for the dashboard UI
	srv := consolehttp.NewServer(consolehttp.RouterConfig{
		ConsoleHandler: httpH.NewConsoleHandler(log, controller, telemetry, memoryFlow),
		ClusterHandler: httpH.NewClusterHandler(log, orch),
		HealthHandler:  httpH.NewHealthHandler(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	controller.Start(ctx)
	defer controller.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		telemetry.Run(gctx)
		return nil
	})
	g.Go(func() error {
		memoryFlow.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return srv.Run(gctx, cfg.HTTPAddr)
	})

	if err := g.Wait(); err != nil {
		log.Error("Console exited with error", "error", err)
		os.Exit(1)
	}
}
