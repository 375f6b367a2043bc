package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opstriage/triage-engine/internal/api"
	"github.com/opstriage/triage-engine/internal/config"
	"github.com/opstriage/triage-engine/internal/engine"
	"github.com/opstriage/triage-engine/internal/metrics"
	"github.com/opstriage/triage-engine/internal/queue"
	"github.com/opstriage/triage-engine/internal/reasoning"
	"github.com/opstriage/triage-engine/internal/retrieve"
	"github.com/opstriage/triage-engine/internal/sources"
	"github.com/opstriage/triage-engine/internal/tickets"
	"github.com/opstriage/triage-engine/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting triage-engine", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	// The case archive is the anchor corpus; refusing to start without it
	// beats serving diagnoses with no case evidence.
	caseIndex, err := sources.NewCaseArchiveIndex(cfg.Data.CaseArchivePath, logger)
	if err != nil {
		logger.Error("failed to load case archive",
			slog.String("path", cfg.Data.CaseArchivePath),
			slog.Any("error", err))
		os.Exit(1)
	}
	metrics.SetCaseRows(len(caseIndex.Cases()), caseIndex.SkippedRows())

	// Logs and KB degrade gracefully: a missing corpus lowers confidence
	// scores but does not block startup.
	logIndex, err := sources.NewLogIndex(cfg.Data.LogDir, logger)
	if err != nil {
		logger.Warn("log corpus unavailable", slog.String("dir", cfg.Data.LogDir), slog.Any("error", err))
		logIndex = sources.EmptyLogIndex()
	}
	kbIndex, err := sources.NewKBIndex(cfg.Data.KBPath, logger)
	if err != nil {
		logger.Warn("knowledge base unavailable", slog.String("path", cfg.Data.KBPath), slog.Any("error", err))
		kbIndex = sources.EmptyKBIndex()
	}

	invoker := reasoning.NewOpenAIInvoker(cfg.Reasoning.Endpoint, cfg.Reasoning.APIKey, cfg.Reasoning.Model)
	reasoner := reasoning.NewClient(invoker, cfg.Reasoning.Timeout)

	pipelineOpts := []engine.Option{engine.WithRetryBackoff(cfg.Reasoning.RetryBackoff)}
	if cfg.Tickets.Enabled {
		store, err := tickets.Open(cfg.Tickets.Path)
		if err != nil {
			logger.Error("failed to open ticket store", slog.String("path", cfg.Tickets.Path), slog.Any("error", err))
			os.Exit(1)
		}
		defer store.Close()
		pipelineOpts = append(pipelineOpts, engine.WithTicketFiler(store))
	}

	pipeline := engine.NewPipeline(
		logger,
		reasoner,
		retrieve.NewCaseRetriever(caseIndex),
		retrieve.NewLogRetriever(logIndex),
		retrieve.NewKBRetriever(kbIndex),
		pipelineOpts...,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	controller := queue.NewController(logger, pipeline, cfg.Queue.Workers, cfg.Queue.Retention, cfg.Queue.PollGrace)
	controller.Start(ctx)

	apiServer := api.NewServer(logger, controller)
	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      apiServer.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("api server listening", slog.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server exited", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api server shutdown", slog.Any("error", err))
	}

	// In-flight diagnoses run to completion before the workers exit.
	controller.Close()

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("triage-engine stopped")
}
