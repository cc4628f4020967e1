// Package main wires the signal ingestion, processing, orchestration,
// and execution pipeline together and serves the monitoring HTTP/WS
// surface.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/atlas-desktop/trading-backend/internal/adaptive"
	"github.com/atlas-desktop/trading-backend/internal/api"
	"github.com/atlas-desktop/trading-backend/internal/apperr"
	"github.com/atlas-desktop/trading-backend/internal/bias"
	"github.com/atlas-desktop/trading-backend/internal/config"
	"github.com/atlas-desktop/trading-backend/internal/engines"
	"github.com/atlas-desktop/trading-backend/internal/marketdata"
	"github.com/atlas-desktop/trading-backend/internal/orchestrator"
	"github.com/atlas-desktop/trading-backend/internal/orders"
	"github.com/atlas-desktop/trading-backend/internal/positions"
	"github.com/atlas-desktop/trading-backend/internal/signalproc"
	"github.com/atlas-desktop/trading-backend/internal/store"
	"github.com/atlas-desktop/trading-backend/internal/webhook"
	"github.com/atlas-desktop/trading-backend/internal/workers"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (optional, env SIGNALPIPE_* overrides)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	forceAdaptive := flag.Bool("force-adaptive-run", false, "Run the adaptive tuner immediately, ignoring the once-per-day guard")
	flag.Parse()

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.Open(cfg.DBConnectionString, cfg.DBPoolMax, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer db.Close()

	tracker := apperr.NewTracker(500)

	ingestor := webhook.New(logger, db.Signals, tracker, cfg.HMACSecret, cfg.HMACEnabled, cfg.SignalDedupWindow)

	biasAgg := bias.New(logger, bias.DefaultSourceWeights())
	biasIngestor := webhook.NewBiasIngestor(logger, biasAgg, tracker, cfg.HMACSecret, cfg.HMACEnabled)

	engineA := engines.NewEngineA(logger)
	engineB := engines.NewEngineB(logger)

	orch := orchestrator.New(logger, orchestrator.Config{
		SplitPercentage:        cfg.SplitPercentage,
		PolicyVersion:          cfg.PolicyVersion,
		ExecutionMode:          cfg.ExecutionMode,
		AllowAnticipatoryEntry: cfg.AllowAnticipatoryEntry,
	}, db, biasAgg, engineA, engineB, tracker)

	mux := buildMarketDataMultiplex(logger, cfg)

	processorPoolCfg := workers.DefaultPoolConfig("signalproc")
	processorPoolCfg.NumWorkers = cfg.OrchestratorConcurrency
	processor := signalproc.New(logger, signalproc.Config{
		BatchSize:     cfg.OrchestratorBatchSize,
		MaxAttempts:   cfg.OrchestratorMaxAttempts,
		BaseBackoff:   cfg.OrchestratorRetryDelay,
		SignalTimeout: cfg.OrchestratorSignalTimeout,
		PollInterval:  2 * time.Second,
	}, db.Signals, mux, orch, tracker, processorPoolCfg)

	creator := orders.NewCreator(logger, orders.DefaultCreatorConfig(), db.Experiments, db.Orders, tracker)
	executor := orders.NewPaperExecutor(logger, orders.DefaultExecutorConfig(), db.Orders, db.Trades, mux, tracker)
	monitor := positions.New(logger, positions.DefaultConfig(), db.Trades, mux, biasAgg)

	tuner := adaptive.New(logger, adaptive.Config{
		Enabled:      cfg.AdaptiveEnabled,
		DryRun:       cfg.AdaptiveDryRun,
		LookbackDays: 30,
	}, db.Trades, db.Config)

	server := api.NewServer(logger, &cfg.Server, ingestor, biasIngestor, db, tracker)

	var wg workerGroup
	wg.spawn(logger, "signalproc", func() error { return processor.Run(ctx) })
	wg.spawn(logger, "orders.creator", func() error { return creator.Run(ctx) })
	wg.spawn(logger, "orders.executor", func() error { return executor.Run(ctx) })
	wg.spawn(logger, "positions.monitor", func() error { return monitor.Run(ctx) })

	scheduler := cron.New()
	if _, err := scheduler.AddFunc("0 5 * * *", func() {
		runDate := time.Now().Format("2006-01-02")
		if err := tuner.RunIfDue(ctx, runDate, *forceAdaptive); err != nil {
			logger.Error("adaptive tuner run failed", zap.Error(err))
		}
	}); err != nil {
		logger.Fatal("failed to schedule adaptive tuner", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	if *forceAdaptive {
		if err := tuner.RunIfDue(ctx, time.Now().Format("2006-01-02"), true); err != nil {
			logger.Error("forced adaptive tuner run failed", zap.Error(err))
		}
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("monitoring server stopped", zap.Error(err))
		}
	}()

	logger.Info("signal pipeline started",
		zap.String("execution_mode", string(cfg.ExecutionMode)),
		zap.Float64("split_percentage", cfg.SplitPercentage),
		zap.Strings("market_data_providers", cfg.MarketDataProviderPriority),
	)

	waitForShutdown(logger)

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("monitoring server shutdown error", zap.Error(err))
	}
}

func buildMarketDataMultiplex(logger *zap.Logger, cfg *config.Config) *marketdata.Multiplex {
	byName := map[string]marketdata.Provider{
		config.ProviderAlpaca:        marketdata.NewAlpacaProvider(getEnvOrDefault("ALPACA_BASE_URL", "https://data.alpaca.markets"), os.Getenv("ALPACA_API_KEY")),
		config.ProviderPolygon:       marketdata.NewPolygonProvider(getEnvOrDefault("POLYGON_BASE_URL", "https://api.polygon.io"), os.Getenv("POLYGON_API_KEY")),
		config.ProviderMarketData:    marketdata.NewMarketDataAppProvider(getEnvOrDefault("MARKETDATA_BASE_URL", "https://api.marketdata.app"), os.Getenv("MARKETDATA_API_KEY")),
		config.ProviderTwelveData:    marketdata.NewTwelveDataProvider(getEnvOrDefault("TWELVEDATA_BASE_URL", "https://api.twelvedata.com"), os.Getenv("TWELVEDATA_API_KEY")),
		config.ProviderUnusualWhales: marketdata.NewUnusualWhalesProvider(getEnvOrDefault("UNUSUALWHALES_BASE_URL", "https://api.unusualwhales.com"), os.Getenv("UNUSUALWHALES_API_KEY")),
	}

	specs := make([]marketdata.ProviderSpec, 0, len(cfg.MarketDataProviderPriority))
	for _, name := range cfg.MarketDataProviderPriority {
		p, ok := byName[name]
		if !ok {
			continue
		}
		specs = append(specs, marketdata.ProviderSpec{Provider: p, RPS: 5, Burst: 10})
	}
	// UnusualWhales is the only GEX source (and an options-chain source
	// besides Polygon); always include it last even when absent from the
	// configured priority list.
	hasUW := false
	for _, s := range specs {
		if s.Provider.Name() == config.ProviderUnusualWhales {
			hasUW = true
		}
	}
	if !hasUW {
		specs = append(specs, marketdata.ProviderSpec{Provider: byName[config.ProviderUnusualWhales], RPS: 2, Burst: 5})
	}

	return marketdata.New(logger, specs, marketdata.DefaultBreakerConfig(), marketdata.DefaultTTLConfig())
}

type workerGroup struct {
	count int
}

func (g *workerGroup) spawn(logger *zap.Logger, name string, fn func() error) {
	g.count++
	go func() {
		if err := fn(); err != nil && err != context.Canceled {
			logger.Error("worker stopped", zap.String("worker", name), zap.Error(err))
		}
	}()
}

func waitForShutdown(logger *zap.Logger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	logger.Info("shutdown signal received", zap.String("signal", s.String()))
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
