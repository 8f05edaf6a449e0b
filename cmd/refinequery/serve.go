package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/refinequery/internal/analyzer"
	"github.com/haasonsaas/refinequery/internal/config"
	"github.com/haasonsaas/refinequery/internal/memory"
	"github.com/haasonsaas/refinequery/internal/refine"
	"github.com/haasonsaas/refinequery/internal/retry"
	"github.com/haasonsaas/refinequery/internal/transport"
)

func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the refinequery HTTP server",
		Long: `Start the refinequery HTTP server.

The server will:
1. Load configuration from the specified file (or refinequery.yaml)
2. Open the configured memory store (in-process or sqlite-backed)
3. Construct the Anthropic-backed analyzer (the mock analyzer when no API key is configured)
4. Start the classifier/supervisor/specialist/moderator orchestrator
5. Serve the batch, streaming, memory, health, and metrics routes
6. Run a periodic memory-stats sweep via cron

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "refinequery.yaml", "Path to YAML configuration file")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger.Info("configuration loaded",
		"store_uri", cfg.StoreURI,
		"listen_address", cfg.ListenAddress,
		"history_context_limit", cfg.HistoryContextLimit,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg.StoreURI, cfg.DuplicateWindow)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	a, err := buildAnalyzer(cfg)
	if err != nil {
		return fmt.Errorf("build analyzer: %w", err)
	}

	orchCfg := refine.Config{
		HistoryContextLimit: cfg.HistoryContextLimit,
		AnalyzerTimeout:     time.Duration(cfg.AnalyzerTimeoutMS) * time.Millisecond,
		RequestTimeout:      time.Duration(cfg.RequestTimeoutMS) * time.Millisecond,
		Retry: retry.Config{
			MaxAttempts:    cfg.RetryMaxAttempts,
			InitialDelay:   time.Duration(cfg.RetryBaseDelayMS) * time.Millisecond,
			MaxDelay:       4 * time.Second,
			Factor:         2.0,
			Jitter:         true,
			JitterFraction: 0.2,
		},
	}
	metrics := refine.NewMetrics(prometheus.DefaultRegisterer)
	orch := refine.New(orchCfg, a, store, logger, metrics)

	srv := transport.NewServer(orch, logger)
	httpServer := &http.Server{Addr: cfg.ListenAddress, Handler: srv}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(fmt.Sprintf("@every %s", cfg.StatsLogInterval), func() {
		stats, err := orch.Stats(ctx)
		if err != nil {
			logger.Warn("stats sweep failed", "err", err)
			return
		}
		logger.Info("memory stats", "total_entries", stats.TotalEntries, "thread_count", stats.ThreadCount, "last_updated", stats.LastUpdated)
	}); err != nil {
		return fmt.Errorf("schedule stats sweep: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("refinequery server started", "addr", cfg.ListenAddress)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, initiating graceful shutdown")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("refinequery server stopped gracefully")
	return nil
}

// openStore selects the Store backend from a store_uri: "memory://" for the
// in-process store, anything else treated as a sqlite DSN for OpenSQLStore.
// duplicateWindow is the configured §4.7 N, threaded into whichever backend
// is selected.
func openStore(ctx context.Context, storeURI string, duplicateWindow int) (memory.Store, func(), error) {
	if storeURI == "" || storeURI == "memory://" {
		return memory.NewInMemoryStoreWithWindow(duplicateWindow), func() {}, nil
	}
	dsn := strings.TrimPrefix(storeURI, "sqlite://")
	sqlStore, err := memory.OpenSQLStoreWithWindow(ctx, dsn, duplicateWindow)
	if err != nil {
		return nil, nil, err
	}
	return sqlStore, func() { _ = sqlStore.Close() }, nil
}

func buildAnalyzer(cfg *config.Config) (analyzer.Analyzer, error) {
	if cfg.AnalyzerAPIKey == "" {
		return analyzer.NewMock(nil), nil
	}
	return analyzer.NewAnthropicAnalyzer(analyzer.AnthropicConfig{
		APIKey:  cfg.AnalyzerAPIKey,
		BaseURL: cfg.AnalyzerEndpoint,
		Model:   cfg.AnalyzerModel,
	})
}
