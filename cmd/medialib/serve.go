package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"media-library/internal/database"
	"media-library/internal/handlers"
	"media-library/internal/indexer"
	"media-library/internal/logging"
	"media-library/internal/metrics"
	"media-library/internal/middleware"
	"media-library/internal/pipeline"
	"media-library/internal/player"
	"media-library/internal/startup"
	"media-library/internal/watcher"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with background sync and processing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			startTime := time.Now()
			return withApp(cmd, flags, func(a *app) error {
				return serve(cmd.Context(), a, startTime)
			})
		},
	}
}

// storeStats feeds the metrics collector and refreshes connection gauges
// on the same tick.
type storeStats struct {
	db *database.Database
}

func (s storeStats) LibraryStats(ctx context.Context) (metrics.Stats, error) {
	s.db.UpdateDBMetrics()
	return s.db.LibraryStats(ctx)
}

func serve(ctx context.Context, a *app, startTime time.Time) error {
	cfg := a.cfg

	// Every sync pass hands its regeneration list to the queue, which folds
	// records arriving mid-batch into the next batch.
	queue := pipeline.NewQueue(a.pipeline, time.Second)
	a.indexer.SetOnSyncComplete(func(result *indexer.SyncResult) {
		if len(result.Regenerate) > 0 {
			queue.Submit(ctx, result.Regenerate)
		}
	})

	startup.LogIndexerInit(cfg)
	go func() {
		if _, err := a.indexer.Sync(ctx); err != nil {
			logging.Error("Initial sync failed: %v", err)
		}
	}()
	if cfg.PollInterval > 0 {
		a.indexer.Start(ctx)
	}

	var w *watcher.Watcher
	if cfg.WatchEnabled {
		w = watcher.New(cfg.LibraryDir, cfg.WatchDebounce, func() {
			if _, err := a.indexer.Sync(ctx); err != nil && !errors.Is(err, indexer.ErrSyncInProgress) {
				logging.Error("Sync after file change failed: %v", err)
			}
		})
		if err := w.Start(ctx); err != nil {
			logging.Warn("File watcher unavailable, relying on manual sync: %v", err)
			w = nil
		}
	}
	startup.LogIndexerStarted()

	var collector *metrics.Collector
	if cfg.MetricsEnabled {
		collector = metrics.NewCollector(storeStats{db: a.db}, time.Minute)
		collector.Start()
	}

	h := handlers.New(a.db, a.indexer, a.pipeline, a.library, player.New(a.library))
	router := mux.NewRouter()
	h.RegisterRoutes(router, cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	}
	startup.LogHTTPRoutes(router)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = cfg.LogHealthChecks
	handler := middleware.Compression(middleware.DefaultCompressionConfig())(
		middleware.Logger(loggingConfig)(router))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	startup.LogServerStarted(startup.ServerConfig{
		Port:            cfg.Port,
		MetricsEnabled:  cfg.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	var serveErr error
	select {
	case <-ctx.Done():
		startup.LogShutdownInitiated("interrupt")
	case serveErr = <-errCh:
		startup.LogShutdownInitiated("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if w != nil {
		startup.LogShutdownStep("Stopping file watcher")
		w.Stop()
		startup.LogShutdownStepComplete("File watcher stopped")
	}

	startup.LogShutdownStep("Stopping indexer")
	a.indexer.Stop()
	startup.LogShutdownStepComplete("Indexer stopped")

	startup.LogShutdownStep("Canceling processing")
	a.pipeline.Cancel()
	for (a.pipeline.IsRunning() || a.indexer.IsSyncing() || queue.Busy()) && shutdownCtx.Err() == nil {
		time.Sleep(100 * time.Millisecond)
	}
	startup.LogShutdownStepComplete("Processing canceled")

	if collector != nil {
		collector.Stop()
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
	return serveErr
}
