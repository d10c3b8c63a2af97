package main

import (
	"context"
	"fmt"
	"time"

	"media-library/internal/database"
	"media-library/internal/history"
	"media-library/internal/indexer"
	"media-library/internal/library"
	"media-library/internal/logging"
	"media-library/internal/media"
	"media-library/internal/memory"
	"media-library/internal/pipeline"
	"media-library/internal/previewcache"
	"media-library/internal/startup"
)

// app holds the components every command works against.
type app struct {
	cfg      *startup.Config
	db       *database.Database
	probe    *media.FFmpegProbe
	monitor  *memory.Monitor
	cache    *previewcache.Cache
	indexer  *indexer.Indexer
	pipeline *pipeline.Pipeline
	library  *library.Library
	vips     bool
}

// openApp loads configuration and wires the store, probe and background
// components. The caller must call close.
func openApp(ctx context.Context, flags *rootFlags) (*app, error) {
	cfg, err := startup.LoadConfig(startup.Options{
		LibraryDir: flags.library,
		Quiet:      flags.quiet,
	})
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if err := logging.Configure(cfg.LogFile); err != nil {
		return nil, fmt.Errorf("failed to configure log file: %w", err)
	}

	startup.LogMemoryConfig(memory.ApplyLimit(cfg.MemoryLimit, cfg.MemoryRatio))

	dbStart := time.Now()
	db, err := database.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	version, err := db.SchemaVersion(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to read schema version: %w", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart), version)

	a := &app{cfg: cfg, db: db}

	startup.LogProbeInit(cfg)
	if cfg.VipsEnabled {
		if err := media.InitVips(); err != nil {
			logging.Warn("  libvips unavailable, using imaging: %v", err)
		} else {
			a.vips = true
		}
	}
	a.probe = media.NewFFmpegProbe(media.Config{
		FFmpegPath:    cfg.FFmpegPath,
		FFprobePath:   cfg.FFprobePath,
		Timeout:       cfg.ProbeTimeout,
		ThumbnailSize: cfg.ThumbnailSize,
		UseExiftool:   cfg.ExiftoolEnabled,
	})

	a.monitor = memory.NewMonitor(memory.DefaultConfig())
	a.monitor.Start()

	a.cache = previewcache.New(cfg.PreviewCacheSize)

	enum := indexer.NewFSEnumerator(cfg.LibraryDir)
	enum.Workers = cfg.IndexWorkers
	a.indexer = indexer.New(db, enum, cfg.LibraryDir)
	a.indexer.SetPollInterval(cfg.PollInterval)

	a.pipeline = pipeline.New(db, a.probe, a.cache, a.monitor, pipeline.Config{
		LibraryDir:     cfg.LibraryDir,
		TimelineFrames: cfg.TimelineFrames,
	})
	a.library = library.New(db, history.New(db, cfg.HistoryDepth), a.cache)

	return a, nil
}

func (a *app) close() {
	a.monitor.Stop()
	if err := a.probe.Close(); err != nil {
		logging.Debug("Probe close: %v", err)
	}
	if a.vips {
		media.ShutdownVips()
	}
	if err := a.db.Close(); err != nil {
		logging.Warn("Failed to close store: %v", err)
	}
	logging.Sync()
}

// process runs the pipeline over recs with terminal progress output.
func (a *app) process(ctx context.Context, recs []database.Record) (pipeline.Summary, error) {
	progress := newProgressReporter("Generating thumbnails")
	a.pipeline.SetOnProgress(progress.update)
	defer a.pipeline.SetOnProgress(nil)
	return a.pipeline.Run(ctx, recs)
}
