package metrics

import (
	"context"
	"time"

	"media-library/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	LibraryStats(ctx context.Context) (Stats, error)
}

// Stats holds the current library statistics
type Stats struct {
	Total      int
	Missing    int
	Hidden     int
	Deleted    int
	Unplayable int
	Thumbnails int
}

// Collector periodically collects and updates library gauges
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := c.statsProvider.LibraryStats(ctx)
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	LibraryRecords.WithLabelValues("total").Set(float64(stats.Total))
	LibraryRecords.WithLabelValues("missing").Set(float64(stats.Missing))
	LibraryRecords.WithLabelValues("hidden").Set(float64(stats.Hidden))
	LibraryRecords.WithLabelValues("deleted").Set(float64(stats.Deleted))
	LibraryRecords.WithLabelValues("unplayable").Set(float64(stats.Unplayable))
	LibraryThumbnails.Set(float64(stats.Thumbnails))

	logging.Debug("Metrics collected: records=%d, missing=%d, thumbnails=%d",
		stats.Total, stats.Missing, stats.Thumbnails)
}
