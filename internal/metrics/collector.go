package metrics

import (
	"time"

	"media-index/internal/logging"
)

// StatsProvider supplies point-in-time library statistics for export.
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current library statistics.
type Stats struct {
	VideoFiles     int
	ImageFiles     int
	OtherFiles     int
	Directories    int
	HistoryEntries int
	Playlists      int
	PlaylistItems  int
	DownloadFiles  int
	DownloadBytes  int64
}

// Collector periodically collects and updates library gauges.
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop.
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection.
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
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

	stats := c.statsProvider.GetStats()

	IndexedFilesTotal.WithLabelValues("video").Set(float64(stats.VideoFiles))
	IndexedFilesTotal.WithLabelValues("image").Set(float64(stats.ImageFiles))
	IndexedFilesTotal.WithLabelValues("other").Set(float64(stats.OtherFiles))
	IndexedDirectoriesTotal.Set(float64(stats.Directories))
	HistoryEntriesTotal.Set(float64(stats.HistoryEntries))
	PlaylistsTotal.Set(float64(stats.Playlists))
	PlaylistItemsTotal.Set(float64(stats.PlaylistItems))
	DownloadCacheFiles.Set(float64(stats.DownloadFiles))
	DownloadCacheBytes.Set(float64(stats.DownloadBytes))

	logging.Debug("Metrics collected: files=%d/%d/%d, dirs=%d, history=%d, playlists=%d",
		stats.VideoFiles, stats.ImageFiles, stats.OtherFiles,
		stats.Directories, stats.HistoryEntries, stats.Playlists)
}
