package metrics

import (
	"time"

	"file-uploader/internal/logging"
)

// StatsProvider reports the sizes of in-memory state.
type StatsProvider interface {
	GetStats() Stats
}

// StatsFunc adapts a function to StatsProvider.
type StatsFunc func() Stats

// GetStats implements StatsProvider.
func (f StatsFunc) GetStats() Stats { return f() }

// Stats holds the current statistics
type Stats struct {
	JobStoreEntries int
	ActiveSessions  int
	QueuedJobs      int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	done          chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection and waits for the loop to exit.
func (c *Collector) Stop() {
	close(c.stopChan)
	<-c.done
}

func (c *Collector) collectLoop() {
	defer close(c.done)

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

	JobStoreEntries.Set(float64(stats.JobStoreEntries))
	UploadSessionsActive.Set(float64(stats.ActiveSessions))
	TranscodeQueueDepth.Set(float64(stats.QueuedJobs))

	logging.Debug("Metrics collected: jobs=%d, sessions=%d, queued=%d",
		stats.JobStoreEntries, stats.ActiveSessions, stats.QueuedJobs)
}
