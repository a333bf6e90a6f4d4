// Package history periodically exports counter snapshots as Prometheus
// gauges, for dashboards to keep their history.
package history

import (
	"context"
	"time"

	"github.com/m-lab/go/memoryless"
	log "github.com/sirupsen/logrus"

	"github.com/m-lab/counters/counters"
	"github.com/m-lab/counters/metrics"
	"github.com/m-lab/counters/static"
)

// DefaultConfig is the export period used by the counters server.
var DefaultConfig = memoryless.Config{
	Min:      static.HistoryExportMin,
	Expected: static.HistoryExportExpected,
	Max:      static.HistoryExportMax,
}

// PeriodConfig returns an export config with the given mean period, bounded
// the same way as DefaultConfig.
func PeriodConfig(expected time.Duration) memoryless.Config {
	return memoryless.Config{
		Min:      expected / 2,
		Expected: expected,
		Max:      5 * expected,
	}
}

// Exporter reads every counter of a backend and publishes its count.
type Exporter struct {
	counters counters.Counters
	config   memoryless.Config
	timeout  time.Duration
}

// NewExporter creates an exporter reading c at intervals drawn from config.
func NewExporter(c counters.Counters, config memoryless.Config) *Exporter {
	return &Exporter{
		counters: c,
		config:   config,
		timeout:  config.Max,
	}
}

// Export takes one snapshot of all counters and updates the gauges.
func (e *Exporter) Export(ctx context.Context) (map[string]int64, error) {
	snap, err := counters.Snapshot(ctx, e.counters)
	if err != nil {
		metrics.HistoryExportsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	for coll, n := range snap {
		metrics.DistinctEstimate.WithLabelValues(coll).Set(float64(n))
	}
	metrics.HistoryExportsTotal.WithLabelValues("OK").Inc()
	return snap, nil
}

// Run exports snapshots until ctx is canceled.
func (e *Exporter) Run(ctx context.Context) error {
	ticker, err := memoryless.NewTicker(ctx, e.config)
	if err != nil {
		return err
	}
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			ectx, cancel := context.WithTimeout(ctx, e.timeout)
			if _, err := e.Export(ectx); err != nil {
				log.Errorf("failed to export counters: %v", err)
			}
			cancel()
		}
	}
}
