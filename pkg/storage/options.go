package storage

import (
	"time"

	"go.uber.org/zap"

	"github.com/adfharrison1/idxdb/pkg/metrics"
)

type StorageOption func(*StorageEngine)

func WithLogger(logger *zap.Logger) StorageOption {
	return func(engine *StorageEngine) {
		if logger != nil {
			engine.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) StorageOption {
	return func(engine *StorageEngine) {
		engine.metrics = m
	}
}

// WithBuildBatchSize sets how many documents an index build processes
// between cancellation checks.
func WithBuildBatchSize(n int) StorageOption {
	return func(engine *StorageEngine) {
		if n > 0 {
			engine.buildBatchSize = n
		}
	}
}

// WithSnapshot enables periodic snapshots of the whole database to file.
// A zero interval only records the file for explicit saves.
func WithSnapshot(file string, interval time.Duration) StorageOption {
	return func(engine *StorageEngine) {
		engine.dataFile = file
		engine.snapshotInterval = interval
	}
}
