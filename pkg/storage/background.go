package storage

import (
	"runtime"
	"time"

	"go.uber.org/zap"
)

// Stats describes the engine for the health endpoint.
type Stats struct {
	Collections   int            `json:"collections"`
	Documents     map[string]int `json:"documents"`
	AllocMB       uint64         `json:"alloc_mb"`
	SysMB         uint64         `json:"sys_mb"`
	NumGoroutines int            `json:"num_goroutines"`
}

// GetStats returns document counts and memory usage.
func (se *StorageEngine) GetStats() Stats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := Stats{
		Documents:     make(map[string]int),
		AllocMB:       m.Alloc / 1024 / 1024,
		SysMB:         m.Sys / 1024 / 1024,
		NumGoroutines: runtime.NumGoroutine(),
	}
	for _, name := range se.ListCollections() {
		if n, err := se.Count(name); err == nil {
			stats.Documents[name] = n
			se.metrics.SetDocuments(name, n)
		}
	}
	stats.Collections = len(stats.Documents)
	return stats
}

// StartBackgroundWorkers starts the periodic snapshot worker when a data
// file and interval are configured.
func (se *StorageEngine) StartBackgroundWorkers() {
	if se.dataFile == "" || se.snapshotInterval <= 0 {
		return
	}

	se.backgroundWg.Add(1)
	go func() {
		defer se.backgroundWg.Done()
		ticker := time.NewTicker(se.snapshotInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := se.SaveToFile(se.dataFile); err != nil {
					se.logger.Error("background snapshot failed", zap.String("file", se.dataFile), zap.Error(err))
				}
			case <-se.stopChan:
				return
			}
		}
	}()
}

// StopBackgroundWorkers stops background workers and waits for them.
func (se *StorageEngine) StopBackgroundWorkers() {
	se.stopOnce.Do(func() { close(se.stopChan) })
	se.backgroundWg.Wait()
}

// DataFile returns the configured snapshot file, or "".
func (se *StorageEngine) DataFile() string { return se.dataFile }
