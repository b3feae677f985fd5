package storage

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/adfharrison1/idxdb/pkg/domain"
)

// CreateIndex builds an index over the existing documents of a collection,
// creating the collection if needed, and returns the index name.
//
// Writes to the collection wait for the build; reads keep using the previous
// index set until the new index is published. A duplicate key under a unique
// index or a cancelled context fails the build and leaves no index behind.
func (se *StorageEngine) CreateIndex(ctx context.Context, collName string, def domain.IndexDefinition) (string, error) {
	var name string
	start := time.Now()
	err := se.withCollectionWriteLock(collName, true, func(c *Collection) error {
		idx, err := c.indexes.Prepare(def)
		if err != nil {
			return err
		}
		name = idx.Name()
		// writeMu keeps the documents stable while the index is built
		if err := idx.BuildIndex(ctx, c.all(), se.buildBatchSize); err != nil {
			return err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.indexes.Attach(idx)
	})
	elapsed := time.Since(start)
	se.metrics.ObserveIndexBuild(collName, elapsed, err)
	if err != nil {
		level := zap.WarnLevel
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrIndexConflict) {
			level = zap.DebugLevel
		}
		se.logger.Check(level, "index build failed").Write(
			zap.String("collection", collName),
			zap.String("index", name),
			zap.Error(err),
		)
		return "", err
	}
	se.logger.Info("index built",
		zap.String("collection", collName),
		zap.String("index", name),
		zap.Duration("elapsed", elapsed),
	)
	return name, nil
}

// DropIndex removes an index by name or key pattern such as "dob.age_1".
func (se *StorageEngine) DropIndex(ctx context.Context, collName, nameOrShape string) error {
	return se.withCollectionWriteLock(collName, false, func(c *Collection) error {
		if err := domain.CheckContext(ctx); err != nil {
			return err
		}
		c.mu.Lock()
		idx, err := c.indexes.Drop(nameOrShape)
		c.mu.Unlock()
		if err != nil {
			return err
		}
		se.logger.Info("index dropped", zap.String("collection", collName), zap.String("index", idx.Name()))
		return nil
	})
}

// ListIndexes describes the indexes of a collection in creation order.
func (se *StorageEngine) ListIndexes(collName string) ([]domain.IndexInfo, error) {
	var infos []domain.IndexInfo
	err := se.withCollectionReadLock(collName, func(c *Collection) error {
		infos = c.indexes.Infos()
		return nil
	})
	return infos, err
}
