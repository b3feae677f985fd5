// Package storage is the document store: a registry of named collections with
// per-collection write serialization and synchronous index maintenance.
package storage

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/adfharrison1/idxdb/pkg/domain"
	"github.com/adfharrison1/idxdb/pkg/indexing"
	"github.com/adfharrison1/idxdb/pkg/metrics"
)

// StorageEngine owns every collection of a database.
type StorageEngine struct {
	mu          sync.RWMutex
	collections map[string]*Collection

	logger  *zap.Logger
	metrics *metrics.Metrics

	// Configuration
	buildBatchSize   int
	dataFile         string
	snapshotInterval time.Duration

	// Background workers
	backgroundWg sync.WaitGroup
	stopChan     chan struct{}
	stopOnce     sync.Once
}

var _ domain.DatabaseEngine = (*StorageEngine)(nil)

// NewStorageEngine creates an empty storage engine.
func NewStorageEngine(options ...StorageOption) *StorageEngine {
	engine := &StorageEngine{
		collections:    make(map[string]*Collection),
		logger:         zap.NewNop(),
		buildBatchSize: indexing.DefaultBuildBatchSize,
		stopChan:       make(chan struct{}),
	}

	for _, option := range options {
		option(engine)
	}
	engine.logger = engine.logger.Named("storage")

	return engine
}

// lookup returns an existing collection.
func (se *StorageEngine) lookup(collName string) (*Collection, error) {
	se.mu.RLock()
	defer se.mu.RUnlock()
	c, ok := se.collections[collName]
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", collName, domain.ErrNotFound)
	}
	return c, nil
}

// getOrCreateCollection returns the named collection, creating it on first
// write. created reports whether this call made it.
func (se *StorageEngine) getOrCreateCollection(collName string) (c *Collection, created bool, err error) {
	if err := validateCollectionName(collName); err != nil {
		return nil, false, err
	}
	se.mu.RLock()
	if c, ok := se.collections[collName]; ok {
		se.mu.RUnlock()
		return c, false, nil
	}
	se.mu.RUnlock()

	se.mu.Lock()
	defer se.mu.Unlock()

	// Double-check in case another goroutine created it
	if c, ok := se.collections[collName]; ok {
		return c, false, nil
	}
	c = NewCollection(collName)
	se.collections[collName] = c
	se.logger.Debug("collection created", zap.String("collection", collName))
	return c, true, nil
}

// discardIfUnused removes a collection created for a write that then failed,
// unless another writer has stored something in it meanwhile. Callers hold
// c.writeMu.
func (se *StorageEngine) discardIfUnused(c *Collection) {
	if len(c.docs) > 0 || c.indexes.Len() > 1 {
		return
	}
	c.mu.Lock()
	c.dropped = true
	c.mu.Unlock()

	se.mu.Lock()
	if se.collections[c.name] == c {
		delete(se.collections, c.name)
	}
	se.mu.Unlock()
	se.logger.Debug("collection discarded after failed write", zap.String("collection", c.name))
}

// withCollectionReadLock runs fn with shared access to an existing
// collection.
func (se *StorageEngine) withCollectionReadLock(collName string, fn func(c *Collection) error) error {
	c, err := se.lookup(collName)
	if err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.dropped {
		return fmt.Errorf("collection %q: %w", collName, domain.ErrNotFound)
	}
	return fn(c)
}

// withCollectionWriteLock runs fn as the single writer of a collection. With
// create set, a missing collection is created, and removed again if fn fails
// before anything is stored in it. fn must take c.mu itself around the part
// that publishes changes.
func (se *StorageEngine) withCollectionWriteLock(collName string, create bool, fn func(c *Collection) error) error {
	for {
		var c *Collection
		var created bool
		var err error
		if create {
			c, created, err = se.getOrCreateCollection(collName)
		} else {
			c, err = se.lookup(collName)
		}
		if err != nil {
			return err
		}
		c.writeMu.Lock()
		if c.dropped {
			c.writeMu.Unlock()
			if create {
				// dropped between lookup and lock; use the new incarnation
				continue
			}
			return fmt.Errorf("collection %q: %w", collName, domain.ErrNotFound)
		}
		err = fn(c)
		if err != nil && created {
			se.discardIfUnused(c)
		}
		c.writeMu.Unlock()
		return err
	}
}

// Read runs fn with a consistent read-only view of a collection. Writes to
// the collection wait until fn returns.
func (se *StorageEngine) Read(collName string, fn func(v View) error) error {
	return se.withCollectionReadLock(collName, func(c *Collection) error {
		return fn(View{c: c})
	})
}

// Logger returns the engine logger.
func (se *StorageEngine) Logger() *zap.Logger { return se.logger }

func validateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("collection name cannot be empty: %w", domain.ErrValidation)
	}
	for _, r := range name {
		if r == '$' || r == '/' || r == 0 {
			return fmt.Errorf("invalid collection name %q: %w", name, domain.ErrValidation)
		}
	}
	return nil
}
