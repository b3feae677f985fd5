package storage

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/adfharrison1/idxdb/pkg/domain"
)

// CreateCollection creates an empty collection. Creating an existing
// collection is a conflict.
func (se *StorageEngine) CreateCollection(collName string) error {
	if err := validateCollectionName(collName); err != nil {
		return err
	}
	se.mu.Lock()
	defer se.mu.Unlock()

	if _, exists := se.collections[collName]; exists {
		return fmt.Errorf("collection %q: %w", collName, domain.ErrCollectionExists)
	}
	se.collections[collName] = NewCollection(collName)
	se.logger.Info("collection created", zap.String("collection", collName))
	return nil
}

// DropCollection removes a collection with its documents and indexes. It
// waits for the current writer of the collection to finish.
func (se *StorageEngine) DropCollection(collName string) error {
	c, err := se.lookup(collName)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	c.dropped = true
	c.mu.Unlock()

	se.mu.Lock()
	if se.collections[collName] == c {
		delete(se.collections, collName)
	}
	se.mu.Unlock()

	se.logger.Info("collection dropped", zap.String("collection", collName), zap.Int("documents", len(c.docs)))
	return nil
}

// ListCollections returns the collection names in sorted order.
func (se *StorageEngine) ListCollections() []string {
	se.mu.RLock()
	defer se.mu.RUnlock()
	names := make([]string, 0, len(se.collections))
	for name := range se.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
