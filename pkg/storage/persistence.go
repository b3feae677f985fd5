package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/adfharrison1/idxdb/pkg/domain"
	"github.com/adfharrison1/idxdb/pkg/indexing"
)

// SaveToFile writes every collection and its index definitions to a single
// snapshot file: header, then an lz4 frame holding the msgpack body. The file
// is replaced atomically. Each collection is captured at one consistent
// point; different collections may be captured at different points.
func (se *StorageEngine) SaveToFile(filename string) error {
	start := time.Now()
	storageData := se.snapshotData()

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(filename)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeSnapshot(tmp, storageData); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	se.logger.Info("snapshot saved",
		zap.String("file", filename),
		zap.Int("collections", len(storageData.Collections)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (se *StorageEngine) snapshotData() *StorageData {
	storageData := &StorageData{SavedAt: time.Now().UTC()}
	for _, name := range se.ListCollections() {
		err := se.withCollectionReadLock(name, func(c *Collection) error {
			data := CollectionData{Name: name}
			for _, idx := range c.indexes.Indexes() {
				if idx.Name() == indexing.IDIndexName {
					continue
				}
				data.Indexes = append(data.Indexes, idx.Definition())
			}
			data.Documents = make([]storedValue, 0, len(c.docs))
			for doc := range c.all() {
				data.Documents = append(data.Documents, encodeDocument(doc))
			}
			storageData.Collections = append(storageData.Collections, data)
			return nil
		})
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			se.logger.Warn("skipping collection in snapshot", zap.String("collection", name), zap.Error(err))
		}
	}
	return storageData
}

func writeSnapshot(w io.Writer, storageData *StorageData) error {
	if err := WriteHeader(w); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	zw := lz4.NewWriter(w)
	if err := msgpack.NewEncoder(zw).Encode(storageData); err != nil {
		return fmt.Errorf("failed to encode MessagePack: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to compress data: %w", err)
	}
	return nil
}

func readSnapshot(r io.Reader) (*StorageData, error) {
	if _, err := ReadHeader(r); err != nil {
		return nil, fmt.Errorf("invalid file header: %w", err)
	}
	var storageData StorageData
	if err := msgpack.NewDecoder(lz4.NewReader(r)).Decode(&storageData); err != nil {
		return nil, fmt.Errorf("failed to decode MessagePack: %w", err)
	}
	return &storageData, nil
}

// LoadFromFile loads a snapshot written by SaveToFile, replacing collections
// of the same name. Indexes are rebuilt from their definitions. A missing
// file is not an error.
func (se *StorageEngine) LoadFromFile(ctx context.Context, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			se.logger.Info("no snapshot to load", zap.String("file", filename))
			return nil
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	storageData, err := readSnapshot(file)
	if err != nil {
		return err
	}

	loaded := make([]*Collection, 0, len(storageData.Collections))
	for _, data := range storageData.Collections {
		c, err := se.restoreCollection(ctx, data)
		if err != nil {
			return fmt.Errorf("collection %s: %w", data.Name, err)
		}
		loaded = append(loaded, c)
	}

	for _, c := range loaded {
		se.replaceCollection(c)
	}

	se.logger.Info("snapshot loaded",
		zap.String("file", filename),
		zap.Int("collections", len(loaded)),
		zap.Time("saved_at", storageData.SavedAt),
	)
	return nil
}

// replaceCollection publishes c under its name. A collection it replaces is
// marked dropped while its write lock is held, so writers waiting on it retry
// against c instead of committing into the replaced instance.
func (se *StorageEngine) replaceCollection(c *Collection) {
	for {
		se.mu.RLock()
		old, exists := se.collections[c.name]
		se.mu.RUnlock()
		if !exists {
			se.mu.Lock()
			if _, raced := se.collections[c.name]; raced {
				se.mu.Unlock()
				continue
			}
			se.collections[c.name] = c
			se.mu.Unlock()
			return
		}

		old.writeMu.Lock()
		// the name only moves off old under old.writeMu, so this check holds
		se.mu.RLock()
		current := se.collections[c.name] == old
		se.mu.RUnlock()
		if !current {
			old.writeMu.Unlock()
			continue
		}
		old.mu.Lock()
		old.dropped = true
		old.mu.Unlock()
		se.mu.Lock()
		se.collections[c.name] = c
		se.mu.Unlock()
		old.writeMu.Unlock()
		return
	}
}

func (se *StorageEngine) restoreCollection(ctx context.Context, data CollectionData) (*Collection, error) {
	if err := validateCollectionName(data.Name); err != nil {
		return nil, err
	}
	c := NewCollection(data.Name)
	for _, stored := range data.Documents {
		doc, err := decodeDocument(stored)
		if err != nil {
			return nil, err
		}
		id := doc.ID()
		if id == "" {
			return nil, fmt.Errorf("document without _id: %w", domain.ErrValidation)
		}
		if _, exists := c.docs[id]; exists {
			return nil, fmt.Errorf("duplicate _id %q: %w", id, domain.ErrUniqueConstraintViolation)
		}
		if err := c.indexes.CheckWrite(id, doc); err != nil {
			return nil, err
		}
		c.put(id, doc)
	}
	for _, def := range data.Indexes {
		idx, err := c.indexes.Prepare(def)
		if err != nil {
			return nil, err
		}
		if err := idx.BuildIndex(ctx, c.all(), se.buildBatchSize); err != nil {
			return nil, err
		}
		if err := c.indexes.Attach(idx); err != nil {
			return nil, err
		}
	}
	return c, nil
}
