package storage

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/adfharrison1/idxdb/pkg/domain"
	"github.com/adfharrison1/idxdb/pkg/indexing"
)

// Insert stores a copy of doc in a collection, creating the collection on
// first write. A missing _id is generated as an ObjectID hex string. The
// document is rejected before anything is stored if it violates a unique
// index.
func (se *StorageEngine) Insert(ctx context.Context, collName string, doc *domain.Document) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("document is required: %w", domain.ErrValidation)
	}
	if err := doc.Validate(); err != nil {
		return "", err
	}
	stored, id, err := withID(doc.Clone())
	if err != nil {
		return "", err
	}

	err = se.withCollectionWriteLock(collName, true, func(c *Collection) error {
		if err := domain.CheckContext(ctx); err != nil {
			return err
		}
		if _, exists := c.docs[id]; exists {
			return fmt.Errorf("index %s: duplicate key {_id: %q}: %w", indexing.IDIndexName, id, domain.ErrUniqueConstraintViolation)
		}
		if err := c.indexes.CheckWrite(id, stored); err != nil {
			return err
		}
		c.mu.Lock()
		c.put(id, stored)
		c.mu.Unlock()
		return nil
	})
	if err != nil {
		return "", err
	}
	se.metrics.ObserveWrite(collName, "insert")
	return id, nil
}

// withID ensures doc carries a string _id, generating one in front of the
// other fields when it is missing.
func withID(doc *domain.Document) (*domain.Document, string, error) {
	v, ok := doc.Lookup(domain.IDField)
	if !ok {
		id := primitive.NewObjectID().Hex()
		fields := append([]domain.Field{{Name: domain.IDField, Value: domain.String(id)}}, doc.Fields()...)
		return domain.NewDocument(fields...), id, nil
	}
	if v.Kind() != domain.KindString || v.Str() == "" {
		return nil, "", fmt.Errorf("_id must be a non-empty string, got %s: %w", v.Kind(), domain.ErrValidation)
	}
	return doc, v.Str(), nil
}

// GetById returns the document stored under id. The returned document is
// shared and must not be modified.
func (se *StorageEngine) GetById(ctx context.Context, collName, docID string) (*domain.Document, error) {
	if err := domain.CheckContext(ctx); err != nil {
		return nil, err
	}
	var doc *domain.Document
	err := se.withCollectionReadLock(collName, func(c *Collection) error {
		rec, ok := c.docs[docID]
		if !ok {
			return fmt.Errorf("document %q in collection %q: %w", docID, collName, domain.ErrNotFound)
		}
		doc = rec.doc
		return nil
	})
	return doc, err
}

// UpdateById merges updates into the stored document. Field names may be
// dotted paths into nested documents. _id cannot change. Index membership and
// uniqueness are re-evaluated against the merged document before it replaces
// the old one.
func (se *StorageEngine) UpdateById(ctx context.Context, collName, docID string, updates *domain.Document) (*domain.Document, error) {
	if updates == nil {
		return nil, fmt.Errorf("updates are required: %w", domain.ErrValidation)
	}
	var merged *domain.Document
	err := se.withCollectionWriteLock(collName, false, func(c *Collection) error {
		if err := domain.CheckContext(ctx); err != nil {
			return err
		}
		rec, ok := c.docs[docID]
		if !ok {
			return fmt.Errorf("document %q in collection %q: %w", docID, collName, domain.ErrNotFound)
		}
		next, err := mergeUpdates(rec.doc, updates)
		if err != nil {
			return err
		}
		if err := c.indexes.CheckWrite(docID, next); err != nil {
			return err
		}
		c.mu.Lock()
		c.put(docID, next)
		c.mu.Unlock()
		merged = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	se.metrics.ObserveWrite(collName, "update")
	return merged, nil
}

func mergeUpdates(current, updates *domain.Document) (*domain.Document, error) {
	next := current.Clone()
	for _, f := range updates.Fields() {
		if f.Name == domain.IDField {
			if !domain.Equal(f.Value, domain.String(current.ID())) {
				return nil, fmt.Errorf("_id is immutable: %w", domain.ErrValidation)
			}
			continue
		}
		if err := next.Set(f.Name, f.Value.Clone()); err != nil {
			return nil, err
		}
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	return next, nil
}

// ReplaceById swaps the whole content of a document for doc, keeping its _id.
// Fields missing from doc are removed, so the document leaves partial indexes
// whose predicate it no longer satisfies.
func (se *StorageEngine) ReplaceById(ctx context.Context, collName, docID string, doc *domain.Document) (*domain.Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is required: %w", domain.ErrValidation)
	}
	next, err := replacement(docID, doc)
	if err != nil {
		return nil, err
	}
	err = se.withCollectionWriteLock(collName, false, func(c *Collection) error {
		if err := domain.CheckContext(ctx); err != nil {
			return err
		}
		if _, ok := c.docs[docID]; !ok {
			return fmt.Errorf("document %q in collection %q: %w", docID, collName, domain.ErrNotFound)
		}
		if err := c.indexes.CheckWrite(docID, next); err != nil {
			return err
		}
		c.mu.Lock()
		c.put(docID, next)
		c.mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	se.metrics.ObserveWrite(collName, "replace")
	return next, nil
}

// replacement builds the stored form of a replacing document: _id first, the
// other fields of doc after it. doc may repeat the current _id but not change
// it.
func replacement(docID string, doc *domain.Document) (*domain.Document, error) {
	fields := []domain.Field{{Name: domain.IDField, Value: domain.String(docID)}}
	for _, f := range doc.Fields() {
		if f.Name == domain.IDField {
			if !domain.Equal(f.Value, domain.String(docID)) {
				return nil, fmt.Errorf("_id is immutable: %w", domain.ErrValidation)
			}
			continue
		}
		fields = append(fields, domain.Field{Name: f.Name, Value: f.Value.Clone()})
	}
	next := domain.NewDocument(fields...)
	if err := next.Validate(); err != nil {
		return nil, err
	}
	return next, nil
}

// DeleteById removes a document. It reports false when the collection holds
// no document with that id.
func (se *StorageEngine) DeleteById(ctx context.Context, collName, docID string) (bool, error) {
	return se.DeleteByIdIf(ctx, collName, docID, nil)
}

// DeleteByIdIf removes a document when match, evaluated under the write lock,
// accepts it. A nil match accepts every document. It reports whether a
// document was removed.
func (se *StorageEngine) DeleteByIdIf(ctx context.Context, collName, docID string, match func(doc *domain.Document) bool) (bool, error) {
	var deleted bool
	err := se.withCollectionWriteLock(collName, false, func(c *Collection) error {
		if err := domain.CheckContext(ctx); err != nil {
			return err
		}
		rec, ok := c.docs[docID]
		if !ok || (match != nil && !match(rec.doc)) {
			return nil
		}
		c.mu.Lock()
		deleted = c.remove(docID)
		c.mu.Unlock()
		return nil
	})
	if err != nil {
		return false, err
	}
	if deleted {
		se.metrics.ObserveWrite(collName, "delete")
		se.logger.Debug("document deleted", zap.String("collection", collName), zap.String("id", docID))
	}
	return deleted, nil
}

// Scan returns the documents of a collection in insertion order as of the
// call. The sequence is lazy, finite and can be iterated more than once.
func (se *StorageEngine) Scan(ctx context.Context, collName string) (iter.Seq[*domain.Document], error) {
	if err := domain.CheckContext(ctx); err != nil {
		return nil, err
	}
	var docs []*domain.Document
	err := se.withCollectionReadLock(collName, func(c *Collection) error {
		docs = c.snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Values(docs), nil
}

// Count returns the number of documents in a collection.
func (se *StorageEngine) Count(collName string) (int, error) {
	var n int
	err := se.withCollectionReadLock(collName, func(c *Collection) error {
		n = len(c.docs)
		return nil
	})
	return n, err
}
