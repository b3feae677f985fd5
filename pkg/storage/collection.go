package storage

import (
	"iter"
	"sync"

	"github.com/google/btree"

	"github.com/adfharrison1/idxdb/pkg/domain"
	"github.com/adfharrison1/idxdb/pkg/indexing"
)

// record is a stored document. Documents are never modified in place; an
// update stores a new record under the same sequence number.
type record struct {
	seq uint64
	doc *domain.Document
}

func recordLess(a, b *record) bool { return a.seq < b.seq }

// Collection holds the documents and indexes of one collection.
//
// Writers (insert, update, delete, index build) hold writeMu for the whole
// operation, so they are serialized. They only take mu exclusively while
// publishing a change, after every check has passed. Readers hold mu shared,
// so an index build does not block them and they never observe a write in
// progress.
type Collection struct {
	name string

	writeMu sync.Mutex
	mu      sync.RWMutex

	docs    map[string]*record
	order   *btree.BTreeG[*record]
	nextSeq uint64
	indexes *indexing.IndexSet
	dropped bool
}

// NewCollection creates an empty collection with its _id index.
func NewCollection(name string) *Collection {
	return &Collection{
		name:    name,
		docs:    make(map[string]*record),
		order:   btree.NewG[*record](32, recordLess),
		indexes: indexing.NewIndexSet(),
	}
}

func (c *Collection) Name() string { return c.name }

// put stores doc and updates every index. Callers hold writeMu and mu.
func (c *Collection) put(id string, doc *domain.Document) {
	old, exists := c.docs[id]
	if exists {
		c.indexes.Apply(id, old.doc, doc)
		rec := &record{seq: old.seq, doc: doc}
		c.docs[id] = rec
		c.order.ReplaceOrInsert(rec)
		return
	}
	c.indexes.Apply(id, nil, doc)
	rec := &record{seq: c.nextSeq, doc: doc}
	c.nextSeq++
	c.docs[id] = rec
	c.order.ReplaceOrInsert(rec)
}

// remove deletes id and its index entries. Callers hold writeMu and mu.
func (c *Collection) remove(id string) bool {
	rec, exists := c.docs[id]
	if !exists {
		return false
	}
	c.indexes.Apply(id, rec.doc, nil)
	delete(c.docs, id)
	c.order.Delete(rec)
	return true
}

// all yields the documents in insertion order. Callers hold writeMu or mu.
func (c *Collection) all() iter.Seq[*domain.Document] {
	return func(yield func(*domain.Document) bool) {
		c.order.Ascend(func(rec *record) bool {
			return yield(rec.doc)
		})
	}
}

// snapshot copies the document pointers in insertion order.
func (c *Collection) snapshot() []*domain.Document {
	out := make([]*domain.Document, 0, len(c.docs))
	for doc := range c.all() {
		out = append(out, doc)
	}
	return out
}

// View is read access to a collection. It is only valid inside the callback
// it was passed to; documents it returns must not be modified.
type View struct {
	c *Collection
}

// Name returns the collection name.
func (v View) Name() string { return v.c.name }

// Len is the number of documents.
func (v View) Len() int { return len(v.c.docs) }

// Get returns the document stored under id.
func (v View) Get(id string) (*domain.Document, bool) {
	rec, ok := v.c.docs[id]
	if !ok {
		return nil, false
	}
	return rec.doc, true
}

// Documents yields every document in insertion order.
func (v View) Documents() iter.Seq[*domain.Document] { return v.c.all() }

// Indexes exposes the index set for reading.
func (v View) Indexes() *indexing.IndexSet { return v.c.indexes }
