// Package indexing maintains the secondary indexes of a collection: ordered
// B-tree indexes (regular, unique, partial, TTL) and the inverted text index.
//
// Indexes are not safe for concurrent mutation. The storage engine guards
// every index of a collection with the collection lock.
package indexing

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/google/btree"

	"github.com/adfharrison1/idxdb/pkg/domain"
	"github.com/adfharrison1/idxdb/pkg/query"
)

const (
	btreeDegree = 32
	// DefaultBuildBatchSize is how many documents an index build processes
	// between cancellation checks.
	DefaultBuildBatchSize = 256
)

// Index stores the keys of one index definition.
type Index struct {
	def     domain.IndexDefinition
	seq     int
	partial *query.Filter
	dirs    []domain.Direction
	tree    *btree.BTreeG[entry]
	text    *TextIndex
}

// NewIndex validates def and returns an empty index for it. A missing name is
// derived from the key pattern.
func NewIndex(def domain.IndexDefinition) (*Index, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if def.Name == "" {
		def.Name = def.DefaultName()
	}
	idx := &Index{def: def}
	if def.IsPartial() {
		f, err := query.Parse(def.PartialFilter)
		if err != nil {
			return nil, fmt.Errorf("partial filter of %s: %w", def.Name, err)
		}
		idx.partial = f
	}
	if def.IsText() {
		idx.text = newTextIndex(def)
		return idx, nil
	}
	idx.dirs = make([]domain.Direction, len(def.Keys))
	for i, k := range def.Keys {
		idx.dirs[i] = k.Direction
	}
	idx.tree = btree.NewG[entry](btreeDegree, lessFunc(idx.dirs))
	return idx, nil
}

func (idx *Index) Name() string                       { return idx.def.Name }
func (idx *Index) Definition() domain.IndexDefinition { return idx.def }
func (idx *Index) Kind() domain.IndexKind             { return idx.def.Kind() }
func (idx *Index) IsText() bool                       { return idx.text != nil }
func (idx *Index) IsTTL() bool                        { return idx.def.IsTTL() }
func (idx *Index) Unique() bool                       { return idx.def.Unique }

// Seq is the creation order of the index within its collection.
func (idx *Index) Seq() int { return idx.seq }

// Partial returns the compiled partial filter, or nil.
func (idx *Index) Partial() *query.Filter { return idx.partial }

// Text returns the inverted index of a text index, or nil.
func (idx *Index) Text() *TextIndex { return idx.text }

// Directions returns the per-field directions of an ordered index.
func (idx *Index) Directions() []domain.Direction { return idx.dirs }

// Len is the number of entries.
func (idx *Index) Len() int {
	if idx.text != nil {
		return idx.text.DocCount()
	}
	return idx.tree.Len()
}

// Info describes the index for listings.
func (idx *Index) Info() domain.IndexInfo {
	return domain.IndexInfo{IndexDefinition: idx.def, Kind: idx.Kind(), Entries: idx.Len()}
}

// Covers reports whether doc belongs in the index under its partial filter.
func (idx *Index) Covers(doc *domain.Document) bool {
	return idx.partial.Matches(doc)
}

// keyOf extracts the key of doc. A missing field is indexed as null.
func (idx *Index) keyOf(doc *domain.Document) []keyPart {
	key := make([]keyPart, len(idx.def.Keys))
	for i, k := range idx.def.Keys {
		v, ok := doc.Get(k.Field)
		if !ok {
			v = domain.Null()
		}
		key[i] = keyPart{v: v}
	}
	return key
}

// conflicts reports whether a document other than id already holds key.
func (idx *Index) conflicts(id string, key []keyPart) bool {
	lo := entry{key: key, idBound: kindMin}
	hi := entry{key: key, idBound: kindMax}
	found := false
	idx.tree.AscendRange(lo, hi, func(e entry) bool {
		if e.id != id {
			found = true
			return false
		}
		return true
	})
	return found
}

// CheckUnique returns ErrUniqueConstraintViolation if storing doc under id
// would duplicate a key of this unique index.
func (idx *Index) CheckUnique(id string, doc *domain.Document) error {
	if !idx.def.Unique || idx.tree == nil || !idx.Covers(doc) {
		return nil
	}
	key := idx.keyOf(doc)
	if idx.conflicts(id, key) {
		return fmt.Errorf("index %s: duplicate key %s: %w", idx.def.Name, formatKey(idx.def, key), domain.ErrUniqueConstraintViolation)
	}
	return nil
}

func (idx *Index) add(id string, doc *domain.Document) {
	if !idx.Covers(doc) {
		return
	}
	if idx.text != nil {
		idx.text.add(id, doc)
		return
	}
	idx.tree.ReplaceOrInsert(entry{key: idx.keyOf(doc), id: id})
}

func (idx *Index) remove(id string, doc *domain.Document) {
	if !idx.Covers(doc) {
		return
	}
	if idx.text != nil {
		idx.text.remove(id)
		return
	}
	idx.tree.Delete(entry{key: idx.keyOf(doc), id: id})
}

// UpdateIndex moves id from the entry of oldDoc to the entry of newDoc. A nil
// oldDoc is an insert, a nil newDoc a delete. A document that starts or stops
// matching a partial filter is added or removed accordingly.
func (idx *Index) UpdateIndex(id string, oldDoc, newDoc *domain.Document) {
	if oldDoc != nil {
		idx.remove(id, oldDoc)
	}
	if newDoc != nil {
		idx.add(id, newDoc)
	}
}

// BuildIndex indexes every document of docs. The context is checked every
// batchSize documents. On error the index is incomplete and must be
// discarded by the caller.
func (idx *Index) BuildIndex(ctx context.Context, docs iter.Seq[*domain.Document], batchSize int) error {
	if batchSize <= 0 {
		batchSize = DefaultBuildBatchSize
	}
	n := 0
	for doc := range docs {
		if n%batchSize == 0 {
			if err := domain.CheckContext(ctx); err != nil {
				return err
			}
		}
		n++
		id := doc.ID()
		if err := idx.CheckUnique(id, doc); err != nil {
			return err
		}
		idx.add(id, doc)
	}
	return domain.CheckContext(ctx)
}

func formatKey(def domain.IndexDefinition, key []keyPart) string {
	parts := make([]string, len(key))
	for i, p := range key {
		parts[i] = def.Keys[i].Field + ": " + p.v.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
