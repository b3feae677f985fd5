package indexing

import (
	"fmt"

	"github.com/adfharrison1/idxdb/pkg/domain"
)

// IDIndexName is the name of the unique index every collection has on _id.
const IDIndexName = "_id_"

// IDIndexDefinition is the definition of the default _id index.
func IDIndexDefinition() domain.IndexDefinition {
	return domain.IndexDefinition{
		Name:   IDIndexName,
		Keys:   []domain.IndexKey{{Field: domain.IDField, Direction: domain.Ascending}},
		Unique: true,
	}
}

// IndexSet holds the indexes of one collection in creation order.
type IndexSet struct {
	indexes []*Index
	nextSeq int
}

// NewIndexSet returns a set holding only the _id index.
func NewIndexSet() *IndexSet {
	s := &IndexSet{}
	idx, err := NewIndex(IDIndexDefinition())
	if err != nil {
		panic(err)
	}
	s.attach(idx)
	return s
}

// Indexes returns the indexes in creation order.
func (s *IndexSet) Indexes() []*Index {
	out := make([]*Index, len(s.indexes))
	copy(out, s.indexes)
	return out
}

// Len is the number of indexes, _id included.
func (s *IndexSet) Len() int { return len(s.indexes) }

// Get finds an index by name.
func (s *IndexSet) Get(name string) (*Index, bool) {
	for _, idx := range s.indexes {
		if idx.Name() == name {
			return idx, true
		}
	}
	return nil, false
}

// Text returns the text index, if any.
func (s *IndexSet) Text() (*Index, bool) {
	for _, idx := range s.indexes {
		if idx.IsText() {
			return idx, true
		}
	}
	return nil, false
}

// TTL returns the TTL indexes.
func (s *IndexSet) TTL() []*Index {
	var out []*Index
	for _, idx := range s.indexes {
		if idx.IsTTL() {
			out = append(out, idx)
		}
	}
	return out
}

// Prepare validates def against the set and returns an empty index for it.
// The index is not attached; the caller builds it and then calls Attach.
func (s *IndexSet) Prepare(def domain.IndexDefinition) (*Index, error) {
	idx, err := NewIndex(def)
	if err != nil {
		return nil, err
	}
	if err := s.checkConflicts(idx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (s *IndexSet) checkConflicts(idx *Index) error {
	for _, ex := range s.indexes {
		if ex.Name() == idx.Name() {
			if !ex.def.Equivalent(idx.def) && idx.def.Name == idx.def.DefaultName() {
				return fmt.Errorf("index %q already exists with different options, name the new index explicitly: %w", idx.Name(), domain.ErrIndexConflict)
			}
			return fmt.Errorf("index %q already exists: %w", idx.Name(), domain.ErrIndexConflict)
		}
		if ex.def.Equivalent(idx.def) {
			return fmt.Errorf("index %q already covers %s: %w", ex.Name(), idx.def.Shape(), domain.ErrIndexConflict)
		}
	}
	if idx.IsText() {
		if ex, ok := s.Text(); ok {
			return fmt.Errorf("text index %q already exists: %w", ex.Name(), domain.ErrTooManyTextIndexes)
		}
	}
	return nil
}

// Attach adds a built index to the set.
func (s *IndexSet) Attach(idx *Index) error {
	if err := s.checkConflicts(idx); err != nil {
		return err
	}
	s.attach(idx)
	return nil
}

func (s *IndexSet) attach(idx *Index) {
	idx.seq = s.nextSeq
	s.nextSeq++
	s.indexes = append(s.indexes, idx)
}

// Resolve finds the index a drop request names: an index name first, then a
// key pattern such as "email_1". A pattern matching several indexes is
// ambiguous.
func (s *IndexSet) Resolve(nameOrShape string) (*Index, error) {
	if idx, ok := s.Get(nameOrShape); ok {
		return idx, nil
	}
	var match *Index
	for _, idx := range s.indexes {
		if idx.def.Shape() != nameOrShape {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("key pattern %q matches several indexes, drop by name: %w", nameOrShape, domain.ErrValidation)
		}
		match = idx
	}
	if match == nil {
		return nil, fmt.Errorf("index %q: %w", nameOrShape, domain.ErrNotFound)
	}
	return match, nil
}

// Drop removes the named index. The _id index cannot be dropped.
func (s *IndexSet) Drop(nameOrShape string) (*Index, error) {
	idx, err := s.Resolve(nameOrShape)
	if err != nil {
		return nil, err
	}
	if idx.Name() == IDIndexName {
		return nil, fmt.Errorf("cannot drop %s: %w", IDIndexName, domain.ErrValidation)
	}
	for i, ex := range s.indexes {
		if ex == idx {
			s.indexes = append(s.indexes[:i], s.indexes[i+1:]...)
			break
		}
	}
	return idx, nil
}

// CheckWrite verifies that storing doc under id violates no unique index. It
// does not modify anything, so a failed check leaves the set untouched.
func (s *IndexSet) CheckWrite(id string, doc *domain.Document) error {
	for _, idx := range s.indexes {
		if err := idx.CheckUnique(id, doc); err != nil {
			return err
		}
	}
	return nil
}

// Apply updates every index for a write that passed CheckWrite.
func (s *IndexSet) Apply(id string, oldDoc, newDoc *domain.Document) {
	for _, idx := range s.indexes {
		idx.UpdateIndex(id, oldDoc, newDoc)
	}
}

// Infos lists the indexes in creation order.
func (s *IndexSet) Infos() []domain.IndexInfo {
	out := make([]domain.IndexInfo, len(s.indexes))
	for i, idx := range s.indexes {
		out[i] = idx.Info()
	}
	return out
}
