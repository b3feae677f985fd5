package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/adfharrison1/idxdb/pkg/domain"
)

// CompareBySort orders two documents by a sort specification. Missing fields
// sort as null. Documents equal on every key are ordered by _id so that the
// result is deterministic.
func CompareBySort(a, b *domain.Document, keys []domain.SortKey) int {
	for _, k := range keys {
		av, ok := a.Get(k.Field)
		if !ok {
			av = domain.Null()
		}
		bv, ok := b.Get(k.Field)
		if !ok {
			bv = domain.Null()
		}
		if c := domain.Compare(av, bv); c != 0 {
			if k.Direction == domain.Descending {
				return -c
			}
			return c
		}
	}
	return strings.Compare(a.ID(), b.ID())
}

// SortDocuments sorts docs in place.
func SortDocuments(docs []*domain.Document, keys []domain.SortKey) {
	sort.SliceStable(docs, func(i, j int) bool {
		return CompareBySort(docs[i], docs[j], keys) < 0
	})
}

// Project applies an inclusion or exclusion projection. _id is kept unless
// explicitly excluded. Included paths follow nested documents only; a path
// through an array, such as "tags.0", selects nothing. The input document is
// not modified.
func Project(doc *domain.Document, projection map[string]int) (*domain.Document, error) {
	if len(projection) == 0 {
		return doc, nil
	}
	inclusion := false
	for field, v := range projection {
		if field != domain.IDField && v != 0 {
			inclusion = true
			break
		}
	}
	if !inclusion {
		out := doc.Clone()
		for field := range projection {
			out.Unset(field)
		}
		return out, nil
	}
	out := domain.NewDocument()
	if v, ok := projection[domain.IDField]; !ok || v != 0 {
		if id, ok := doc.Lookup(domain.IDField); ok {
			out.Append(domain.IDField, id)
		}
	}
	fields := make([]string, 0, len(projection))
	for field, v := range projection {
		if field != domain.IDField && v != 0 {
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)
	for _, field := range fields {
		v, ok := lookupNested(doc, field)
		if !ok {
			continue
		}
		if err := out.Set(field, v.Clone()); err != nil {
			return nil, fmt.Errorf("projecting %q: %w", field, err)
		}
	}
	return out, nil
}

// lookupNested resolves a dotted path through nested documents only.
func lookupNested(doc *domain.Document, path string) (domain.Value, bool) {
	parts := strings.Split(path, ".")
	v, ok := doc.Lookup(parts[0])
	for _, part := range parts[1:] {
		if !ok || v.Kind() != domain.KindDocument {
			return domain.Value{}, false
		}
		v, ok = v.Document().Lookup(part)
	}
	return v, ok
}
