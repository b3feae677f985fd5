package planner

import (
	"context"
	"time"

	"github.com/adfharrison1/idxdb/pkg/domain"
	"github.com/adfharrison1/idxdb/pkg/query"
	"github.com/adfharrison1/idxdb/pkg/storage"
)

// checkEvery is how many examined keys or documents pass between
// cancellation checks.
const checkEvery = 256

// execute runs p against v. The full filter is applied to every fetched
// document, so index bounds only need to be a superset of the matches.
func execute(ctx context.Context, v storage.View, p *plan, filter *query.Filter, req domain.FindRequest) ([]*domain.Document, *domain.ExecutionStats, error) {
	start := time.Now()
	stats := &domain.ExecutionStats{Stage: domain.StageCollScan}
	if p.idx != nil {
		stats.Stage = domain.StageIxScan
		stats.IndexName = p.idx.Name()
	}
	if err := domain.CheckContext(ctx); err != nil {
		return nil, nil, err
	}

	// Without a sort stage the first skip+limit matches are final.
	want := -1
	if p.sorted && req.Limit > 0 {
		want = req.Skip + req.Limit
	}

	var matched []*domain.Document
	var cancelled error
	examine := func(doc *domain.Document) bool {
		stats.DocsExamined++
		if filter.Matches(doc) {
			matched = append(matched, doc)
		}
		return want < 0 || len(matched) < want
	}

	if p.idx == nil {
		for doc := range v.Documents() {
			if stats.DocsExamined > 0 && stats.DocsExamined%checkEvery == 0 {
				if cancelled = domain.CheckContext(ctx); cancelled != nil {
					break
				}
			}
			if !examine(doc) {
				break
			}
		}
	} else {
		p.idx.Scan(p.intervals, p.backward, func(id string, inBounds bool) bool {
			stats.KeysExamined++
			if stats.KeysExamined%checkEvery == 0 {
				if cancelled = domain.CheckContext(ctx); cancelled != nil {
					return false
				}
			}
			if !inBounds {
				return true
			}
			doc, ok := v.Get(id)
			if !ok {
				return true
			}
			return examine(doc)
		})
	}
	if cancelled != nil {
		return nil, nil, cancelled
	}

	if !p.sorted {
		query.SortDocuments(matched, req.Sort)
		stats.InMemorySort = true
	}
	matched = window(matched, req.Skip, req.Limit)

	stats.NReturned = len(matched)
	stats.ExecutionTime = time.Since(start)
	stats.ExecutionTimeMillis = stats.ExecutionTime.Milliseconds()
	return matched, stats, nil
}

func window(docs []*domain.Document, skip, limit int) []*domain.Document {
	if skip >= len(docs) {
		return nil
	}
	docs = docs[skip:]
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs
}
