package planner

import (
	"cmp"
	"slices"

	"github.com/samber/lo"

	"github.com/adfharrison1/idxdb/pkg/domain"
	"github.com/adfharrison1/idxdb/pkg/indexing"
	"github.com/adfharrison1/idxdb/pkg/query"
)

// plan is one access path for a query. A nil idx is a collection scan.
type plan struct {
	idx       *indexing.Index
	intervals []indexing.Interval
	// covered is the number of leading key fields bound by the filter.
	covered int
	// cost is the number of index entries inside the bounds.
	cost     int
	backward bool
	// sorted reports that the access order already satisfies the sort.
	sorted bool
}

func collScan(sortKeys []domain.SortKey) *plan {
	return &plan{sorted: len(sortKeys) == 0}
}

// candidates enumerates the index plans usable for filter. Text and TTL
// indexes never take part; a partial index only does when the filter
// guarantees its predicate.
func candidates(set *indexing.IndexSet, filter *query.Filter, sortKeys []domain.SortKey) []*plan {
	if filter.Empty() {
		return nil
	}
	usable := lo.Filter(set.Indexes(), func(idx *indexing.Index, _ int) bool {
		return !idx.IsText() && !idx.IsTTL() && filter.Implies(idx.Partial())
	})

	var out []*plan
	for _, idx := range usable {
		intervals, eqPrefix := boundsFor(idx, filter)
		if len(intervals) == 0 {
			continue
		}
		p := &plan{
			idx:       idx,
			intervals: intervals,
			covered:   len(intervals),
			cost:      idx.Count(intervals),
		}
		p.sorted, p.backward = sortOrder(idx.Definition().Keys, eqPrefix, sortKeys)
		out = append(out, p)
	}

	// Cheapest first, then more bound fields, then creation order.
	slices.SortStableFunc(out, func(a, b *plan) int {
		if c := cmp.Compare(a.cost, b.cost); c != 0 {
			return c
		}
		if c := cmp.Compare(b.covered, a.covered); c != 0 {
			return c
		}
		return cmp.Compare(a.idx.Seq(), b.idx.Seq())
	})
	return out
}

// boundsFor walks the key pattern binding equality conditions, then at most
// one range. eqPrefix is the number of fields pinned by equality.
func boundsFor(idx *indexing.Index, filter *query.Filter) (intervals []indexing.Interval, eqPrefix int) {
	for _, key := range idx.Definition().Keys {
		conds := filter.On(key.Field)
		if eq, ok := lo.Find(conds, query.Condition.IsEquality); ok {
			intervals = append(intervals, indexing.Point(eq.Value))
			eqPrefix++
			continue
		}
		if iv, ok := rangeInterval(conds); ok {
			intervals = append(intervals, iv)
		}
		break
	}
	return intervals, eqPrefix
}

// rangeInterval merges the range conditions on one field. The first range
// condition fixes the kind; bounds of other kinds are left to the filter.
func rangeInterval(conds []query.Condition) (indexing.Interval, bool) {
	var iv indexing.Interval
	var kind domain.Kind
	found := false
	for _, c := range conds {
		if !c.IsRange() {
			continue
		}
		v := c.Value
		if !found {
			kind, found = v.Kind(), true
		} else if v.Kind() != kind {
			continue
		}
		if c.IsLower() {
			if iv.Low == nil || tighter(v, *iv.Low, c.Exclusive(), 1) {
				iv.Low, iv.LowExclusive = &v, c.Exclusive()
			}
			continue
		}
		if iv.High == nil || tighter(v, *iv.High, c.Exclusive(), -1) {
			iv.High, iv.HighExclusive = &v, c.Exclusive()
		}
	}
	return iv, found
}

// tighter reports whether bound v narrows the current bound in direction
// sign (1 for lower bounds, -1 for upper bounds).
func tighter(v, current domain.Value, exclusive bool, sign int) bool {
	c := domain.Compare(v, current) * sign
	return c > 0 || (c == 0 && exclusive)
}

// sortOrder reports whether scanning an index with key pattern keys yields
// documents in sortKeys order, possibly backwards. Leading fields pinned by
// equality may be skipped.
func sortOrder(keys []domain.IndexKey, eqPrefix int, sortKeys []domain.SortKey) (sorted, backward bool) {
	if len(sortKeys) == 0 {
		return true, false
	}
	for skip := 0; skip <= eqPrefix && skip < len(keys); skip++ {
		if ok, back := followsSort(keys[skip:], sortKeys); ok {
			return true, back
		}
	}
	return false, false
}

func followsSort(keys []domain.IndexKey, sortKeys []domain.SortKey) (ok, backward bool) {
	if len(sortKeys) > len(keys) {
		return false, false
	}
	for i, s := range sortKeys {
		if keys[i].Field != s.Field {
			return false, false
		}
		reversed := keys[i].Direction != s.Direction
		if i == 0 {
			backward = reversed
		} else if reversed != backward {
			return false, false
		}
	}
	return true, backward
}

// stage renders the plan as an explain tree.
func (p *plan) stage(filter *query.Filter, sortKeys []domain.SortKey) *domain.PlanStage {
	var s *domain.PlanStage
	if p.idx == nil {
		s = &domain.PlanStage{
			Stage:     domain.StageCollScan,
			Filter:    filter.String(),
			Direction: "forward",
		}
	} else {
		def := p.idx.Definition()
		direction := "forward"
		if p.backward {
			direction = "backward"
		}
		bounds := make(map[string][]string, len(def.Keys))
		for i, key := range def.Keys {
			iv := indexing.Interval{}
			if i < len(p.intervals) {
				iv = p.intervals[i]
			}
			bounds[key.Field] = []string{iv.String()}
		}
		s = &domain.PlanStage{
			Stage:  domain.StageFetch,
			Filter: filter.String(),
			InputStage: &domain.PlanStage{
				Stage:         domain.StageIxScan,
				IndexName:     p.idx.Name(),
				KeyPattern:    def.Keys,
				Direction:     direction,
				Bounds:        bounds,
				EstimatedKeys: p.cost,
			},
		}
	}
	if !p.sorted {
		s = &domain.PlanStage{Stage: domain.StageSort, SortSpec: sortKeys, InputStage: s}
	}
	return s
}
