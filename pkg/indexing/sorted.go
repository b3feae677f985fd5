package indexing

// Scan walks the entries of an ordered index that lie between the pivots of
// intervals, in index order or backwards. intervals constrain a prefix of the
// key fields; the remaining fields are unbounded. inBounds is false for an
// examined entry that sits between the pivots but fails an interval, such as
// the bound value of an exclusive range. Returning false from visit stops the
// scan.
func (idx *Index) Scan(intervals []Interval, backward bool, visit func(id string, inBounds bool) bool) {
	if idx.tree == nil {
		return
	}
	lo, hi := pivots(intervals, idx.dirs)
	less := lessFunc(idx.dirs)
	check := func(e entry) bool {
		return visit(e.id, entryInBounds(e, intervals))
	}
	if backward {
		idx.tree.DescendLessOrEqual(hi, func(e entry) bool {
			if less(e, lo) {
				return false
			}
			return check(e)
		})
		return
	}
	idx.tree.AscendGreaterOrEqual(lo, func(e entry) bool {
		if less(hi, e) {
			return false
		}
		return check(e)
	})
}

// Count returns how many entries satisfy intervals. The planner uses it as
// the cost of a candidate plan.
func (idx *Index) Count(intervals []Interval) int {
	n := 0
	idx.Scan(intervals, false, func(_ string, inBounds bool) bool {
		if inBounds {
			n++
		}
		return true
	})
	return n
}

func entryInBounds(e entry, intervals []Interval) bool {
	for i, iv := range intervals {
		if i >= len(e.key) {
			break
		}
		if !iv.Contains(e.key[i].v) {
			return false
		}
	}
	return true
}
