package indexing

import (
	"strings"

	"github.com/adfharrison1/idxdb/pkg/domain"
)

// sentinel marks search pivots that sort outside of stored keys.
type sentinel int8

const (
	globalMin sentinel = -2 // before every key, whatever the direction
	kindMin   sentinel = -1 // before every value of the same kind
	exact     sentinel = 0
	kindMax   sentinel = 1 // after every value of the same kind
	globalMax sentinel = 2 // after every key, whatever the direction
)

type keyPart struct {
	v domain.Value
	s sentinel
}

// entry is one (key, document id) pair of a sorted index.
type entry struct {
	key []keyPart
	id  string
	// idBound is kindMin/kindMax on pivots that must sort before/after every
	// id sharing the same key.
	idBound sentinel
}

func (e entry) values() []domain.Value {
	out := make([]domain.Value, len(e.key))
	for i, p := range e.key {
		out[i] = p.v
	}
	return out
}

func globalRank(s sentinel) int {
	switch s {
	case globalMin:
		return -1
	case globalMax:
		return 1
	}
	return 0
}

func comparePart(a, b keyPart, dir domain.Direction) int {
	if ra, rb := globalRank(a.s), globalRank(b.s); ra != 0 || rb != 0 {
		return ra - rb
	}
	var c int
	switch {
	case a.v.Kind() != b.v.Kind():
		if a.v.Kind() < b.v.Kind() {
			c = -1
		} else {
			c = 1
		}
	case a.s != b.s:
		c = int(a.s) - int(b.s)
	case a.s != exact:
		c = 0
	default:
		c = domain.Compare(a.v, b.v)
	}
	if dir == domain.Descending {
		return -c
	}
	return c
}

func lessFunc(dirs []domain.Direction) func(a, b entry) bool {
	return func(a, b entry) bool {
		for i := range dirs {
			if c := comparePart(a.key[i], b.key[i], dirs[i]); c != 0 {
				return c < 0
			}
		}
		if a.idBound != b.idBound {
			return a.idBound < b.idBound
		}
		return strings.Compare(a.id, b.id) < 0
	}
}

// Interval restricts the values of one index key field. A nil bound is open;
// when only one bound is set the interval stays within that bound's kind.
type Interval struct {
	Low, High                   *domain.Value
	LowExclusive, HighExclusive bool
}

// Point is the interval holding exactly v.
func Point(v domain.Value) Interval {
	return Interval{Low: &v, High: &v}
}

// Unbounded reports whether the interval admits every value.
func (iv Interval) Unbounded() bool { return iv.Low == nil && iv.High == nil }

// Contains reports whether v lies inside the interval.
func (iv Interval) Contains(v domain.Value) bool {
	if iv.Low != nil {
		if v.Kind() != iv.Low.Kind() {
			return false
		}
		c := domain.Compare(v, *iv.Low)
		if c < 0 || (c == 0 && iv.LowExclusive) {
			return false
		}
	}
	if iv.High != nil {
		if v.Kind() != iv.High.Kind() {
			return false
		}
		c := domain.Compare(v, *iv.High)
		if c > 0 || (c == 0 && iv.HighExclusive) {
			return false
		}
	}
	return true
}

// String renders the interval the way explain output shows index bounds.
func (iv Interval) String() string {
	if iv.Unbounded() {
		return "[MinKey, MaxKey]"
	}
	open, close := "[", "]"
	if iv.LowExclusive {
		open = "("
	}
	if iv.HighExclusive {
		close = ")"
	}
	low, high := "-inf", "+inf"
	if iv.Low != nil {
		low = iv.Low.String()
	} else if iv.High != nil && iv.High.Kind() != domain.KindNumber {
		low = "min(" + iv.High.Kind().String() + ")"
	}
	if iv.High != nil {
		high = iv.High.String()
	} else if iv.Low != nil && iv.Low.Kind() != domain.KindNumber {
		high = "max(" + iv.Low.Kind().String() + ")"
	}
	return open + low + ", " + high + close
}

// pivots converts per-field intervals into the lowest and highest entries, in
// index order, that can satisfy them.
func pivots(intervals []Interval, dirs []domain.Direction) (lo, hi entry) {
	lo = entry{key: make([]keyPart, len(dirs)), idBound: kindMin}
	hi = entry{key: make([]keyPart, len(dirs)), idBound: kindMax}
	for i := range dirs {
		if i >= len(intervals) || intervals[i].Unbounded() {
			lo.key[i] = keyPart{s: globalMin}
			hi.key[i] = keyPart{s: globalMax}
			continue
		}
		iv := intervals[i]
		var vlow, vhigh keyPart
		if iv.Low != nil {
			vlow = keyPart{v: *iv.Low}
		} else {
			vlow = keyPart{v: *iv.High, s: kindMin}
		}
		if iv.High != nil {
			vhigh = keyPart{v: *iv.High}
		} else {
			vhigh = keyPart{v: *iv.Low, s: kindMax}
		}
		if dirs[i] == domain.Descending {
			vlow, vhigh = vhigh, vlow
		}
		lo.key[i], hi.key[i] = vlow, vhigh
	}
	return lo, hi
}
