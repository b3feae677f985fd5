package query

import "github.com/adfharrison1/idxdb/pkg/domain"

// Implies reports whether every document matching f is guaranteed to match
// partial. The planner only uses a partial index when this holds. The check
// is conservative: false means "not provable", not "disjoint".
func (f *Filter) Implies(partial *Filter) bool {
	if partial.Empty() {
		return true
	}
	for _, p := range partial.Conditions {
		proved := false
		for _, c := range f.On(p.Field) {
			if conditionImplies(c, p) {
				proved = true
				break
			}
		}
		if !proved {
			return false
		}
	}
	return true
}

func conditionImplies(c, p Condition) bool {
	switch p.Op {
	case OpEq:
		return c.Op == OpEq && domain.Equal(c.Value, p.Value)
	case OpNe:
		switch c.Op {
		case OpEq:
			return !domain.Equal(c.Value, p.Value) && !(c.Value.IsNull() && p.Value.IsNull())
		case OpNe:
			return domain.Equal(c.Value, p.Value)
		}
		return false
	case OpExists:
		if !p.Value.Boolean() {
			return c.Op == OpExists && !c.Value.Boolean()
		}
		switch c.Op {
		case OpExists:
			return c.Value.Boolean()
		case OpEq:
			return !c.Value.IsNull()
		case OpGt, OpGte, OpLt, OpLte:
			return true
		case OpIn:
			for _, item := range c.Value.Items() {
				if item.IsNull() {
					return false
				}
			}
			return len(c.Value.Items()) > 0
		}
		return false
	case OpIn:
		switch c.Op {
		case OpEq:
			return containsValue(p.Value.Items(), c.Value)
		case OpIn:
			for _, item := range c.Value.Items() {
				if !containsValue(p.Value.Items(), item) {
					return false
				}
			}
			return true
		}
		return false
	case OpGt, OpGte, OpLt, OpLte:
		return rangeImplies(c, p)
	}
	return false
}

func containsValue(list []domain.Value, v domain.Value) bool {
	for _, item := range list {
		if domain.Equal(item, v) {
			return true
		}
	}
	return false
}

// rangeImplies handles p being a range bound.
func rangeImplies(c, p Condition) bool {
	if c.Value.Kind() != p.Value.Kind() {
		return false
	}
	cmp := domain.Compare(c.Value, p.Value)
	if p.IsLower() {
		switch c.Op {
		case OpEq:
			return cmp > 0 || (cmp == 0 && p.Op == OpGte)
		case OpGt:
			return cmp >= 0
		case OpGte:
			return cmp > 0 || (cmp == 0 && p.Op == OpGte)
		}
		return false
	}
	switch c.Op {
	case OpEq:
		return cmp < 0 || (cmp == 0 && p.Op == OpLte)
	case OpLt:
		return cmp <= 0
	case OpLte:
		return cmp < 0 || (cmp == 0 && p.Op == OpLte)
	}
	return false
}
