// Package query parses and evaluates the filter, sort and projection
// language used by find, explain and partial indexes.
package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/adfharrison1/idxdb/pkg/domain"
)

// Op is a comparison operator.
type Op string

const (
	OpEq     Op = "$eq"
	OpNe     Op = "$ne"
	OpGt     Op = "$gt"
	OpGte    Op = "$gte"
	OpLt     Op = "$lt"
	OpLte    Op = "$lte"
	OpIn     Op = "$in"
	OpNin    Op = "$nin"
	OpExists Op = "$exists"
)

// Condition is a single predicate on one field path.
type Condition struct {
	Field string
	Op    Op
	// Value is the operand; an array for $in/$nin, a bool for $exists.
	Value domain.Value
}

// IsEquality reports whether the condition pins the field to one value.
func (c Condition) IsEquality() bool { return c.Op == OpEq }

// IsRange reports whether the condition is a one-sided range bound.
func (c Condition) IsRange() bool {
	switch c.Op {
	case OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// IsLower reports whether the condition bounds the field from below.
func (c Condition) IsLower() bool { return c.Op == OpGt || c.Op == OpGte }

// Exclusive reports whether the bound itself is excluded.
func (c Condition) Exclusive() bool { return c.Op == OpGt || c.Op == OpLt }

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %s", c.Field, c.Op, c.Value)
}

// Filter is a conjunction of conditions.
type Filter struct {
	Conditions []Condition
}

// Empty reports whether the filter matches every document.
func (f *Filter) Empty() bool { return f == nil || len(f.Conditions) == 0 }

// Fields returns the distinct field paths referenced by the filter.
func (f *Filter) Fields() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, c := range f.Conditions {
		if _, ok := seen[c.Field]; ok {
			continue
		}
		seen[c.Field] = struct{}{}
		out = append(out, c.Field)
	}
	return out
}

// On returns the conditions that apply to field.
func (f *Filter) On(field string) []Condition {
	var out []Condition
	for _, c := range f.Conditions {
		if c.Field == field {
			out = append(out, c)
		}
	}
	return out
}

func (f *Filter) String() string {
	if f.Empty() {
		return "{}"
	}
	parts := make([]string, len(f.Conditions))
	for i, c := range f.Conditions {
		parts[i] = c.String()
	}
	return strings.Join(parts, " AND ")
}

// Parse compiles a raw filter such as {"dob.age": {"$gt": 60}, "gender": "male"}.
// Top-level "$and" takes a list of sub-filters. Keys are processed in sorted
// order so that the compiled form is deterministic.
func Parse(raw map[string]any) (*Filter, error) {
	f := &Filter{}
	if err := parseInto(f, raw); err != nil {
		return nil, err
	}
	return f, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(raw map[string]any) *Filter {
	f, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return f
}

func parseInto(f *Filter, raw map[string]any) error {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		val := raw[key]
		if key == "$and" {
			list, ok := val.([]any)
			if !ok {
				return fmt.Errorf("$and expects an array: %w", domain.ErrValidation)
			}
			for _, item := range list {
				sub, ok := item.(map[string]any)
				if !ok {
					return fmt.Errorf("$and elements must be objects: %w", domain.ErrValidation)
				}
				if err := parseInto(f, sub); err != nil {
					return err
				}
			}
			continue
		}
		if strings.HasPrefix(key, "$") {
			return fmt.Errorf("unsupported top-level operator %q: %w", key, domain.ErrValidation)
		}
		if err := validatePath(key); err != nil {
			return err
		}
		conds, err := parseField(key, val)
		if err != nil {
			return err
		}
		f.Conditions = append(f.Conditions, conds...)
	}
	return nil
}

func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty field path: %w", domain.ErrValidation)
	}
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			return fmt.Errorf("invalid field path %q: %w", path, domain.ErrValidation)
		}
	}
	return nil
}

func parseField(field string, val any) ([]Condition, error) {
	ops, isOps, err := operatorMap(val)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", field, err)
	}
	if !isOps {
		v, err := domain.FromAny(val)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		return []Condition{{Field: field, Op: OpEq, Value: v}}, nil
	}
	names := make([]string, 0, len(ops))
	for k := range ops {
		names = append(names, k)
	}
	sort.Strings(names)
	conds := make([]Condition, 0, len(ops))
	for _, name := range names {
		c, err := parseOperator(field, Op(name), ops[name])
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	return conds, nil
}

// operatorMap reports whether val is an operator expression ({"$gt": 1}).
// A map mixing operators and plain keys is rejected; {"$date": ...} is a
// literal.
func operatorMap(val any) (map[string]any, bool, error) {
	m, ok := val.(map[string]any)
	if !ok || len(m) == 0 {
		return nil, false, nil
	}
	if _, isDate := m["$date"]; isDate && len(m) == 1 {
		return nil, false, nil
	}
	dollar := 0
	for k := range m {
		if strings.HasPrefix(k, "$") {
			dollar++
		}
	}
	switch dollar {
	case 0:
		return nil, false, nil
	case len(m):
		return m, true, nil
	default:
		return nil, false, fmt.Errorf("cannot mix operators and fields: %w", domain.ErrValidation)
	}
}

func parseOperator(field string, op Op, operand any) (Condition, error) {
	c := Condition{Field: field, Op: op}
	switch op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
		v, err := domain.FromAny(operand)
		if err != nil {
			return c, fmt.Errorf("field %q %s: %w", field, op, err)
		}
		c.Value = v
	case OpIn, OpNin:
		list, ok := operand.([]any)
		if !ok {
			return c, fmt.Errorf("field %q: %s expects an array: %w", field, op, domain.ErrValidation)
		}
		v, err := domain.FromAny(list)
		if err != nil {
			return c, fmt.Errorf("field %q %s: %w", field, op, err)
		}
		c.Value = v
	case OpExists:
		switch b := operand.(type) {
		case bool:
			c.Value = domain.Bool(b)
		case float64:
			c.Value = domain.Bool(b != 0)
		case int:
			c.Value = domain.Bool(b != 0)
		default:
			return c, fmt.Errorf("field %q: $exists expects a boolean: %w", field, domain.ErrValidation)
		}
	default:
		return c, fmt.Errorf("unsupported operator %q on field %q: %w", op, field, domain.ErrValidation)
	}
	return c, nil
}

// Matches evaluates the filter against a document.
func (f *Filter) Matches(doc *domain.Document) bool {
	if f == nil {
		return true
	}
	for _, c := range f.Conditions {
		v, present := doc.Get(c.Field)
		if !c.MatchesValue(v, present) {
			return false
		}
	}
	return true
}

// MatchesValue evaluates the condition against a field value. present is
// false when the field is missing from the document.
func (c Condition) MatchesValue(v domain.Value, present bool) bool {
	switch c.Op {
	case OpEq:
		return equalsOrMissingNull(c.Value, v, present)
	case OpNe:
		return !equalsOrMissingNull(c.Value, v, present)
	case OpGt, OpGte, OpLt, OpLte:
		if !present || !comparable(v, c.Value) {
			return false
		}
		cmp := domain.Compare(v, c.Value)
		switch c.Op {
		case OpGt:
			return cmp > 0
		case OpGte:
			return cmp >= 0
		case OpLt:
			return cmp < 0
		default:
			return cmp <= 0
		}
	case OpIn:
		for _, item := range c.Value.Items() {
			if equalsOrMissingNull(item, v, present) {
				return true
			}
		}
		return false
	case OpNin:
		for _, item := range c.Value.Items() {
			if equalsOrMissingNull(item, v, present) {
				return false
			}
		}
		return true
	case OpExists:
		return present == c.Value.Boolean()
	}
	return false
}

// equalsOrMissingNull treats a missing field as equal to null.
func equalsOrMissingNull(want, got domain.Value, present bool) bool {
	if !present {
		return want.IsNull()
	}
	return domain.Equal(want, got)
}

// comparable restricts range operators to values of the same kind, so
// {$gt: 60} never matches strings or dates.
func comparable(a, b domain.Value) bool {
	return a.Kind() == b.Kind()
}
