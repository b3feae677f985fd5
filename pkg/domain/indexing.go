package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Direction is the order of one index key, or the text marker.
type Direction int8

const (
	Descending Direction = -1
	Ascending  Direction = 1
	// TextKey marks a field indexed by the inverted text index.
	TextKey Direction = 2
)

func (d Direction) String() string {
	switch d {
	case Ascending:
		return "1"
	case Descending:
		return "-1"
	case TextKey:
		return "text"
	default:
		return strconv.Itoa(int(d))
	}
}

// MarshalJSON writes 1, -1 or "text".
func (d Direction) MarshalJSON() ([]byte, error) {
	if d == TextKey {
		return []byte(`"text"`), nil
	}
	return []byte(strconv.Itoa(int(d))), nil
}

// UnmarshalJSON accepts 1, -1 or "text".
func (d *Direction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "text" {
			return fmt.Errorf("unknown index direction %q: %w", s, ErrValidation)
		}
		*d = TextKey
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid index direction %s: %w", data, ErrValidation)
	}
	switch n {
	case 1:
		*d = Ascending
	case -1:
		*d = Descending
	default:
		return fmt.Errorf("index direction must be 1, -1 or \"text\", got %v: %w", n, ErrValidation)
	}
	return nil
}

// IndexKey is one (field path, direction) pair of a key pattern.
type IndexKey struct {
	Field     string    `json:"field" msgpack:"field"`
	Direction Direction `json:"direction" msgpack:"direction"`
}

// IndexKind classifies an index definition.
type IndexKind string

const (
	KindRegular IndexKind = "regular"
	KindUnique  IndexKind = "unique"
	KindPartial IndexKind = "partial"
	KindTTL     IndexKind = "ttl"
	KindText    IndexKind = "text"
)

// Text index languages.
const (
	LanguageEnglish = "english"
	LanguageNone    = "none"
)

// TextOptions configures tokenization for a text index.
type TextOptions struct {
	// Language "english" removes stopwords and stems; "none" does neither.
	Language string `json:"language,omitempty" msgpack:"language,omitempty"`
	// Weights multiplies term frequencies per field; missing fields weigh 1.
	Weights map[string]int `json:"weights,omitempty" msgpack:"weights,omitempty"`
}

// IndexDefinition describes a secondary index.
type IndexDefinition struct {
	Name   string     `json:"name,omitempty" msgpack:"name"`
	Keys   []IndexKey `json:"keys" msgpack:"keys"`
	Unique bool       `json:"unique,omitempty" msgpack:"unique,omitempty"`
	// PartialFilter restricts the index to documents matching the filter.
	PartialFilter map[string]any `json:"partialFilterExpression,omitempty" msgpack:"partial,omitempty"`
	// ExpireAfterSeconds turns the index into a TTL index.
	ExpireAfterSeconds *int64       `json:"expireAfterSeconds,omitempty" msgpack:"expire,omitempty"`
	Text               *TextOptions `json:"text,omitempty" msgpack:"text,omitempty"`
}

// IsText reports whether the definition describes a text index.
func (d IndexDefinition) IsText() bool {
	return len(d.Keys) > 0 && d.Keys[0].Direction == TextKey
}

// IsTTL reports whether the definition describes a TTL index.
func (d IndexDefinition) IsTTL() bool { return d.ExpireAfterSeconds != nil }

// IsPartial reports whether the definition carries a partial filter.
func (d IndexDefinition) IsPartial() bool { return len(d.PartialFilter) > 0 }

// ExpireAfter returns the TTL duration.
func (d IndexDefinition) ExpireAfter() time.Duration {
	if d.ExpireAfterSeconds == nil {
		return 0
	}
	return time.Duration(*d.ExpireAfterSeconds) * time.Second
}

// Kind returns the dominant kind tag. Unique wins over partial, so a
// partial-unique index reports KindUnique and IsPartial.
func (d IndexDefinition) Kind() IndexKind {
	switch {
	case d.IsText():
		return KindText
	case d.IsTTL():
		return KindTTL
	case d.Unique:
		return KindUnique
	case d.IsPartial():
		return KindPartial
	default:
		return KindRegular
	}
}

// Shape renders the key pattern, e.g. "dob.age_1_gender_-1".
func (d IndexDefinition) Shape() string {
	parts := make([]string, 0, len(d.Keys)*2)
	for _, k := range d.Keys {
		parts = append(parts, k.Field, k.Direction.String())
	}
	return strings.Join(parts, "_")
}

// DefaultName derives the index name from the key pattern, as in
// "dob.age_1_gender_-1" or "description_text". Two indexes over the same
// pattern with different options need an explicit name for the second one.
func (d IndexDefinition) DefaultName() string {
	return d.Shape()
}

// Fields returns the indexed field paths.
func (d IndexDefinition) Fields() []string {
	out := make([]string, len(d.Keys))
	for i, k := range d.Keys {
		out[i] = k.Field
	}
	return out
}

// Equivalent reports whether two definitions have the same key shape and kind.
func (d IndexDefinition) Equivalent(other IndexDefinition) bool {
	return d.Shape() == other.Shape() && d.Kind() == other.Kind() && d.IsPartial() == other.IsPartial()
}

// Validate checks structural invariants of the definition. The partial filter
// itself is validated by the query package when the index is compiled.
func (d IndexDefinition) Validate() error {
	if len(d.Keys) == 0 {
		return fmt.Errorf("index must have at least one key: %w", ErrValidation)
	}
	seen := make(map[string]struct{}, len(d.Keys))
	text := d.IsText()
	for _, k := range d.Keys {
		if k.Field == "" {
			return fmt.Errorf("index key with empty field: %w", ErrValidation)
		}
		if _, dup := seen[k.Field]; dup {
			return fmt.Errorf("field %q repeated in index key: %w", k.Field, ErrValidation)
		}
		seen[k.Field] = struct{}{}
		switch k.Direction {
		case Ascending, Descending:
			if text {
				return fmt.Errorf("text index cannot mix ordered keys (%s): %w", k.Field, ErrValidation)
			}
		case TextKey:
			if !text {
				return fmt.Errorf("text key %q must lead the pattern: %w", k.Field, ErrValidation)
			}
		default:
			return fmt.Errorf("invalid direction %d for %q: %w", k.Direction, k.Field, ErrValidation)
		}
	}
	if text && (d.Unique || d.IsTTL()) {
		return fmt.Errorf("text index cannot be unique or ttl: %w", ErrValidation)
	}
	if !text && d.Text != nil {
		return fmt.Errorf("text options on a non-text index: %w", ErrValidation)
	}
	if d.Text != nil {
		switch d.Text.Language {
		case "", LanguageEnglish, LanguageNone:
		default:
			return fmt.Errorf("unsupported text language %q: %w", d.Text.Language, ErrValidation)
		}
		for field, w := range d.Text.Weights {
			if _, ok := seen[field]; !ok {
				return fmt.Errorf("weight for unindexed field %q: %w", field, ErrValidation)
			}
			if w < 1 {
				return fmt.Errorf("weight for %q must be positive: %w", field, ErrValidation)
			}
		}
	}
	if d.IsTTL() {
		if len(d.Keys) != 1 {
			return fmt.Errorf("ttl index must have exactly one field: %w", ErrValidation)
		}
		if *d.ExpireAfterSeconds < 0 {
			return fmt.Errorf("expireAfterSeconds must be >= 0: %w", ErrValidation)
		}
	}
	return nil
}

// IndexInfo is the listing view of an index.
type IndexInfo struct {
	IndexDefinition
	Kind    IndexKind `json:"kind"`
	Entries int       `json:"entries"`
}
