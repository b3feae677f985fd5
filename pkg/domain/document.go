package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// IDField is the reserved identifier field of every stored document.
const IDField = "_id"

// Field is a single name/value pair of a document.
type Field struct {
	Name  string
	Value Value
}

// Document is an ordered mapping from field name to value.
type Document struct {
	fields []Field
}

// NewDocument creates a document from the given fields, in order.
func NewDocument(fields ...Field) *Document {
	return &Document{fields: append([]Field(nil), fields...)}
}

// DocumentFromMap converts a plain map (e.g. a decoded JSON object) into a
// document. Keys are sorted since maps carry no order.
func DocumentFromMap(m map[string]any) (*Document, error) {
	v, err := FromAny(m)
	if err != nil {
		return nil, err
	}
	return v.Document(), nil
}

// MustDocument is DocumentFromMap for literals known to be valid.
func MustDocument(m map[string]any) *Document {
	d, err := DocumentFromMap(m)
	if err != nil {
		panic(err)
	}
	return d
}

// Len returns the number of top-level fields.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.fields)
}

// Fields returns the top-level fields in order. Callers must not modify the
// returned slice.
func (d *Document) Fields() []Field {
	if d == nil {
		return nil
	}
	return d.fields
}

// ID returns the document identifier, or "" when unset.
func (d *Document) ID() string {
	v, ok := d.Lookup(IDField)
	if !ok || v.Kind() != KindString {
		return ""
	}
	return v.Str()
}

// Lookup returns a top-level field.
func (d *Document) Lookup(name string) (Value, bool) {
	if d == nil {
		return Value{}, false
	}
	for _, f := range d.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Get resolves a dotted field path such as "dob.age". Numeric path components
// index into arrays.
func (d *Document) Get(path string) (Value, bool) {
	parts := strings.Split(path, ".")
	cur, ok := d.Lookup(parts[0])
	if !ok {
		return Value{}, false
	}
	for _, part := range parts[1:] {
		switch cur.Kind() {
		case KindDocument:
			cur, ok = cur.Document().Lookup(part)
			if !ok {
				return Value{}, false
			}
		case KindArray:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(cur.Items()) {
				return Value{}, false
			}
			cur = cur.Items()[i]
		default:
			return Value{}, false
		}
	}
	return cur, true
}

// Append adds a field at the end without checking for duplicates.
func (d *Document) Append(name string, v Value) {
	d.fields = append(d.fields, Field{Name: name, Value: v})
}

// Set assigns a value at a dotted path, creating intermediate documents.
func (d *Document) Set(path string, v Value) error {
	parts := strings.Split(path, ".")
	for _, p := range parts {
		if p == "" {
			return fmt.Errorf("empty component in field path %q: %w", path, ErrValidation)
		}
	}
	cur := d
	for i, part := range parts {
		last := i == len(parts)-1
		idx := cur.indexOf(part)
		if last {
			if idx >= 0 {
				cur.fields[idx].Value = v
			} else {
				cur.Append(part, v)
			}
			return nil
		}
		if idx < 0 {
			child := NewDocument()
			cur.Append(part, Doc(child))
			cur = child
			continue
		}
		existing := cur.fields[idx].Value
		if existing.Kind() != KindDocument {
			return fmt.Errorf("cannot set %q: %q is a %s: %w", path, part, existing.Kind(), ErrValidation)
		}
		cur = existing.Document()
	}
	return nil
}

// Unset removes a dotted path; it reports whether anything was removed.
func (d *Document) Unset(path string) bool {
	parts := strings.Split(path, ".")
	cur := d
	for i, part := range parts {
		idx := cur.indexOf(part)
		if idx < 0 {
			return false
		}
		if i == len(parts)-1 {
			cur.fields = append(cur.fields[:idx], cur.fields[idx+1:]...)
			return true
		}
		next := cur.fields[idx].Value
		if next.Kind() != KindDocument {
			return false
		}
		cur = next.Document()
	}
	return false
}

func (d *Document) indexOf(name string) int {
	for i, f := range d.fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{fields: make([]Field, len(d.fields))}
	for i, f := range d.fields {
		out.fields[i] = Field{Name: f.Name, Value: f.Value.Clone()}
	}
	return out
}

// ToMap converts the document to a plain map, losing field order.
func (d *Document) ToMap() map[string]any {
	out := make(map[string]any, d.Len())
	for _, f := range d.Fields() {
		out[f.Name] = f.Value.ToAny()
	}
	return out
}

// Validate checks field names: non-empty, no dots, no leading '$', no
// duplicates at any level.
func (d *Document) Validate() error {
	seen := make(map[string]struct{}, d.Len())
	for _, f := range d.Fields() {
		if f.Name == "" || strings.Contains(f.Name, ".") || strings.HasPrefix(f.Name, "$") {
			return fmt.Errorf("invalid field name %q: %w", f.Name, ErrValidation)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field %q: %w", f.Name, ErrValidation)
		}
		seen[f.Name] = struct{}{}
		if err := validateValue(f.Value); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(v Value) error {
	switch v.Kind() {
	case KindDocument:
		return v.Document().Validate()
	case KindArray:
		for _, item := range v.Items() {
			if err := validateValue(item); err != nil {
				return err
			}
		}
	}
	return nil
}

// MarshalJSON writes the document as a JSON object preserving field order.
// Dates are written as {"$date": "<RFC3339>"}.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeDocumentJSON(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalJSON writes the value as JSON.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValueJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeDocumentJSON(buf *bytes.Buffer, d *Document) error {
	buf.WriteByte('{')
	for i, f := range d.Fields() {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return err
		}
		buf.Write(name)
		buf.WriteByte(':')
		if err := writeValueJSON(buf, f.Value); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeValueJSON(buf *bytes.Buffer, v Value) error {
	switch v.Kind() {
	case KindDocument:
		return writeDocumentJSON(buf, v.Document())
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.Items() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValueJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case KindDate:
		buf.WriteString(`{"$date":"`)
		buf.WriteString(v.Time().Format(time.RFC3339Nano))
		buf.WriteString(`"}`)
		return nil
	default:
		raw, err := json.Marshal(v.ToAny())
		if err != nil {
			return err
		}
		buf.Write(raw)
		return nil
	}
}

// UnmarshalJSON reads a JSON object keeping its field order.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeJSONValue(dec)
	if err != nil {
		return err
	}
	if v.Kind() != KindDocument {
		return fmt.Errorf("expected a JSON object, got %s: %w", v.Kind(), ErrValidation)
	}
	*d = *v.Document()
	return nil
}

// UnmarshalJSON reads any JSON value.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	out, err := decodeJSONValue(dec)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

func decodeJSONValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, fmt.Errorf("decoding document: %w", err)
	}
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %s: %w", t, ErrValidation)
		}
		return Number(f), nil
	case json.Delim:
		switch t {
		case '[':
			var items []Value
			for dec.More() {
				item, err := decodeJSONValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Array(items...), nil
		case '{':
			doc := NewDocument()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, _ := keyTok.(string)
				item, err := decodeJSONValue(dec)
				if err != nil {
					return Value{}, err
				}
				doc.Append(key, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			if doc.Len() == 1 && doc.fields[0].Name == "$date" {
				return parseExtendedDate(doc.fields[0].Value.ToAny())
			}
			return Doc(doc), nil
		}
	}
	return Value{}, fmt.Errorf("unexpected JSON token %v: %w", tok, ErrValidation)
}
