package storage

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/adfharrison1/idxdb/pkg/domain"
)

const (
	// Magic bytes to identify our file format
	MagicBytes = "IDXB"
	// Current version
	FormatVersion = 1
	// File extension for snapshot files
	FileExtension = ".idxb"
)

// FileHeader represents the header of a snapshot file
type FileHeader struct {
	Magic    [4]byte // "IDXB"
	Version  uint8   // Format version
	Flags    uint8   // Reserved for future use
	Reserved [2]byte // Reserved for future use
}

// WriteHeader writes the file header to the given writer
func WriteHeader(w io.Writer) error {
	header := FileHeader{
		Magic:   [4]byte{'I', 'D', 'X', 'B'},
		Version: FormatVersion,
	}

	return binary.Write(w, binary.LittleEndian, header)
}

// ReadHeader reads and validates the file header
func ReadHeader(r io.Reader) (*FileHeader, error) {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Validate magic bytes
	if string(header.Magic[:]) != MagicBytes {
		return nil, fmt.Errorf("invalid file format: expected %s, got %s", MagicBytes, string(header.Magic[:]))
	}

	// Validate version
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported file version: %d", header.Version)
	}

	return &header, nil
}

// StorageData is the msgpack body of a snapshot file.
type StorageData struct {
	Collections []CollectionData `msgpack:"collections"`
	SavedAt     time.Time        `msgpack:"saved_at"`
}

// CollectionData is one collection of a snapshot. Index entries are not
// stored; indexes are rebuilt from their definitions on load.
type CollectionData struct {
	Name      string                   `msgpack:"name"`
	Indexes   []domain.IndexDefinition `msgpack:"indexes"`
	Documents []storedValue            `msgpack:"documents"`
}

// storedValue is the serialized form of domain.Value. Documents keep their
// field order and dates keep their type.
type storedValue struct {
	Kind   domain.Kind   `msgpack:"k"`
	Num    float64       `msgpack:"n,omitempty"`
	Str    string        `msgpack:"s,omitempty"`
	Bool   bool          `msgpack:"b,omitempty"`
	Millis int64         `msgpack:"t,omitempty"`
	Fields []storedField `msgpack:"f,omitempty"`
	Items  []storedValue `msgpack:"a,omitempty"`
}

type storedField struct {
	Name  string      `msgpack:"n"`
	Value storedValue `msgpack:"v"`
}

func encodeValue(v domain.Value) storedValue {
	out := storedValue{Kind: v.Kind()}
	switch v.Kind() {
	case domain.KindNumber:
		out.Num = v.Num()
	case domain.KindString:
		out.Str = v.Str()
	case domain.KindBool:
		out.Bool = v.Boolean()
	case domain.KindDate:
		out.Millis = v.Time().UnixMilli()
	case domain.KindDocument:
		out.Fields = encodeFields(v.Document())
	case domain.KindArray:
		out.Items = make([]storedValue, len(v.Items()))
		for i, item := range v.Items() {
			out.Items[i] = encodeValue(item)
		}
	}
	return out
}

func encodeFields(doc *domain.Document) []storedField {
	fields := make([]storedField, doc.Len())
	for i, f := range doc.Fields() {
		fields[i] = storedField{Name: f.Name, Value: encodeValue(f.Value)}
	}
	return fields
}

func encodeDocument(doc *domain.Document) storedValue {
	return storedValue{Kind: domain.KindDocument, Fields: encodeFields(doc)}
}

func decodeValue(s storedValue) (domain.Value, error) {
	switch s.Kind {
	case domain.KindNull:
		return domain.Null(), nil
	case domain.KindNumber:
		return domain.Number(s.Num), nil
	case domain.KindString:
		return domain.String(s.Str), nil
	case domain.KindBool:
		return domain.Bool(s.Bool), nil
	case domain.KindDate:
		return domain.Date(time.UnixMilli(s.Millis)), nil
	case domain.KindDocument:
		doc, err := decodeDocument(s)
		if err != nil {
			return domain.Value{}, err
		}
		return domain.Doc(doc), nil
	case domain.KindArray:
		items := make([]domain.Value, len(s.Items))
		for i, item := range s.Items {
			v, err := decodeValue(item)
			if err != nil {
				return domain.Value{}, err
			}
			items[i] = v
		}
		return domain.Array(items...), nil
	}
	return domain.Value{}, fmt.Errorf("unknown value kind %d in snapshot", s.Kind)
}

func decodeDocument(s storedValue) (*domain.Document, error) {
	if s.Kind != domain.KindDocument {
		return nil, fmt.Errorf("expected a document in snapshot, got %s", s.Kind)
	}
	fields := make([]domain.Field, len(s.Fields))
	for i, f := range s.Fields {
		v, err := decodeValue(f.Value)
		if err != nil {
			return nil, err
		}
		fields[i] = domain.Field{Name: f.Name, Value: v}
	}
	return domain.NewDocument(fields...), nil
}
