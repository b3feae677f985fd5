// Package importer loads JSON arrays of documents, written in MongoDB
// extended JSON, into a collection.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/adfharrison1/idxdb/pkg/domain"
)

// Store is the part of the storage engine an import writes to.
type Store interface {
	Insert(ctx context.Context, collName string, doc *domain.Document) (string, error)
	DropCollection(collName string) error
}

// Options controls one import.
type Options struct {
	// Drop removes the collection before the documents are inserted.
	Drop bool
	// StopOnError aborts at the first rejected document.
	StopOnError bool
}

// Result counts the documents of one import.
type Result struct {
	Inserted int
	Rejected int
}

// Decode reads a JSON array of extended JSON documents. Field order is kept,
// ObjectIDs become their hex string, and {"$date": ...} becomes a date.
func Decode(r io.Reader) ([]*domain.Document, error) {
	var raws []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raws); err != nil {
		return nil, fmt.Errorf("expected a JSON array of documents: %v: %w", err, domain.ErrValidation)
	}
	docs := make([]*domain.Document, 0, len(raws))
	for i, raw := range raws {
		var d bson.D
		if err := bson.UnmarshalExtJSON(raw, false, &d); err != nil {
			return nil, fmt.Errorf("document %d: %v: %w", i, err, domain.ErrValidation)
		}
		doc, err := FromBSON(d)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// FromBSON converts an ordered BSON document.
func FromBSON(d bson.D) (*domain.Document, error) {
	doc := domain.NewDocument()
	for _, e := range d {
		v, err := fromBSONValue(e.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", e.Key, err)
		}
		doc.Append(e.Key, v)
	}
	return doc, nil
}

func fromBSONValue(in any) (domain.Value, error) {
	switch v := in.(type) {
	case bson.D:
		doc, err := FromBSON(v)
		if err != nil {
			return domain.Value{}, err
		}
		return domain.Doc(doc), nil
	case bson.A:
		items := make([]domain.Value, len(v))
		for i, item := range v {
			conv, err := fromBSONValue(item)
			if err != nil {
				return domain.Value{}, err
			}
			items[i] = conv
		}
		return domain.Array(items...), nil
	case primitive.ObjectID:
		return domain.String(v.Hex()), nil
	case primitive.DateTime:
		return domain.Date(v.Time()), nil
	case primitive.Timestamp:
		return domain.Date(time.Unix(int64(v.T), 0)), nil
	case primitive.Null, primitive.Undefined:
		return domain.Null(), nil
	default:
		return domain.FromAny(in)
	}
}

// Import inserts docs one at a time. Rejected documents are logged and
// counted unless opts.StopOnError is set.
func Import(ctx context.Context, store Store, collName string, docs []*domain.Document, opts Options, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var res Result
	if opts.Drop {
		if err := store.DropCollection(collName); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return res, err
		}
	}
	for i, doc := range docs {
		if _, err := store.Insert(ctx, collName, doc); err != nil {
			if errors.Is(err, domain.ErrCancelled) || opts.StopOnError {
				return res, fmt.Errorf("document %d: %w", i, err)
			}
			res.Rejected++
			logger.Warn("document rejected", zap.Int("index", i), zap.Error(err))
			continue
		}
		res.Inserted++
	}
	logger.Info("import finished",
		zap.String("collection", collName),
		zap.Int("inserted", res.Inserted),
		zap.Int("rejected", res.Rejected),
	)
	return res, nil
}
