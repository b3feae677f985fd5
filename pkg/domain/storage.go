package domain

import (
	"context"
	"iter"
)

// StorageEngine defines the document store operations.
// This is the core business interface that implementations must conform to
type StorageEngine interface {
	Insert(ctx context.Context, collName string, doc *Document) (string, error)
	GetById(ctx context.Context, collName, docID string) (*Document, error)
	UpdateById(ctx context.Context, collName, docID string, updates *Document) (*Document, error)
	ReplaceById(ctx context.Context, collName, docID string, doc *Document) (*Document, error)
	DeleteById(ctx context.Context, collName, docID string) (bool, error)
	Scan(ctx context.Context, collName string) (iter.Seq[*Document], error)
	CreateCollection(collName string) error
	DropCollection(collName string) error
	ListCollections() []string
}

// IndexEngine defines the index administration operations.
type IndexEngine interface {
	CreateIndex(ctx context.Context, collName string, def IndexDefinition) (string, error)
	DropIndex(ctx context.Context, collName, nameOrShape string) error
	ListIndexes(collName string) ([]IndexInfo, error)
}

// DatabaseEngine combines StorageEngine and IndexEngine interfaces
type DatabaseEngine interface {
	StorageEngine
	IndexEngine
}

// QueryEngine plans and executes reads.
type QueryEngine interface {
	Find(ctx context.Context, collName string, req FindRequest) (*FindResult, error)
	Explain(ctx context.Context, collName string, req FindRequest, verbosity Verbosity) (*Explanation, error)
}

// TextSearcher runs relevance-ranked text queries.
type TextSearcher interface {
	Search(ctx context.Context, collName, query string, limit int) ([]SearchHit, error)
}
