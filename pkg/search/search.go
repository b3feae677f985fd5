// Package search runs relevance-ranked queries against the text index of a
// collection.
package search

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/adfharrison1/idxdb/pkg/domain"
	"github.com/adfharrison1/idxdb/pkg/metrics"
	"github.com/adfharrison1/idxdb/pkg/storage"
)

const checkEvery = 256

// Reader gives the searcher a consistent view of one collection.
type Reader interface {
	Read(collName string, fn func(v storage.View) error) error
}

// Searcher scores text index matches.
type Searcher struct {
	store   Reader
	logger  *zap.Logger
	metrics *metrics.Metrics
}

var _ domain.TextSearcher = (*Searcher)(nil)

// Option configures a Searcher.
type Option func(*Searcher)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Searcher) {
		s.logger = logger.Named("search")
	}
}

// WithMetrics records search metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Searcher) {
		s.metrics = m
	}
}

// New creates a Searcher reading from store.
func New(store Reader, options ...Option) *Searcher {
	s := &Searcher{store: store, logger: zap.NewNop()}
	for _, option := range options {
		option(s)
	}
	return s
}

type match struct {
	id       string
	distinct int
	freq     int
	weight   float64
}

func (m *match) score() float64 {
	return float64(m.distinct) + m.weight/(m.weight+1)
}

// Search returns the documents matching raw in decreasing score order. Ties
// are broken by raw term frequency, then by id. A limit of 0 returns every
// match.
//
// The score of a document is the number of distinct query terms it contains
// plus w/(w+1), where w sums weighted term frequency times ln(1+N/df). The
// fraction stays below 1, so matching more distinct terms always ranks first.
func (s *Searcher) Search(ctx context.Context, collName, raw string, limit int) ([]domain.SearchHit, error) {
	if limit < 0 {
		return nil, fmt.Errorf("limit cannot be negative: %w", domain.ErrValidation)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("search query is empty: %w", domain.ErrValidation)
	}
	if err := domain.CheckContext(ctx); err != nil {
		return nil, err
	}
	start := time.Now()

	var hits []domain.SearchHit
	var keys, examined int
	err := s.store.Read(collName, func(v storage.View) error {
		idx, ok := v.Indexes().Text()
		if !ok {
			return fmt.Errorf("text index required on collection %q: %w", collName, domain.ErrNotFound)
		}
		ti := idx.Text()
		q := ParseQuery(raw, ti.Tokenizer())

		n := float64(ti.DocCount())
		byID := make(map[string]*match)
		for _, term := range q.Terms {
			postings := ti.Postings(term)
			if len(postings) == 0 {
				continue
			}
			idf := math.Log(1 + n/float64(len(postings)))
			for id, p := range postings {
				keys++
				if keys%checkEvery == 0 {
					if err := domain.CheckContext(ctx); err != nil {
						return err
					}
				}
				m := byID[id]
				if m == nil {
					m = &match{id: id}
					byID[id] = m
				}
				m.distinct++
				m.freq += p.Freq
				m.weight += p.Weighted * idf
			}
		}

		matches := make([]*match, 0, len(byID))
		for id, m := range byID {
			examined++
			if q.excludes(ti, id) || !q.hasPhrases(ti, id) {
				continue
			}
			matches = append(matches, m)
		}
		slices.SortFunc(matches, func(a, b *match) int {
			if c := cmp.Compare(b.score(), a.score()); c != 0 {
				return c
			}
			if c := cmp.Compare(b.freq, a.freq); c != 0 {
				return c
			}
			return strings.Compare(a.id, b.id)
		})
		if limit > 0 && len(matches) > limit {
			matches = matches[:limit]
		}

		hits = make([]domain.SearchHit, 0, len(matches))
		for _, m := range matches {
			doc, _ := v.Get(m.id)
			hits = append(hits, domain.SearchHit{ID: m.id, Score: m.score(), Document: doc})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	s.metrics.ObserveQuery("search", domain.StageTextScan, keys, examined, elapsed)
	s.logger.Debug("text search",
		zap.String("collection", collName),
		zap.String("query", raw),
		zap.Int("keys_examined", keys),
		zap.Int("returned", len(hits)),
		zap.Duration("elapsed", elapsed),
	)
	return hits, nil
}
