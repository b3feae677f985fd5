// Package ttl removes documents whose TTL-indexed date has expired.
package ttl

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/adfharrison1/idxdb/pkg/domain"
	"github.com/adfharrison1/idxdb/pkg/indexing"
	"github.com/adfharrison1/idxdb/pkg/metrics"
	"github.com/adfharrison1/idxdb/pkg/storage"
)

// DefaultInterval is the time between two reaper cycles.
const DefaultInterval = 60 * time.Second

// Store is the part of the storage engine the reaper needs.
type Store interface {
	ListCollections() []string
	Read(collName string, fn func(v storage.View) error) error
	DeleteByIdIf(ctx context.Context, collName, docID string, match func(doc *domain.Document) bool) (bool, error)
}

// Reaper periodically deletes expired documents. It is idle between cycles
// and scans every TTL index of every collection during one.
type Reaper struct {
	store    Store
	clock    clock.Clock
	interval time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Reaper.
type Option func(*Reaper)

// WithClock replaces the wall clock, typically with clock.NewMock in tests.
func WithClock(c clock.Clock) Option {
	return func(r *Reaper) {
		r.clock = c
	}
}

// WithInterval sets the time between cycles.
func WithInterval(d time.Duration) Option {
	return func(r *Reaper) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Reaper) {
		r.logger = logger.Named("reaper")
	}
}

// WithMetrics records cycle metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reaper) {
		r.metrics = m
	}
}

// New creates a Reaper for store.
func New(store Store, options ...Option) *Reaper {
	r := &Reaper{
		store:    store,
		clock:    clock.New(),
		interval: DefaultInterval,
		logger:   zap.NewNop(),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Interval returns the time between cycles.
func (r *Reaper) Interval() time.Duration { return r.interval }

// Cycle summarises one pass over the TTL indexes.
type Cycle struct {
	// Deleted counts removed documents per collection.
	Deleted map[string]int
	// Failures counts expired documents that could not be removed.
	Failures int
}

// Run executes a cycle every interval until ctx is done.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := r.clock.Ticker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reaper started", zap.Duration("interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper stopped")
			return nil
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && !errors.Is(err, domain.ErrCancelled) {
				r.logger.Error("reaper cycle failed", zap.Error(err))
			}
		}
	}
}

// Start runs the reaper in the background until Stop is called or ctx is
// done. Starting a running reaper has no effect.
func (r *Reaper) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		_ = r.Run(ctx)
	}(r.done)
}

// Stop stops a started reaper and waits for the current cycle to finish.
func (r *Reaper) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

type expired struct {
	collection string
	id         string
	field      string
	cutoff     time.Time
}

// RunOnce performs a single cycle. Documents that cannot be deleted are
// logged and skipped; only cancellation aborts the cycle.
func (r *Reaper) RunOnce(ctx context.Context) (Cycle, error) {
	cycle := Cycle{Deleted: make(map[string]int)}
	now := r.clock.Now()

	var targets []expired
	for _, coll := range r.store.ListCollections() {
		if err := domain.CheckContext(ctx); err != nil {
			return cycle, err
		}
		found, err := r.collect(coll, now)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				r.logger.Warn("skipping collection", zap.String("collection", coll), zap.Error(err))
			}
			continue
		}
		targets = append(targets, found...)
	}

	for _, t := range targets {
		deleted, err := r.store.DeleteByIdIf(ctx, t.collection, t.id, expiredBy(t.field, t.cutoff))
		switch {
		case errors.Is(err, domain.ErrCancelled):
			r.metrics.ObserveReaperCycle(cycle.Deleted, cycle.Failures)
			return cycle, err
		case err != nil:
			cycle.Failures++
			r.logger.Warn("failed to delete expired document",
				zap.String("collection", t.collection), zap.String("id", t.id), zap.Error(err))
		case !deleted:
			cycle.Failures++
			r.logger.Warn("expired document already gone or no longer expired",
				zap.String("collection", t.collection), zap.String("id", t.id))
		default:
			cycle.Deleted[t.collection]++
		}
	}

	r.metrics.ObserveReaperCycle(cycle.Deleted, cycle.Failures)
	if len(targets) > 0 {
		r.logger.Info("reaper cycle finished",
			zap.Int("expired", len(targets)),
			zap.Int("failures", cycle.Failures),
			zap.Duration("elapsed", r.clock.Since(now)),
		)
	}
	return cycle, nil
}

// collect finds the expired documents of one collection. Only date values
// are in range of the scan, so other types never expire.
func (r *Reaper) collect(coll string, now time.Time) ([]expired, error) {
	var out []expired
	err := r.store.Read(coll, func(v storage.View) error {
		seen := make(map[string]struct{})
		for _, idx := range v.Indexes().TTL() {
			def := idx.Definition()
			cutoff := now.Add(-def.ExpireAfter())
			high := domain.Date(cutoff)
			field := def.Keys[0].Field
			idx.Scan([]indexing.Interval{{High: &high}}, false, func(id string, inBounds bool) bool {
				if !inBounds {
					return true
				}
				if _, dup := seen[id]; !dup {
					seen[id] = struct{}{}
					out = append(out, expired{collection: coll, id: id, field: field, cutoff: cutoff})
				}
				return true
			})
		}
		return nil
	})
	return out, err
}

// expiredBy re-checks a document at delete time, so an update that moved the
// date forward after the scan keeps the document.
func expiredBy(field string, cutoff time.Time) func(doc *domain.Document) bool {
	return func(doc *domain.Document) bool {
		v, ok := doc.Get(field)
		return ok && v.IsDate() && !v.Time().After(cutoff)
	}
}
