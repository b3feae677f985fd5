// Package planner chooses between index scans and collection scans for find
// and explain requests, executes the chosen plan and reports execution
// statistics.
package planner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/adfharrison1/idxdb/pkg/domain"
	"github.com/adfharrison1/idxdb/pkg/metrics"
	"github.com/adfharrison1/idxdb/pkg/query"
	"github.com/adfharrison1/idxdb/pkg/storage"
)

// Reader gives the planner a consistent view of one collection.
type Reader interface {
	Read(collName string, fn func(v storage.View) error) error
}

// Planner plans and executes reads.
type Planner struct {
	store   Reader
	logger  *zap.Logger
	metrics *metrics.Metrics
}

var _ domain.QueryEngine = (*Planner)(nil)

// Option configures a Planner.
type Option func(*Planner)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Planner) {
		p.logger = logger.Named("planner")
	}
}

// WithMetrics records query metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Planner) {
		p.metrics = m
	}
}

// New creates a Planner reading from store.
func New(store Reader, options ...Option) *Planner {
	p := &Planner{store: store, logger: zap.NewNop()}
	for _, option := range options {
		option(p)
	}
	return p
}

// Find returns the documents matching req. Returned documents are shared
// with the store unless a projection was applied, and must not be modified.
func (p *Planner) Find(ctx context.Context, collName string, req domain.FindRequest) (*domain.FindResult, error) {
	filter, err := compile(req)
	if err != nil {
		return nil, err
	}

	var result *domain.FindResult
	err = p.store.Read(collName, func(v storage.View) error {
		winner, _ := choose(v, filter, req.Sort)
		docs, stats, err := execute(ctx, v, winner, filter, req)
		if err != nil {
			return err
		}
		projected, err := project(docs, req.Projection)
		if err != nil {
			return err
		}
		result = &domain.FindResult{Documents: projected, Stats: stats}
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.observe("find", collName, result.Stats)
	return result, nil
}

// Explain reports the winning and rejected plans for req. With
// VerbosityExecutionStats the winning plan is also executed and its
// statistics attached.
func (p *Planner) Explain(ctx context.Context, collName string, req domain.FindRequest, verbosity domain.Verbosity) (*domain.Explanation, error) {
	switch verbosity {
	case "":
		verbosity = domain.VerbosityQueryPlanner
	case domain.VerbosityQueryPlanner, domain.VerbosityExecutionStats:
	default:
		return nil, fmt.Errorf("unknown verbosity %q: %w", verbosity, domain.ErrValidation)
	}
	filter, err := compile(req)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckContext(ctx); err != nil {
		return nil, err
	}

	var explanation *domain.Explanation
	err = p.store.Read(collName, func(v storage.View) error {
		winner, rejected := choose(v, filter, req.Sort)
		explanation = &domain.Explanation{
			Collection:    collName,
			Filter:        req.Filter,
			WinningPlan:   winner.stage(filter, req.Sort),
			RejectedPlans: make([]*domain.PlanStage, 0, len(rejected)),
		}
		for _, r := range rejected {
			explanation.RejectedPlans = append(explanation.RejectedPlans, r.stage(filter, req.Sort))
		}
		if verbosity == domain.VerbosityExecutionStats {
			_, stats, err := execute(ctx, v, winner, filter, req)
			if err != nil {
				return err
			}
			explanation.Stats = stats
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if explanation.Stats != nil {
		p.observe("explain", collName, explanation.Stats)
	}
	return explanation, nil
}

func compile(req domain.FindRequest) (*query.Filter, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return query.Parse(req.Filter)
}

// choose picks the cheapest index plan, or a collection scan when no index
// applies.
func choose(v storage.View, filter *query.Filter, sortKeys []domain.SortKey) (winner *plan, rejected []*plan) {
	plans := candidates(v.Indexes(), filter, sortKeys)
	if len(plans) == 0 {
		return collScan(sortKeys), nil
	}
	return plans[0], plans[1:]
}

func project(docs []*domain.Document, projection map[string]int) ([]*domain.Document, error) {
	if docs == nil {
		return []*domain.Document{}, nil
	}
	if len(projection) == 0 {
		return docs, nil
	}
	out := make([]*domain.Document, len(docs))
	for i, doc := range docs {
		projected, err := query.Project(doc, projection)
		if err != nil {
			return nil, err
		}
		out[i] = projected
	}
	return out, nil
}

func (p *Planner) observe(operation, collName string, stats *domain.ExecutionStats) {
	p.metrics.ObserveQuery(operation, stats.Stage, stats.KeysExamined, stats.DocsExamined, stats.ExecutionTime)
	p.logger.Debug("query executed",
		zap.String("operation", operation),
		zap.String("collection", collName),
		zap.String("stage", stats.Stage),
		zap.String("index", stats.IndexName),
		zap.Int("keys_examined", stats.KeysExamined),
		zap.Int("docs_examined", stats.DocsExamined),
		zap.Int("returned", stats.NReturned),
		zap.Bool("in_memory_sort", stats.InMemorySort),
		zap.Duration("elapsed", stats.ExecutionTime),
	)
}
