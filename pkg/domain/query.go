package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// SortKey is one component of a sort specification.
type SortKey struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// FindRequest describes a filtered, optionally sorted and projected read.
type FindRequest struct {
	Filter     map[string]any `json:"filter,omitempty"`
	Sort       []SortKey      `json:"sort,omitempty"`
	Projection map[string]int `json:"projection,omitempty"`
	Skip       int            `json:"skip,omitempty"`
	Limit      int            `json:"limit,omitempty"`
}

// Validate checks the non-filter parts of the request.
func (r FindRequest) Validate() error {
	if r.Limit < 0 {
		return fmt.Errorf("limit cannot be negative: %w", ErrValidation)
	}
	if r.Skip < 0 {
		return fmt.Errorf("skip cannot be negative: %w", ErrValidation)
	}
	seen := make(map[string]struct{}, len(r.Sort))
	for _, s := range r.Sort {
		if s.Field == "" {
			return fmt.Errorf("sort key with empty field: %w", ErrValidation)
		}
		if s.Direction != Ascending && s.Direction != Descending {
			return fmt.Errorf("sort direction for %q must be 1 or -1: %w", s.Field, ErrValidation)
		}
		if _, dup := seen[s.Field]; dup {
			return fmt.Errorf("sort field %q repeated: %w", s.Field, ErrValidation)
		}
		seen[s.Field] = struct{}{}
	}
	include, exclude := 0, 0
	for field, v := range r.Projection {
		switch {
		case field == IDField:
		case v == 0:
			exclude++
		default:
			include++
		}
	}
	if include > 0 && exclude > 0 {
		return fmt.Errorf("projection cannot mix inclusion and exclusion: %w", ErrValidation)
	}
	return validateProjectionPaths(r.Projection)
}

// validateProjectionPaths rejects empty path components and paths that
// collide, such as "a" next to "a.b".
func validateProjectionPaths(projection map[string]int) error {
	for field := range projection {
		parts := strings.Split(field, ".")
		if slices.Contains(parts, "") {
			return fmt.Errorf("empty component in projection path %q: %w", field, ErrValidation)
		}
		for i := 1; i < len(parts); i++ {
			prefix := strings.Join(parts[:i], ".")
			if _, ok := projection[prefix]; ok {
				return fmt.Errorf("projection paths %q and %q collide: %w", prefix, field, ErrValidation)
			}
		}
	}
	return nil
}

// Verbosity selects how much an explain runs.
type Verbosity string

const (
	// VerbosityQueryPlanner plans the query without executing it.
	VerbosityQueryPlanner Verbosity = "queryPlanner"
	// VerbosityExecutionStats plans and fully executes the query.
	VerbosityExecutionStats Verbosity = "executionStats"
)

// Plan stage names.
const (
	StageCollScan = "COLLSCAN"
	StageIxScan   = "IXSCAN"
	StageFetch    = "FETCH"
	StageSort     = "SORT"
	StageTextScan = "TEXT"
)

// PlanStage is a node of a query plan tree.
type PlanStage struct {
	Stage      string              `json:"stage"`
	IndexName  string              `json:"indexName,omitempty"`
	KeyPattern []IndexKey          `json:"keyPattern,omitempty"`
	Direction  string              `json:"direction,omitempty"`
	Bounds     map[string][]string `json:"indexBounds,omitempty"`
	Filter     string              `json:"filter,omitempty"`
	SortSpec   []SortKey           `json:"sortPattern,omitempty"`
	// EstimatedKeys is the planner's cost estimate for index scans.
	EstimatedKeys int        `json:"estimatedKeys,omitempty"`
	InputStage    *PlanStage `json:"inputStage,omitempty"`
}

// Leaf returns the innermost stage.
func (s *PlanStage) Leaf() *PlanStage {
	cur := s
	for cur != nil && cur.InputStage != nil {
		cur = cur.InputStage
	}
	return cur
}

// ExecutionStats is the per-query cost report.
type ExecutionStats struct {
	// Stage is the access stage of the winning plan: IXSCAN or COLLSCAN.
	Stage               string        `json:"stage"`
	IndexName           string        `json:"indexName,omitempty"`
	KeysExamined        int           `json:"totalKeysExamined"`
	DocsExamined        int           `json:"totalDocsExamined"`
	NReturned           int           `json:"nReturned"`
	InMemorySort        bool          `json:"inMemorySort"`
	ExecutionTime       time.Duration `json:"-"`
	ExecutionTimeMillis int64         `json:"executionTimeMillis"`
}

// Explanation is the result of an explain request.
type Explanation struct {
	Collection    string          `json:"namespace"`
	Filter        map[string]any  `json:"parsedQuery,omitempty"`
	WinningPlan   *PlanStage      `json:"winningPlan"`
	RejectedPlans []*PlanStage    `json:"rejectedPlans"`
	Stats         *ExecutionStats `json:"executionStats,omitempty"`
}

// FindResult carries matching documents together with the execution report.
type FindResult struct {
	Documents []*Document     `json:"documents"`
	Stats     *ExecutionStats `json:"executionStats"`
}

// SearchHit is one text search match.
type SearchHit struct {
	ID       string    `json:"id"`
	Score    float64   `json:"score"`
	Document *Document `json:"document,omitempty"`
}
