// Package scorer computes similarity scores between a query and stored
// records. A query selects its mode by what it supplies: dense values only,
// sparse values only, or both (hybrid).
package scorer

import (
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/vecspace/distance"
	"github.com/hupe1980/vecspace/model"
)

// DefaultAlpha is the dense weight of hybrid scores when none is configured.
const DefaultAlpha = 0.5

// ErrInvalidAlpha is returned for hybrid weights outside [0, 1].
var ErrInvalidAlpha = errors.New("hybrid alpha must be within [0, 1]")

// Mode is the scoring mode selected by a query.
type Mode uint8

const (
	// ModeNone is a query without vectors. It scores nothing.
	ModeNone Mode = iota
	// ModeDense scores the dense component with the namespace metric.
	ModeDense
	// ModeSparse scores the inner product of sparse components.
	ModeSparse
	// ModeHybrid is alpha*dense + (1-alpha)*sparse.
	ModeHybrid
)

func (m Mode) String() string {
	switch m {
	case ModeDense:
		return "dense"
	case ModeSparse:
		return "sparse"
	case ModeHybrid:
		return "hybrid"
	default:
		return "none"
	}
}

// Scorer scores prepared queries against prepared targets.
// It is immutable and safe for concurrent use.
type Scorer struct {
	metric distance.Metric
	alpha  float64
	dense  distance.Func
}

// New creates a scorer for metric with hybrid weight alpha.
func New(metric distance.Metric, alpha float64) (*Scorer, error) {
	if math.IsNaN(alpha) || alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAlpha, alpha)
	}
	fn, err := distance.Provider(metric)
	if err != nil {
		return nil, err
	}
	return &Scorer{metric: metric, alpha: alpha, dense: fn}, nil
}

// Metric returns the dense metric.
func (s *Scorer) Metric() distance.Metric { return s.metric }

// Alpha returns the hybrid dense weight.
func (s *Scorer) Alpha() float64 { return s.alpha }

// Target is a stored vector prepared for scoring.
type Target struct {
	Values []float32
	// Norm is the L2 norm of Values.
	Norm float64
	// Sparse holds the sparse component sorted by ascending index.
	Sparse *model.SparseValues
}

// NewTarget prepares a record's vectors for scoring.
func NewTarget(values []float32, sparse *model.SparseValues) Target {
	t := Target{Values: values}
	if len(values) > 0 {
		t.Norm = distance.Norm(values)
	}
	if sparse.Len() > 0 {
		t.Sparse = sparse.Sorted()
	}
	return t
}

// Query is a query vector prepared for scoring.
type Query struct {
	Target
	mode Mode
}

// NewQuery prepares a query and derives its mode.
func NewQuery(values []float32, sparse *model.SparseValues) Query {
	q := Query{Target: NewTarget(values, sparse)}
	switch hasDense, hasSparse := len(values) > 0, sparse.Len() > 0; {
	case hasDense && hasSparse:
		q.mode = ModeHybrid
	case hasDense:
		q.mode = ModeDense
	case hasSparse:
		q.mode = ModeSparse
	}
	return q
}

// Mode returns the scoring mode of the query.
func (q *Query) Mode() Mode { return q.mode }

// Score returns the similarity of t to q and whether t is eligible.
//
// Dense queries skip targets without dense values, sparse queries skip
// targets without sparse values, and hybrid queries score any target with a
// missing component contributing 0. The caller guarantees that dense
// components have equal length.
func (s *Scorer) Score(q *Query, t *Target) (float32, bool) {
	switch q.mode {
	case ModeDense:
		if len(t.Values) == 0 {
			return 0, false
		}
		return float32(s.denseScore(q, t)), true
	case ModeSparse:
		if t.Sparse == nil {
			return 0, false
		}
		return float32(sparseScore(q, t)), true
	case ModeHybrid:
		var dense, sparse float64
		if len(t.Values) > 0 {
			dense = s.denseScore(q, t)
		}
		if t.Sparse != nil {
			sparse = sparseScore(q, t)
		}
		return float32(s.alpha*dense + (1-s.alpha)*sparse), true
	default:
		return 0, false
	}
}

func (s *Scorer) denseScore(q *Query, t *Target) float64 {
	return s.dense(q.Values, t.Values, q.Norm, t.Norm)
}

func sparseScore(q *Query, t *Target) float64 {
	return distance.SparseDot(q.Sparse.Indices, q.Sparse.Values, t.Sparse.Indices, t.Sparse.Values)
}
