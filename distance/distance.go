package distance

import (
	"fmt"
	"math"
	"strings"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	return math.Sqrt(Dot(v, v))
}

// Cosine returns the cosine similarity of a and b given their precomputed
// norms. It is 0 when either norm is zero.
func Cosine(a, b []float32, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	return Dot(a, b) / (normA * normB)
}

// SparseDot computes the inner product of two sparse vectors over the
// intersection of their indices. Both index slices must be sorted ascending
// and free of duplicates.
func SparseDot(ai []uint32, av []float32, bi []uint32, bv []float32) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(ai) && j < len(bi) {
		switch {
		case ai[i] == bi[j]:
			sum += float64(av[i]) * float64(bv[j])
			i++
			j++
		case ai[i] < bi[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Metric represents the dense similarity metric of a namespace.
type Metric int

const (
	// MetricCosine is cosine similarity (default). Identical directions score 1.
	MetricCosine Metric = iota
	// MetricDot is the raw inner product.
	MetricDot
	// MetricEuclidean is 1/(1+d²) over the squared Euclidean distance d².
	// Identical vectors score 1.
	MetricEuclidean
)

func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "cosine"
	case MetricDot:
		return "dotproduct"
	case MetricEuclidean:
		return "euclidean"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	return m >= MetricCosine && m <= MetricEuclidean
}

// ParseMetric parses a metric name. Matching is case-insensitive and accepts
// the common aliases "dot", "dot_product", "l2".
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cosine":
		return MetricCosine, nil
	case "dotproduct", "dot_product", "dot":
		return MetricDot, nil
	case "euclidean", "l2":
		return MetricEuclidean, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Metric) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unknown metric %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Metric) UnmarshalText(text []byte) error {
	parsed, err := ParseMetric(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Func scores a query against a stored dense vector. Higher is more similar.
// normQ and normR are the L2 norms of q and r; metrics that do not need them
// ignore them.
type Func func(q, r []float32, normQ, normR float64) float64

// Provider returns the similarity function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricCosine:
		return Cosine, nil
	case MetricDot:
		return func(q, r []float32, _, _ float64) float64 { return Dot(q, r) }, nil
	case MetricEuclidean:
		return func(q, r []float32, _, _ float64) float64 { return 1 / (1 + SquaredL2(q, r)) }, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}
