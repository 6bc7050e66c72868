// Package distance provides the vector kernels behind similarity scoring.
// Every kernel accumulates in float64 in ascending index order, so results are
// reproducible across runs and platforms for identical inputs.
//
// # Supported Metrics
//
//   - MetricCosine: cosine similarity (default)
//   - MetricDot: dot product (inner product)
//   - MetricEuclidean: 1/(1+d²) over the squared Euclidean distance
//
// Sparse vectors are scored with SparseDot, a merge-join over sorted indices.
//
// # Usage
//
//	fn, _ := distance.Provider(distance.MetricCosine)
//	score := fn(q, r, distance.Norm(q), distance.Norm(r))
package distance
