// Package testutil provides testing utilities for vecspace.
//
// This package is intended for use in tests only. It provides helpers for
// generating reproducible random vectors and records and for computing exact
// top-K ground truth.
//
// # Random Data
//
//	rng := testutil.NewRNG(seed)
//	vecs := rng.UnitVectors(100, 32)
//	recs := rng.Records(1000, 16, 4)
//
// # Ground Truth
//
//	want := testutil.ExactTopK(recs, 10, scoreFn)
package testutil
