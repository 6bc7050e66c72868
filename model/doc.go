// Package model defines the records stored in a namespace and the matches
// returned by queries, together with the error values shared by every layer
// of the engine.
//
// # Data Types
//
//   - Record: id, dense values, sparse values and a metadata document
//   - SparseValues: parallel index/value slices with unique indices
//   - Match: a scored query result
package model
