// Package metadata provides the typed metadata documents attached to vectors
// and the filter language evaluated against them.
//
// # Values
//
// Metadata values form a closed set of kinds:
//
//   - Null: metadata.Null()
//   - Int: metadata.Int(2024)
//   - Float: metadata.Float(3.14)
//   - String: metadata.String("tech")
//   - Bool: metadata.Bool(true)
//   - Array: metadata.Strings("a", "b")
//   - Document: metadata.Doc(metadata.Document{...})
//
// Documents convert from decoded JSON (ParseJSON, FromAny) and from protobuf
// Structs (FromStruct).
//
// # Filters
//
// A filter is itself a document:
//
//	{"genre": "drama"}                              // shorthand for $eq
//	{"year": {"$gte": 2020, "$lt": 2024}}           // operators are ANDed
//	{"tags": {"$in": ["a", "b"]}}                   // any element of a list field
//	{"$or": [{"genre": "drama"}, {"rating": {"$gt": 8}}]}
//	{"$not": {"draft": true}}
//	{"author.name": {"$exists": true}}              // dotted path into nested documents
//
// Compile never fails. Unknown operators and wrongly shaped operands compile to
// predicates that match nothing, type mismatches evaluate to false and missing
// fields only match $exists: false.
//
// # Indexing
//
// InvertedIndex keeps Roaring Bitmap posting lists per field and value. A
// compiled Filter derives candidate sets from it for $eq, $in and $exists
// nodes; candidates are always re-checked with Matches.
package metadata
