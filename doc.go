// Package vecspace provides an in-memory, namespaced vector search engine.
//
// A Manager owns any number of namespaces. Each namespace stores records with
// a dense vector, a sparse vector or both, plus a metadata document, and
// answers exact top-K similarity queries that can be restricted by metadata
// filters.
//
// # Quick Start
//
//	ctx := context.Background()
//	m, _ := vecspace.New()
//
//	res, _ := m.Upsert(ctx, "ns1", []vecspace.Record{
//	    {ID: "a", Values: []float32{1, 0}},
//	    {ID: "b", Values: []float32{0, 1}},
//	})
//	fmt.Println(res.UpsertedCount) // 2
//
//	out, _ := m.Query(ctx, vecspace.QuerySpec{
//	    Namespace: "ns1",
//	    Values:    []float32{1, 0},
//	    TopK:      1,
//	})
//	fmt.Println(out.Matches[0].ID) // a
//
// # Scoring
//
// The dense metric and the hybrid weight are per-namespace configuration
// (WithMetric, WithHybridAlpha, WithNamespaceConfig):
//
//   - cosine (default): dot(q, r) / (|q| |r|)
//   - dotproduct: dot(q, r)
//   - euclidean: 1 / (1 + |q - r|²)
//
// Sparse scores are the inner product over shared indices. A query carrying
// both components scores alpha*dense + (1-alpha)*sparse.
//
// # Filters
//
// Filters are metadata documents:
//
//	{"genre": "drama", "year": {"$gte": 2020}, "$or": [{"a": 1}, {"b": {"$in": [2, 3]}}]}
//
// Missing fields and type mismatches never match. A malformed filter never
// fails a request; it matches nothing.
//
// # Concurrency
//
// Each namespace has its own readers-writer lock. Queries, fetches and stats
// on a namespace run in parallel; mutations are applied exclusively and are
// never observed half done. Namespaces never contend with each other.
//
// # Empty Namespaces
//
// A namespace whose last record is deleted is removed, together with its
// established dimension, unless WithKeepEmptyNamespaces is set.
//
// # Change Log and Snapshots
//
// WithChangeLog appends every mutation to a change log (see package
// changelog); Manager.Apply replays one. Package snapshot saves and restores
// whole managers through a blobstore.Store.
package vecspace
