package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sync"

	"github.com/hupe1980/vecspace/metadata"
	"github.com/hupe1980/vecspace/model"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float32 returns, as a float32, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// FillUniform fills dst with random values in range [0, 1).
// Locks only once per call (preferred over calling Float32 in a loop).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// UniformVectors generates random vectors with values in range [0, 1).
// Uses a single backing array for efficiency.
func (r *RNG) UniformVectors(num int, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)

	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions : (i+1)*dimensions]
		for j := range vec {
			vec[j] = r.rand.Float32()
		}
		vectors[i] = vec
	}

	return vectors
}

// UnitVectors generates L2-normalized random vectors (on the hypersphere).
// Uses Gaussian distribution for uniform distribution on the sphere.
func (r *RNG) UnitVectors(num int, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)

	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions : (i+1)*dimensions]
		var norm float64
		for j := range vec {
			v := r.rand.NormFloat64()
			vec[j] = float32(v)
			norm += v * v
		}

		if norm == 0 {
			norm = 1
		}

		inv := float32(1.0 / math.Sqrt(norm))
		for j := range vec {
			vec[j] *= inv
		}
		vectors[i] = vec
	}

	return vectors
}

// SparseVector generates a sparse vector with nnz distinct indices below
// vocab, in random order.
func (r *RNG) SparseVector(vocab, nnz int) *model.SparseValues {
	r.mu.Lock()
	defer r.mu.Unlock()

	nnz = min(nnz, vocab)
	perm := r.rand.Perm(vocab)[:nnz]

	sv := &model.SparseValues{
		Indices: make([]uint32, nnz),
		Values:  make([]float32, nnz),
	}
	for i, idx := range perm {
		sv.Indices[i] = uint32(idx)
		sv.Values[i] = r.rand.Float32()
	}
	return sv
}

// Records generates num dense records "rec-00000", "rec-00001", ... whose
// metadata carries a "bucket" (id modulo buckets), a "score" float and a
// "tags" list.
func (r *RNG) Records(num, dimensions, buckets int) []model.Record {
	vectors := r.UniformVectors(num, dimensions)

	r.mu.Lock()
	defer r.mu.Unlock()

	records := make([]model.Record, num)
	for i := range num {
		records[i] = model.Record{
			ID:     fmt.Sprintf("rec-%05d", i),
			Values: vectors[i],
			Metadata: metadata.Document{
				"bucket": metadata.Int(int64(i % max(buckets, 1))),
				"score":  metadata.Float(r.rand.Float64()),
				"tags":   metadata.Strings(fmt.Sprintf("t%d", i%3), fmt.Sprintf("u%d", i%5)),
			},
		}
	}
	return records
}

// SearchResult represents a ground-truth search result.
type SearchResult struct {
	ID    string
	Score float32
}

// ExactTopK ranks records by score (descending, ties by ascending id) and
// returns the first k. It is the brute-force reference for query tests.
func ExactTopK(records []model.Record, k int, score func(model.Record) (float32, bool)) []SearchResult {
	results := make([]SearchResult, 0, len(records))
	for _, rec := range records {
		if s, ok := score(rec); ok {
			results = append(results, SearchResult{ID: rec.ID, Score: s})
		}
	}

	slices.SortFunc(results, func(a, b SearchResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})

	if k < len(results) {
		results = results[:k]
	}
	return results
}
