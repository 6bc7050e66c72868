package searcher

import (
	"cmp"
	"slices"
	"sync"
)

// Candidate is a scored record ordinal.
type Candidate struct {
	Ordinal uint32  // Ordinal is the namespace-local slot of the record.
	ID      string  // ID breaks score ties (ascending).
	Score   float32 // Score is the similarity; higher is better.
}

// Better reports whether a ranks before b: higher score first, then ascending id.
// NaN scores rank after every other score.
func Better(a, b Candidate) bool {
	if c := cmp.Compare(a.Score, b.Score); c != 0 {
		return c > 0
	}
	return a.ID < b.ID
}

// TopK keeps the k best candidates seen so far.
//
// It is a bounded heap whose root is the worst retained candidate, so a new
// candidate is admitted only if it beats the root. Value-based storage keeps
// pushes allocation free once the heap is full.
//
// TopK is NOT thread-safe.
type TopK struct {
	k     int
	items []Candidate
}

// NewTopK creates a collector for k candidates.
func NewTopK(k int) *TopK {
	t := &TopK{}
	t.Reset(k)
	return t
}

// Reset clears the collector and sets a new bound.
func (t *TopK) Reset(k int) {
	t.k = max(k, 0)
	if cap(t.items) < t.k {
		t.items = make([]Candidate, 0, min(t.k, 1024))
	}
	t.items = t.items[:0]
}

// Len returns the number of retained candidates.
func (t *TopK) Len() int { return len(t.items) }

// Push offers a candidate. It reports whether the candidate was retained.
func (t *TopK) Push(c Candidate) bool {
	if t.k == 0 {
		return false
	}
	if len(t.items) < t.k {
		t.items = append(t.items, c)
		t.siftUp(len(t.items) - 1)
		return true
	}
	if !Better(c, t.items[0]) {
		return false
	}
	t.items[0] = c
	t.siftDown(0)
	return true
}

// Sorted returns the retained candidates best first. The collector is left
// unchanged.
func (t *TopK) Sorted() []Candidate {
	out := slices.Clone(t.items)
	slices.SortFunc(out, func(a, b Candidate) int {
		switch {
		case Better(a, b):
			return -1
		case Better(b, a):
			return 1
		default:
			return 0
		}
	})
	return out
}

// less orders the heap with the worst candidate at the root.
func (t *TopK) less(i, j int) bool {
	return Better(t.items[j], t.items[i])
}

func (t *TopK) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !t.less(i, parent) {
			break
		}
		t.items[i], t.items[parent] = t.items[parent], t.items[i]
		i = parent
	}
}

func (t *TopK) siftDown(i int) {
	n := len(t.items)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		child := left
		if right := left + 1; right < n && t.less(right, left) {
			child = right
		}
		if !t.less(child, i) {
			break
		}
		t.items[i], t.items[child] = t.items[child], t.items[i]
		i = child
	}
}

var topKPool = sync.Pool{
	New: func() any {
		return NewTopK(0)
	},
}

// AcquireTopK retrieves a collector for k candidates from the pool.
func AcquireTopK(k int) *TopK {
	t := topKPool.Get().(*TopK)
	t.Reset(k)
	return t
}

// ReleaseTopK returns t to the pool.
func ReleaseTopK(t *TopK) {
	t.Reset(0)
	topKPool.Put(t)
}
