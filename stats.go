package vecspace

import (
	"context"

	"github.com/hupe1980/vecspace/metadata"
)

// NamespaceSummary describes one namespace.
type NamespaceSummary struct {
	VectorCount int `json:"vectorCount"`
}

// IndexStats summarizes the contents of a Manager.
type IndexStats struct {
	Namespaces map[string]NamespaceSummary `json:"namespaces"`
	// Dimension is the configured dimension, else the dimension shared by
	// all non-empty namespaces, else 0.
	Dimension int `json:"dimension"`
	// IndexFullness is total records / capacity, or 0 without a capacity.
	IndexFullness    float64 `json:"indexFullness"`
	TotalVectorCount int     `json:"totalVectorCount"`
}

// DescribeIndexStats reports per-namespace record counts and global totals.
//
// With a non-empty filter, counts are of matching records only and
// namespaces without matches are omitted. Namespaces are read one at a time,
// so the result may mix states of concurrent writes.
func (m *Manager) DescribeIndexStats(ctx context.Context, filter metadata.Document) (IndexStats, error) {
	if err := m.checkOpen(); err != nil {
		return IndexStats{}, err
	}

	f := metadata.Compile(filter)
	stats := IndexStats{Namespaces: map[string]NamespaceSummary{}}

	var (
		stored    int
		dim       int
		dimShared = true
	)
	for name, idx := range m.snapshotIndexes() {
		if err := ctx.Err(); err != nil {
			return IndexStats{}, err
		}

		n := idx.Len()
		stored += n
		if d := idx.Dimension(); n > 0 && d > 0 {
			switch {
			case dim == 0:
				dim = d
			case dim != d:
				dimShared = false
			}
		}

		count := n
		if f != nil {
			count = idx.Count(f)
			if count == 0 {
				continue
			}
		}
		stats.Namespaces[name] = NamespaceSummary{VectorCount: count}
		stats.TotalVectorCount += count
	}

	switch {
	case m.opts.defaults.Dimension > 0:
		stats.Dimension = m.opts.defaults.Dimension
	case dimShared:
		stats.Dimension = dim
	}
	if m.opts.capacity > 0 {
		stats.IndexFullness = float64(stored) / float64(m.opts.capacity)
	}
	return stats, nil
}
