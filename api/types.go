package api

import "github.com/hupe1980/vecspace"

// SparseValues is the wire form of a sparse vector.
type SparseValues struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

// Vector is the wire form of a stored record.
type Vector struct {
	ID           string        `json:"id"`
	Values       []float32     `json:"values,omitempty"`
	SparseValues *SparseValues `json:"sparseValues,omitempty"`
	Metadata     Metadata      `json:"metadata,omitempty"`
}

// ScoredVector is one query match.
type ScoredVector struct {
	ID           string        `json:"id"`
	Score        float32       `json:"score"`
	Values       []float32     `json:"values,omitempty"`
	SparseValues *SparseValues `json:"sparseValues,omitempty"`
	Metadata     Metadata      `json:"metadata,omitempty"`
}

// UpsertRequest writes Vectors into Namespace.
type UpsertRequest struct {
	Vectors   []Vector `json:"vectors"`
	Namespace string   `json:"namespace,omitempty"`
}

// RecordError reports a rejected vector of an upsert batch.
type RecordError struct {
	Index   int    `json:"index"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

// UpsertResponse reports how many vectors were written and which were
// rejected.
type UpsertResponse struct {
	UpsertedCount int           `json:"upsertedCount"`
	Errors        []RecordError `json:"errors,omitempty"`
}

// DeleteRequest removes vectors by IDs, by Filter or all of them.
type DeleteRequest struct {
	IDs       []string `json:"ids,omitempty"`
	DeleteAll bool     `json:"deleteAll,omitempty"`
	Namespace string   `json:"namespace,omitempty"`
	Filter    Metadata `json:"filter,omitempty"`
}

// DeleteResponse is empty on success.
type DeleteResponse struct{}

// FetchRequest looks up vectors by id.
type FetchRequest struct {
	IDs       []string `json:"ids"`
	Namespace string   `json:"namespace,omitempty"`
}

// FetchResponse maps the found ids to their vectors.
type FetchResponse struct {
	Vectors   map[string]Vector `json:"vectors"`
	Namespace string            `json:"namespace"`
}

// QueryVector is one entry of the multi-query form. Unset fields inherit the
// request-level values.
type QueryVector struct {
	Values       []float32     `json:"values,omitempty"`
	SparseValues *SparseValues `json:"sparseValues,omitempty"`
	TopK         *int          `json:"topK,omitempty"`
	Namespace    *string       `json:"namespace,omitempty"`
	Filter       Metadata      `json:"filter,omitempty"`
}

// QueryRequest accepts two forms: a list of Queries, or a single query given
// by Vector, SparseVector or ID.
type QueryRequest struct {
	Namespace       string   `json:"namespace,omitempty"`
	TopK            int      `json:"topK"`
	Filter          Metadata `json:"filter,omitempty"`
	IncludeValues   bool     `json:"includeValues,omitempty"`
	IncludeMetadata bool     `json:"includeMetadata,omitempty"`

	Queries []QueryVector `json:"queries,omitempty"`

	Vector       []float32     `json:"vector,omitempty"`
	SparseVector *SparseValues `json:"sparseVector,omitempty"`
	ID           string        `json:"id,omitempty"`
}

// SingleQueryResults holds the matches of one entry of Queries.
type SingleQueryResults struct {
	Matches   []ScoredVector `json:"matches"`
	Namespace string         `json:"namespace"`
}

// QueryResponse carries Results for the multi-query form and Matches for the
// single-query form. Matches is always present, empty for the multi-query
// form.
type QueryResponse struct {
	Results   []SingleQueryResults `json:"results,omitempty"`
	Matches   []ScoredVector       `json:"matches"`
	Namespace string               `json:"namespace"`
}

// UpdateRequest partially updates one vector.
type UpdateRequest struct {
	ID           string        `json:"id"`
	Values       []float32     `json:"values,omitempty"`
	SparseValues *SparseValues `json:"sparseValues,omitempty"`
	SetMetadata  Metadata      `json:"setMetadata,omitempty"`
	Namespace    string        `json:"namespace,omitempty"`
}

// UpdateResponse is empty on success.
type UpdateResponse struct{}

// DescribeIndexStatsRequest optionally restricts the counts to vectors
// matching Filter.
type DescribeIndexStatsRequest struct {
	Filter Metadata `json:"filter,omitempty"`
}

// DescribeIndexStatsResponse is vecspace.IndexStats on the wire.
type DescribeIndexStatsResponse = vecspace.IndexStats

// ListRequest pages through the ids of a namespace.
type ListRequest struct {
	Namespace       string `json:"namespace,omitempty"`
	Prefix          string `json:"prefix,omitempty"`
	Limit           int    `json:"limit,omitempty"`
	PaginationToken string `json:"paginationToken,omitempty"`
}

// ListItem is one listed id.
type ListItem struct {
	ID string `json:"id"`
}

// Pagination carries the token of the next page.
type Pagination struct {
	Next string `json:"next,omitempty"`
}

// ListResponse is one page of ids.
type ListResponse struct {
	Vectors    []ListItem  `json:"vectors"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Namespace  string      `json:"namespace"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func toSparse(s *SparseValues) *vecspace.SparseValues {
	if s == nil {
		return nil
	}
	return &vecspace.SparseValues{Indices: s.Indices, Values: s.Values}
}

func fromSparse(s *vecspace.SparseValues) *SparseValues {
	if s == nil {
		return nil
	}
	return &SparseValues{Indices: s.Indices, Values: s.Values}
}

func toRecord(v Vector) vecspace.Record {
	return vecspace.Record{
		ID:       v.ID,
		Values:   v.Values,
		Sparse:   toSparse(v.SparseValues),
		Metadata: v.Metadata.Document(),
	}
}

func fromRecord(r vecspace.Record) Vector {
	return Vector{
		ID:           r.ID,
		Values:       r.Values,
		SparseValues: fromSparse(r.Sparse),
		Metadata:     Metadata(r.Metadata),
	}
}

func fromMatches(matches []vecspace.Match) []ScoredVector {
	out := make([]ScoredVector, len(matches))
	for i, m := range matches {
		out[i] = ScoredVector{
			ID:           m.ID,
			Score:        m.Score,
			Values:       m.Values,
			SparseValues: fromSparse(m.Sparse),
			Metadata:     Metadata(m.Metadata),
		}
	}
	return out
}
