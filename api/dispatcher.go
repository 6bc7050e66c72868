package api

import (
	"context"
	"fmt"

	"github.com/hupe1980/vecspace"
)

// Dispatcher maps wire requests onto a Manager.
type Dispatcher struct {
	mgr *vecspace.Manager
}

// NewDispatcher creates a Dispatcher for mgr.
func NewDispatcher(mgr *vecspace.Manager) *Dispatcher {
	return &Dispatcher{mgr: mgr}
}

// Upsert writes the vectors of req. Rejected vectors are reported in the
// response; the call fails only when every vector was rejected.
func (d *Dispatcher) Upsert(ctx context.Context, req UpsertRequest) (UpsertResponse, error) {
	records := make([]vecspace.Record, len(req.Vectors))
	for i, v := range req.Vectors {
		records[i] = toRecord(v)
	}

	res, err := d.mgr.Upsert(ctx, req.Namespace, records)
	if err != nil {
		return UpsertResponse{}, err
	}

	resp := UpsertResponse{UpsertedCount: res.UpsertedCount}
	for _, re := range res.Errors {
		resp.Errors = append(resp.Errors, RecordError{Index: re.Index, ID: re.ID, Message: re.Err.Error()})
	}
	if res.UpsertedCount == 0 && len(res.Errors) > 0 {
		return resp, res.Err()
	}
	return resp, nil
}

// Delete removes the selected vectors. Deleting from an unknown namespace
// succeeds.
func (d *Dispatcher) Delete(ctx context.Context, req DeleteRequest) (DeleteResponse, error) {
	_, err := d.mgr.Delete(ctx, req.Namespace, vecspace.Selector{
		IDs:       req.IDs,
		Filter:    req.Filter.Document(),
		DeleteAll: req.DeleteAll,
	})
	return DeleteResponse{}, err
}

// Fetch returns the requested vectors that exist.
func (d *Dispatcher) Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error) {
	records, err := d.mgr.Fetch(ctx, req.Namespace, req.IDs)
	if err != nil {
		return FetchResponse{}, err
	}
	resp := FetchResponse{
		Vectors:   make(map[string]Vector, len(records)),
		Namespace: req.Namespace,
	}
	for id, r := range records {
		resp.Vectors[id] = fromRecord(r)
	}
	return resp, nil
}

// Update applies a partial update to one vector.
func (d *Dispatcher) Update(ctx context.Context, req UpdateRequest) (UpdateResponse, error) {
	err := d.mgr.Update(ctx, req.Namespace, vecspace.UpdateRequest{
		ID:          req.ID,
		Values:      req.Values,
		Sparse:      toSparse(req.SparseValues),
		SetMetadata: req.SetMetadata.Document(),
	})
	return UpdateResponse{}, err
}

// Query answers req in either of its two forms.
func (d *Dispatcher) Query(ctx context.Context, req QueryRequest) (QueryResponse, error) {
	specs, err := QuerySpecs(req)
	if err != nil {
		return QueryResponse{}, err
	}

	results, err := d.mgr.QueryBatch(ctx, specs)
	if err != nil {
		return QueryResponse{}, err
	}

	resp := QueryResponse{Namespace: req.Namespace}
	if len(req.Queries) == 0 {
		resp.Matches = fromMatches(results[0].Matches)
		return resp, nil
	}
	resp.Matches = []ScoredVector{}
	resp.Results = make([]SingleQueryResults, len(results))
	for i, r := range results {
		resp.Results[i] = SingleQueryResults{
			Matches:   fromMatches(r.Matches),
			Namespace: r.Namespace,
		}
	}
	return resp, nil
}

// DescribeIndexStats returns the per-namespace record counts.
func (d *Dispatcher) DescribeIndexStats(ctx context.Context, req DescribeIndexStatsRequest) (DescribeIndexStatsResponse, error) {
	return d.mgr.DescribeIndexStats(ctx, req.Filter.Document())
}

// List returns one page of ids of a namespace.
func (d *Dispatcher) List(ctx context.Context, req ListRequest) (ListResponse, error) {
	res, err := d.mgr.ListIDs(ctx, req.Namespace, req.Prefix, req.Limit, req.PaginationToken)
	if err != nil {
		return ListResponse{}, err
	}
	resp := ListResponse{
		Vectors:   make([]ListItem, len(res.IDs)),
		Namespace: req.Namespace,
	}
	for i, id := range res.IDs {
		resp.Vectors[i] = ListItem{ID: id}
	}
	if res.Next != "" {
		resp.Pagination = &Pagination{Next: res.Next}
	}
	return resp, nil
}

// QuerySpecs turns a query request into one QuerySpec per query vector.
// The multi-query form and the single-query form are mutually exclusive.
func QuerySpecs(req QueryRequest) ([]vecspace.QuerySpec, error) {
	single := len(req.Vector) > 0 || req.SparseVector != nil || req.ID != ""
	switch {
	case len(req.Queries) > 0 && single:
		return nil, fmt.Errorf("%w: queries cannot be combined with vector, sparseVector or id", vecspace.ErrInvalidVector)
	case len(req.Queries) > 0:
		return multiQuery(req), nil
	case single:
		return []vecspace.QuerySpec{singleQuery(req)}, nil
	default:
		return nil, fmt.Errorf("%w: one of queries, vector, sparseVector or id is required", vecspace.ErrInvalidVector)
	}
}

func singleQuery(req QueryRequest) vecspace.QuerySpec {
	return vecspace.QuerySpec{
		Namespace:       req.Namespace,
		Values:          req.Vector,
		Sparse:          toSparse(req.SparseVector),
		ID:              req.ID,
		TopK:            req.TopK,
		Filter:          req.Filter.Document(),
		IncludeValues:   req.IncludeValues,
		IncludeMetadata: req.IncludeMetadata,
	}
}

func multiQuery(req QueryRequest) []vecspace.QuerySpec {
	specs := make([]vecspace.QuerySpec, len(req.Queries))
	for i, q := range req.Queries {
		spec := vecspace.QuerySpec{
			Namespace:       req.Namespace,
			Values:          q.Values,
			Sparse:          toSparse(q.SparseValues),
			TopK:            req.TopK,
			Filter:          req.Filter.Document(),
			IncludeValues:   req.IncludeValues,
			IncludeMetadata: req.IncludeMetadata,
		}
		if q.TopK != nil {
			spec.TopK = *q.TopK
		}
		if q.Namespace != nil {
			spec.Namespace = *q.Namespace
		}
		if q.Filter != nil {
			spec.Filter = q.Filter.Document()
		}
		specs[i] = spec
	}
	return specs
}
