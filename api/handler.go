package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/hupe1980/vecspace"
)

// DefaultMaxBodyBytes bounds request bodies.
const DefaultMaxBodyBytes = 32 << 20

// HandlerOptions configures NewHandler.
type HandlerOptions struct {
	// MaxBodyBytes bounds request bodies. Default: DefaultMaxBodyBytes.
	MaxBodyBytes int64
	// Logger receives one record per request. Default: NoopLogger.
	Logger *vecspace.Logger
}

// Handler serves the REST rendering of the Dispatcher.
//
//	POST     /vectors/upsert
//	POST     /vectors/delete
//	GET      /vectors/fetch?ids=..&namespace=..
//	POST     /vectors/update
//	GET      /vectors/list?namespace=..&prefix=..&limit=..&paginationToken=..
//	POST     /query
//	GET|POST /describe_index_stats
type Handler struct {
	d      *Dispatcher
	mux    *http.ServeMux
	opts   HandlerOptions
	logger *vecspace.Logger
}

// NewHandler creates a Handler for d.
func NewHandler(d *Dispatcher, optFns ...func(o *HandlerOptions)) *Handler {
	opts := HandlerOptions{MaxBodyBytes: DefaultMaxBodyBytes}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = vecspace.NoopLogger()
	}

	h := &Handler{
		d:      d,
		mux:    http.NewServeMux(),
		opts:   opts,
		logger: opts.Logger,
	}

	h.mux.HandleFunc("POST /vectors/upsert", post(h, d.Upsert))
	h.mux.HandleFunc("POST /vectors/delete", post(h, d.Delete))
	h.mux.HandleFunc("POST /vectors/update", post(h, d.Update))
	h.mux.HandleFunc("POST /query", post(h, d.Query))
	h.mux.HandleFunc("POST /describe_index_stats", post(h, d.DescribeIndexStats))
	h.mux.HandleFunc("GET /describe_index_stats", func(w http.ResponseWriter, r *http.Request) {
		resp, err := d.DescribeIndexStats(r.Context(), DescribeIndexStatsRequest{})
		h.reply(w, r, resp, err)
	})
	h.mux.HandleFunc("GET /vectors/fetch", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		resp, err := d.Fetch(r.Context(), FetchRequest{
			IDs:       q["ids"],
			Namespace: q.Get("namespace"),
		})
		h.reply(w, r, resp, err)
	})
	h.mux.HandleFunc("GET /vectors/list", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		req := ListRequest{
			Namespace:       q.Get("namespace"),
			Prefix:          q.Get("prefix"),
			PaginationToken: q.Get("paginationToken"),
		}
		if s := q.Get("limit"); s != "" {
			limit, err := strconv.Atoi(s)
			if err != nil || limit < 0 {
				h.reply(w, r, nil, fmt.Errorf("%w: invalid limit %q", errBadRequest, s))
				return
			}
			req.Limit = limit
		}
		resp, err := d.List(r.Context(), req)
		h.reply(w, r, resp, err)
	})
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// post adapts a Dispatcher method to a JSON-in, JSON-out handler.
func post[Req, Resp any](h *Handler, fn func(context.Context, Req) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if err := h.decode(w, r, &req); err != nil {
			h.reply(w, r, nil, err)
			return
		}
		resp, err := fn(r.Context(), req)
		h.reply(w, r, resp, err)
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil // empty body
		}
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

// reply writes resp, or err as an ErrorResponse. Upsert responses that carry
// per-record errors are still successful.
func (h *Handler) reply(w http.ResponseWriter, r *http.Request, resp any, err error) {
	status := http.StatusOK
	body := resp
	if err != nil {
		var code Code
		code, status = classify(err)
		body = ErrorResponse{Code: code, Message: err.Error()}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		h.logger.ErrorContext(r.Context(), "encode response failed",
			"path", r.URL.Path,
			"error", encErr,
		)
	}

	if err != nil && status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
		return
	}
	h.logger.DebugContext(r.Context(), "request served",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
	)
}
