package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/hupe1980/vecspace"
)

// Code classifies failed requests. Values follow the gRPC status codes.
type Code int

const (
	CodeCanceled         Code = 1
	CodeUnknown          Code = 2
	CodeInvalidArgument  Code = 3
	CodeDeadlineExceeded Code = 4
	CodeNotFound         Code = 5
	CodeInternal         Code = 13
	CodeUnavailable      Code = 14
)

// errBadRequest marks undecodable request bodies and parameters.
var errBadRequest = errors.New("bad request")

// classify maps an engine error to a code and an HTTP status.
func classify(err error) (Code, int) {
	switch {
	case errors.Is(err, errBadRequest), vecspace.IsInvalidArgument(err):
		return CodeInvalidArgument, http.StatusBadRequest
	case errors.Is(err, vecspace.ErrNotFound):
		return CodeNotFound, http.StatusNotFound
	case errors.Is(err, vecspace.ErrClosed):
		return CodeUnavailable, http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return CodeDeadlineExceeded, http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return CodeCanceled, 499 // client closed request
	default:
		return CodeInternal, http.StatusInternalServerError
	}
}
