// Package api exposes a vecspace.Manager over HTTP.
//
// Requests and responses are JSON with lowerCamelCase field names. A
// Dispatcher maps the wire types onto the Manager; Handler routes HTTP
// requests to it and renders failures as
//
//	{"code": 3, "message": "..."}
//
// where code follows the gRPC status codes. Invalid input maps to 400,
// updates of unknown ids to 404 and a closed manager to 503.
//
// Query requests come in two forms. The single form names one query vector
// through vector, sparseVector or id and answers with a flat matches list:
//
//	{"namespace": "ns1", "topK": 3, "vector": [1, 0]}
//
// The multi form lists queries that inherit unset fields from the request
// and answers with one result per query, in order:
//
//	{"topK": 3, "queries": [{"values": [1, 0]}, {"values": [0, 1], "topK": 1}]}
package api
