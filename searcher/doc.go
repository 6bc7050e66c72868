// Package searcher provides the top-K selection used by namespace queries.
package searcher
