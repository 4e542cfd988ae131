// Package query holds the filter, order and include specification DSL, the
// compiler that turns a specification into a backend-ready Compiled query,
// and the identifier resolution rule used by update and delete lookups.
//
// Everything in this package is a pure function over immutable values and
// is safe for concurrent use.
package query
