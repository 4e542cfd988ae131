// Package quarry is a data-access core for CRUD backends. Callers describe
// filters, sort orders and relation includes as query specs; quarry compiles
// them into Bun queries and returns every outcome as a types.Envelope.
//
// Service is the entry point bound to the global database configured with
// database.InitDB. The query, repository and database packages can also be
// used on their own.
package quarry
