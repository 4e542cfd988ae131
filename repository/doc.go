// Package repository provides a generic, envelope-returning repository built
// on Bun. Filters, orderings and includes arrive as query specs and are
// compiled into Bun select queries. Failures are classified into a small
// fault taxonomy; RunInTx and Operation give an all-or-nothing scope for
// multi-step writes.
package repository
