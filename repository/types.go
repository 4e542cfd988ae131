/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package repository

import (
	"context"

	"github.com/tomoncle/quarry/query"
	"github.com/tomoncle/quarry/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// QueryRepository defines the read operations driven by query specs.
type QueryRepository[T any] interface {
	// GetOne returns the first row matching filter. No match is a NotFound
	// failure.
	GetOne(ctx context.Context, filter query.Filter, include query.Include) types.Envelope[*T]

	// Get returns every row matching spec. No match is an empty list.
	Get(ctx context.Context, spec query.Spec) types.Envelope[[]*T]

	Count(ctx context.Context, filter query.Filter) types.Envelope[int]
}

// PageQueryRepository defines pagination over a query spec.
type PageQueryRepository[T any] interface {
	Page(ctx context.Context, spec query.Spec, page *types.PageRequest) types.Envelope[*types.Pagination[T]]
}

// CrudRepository defines the write operations. Update and Delete take an
// identifier that is resolved with query.Resolve before any I/O.
type CrudRepository[T any] interface {
	Create(ctx context.Context, entity *T) types.Envelope[*T]

	CreateMany(ctx context.Context, entity ...*T) types.Envelope[[]*T]

	// Upsert inserts entities, updating fields on a conflict over
	// conflictKeys (default "id").
	Upsert(ctx context.Context, fields []string, conflictKeys []string, entity ...*T) types.Envelope[[]*T]

	// Update writes data to the row matched by id. With columns only those
	// fields are written, otherwise zero values are skipped.
	Update(ctx context.Context, id any, data *T, columns ...string) types.Envelope[*T]

	// Delete removes the row matched by id and returns it.
	Delete(ctx context.Context, id any) types.Envelope[*T]
}

// Repository combines query, pagination and CRUD operations and exposes
// Bun query builders for advanced use cases. Every operation returns an
// envelope; none of them panics or returns a bare error.
type Repository[T any] interface {
	QueryRepository[T]
	PageQueryRepository[T]
	CrudRepository[T]

	// WithTx returns a repository bound to db, typically a transaction
	// handed out by RunInTx or Operation.
	WithTx(db bun.IDB) Repository[T]

	// Entity is the name used in messages, e.g. "User not found".
	Entity() string
	Dialect() schema.Dialect
	NewSelect() *bun.SelectQuery
	NewInsert() *bun.InsertQuery
	NewUpdate() *bun.UpdateQuery
	NewDelete() *bun.DeleteQuery
}
