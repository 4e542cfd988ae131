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

package quarry

import (
	"context"

	"github.com/tomoncle/quarry/database"
	"github.com/tomoncle/quarry/query"
	"github.com/tomoncle/quarry/repository"
	"github.com/tomoncle/quarry/types"
	"github.com/uptrace/bun"
)

type Service[T any] interface {
	// Get returns a single entity by identifier: a scalar primary key or a
	// partial object such as query.By("email", "a@b.c").
	Get(ctx context.Context, id any) types.Envelope[*T]

	// Find returns the first entity matching filter, with relations loaded.
	Find(ctx context.Context, filter query.Filter, include query.Include) types.Envelope[*T]

	// All returns all entities.
	All(ctx context.Context) types.Envelope[[]*T]

	// List returns the entities matching spec.
	List(ctx context.Context, spec query.Spec) types.Envelope[[]*T]

	// Count returns the number of entities matching filter.
	Count(ctx context.Context, filter query.Filter) types.Envelope[int]

	// Page returns one page of the entities matching spec.
	Page(ctx context.Context, spec query.Spec, page *types.PageRequest) types.Envelope[*types.Pagination[T]]

	// Save inserts one or more new entities.
	Save(ctx context.Context, model ...*T) types.Envelope[[]*T]

	// SaveOrUpdate upserts entities based on fields and conflict keys.
	SaveOrUpdate(ctx context.Context, fields []string, conflictKeys []string, model ...*T) types.Envelope[[]*T]

	// Update modifies the entity matched by id.
	Update(ctx context.Context, id any, model *T, columns ...string) types.Envelope[*T]

	// Delete removes the entity matched by id and returns it.
	Delete(ctx context.Context, id any) types.Envelope[*T]

	// WithTx returns a service bound to tx.
	WithTx(tx bun.IDB) Service[T]

	// Transaction runs fn in one transaction with a service bound to it.
	// Any error or panic in fn rolls every write back.
	Transaction(ctx context.Context, fn func(ctx context.Context, svc Service[T]) error) error

	// SelectBuilder returns a Bun select query builder for the entity.
	SelectBuilder() *bun.SelectQuery

	// InsertBuilder returns a Bun insert query builder for the entity.
	InsertBuilder() *bun.InsertQuery

	// UpdateBuilder returns a Bun update query builder for the entity.
	UpdateBuilder() *bun.UpdateQuery

	// DeleteBuilder returns a Bun delete query builder for the entity.
	DeleteBuilder() *bun.DeleteQuery
}

type baseServiceImpl[T any] struct {
	db   bun.IDB
	opts []repository.Option
}

// NewService returns a default Service implementation using the generic
// repository backed by the global database connection. The connection is
// looked up on every call, so the service survives InitDB and CloseDB.
func NewService[T any](opts ...repository.Option) Service[T] {
	return &baseServiceImpl[T]{opts: opts}
}

// NewServiceWithDB returns a Service bound to db.
func NewServiceWithDB[T any](db bun.IDB, opts ...repository.Option) Service[T] {
	return &baseServiceImpl[T]{db: db, opts: opts}
}

func (s *baseServiceImpl[T]) handle() bun.IDB {
	if s.db != nil {
		return s.db
	}
	if db := database.GetDB(); db != nil {
		return db
	}
	return nil
}

func (s *baseServiceImpl[T]) baseRepo() repository.Repository[T] {
	return repository.NewRepository[T](s.handle(), s.opts...)
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, id any) types.Envelope[*T] {
	repo := s.baseRepo()
	lookup, err := query.Resolve(id)
	if err != nil {
		fault := &repository.Fault{Kind: repository.InvalidIdentifier, Verb: "getting", Entity: repo.Entity(), Err: err}
		return types.Failure[*T](fault, types.WithSymbol(fault.Kind.Symbol()))
	}
	return repo.GetOne(ctx, query.NewFilter().Eq(lookup.Key, lookup.Value), query.Include{})
}

func (s *baseServiceImpl[T]) Find(ctx context.Context, filter query.Filter, include query.Include) types.Envelope[*T] {
	return s.baseRepo().GetOne(ctx, filter, include)
}

func (s *baseServiceImpl[T]) All(ctx context.Context) types.Envelope[[]*T] {
	return s.baseRepo().Get(ctx, query.Spec{})
}

func (s *baseServiceImpl[T]) List(ctx context.Context, spec query.Spec) types.Envelope[[]*T] {
	return s.baseRepo().Get(ctx, spec)
}

func (s *baseServiceImpl[T]) Count(ctx context.Context, filter query.Filter) types.Envelope[int] {
	return s.baseRepo().Count(ctx, filter)
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, spec query.Spec, page *types.PageRequest) types.Envelope[*types.Pagination[T]] {
	return s.baseRepo().Page(ctx, spec, page)
}

func (s *baseServiceImpl[T]) Save(ctx context.Context, model ...*T) types.Envelope[[]*T] {
	return s.baseRepo().CreateMany(ctx, model...)
}

func (s *baseServiceImpl[T]) SaveOrUpdate(ctx context.Context, fields []string, conflictKeys []string, model ...*T) types.Envelope[[]*T] {
	return s.baseRepo().Upsert(ctx, fields, conflictKeys, model...)
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, id any, model *T, columns ...string) types.Envelope[*T] {
	return s.baseRepo().Update(ctx, id, model, columns...)
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, id any) types.Envelope[*T] {
	return s.baseRepo().Delete(ctx, id)
}

func (s *baseServiceImpl[T]) WithTx(tx bun.IDB) Service[T] {
	return &baseServiceImpl[T]{db: tx, opts: s.opts}
}

func (s *baseServiceImpl[T]) Transaction(ctx context.Context, fn func(ctx context.Context, svc Service[T]) error) error {
	return repository.RunInTx(ctx, s.handle(), func(ctx context.Context, tx bun.IDB) error {
		return fn(ctx, s.WithTx(tx))
	})
}

func (s *baseServiceImpl[T]) SelectBuilder() *bun.SelectQuery {
	return s.baseRepo().NewSelect()
}

func (s *baseServiceImpl[T]) InsertBuilder() *bun.InsertQuery {
	return s.baseRepo().NewInsert()
}

func (s *baseServiceImpl[T]) UpdateBuilder() *bun.UpdateQuery {
	return s.baseRepo().NewUpdate()
}

func (s *baseServiceImpl[T]) DeleteBuilder() *bun.DeleteQuery {
	return s.baseRepo().NewDelete()
}
