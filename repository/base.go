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
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/tomoncle/quarry/database"
	"github.com/tomoncle/quarry/query"
	"github.com/tomoncle/quarry/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
	"github.com/uptrace/bun/schema"
)

var errNoDatabase = errors.New("database not initialized")

type bunRepository[T any] struct {
	db   bun.IDB
	opts options
}

// NewRepository returns a generic repository for the bun model T backed by
// db, which may be a *bun.DB or a transaction.
func NewRepository[T any](db bun.IDB, opts ...Option) Repository[T] {
	r := &bunRepository[T]{db: db, opts: options{compiler: query.NewCompiler()}}
	for _, opt := range opts {
		opt(&r.opts)
	}
	if r.opts.entity == "" {
		r.opts.entity = reflect.TypeOf((*T)(nil)).Elem().Name()
	}
	return r
}

func (r *bunRepository[T]) WithTx(db bun.IDB) Repository[T] {
	c := *r
	c.db = db
	return &c
}

func (r *bunRepository[T]) Entity() string { return r.opts.entity }

func (r *bunRepository[T]) Dialect() schema.Dialect { return r.db.Dialect() }

func (r *bunRepository[T]) NewSelect() *bun.SelectQuery { return r.db.NewSelect().Model((*T)(nil)) }

func (r *bunRepository[T]) NewInsert() *bun.InsertQuery { return r.db.NewInsert() }

func (r *bunRepository[T]) NewUpdate() *bun.UpdateQuery { return r.db.NewUpdate() }

func (r *bunRepository[T]) NewDelete() *bun.DeleteQuery { return r.db.NewDelete() }

func (r *bunRepository[T]) schema(db bun.IDB) *modelSchema {
	return schemaOf(db, reflect.TypeOf((*T)(nil)).Elem())
}

func (r *bunRepository[T]) logger() database.Logger {
	if r.opts.logger != nil {
		return r.opts.logger
	}
	return database.GetLogger()
}

// execute runs fn against the bound handle and turns its outcome into an
// envelope. Errors and panics never escape.
func execute[T, R any](ctx context.Context, r *bunRepository[T], verb string, code int, fn func(context.Context, bun.IDB) (R, error)) (env types.Envelope[R]) {
	defer func() {
		if p := recover(); p != nil {
			env = failure[T, R](r, verb, fmt.Errorf("panic: %v", p))
		}
	}()
	if r.db == nil {
		return failure[T, R](r, verb, errNoDatabase)
	}
	out, err := fn(ctx, r.db)
	if err != nil {
		return failure[T, R](r, verb, err)
	}
	return types.Success(out, types.WithCode(code))
}

func failure[T, R any](r *bunRepository[T], verb string, err error) types.Envelope[R] {
	f := classify(verb, r.opts.entity, err)
	fields := []interface{}{"entity", r.opts.entity, "fault", f.Kind.Name(), "error", f.Err}
	switch f.Kind {
	case NotFound, InvalidIdentifier:
		r.logger().Warn(f.Error(), fields...)
	default:
		r.logger().Error(f.Error(), fields...)
	}
	return types.Failure[R](f, types.WithSymbol(f.Kind.Symbol()), types.WithMessage(f.Error()))
}

func (r *bunRepository[T]) GetOne(ctx context.Context, filter query.Filter, include query.Include) types.Envelope[*T] {
	return execute(ctx, r, "getting", http.StatusOK, func(ctx context.Context, db bun.IDB) (*T, error) {
		compiled, err := r.opts.compiler.Compile(query.Spec{Filter: filter, Include: include})
		if err != nil {
			return nil, err
		}
		entity := new(T)
		q, err := r.apply(db, db.NewSelect().Model(entity), compiled)
		if err != nil {
			return nil, err
		}
		if err := q.Limit(1).Scan(ctx); err != nil {
			return nil, err
		}
		return entity, nil
	})
}

func (r *bunRepository[T]) Get(ctx context.Context, spec query.Spec) types.Envelope[[]*T] {
	return execute(ctx, r, "getting", http.StatusOK, func(ctx context.Context, db bun.IDB) ([]*T, error) {
		compiled, err := r.opts.compiler.Compile(spec)
		if err != nil {
			return nil, err
		}
		entities := make([]*T, 0)
		q, err := r.apply(db, db.NewSelect().Model(&entities), compiled)
		if err != nil {
			return nil, err
		}
		if err := q.Scan(ctx); err != nil {
			return nil, err
		}
		return entities, nil
	})
}

func (r *bunRepository[T]) Count(ctx context.Context, filter query.Filter) types.Envelope[int] {
	return execute(ctx, r, "counting", http.StatusOK, func(ctx context.Context, db bun.IDB) (int, error) {
		q, err := r.applyWhere(db, db.NewSelect().Model((*T)(nil)), r.opts.compiler.CompileWhere(filter))
		if err != nil {
			return 0, err
		}
		return q.Count(ctx)
	})
}

func (r *bunRepository[T]) Page(ctx context.Context, spec query.Spec, page *types.PageRequest) types.Envelope[*types.Pagination[T]] {
	if page == nil {
		page = types.NewPageRequest(1, types.DefaultPageSize)
	}
	return execute(ctx, r, "getting", http.StatusOK, func(ctx context.Context, db bun.IDB) (*types.Pagination[T], error) {
		compiled, err := r.opts.compiler.Compile(spec)
		if err != nil {
			return nil, err
		}
		pagination := types.NewDefaultPagination[T](page.GetPage(), page.GetPageSize())
		counter, err := r.applyWhere(db, db.NewSelect().Model((*T)(nil)), compiled.Where)
		if err != nil {
			return nil, err
		}
		total, err := counter.Count(ctx)
		if err != nil || total == 0 {
			return pagination, err
		}
		entities := make([]*T, 0)
		q, err := r.apply(db, db.NewSelect().Model(&entities), compiled)
		if err != nil {
			return nil, err
		}
		err = q.Offset(page.GetOffset()).Limit(page.GetPageSize()).Scan(ctx)
		if err != nil {
			return nil, err
		}
		pagination.Total = total
		pagination.Items = entities
		return pagination, nil
	})
}

func (r *bunRepository[T]) Create(ctx context.Context, entity *T) types.Envelope[*T] {
	return execute(ctx, r, "creating", http.StatusCreated, func(ctx context.Context, db bun.IDB) (*T, error) {
		if entity == nil {
			return nil, fmt.Errorf("%w: nil entity", query.ErrInvalidSpec)
		}
		if _, err := db.NewInsert().Model(entity).Exec(ctx); err != nil {
			return nil, err
		}
		return entity, nil
	})
}

func (r *bunRepository[T]) CreateMany(ctx context.Context, entity ...*T) types.Envelope[[]*T] {
	return execute(ctx, r, "creating", http.StatusCreated, func(ctx context.Context, db bun.IDB) ([]*T, error) {
		entities, err := nonNil(entity)
		if err != nil || len(entities) == 0 {
			return entities, err
		}
		if _, err := db.NewInsert().Model(&entities).Exec(ctx); err != nil {
			return nil, err
		}
		return entities, nil
	})
}

func (r *bunRepository[T]) Upsert(ctx context.Context, fields []string, conflictKeys []string, entity ...*T) types.Envelope[[]*T] {
	return execute(ctx, r, "saving", http.StatusCreated, func(ctx context.Context, db bun.IDB) ([]*T, error) {
		entities, err := nonNil(entity)
		if err != nil || len(entities) == 0 {
			return entities, err
		}
		if err := r.multipleUpsert(ctx, db, fields, conflictKeys, entities); err != nil {
			return nil, err
		}
		return entities, nil
	})
}

func (r *bunRepository[T]) Update(ctx context.Context, id any, data *T, columns ...string) types.Envelope[*T] {
	return execute(ctx, r, "updating", http.StatusNoContent, func(ctx context.Context, db bun.IDB) (*T, error) {
		key, value, err := r.lookup(db, id)
		if err != nil {
			return nil, err
		}
		if data == nil {
			return nil, fmt.Errorf("%w: nil entity", query.ErrInvalidSpec)
		}
		q := db.NewUpdate().Model(data).Where("? = ?", bun.Ident(key), value)
		if len(columns) > 0 {
			cols, err := r.columns(db, columns)
			if err != nil {
				return nil, err
			}
			q = q.Column(cols...)
		} else {
			q = q.OmitZero()
		}
		res, err := q.Exec(ctx)
		if err != nil {
			return nil, err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			// MySQL reports unchanged rows as unaffected.
			exists, err := db.NewSelect().Model((*T)(nil)).Where(aliasRef+" = ?", bun.Ident(key), value).Exists(ctx)
			if err != nil {
				return nil, err
			}
			if !exists {
				return nil, sql.ErrNoRows
			}
		}
		updated := new(T)
		err = db.NewSelect().Model(updated).Where(aliasRef+" = ?", bun.Ident(key), value).Limit(1).Scan(ctx)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// the update rewrote the lookup key itself
			return data, nil
		case err != nil:
			return nil, err
		}
		return updated, nil
	})
}

func (r *bunRepository[T]) Delete(ctx context.Context, id any) types.Envelope[*T] {
	return execute(ctx, r, "deleting", http.StatusOK, func(ctx context.Context, db bun.IDB) (*T, error) {
		key, value, err := r.lookup(db, id)
		if err != nil {
			return nil, err
		}
		entity := new(T)
		err = db.NewSelect().Model(entity).Where(aliasRef+" = ?", bun.Ident(key), value).Limit(1).Scan(ctx)
		if err != nil {
			return nil, err
		}
		_, err = db.NewDelete().Model((*T)(nil)).Where("? = ?", bun.Ident(key), value).Exec(ctx)
		if err != nil {
			return nil, err
		}
		return entity, nil
	})
}

// lookup resolves id into a column and value of T.
func (r *bunRepository[T]) lookup(db bun.IDB, id any) (string, any, error) {
	l, err := query.Resolve(id)
	if err != nil {
		return "", nil, err
	}
	s := r.schema(db)
	col, err := s.column(l.Key)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s is not a column of %s", query.ErrInvalidIdentifier, l.Key, r.opts.entity)
	}
	return col, l.Value, nil
}

func (r *bunRepository[T]) columns(db bun.IDB, fields []string) ([]string, error) {
	s := r.schema(db)
	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		col, err := s.column(f)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func nonNil[T any](entity []*T) ([]*T, error) {
	entities := make([]*T, 0, len(entity))
	for _, e := range entity {
		if e == nil {
			return nil, fmt.Errorf("%w: nil entity", query.ErrInvalidSpec)
		}
		entities = append(entities, e)
	}
	return entities, nil
}

func (r *bunRepository[T]) multipleUpsert(ctx context.Context, db bun.IDB, fields []string, conflictKeys []string, entities []*T) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: upsert fields cannot be empty", query.ErrInvalidSpec)
	}
	cols, err := r.columns(db, fields)
	if err != nil {
		return err
	}
	features := db.Dialect().Features()
	switch {
	case features.Has(feature.InsertOnConflict):
		keys := conflictKeys
		if len(keys) == 0 {
			keys = []string{r.schema(db).pk}
		}
		keyCols, err := r.columns(db, keys)
		if err != nil {
			return err
		}
		return r.upsertOnConflict(ctx, db, cols, keyCols, entities)
	case features.Has(feature.InsertOnDuplicateKey):
		return r.upsertOnDuplicateKey(ctx, db, cols, entities)
	default:
		return r.upsertFallback(ctx, db, entities)
	}
}

// upsertOnConflict serves PostgreSQL and SQLite.
func (r *bunRepository[T]) upsertOnConflict(ctx context.Context, db bun.IDB, cols, keyCols []string, entities []*T) error {
	keyArgs := make([]any, 0, len(keyCols))
	for _, k := range keyCols {
		keyArgs = append(keyArgs, bun.Ident(k))
	}
	q := db.NewInsert().
		Model(&entities).
		On("CONFLICT ("+placeholders(len(keyCols))+") DO UPDATE", keyArgs...)
	for _, c := range cols {
		q = q.Set("? = EXCLUDED.?", bun.Ident(c), bun.Ident(c))
	}
	_, err := q.Exec(ctx)
	return err
}

// upsertOnDuplicateKey serves MySQL.
func (r *bunRepository[T]) upsertOnDuplicateKey(ctx context.Context, db bun.IDB, cols []string, entities []*T) error {
	parts := make([]string, 0, len(cols))
	args := make([]any, 0, 2*len(cols))
	for _, c := range cols {
		parts = append(parts, "? = VALUES(?)")
		args = append(args, bun.Ident(c), bun.Ident(c))
	}
	_, err := db.NewInsert().
		Model(&entities).
		On("DUPLICATE KEY UPDATE "+strings.Join(parts, ", "), args...).
		Exec(ctx)
	return err
}

func (r *bunRepository[T]) upsertFallback(ctx context.Context, db bun.IDB, entities []*T) error {
	for _, entity := range entities {
		_, err := db.NewInsert().Model(entity).Exec(ctx)
		if err != nil {
			_, updateErr := db.NewUpdate().Model(entity).WherePK().Exec(ctx)
			if updateErr != nil {
				return fmt.Errorf("upsert failed for entity: insert error: %v, update error: %w", err, updateErr)
			}
		}
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
