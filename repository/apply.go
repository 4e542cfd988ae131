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
	"strings"

	"github.com/tomoncle/quarry/query"
	"github.com/uptrace/bun"
)

// clause is one bun WHERE fragment with its placeholder arguments.
type clause struct {
	expr string
	args []any
}

const aliasRef = "?TableAlias.?"

// apply translates a compiled query onto q: where, then order, then
// relations.
func (r *bunRepository[T]) apply(db bun.IDB, q *bun.SelectQuery, c query.Compiled) (*bun.SelectQuery, error) {
	q, err := r.applyWhere(db, q, c.Where)
	if err != nil {
		return nil, err
	}
	s := r.schema(db)
	for _, o := range c.OrderBy {
		col, err := s.column(o.Field)
		if err != nil {
			return nil, err
		}
		q = q.OrderExpr(aliasRef+" "+orderKeyword(o.Direction), bun.Ident(col))
	}
	return r.applyInclude(db, q, c.Include)
}

func (r *bunRepository[T]) applyWhere(db bun.IDB, q *bun.SelectQuery, w query.Where) (*bun.SelectQuery, error) {
	clauses, err := r.whereClauses(db, w)
	if err != nil {
		return nil, err
	}
	for _, c := range clauses {
		q = q.Where(c.expr, c.args...)
	}
	return q, nil
}

func (r *bunRepository[T]) whereClauses(db bun.IDB, w query.Where) ([]clause, error) {
	var out []clause
	if w.Membership != nil {
		exists, err := r.membershipClause(db, w.Membership)
		if err != nil {
			return nil, err
		}
		out = append(out, exists)
	}
	s := r.schema(db)
	for _, f := range w.Fields {
		col, err := s.column(f.Field)
		if err != nil {
			return nil, err
		}
		out = append(out, conditionClauses(aliasRef, []any{bun.Ident(col)}, f.Cond)...)
	}
	return out, nil
}

// membershipClause renders
//
//	EXISTS (SELECT 1 FROM join WHERE join.fk = alias.pk AND ...)
func (r *bunRepository[T]) membershipClause(db bun.IDB, m *query.Membership) (clause, error) {
	join := r.opts.membership
	var related *modelSchema
	if join == nil {
		s := r.schema(db)
		j, err := s.membershipJoin(db, m.Relation)
		if err != nil {
			return clause{}, err
		}
		rel, _ := s.relation(m.Relation)
		join, related = j, schemaOf(db, rel.elem)
	}
	parentKey := join.ParentKey
	if parentKey == "" {
		parentKey = query.PrimaryKey
	}

	var b strings.Builder
	b.WriteString("EXISTS (SELECT 1 FROM ? WHERE ?.? = " + aliasRef)
	table := bun.Ident(join.Table)
	args := []any{table, table, bun.Ident(join.ForeignKey), bun.Ident(parentKey)}
	for _, f := range m.Some {
		col := query.ColumnName(f.Field)
		if related != nil {
			c, err := related.column(f.Field)
			if err != nil {
				return clause{}, err
			}
			col = c
		}
		for _, c := range conditionClauses("?.?", []any{table, bun.Ident(col)}, f.Cond) {
			b.WriteString(" AND ")
			b.WriteString(c.expr)
			args = append(args, c.args...)
		}
	}
	b.WriteString(")")
	return clause{expr: b.String(), args: args}, nil
}

func conditionClauses(ref string, refArgs []any, cond query.Condition) []clause {
	switch c := cond.(type) {
	case query.Equals:
		if c.Value == nil {
			return []clause{{expr: ref + " IS NULL", args: refArgs}}
		}
		return []clause{{expr: ref + " = ?", args: withArg(refArgs, c.Value)}}
	case query.Predicates:
		out := make([]clause, 0, len(c))
		for _, p := range c {
			out = append(out, predicateClause(ref, refArgs, p))
		}
		return out
	default:
		return nil
	}
}

func predicateClause(ref string, refArgs []any, p query.Predicate) clause {
	switch p.Op {
	case query.OpIn:
		values := query.AsList(p.Value)
		if len(values) == 0 {
			return clause{expr: "1 = 0"}
		}
		return clause{expr: ref + " IN (?)", args: withArg(refArgs, bun.In(values))}
	case query.OpNotIn:
		values := query.AsList(p.Value)
		if len(values) == 0 {
			return clause{expr: "1 = 1"}
		}
		return clause{expr: ref + " NOT IN (?)", args: withArg(refArgs, bun.In(values))}
	case query.OpNot:
		if p.Value == nil {
			return clause{expr: ref + " IS NOT NULL", args: refArgs}
		}
		return clause{expr: ref + " <> ?", args: withArg(refArgs, p.Value)}
	case query.OpGt:
		return clause{expr: ref + " > ?", args: withArg(refArgs, p.Value)}
	case query.OpLt:
		return clause{expr: ref + " < ?", args: withArg(refArgs, p.Value)}
	case query.OpGte:
		return clause{expr: ref + " >= ?", args: withArg(refArgs, p.Value)}
	default:
		return clause{expr: ref + " <= ?", args: withArg(refArgs, p.Value)}
	}
}

func withArg(refArgs []any, v any) []any {
	args := make([]any, 0, len(refArgs)+1)
	args = append(args, refArgs...)
	return append(args, v)
}

func orderKeyword(d query.Direction) string {
	if d == query.Descending {
		return "DESC"
	}
	return "ASC"
}

// applyInclude loads every relation path of the tree. A projection keeps the
// primary and join keys so that bun can attach the related rows.
func (r *bunRepository[T]) applyInclude(db bun.IDB, q *bun.SelectQuery, tree query.IncludeTree) (*bun.SelectQuery, error) {
	for _, p := range tree.Paths() {
		goPath, target, rel, err := r.walk(db, p.Path)
		if err != nil {
			return nil, err
		}
		if len(p.Select) == 0 {
			q = q.Relation(goPath)
			continue
		}
		cols, err := projection(target, rel, p.Select)
		if err != nil {
			return nil, err
		}
		q = q.Relation(goPath, func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Column(cols...)
		})
	}
	return q, nil
}

// walk maps a dotted spec path onto bun's dotted Go field path.
func (r *bunRepository[T]) walk(db bun.IDB, path string) (string, *modelSchema, *relation, error) {
	cur := r.schema(db)
	var (
		names []string
		rel   *relation
	)
	for _, seg := range strings.Split(path, ".") {
		next, err := cur.relation(seg)
		if err != nil {
			return "", nil, nil, err
		}
		rel = next
		names = append(names, rel.goName)
		cur = schemaOf(db, rel.elem)
	}
	return strings.Join(names, "."), cur, rel, nil
}

func projection(target *modelSchema, rel *relation, fields []string) ([]string, error) {
	cols := make([]string, 0, len(fields)+2)
	seen := map[string]bool{}
	add := func(c string) {
		if c != "" && !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	add(target.pk)
	if rel.kind != "m2m" {
		for _, c := range rel.joinRel {
			add(c)
		}
	}
	for _, f := range fields {
		col, err := target.column(f)
		if err != nil {
			return nil, err
		}
		add(col)
	}
	return cols, nil
}
