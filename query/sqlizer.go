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

package query

import (
	"fmt"
	"regexp"

	sq "github.com/Masterminds/squirrel"
)

// MembershipJoin describes the table behind the membership relation: rows of
// Table belong to a parent row when Table.ForeignKey equals parent.ParentKey.
type MembershipJoin struct {
	Table      string
	ForeignKey string
	// ParentKey defaults to "id".
	ParentKey string
}

func (j MembershipJoin) parentKey() string {
	if j.ParentKey == "" {
		return PrimaryKey
	}
	return j.ParentKey
}

// identPattern bounds the names pasted into rendered SQL: squirrel binds
// values but writes column and table names verbatim.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

func checkIdent(kind string, names ...string) error {
	for _, name := range names {
		if !identPattern.MatchString(name) {
			return fmt.Errorf("%w: invalid %s name %q", ErrInvalidSpec, kind, name)
		}
	}
	return nil
}

// column maps a spec field to a qualified column, rejecting anything that is
// not a plain identifier.
func column(table, field string) (string, error) {
	col := ColumnName(field)
	if err := checkIdent("field", col); err != nil {
		return "", err
	}
	return qualify(table, col), nil
}

// ToSqlizer renders a compiled where clause for squirrel. Column names go
// through ColumnName and are qualified with table when it is non-empty. A
// membership test requires join. Table, join and field names must be plain
// identifiers, otherwise ErrInvalidSpec is returned.
func ToSqlizer(w Where, table string, join *MembershipJoin) (sq.Sqlizer, error) {
	if table != "" {
		if err := checkIdent("table", table); err != nil {
			return nil, err
		}
	}
	and := sq.And{}
	if w.Membership != nil {
		if join == nil {
			return nil, fmt.Errorf("%w: relation %q needs a membership join", ErrInvalidSpec, w.Membership.Relation)
		}
		exists, err := membershipExists(w.Membership, table, *join)
		if err != nil {
			return nil, err
		}
		and = append(and, exists)
	}
	for _, f := range w.Fields {
		col, err := column(table, f.Field)
		if err != nil {
			return nil, err
		}
		and = append(and, conditionSqlizer(col, f.Cond)...)
	}
	if len(and) == 0 {
		return sq.Expr("1=1"), nil
	}
	return and, nil
}

// ToSelect renders a full SELECT over table. Includes are not rendered; they
// are resolved by the ORM.
func ToSelect(c Compiled, table string, join *MembershipJoin) (sq.SelectBuilder, error) {
	if err := checkIdent("table", table); err != nil {
		return sq.SelectBuilder{}, err
	}
	b := sq.Select(qualify(table, "*")).From(table)
	if !c.Where.IsEmpty() {
		pred, err := ToSqlizer(c.Where, table, join)
		if err != nil {
			return b, err
		}
		b = b.Where(pred)
	}
	for _, o := range c.OrderBy {
		col, err := column(table, o.Field)
		if err != nil {
			return b, err
		}
		b = b.OrderBy(col + " " + sqlDirection(o.Direction))
	}
	return b, nil
}

func membershipExists(m *Membership, table string, join MembershipJoin) (sq.Sqlizer, error) {
	if err := checkIdent("join", join.Table, join.ForeignKey, join.parentKey()); err != nil {
		return nil, err
	}
	sub := sq.Select("1").From(join.Table).
		Where(fmt.Sprintf("%s = %s", qualify(join.Table, join.ForeignKey), qualify(table, join.parentKey())))
	for _, f := range m.Some {
		col, err := column(join.Table, f.Field)
		if err != nil {
			return nil, err
		}
		for _, pred := range conditionSqlizer(col, f.Cond) {
			sub = sub.Where(pred)
		}
	}
	query, args, err := sub.ToSql()
	if err != nil {
		return nil, err
	}
	return sq.Expr("EXISTS ("+query+")", args...), nil
}

func conditionSqlizer(column string, cond Condition) []sq.Sqlizer {
	switch c := cond.(type) {
	case Equals:
		return []sq.Sqlizer{sq.Eq{column: c.Value}}
	case Predicates:
		out := make([]sq.Sqlizer, 0, len(c))
		for _, p := range c {
			out = append(out, predicateSqlizer(column, p))
		}
		return out
	default:
		return nil
	}
}

func predicateSqlizer(column string, p Predicate) sq.Sqlizer {
	switch p.Op {
	case OpIn:
		values := AsList(p.Value)
		if len(values) == 0 {
			return sq.Expr("1=0")
		}
		return sq.Eq{column: values}
	case OpNotIn:
		values := AsList(p.Value)
		if len(values) == 0 {
			return sq.Expr("1=1")
		}
		return sq.NotEq{column: values}
	case OpNot:
		return sq.NotEq{column: p.Value}
	case OpGt:
		return sq.Gt{column: p.Value}
	case OpLt:
		return sq.Lt{column: p.Value}
	case OpGte:
		return sq.GtOrEq{column: p.Value}
	default:
		return sq.LtOrEq{column: p.Value}
	}
}

func sqlDirection(d Direction) string {
	if d == Descending {
		return "DESC"
	}
	return "ASC"
}

func qualify(table, column string) string {
	if table == "" {
		return column
	}
	return table + "." + column
}
