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
	"strings"

	"github.com/tomoncle/quarry/types"
)

const (
	// RoleKey and CompanyKey address membership in the join relation rather
	// than columns of the queried entity.
	RoleKey    = "roleId"
	CompanyKey = "companyId"

	DefaultMembershipRelation = "memberships"
	DefaultMaxDepth           = 16
)

// Operator is a non-equality comparison in a compiled condition.
type Operator int

const (
	OpIn Operator = iota
	OpNotIn
	OpNot
	OpGt
	OpLt
	OpGte
	OpLte
)

var _ types.BaseEnum = OpIn

var operatorNames = [...]string{"in", "notIn", "not", "gt", "lt", "gte", "lte"}

func (o Operator) IsValid() bool { return o >= OpIn && o <= OpLte }

func (o Operator) Number() int {
	if !o.IsValid() {
		return types.IllegalValue
	}
	return int(o)
}

func (o Operator) Name() string {
	if !o.IsValid() {
		return types.IllegalName
	}
	return operatorNames[o]
}

func (o Operator) String() string { return o.Name() }

func (o Operator) Desc() string {
	switch o {
	case OpIn:
		return "value is one of the list"
	case OpNotIn:
		return "value is none of the list"
	case OpNot:
		return "value differs"
	case OpGt:
		return "value is greater"
	case OpLt:
		return "value is lower"
	case OpGte:
		return "value is greater or equal"
	case OpLte:
		return "value is lower or equal"
	default:
		return types.IllegalDesc
	}
}

// Condition is the compiled form of a field criterion: Equals or Predicates.
type Condition interface {
	isCondition()
	// Map renders the condition in its JSON shape.
	Map() any
}

// Equals matches the field exactly; a nil Value matches NULL.
type Equals struct {
	Value any
}

// Predicate is one operator comparison.
type Predicate struct {
	Op    Operator
	Value any
}

// Predicates are ANDed together, always in operator order.
type Predicates []Predicate

func (Equals) isCondition()     {}
func (Predicates) isCondition() {}

func (e Equals) Map() any { return e.Value }

func (p Predicates) Map() any {
	m := make(map[string]any, len(p))
	for _, pr := range p {
		m[pr.Op.Name()] = pr.Value
	}
	return m
}

// FieldFilter pairs a field with its compiled condition.
type FieldFilter struct {
	Field string
	Cond  Condition
}

// Membership is an existence test over the join relation: some related row
// must satisfy every constraint in Some.
type Membership struct {
	Relation string
	Some     []FieldFilter
}

// Where is the compiled filter.
type Where struct {
	Membership *Membership
	Fields     []FieldFilter
}

func (w Where) IsEmpty() bool { return w.Membership == nil && len(w.Fields) == 0 }

func (w Where) Map() map[string]any {
	m := make(map[string]any, len(w.Fields)+1)
	if w.Membership != nil {
		some := make(map[string]any, len(w.Membership.Some))
		for _, f := range w.Membership.Some {
			some[f.Field] = f.Cond.Map()
		}
		m[w.Membership.Relation] = map[string]any{"some": some}
	}
	for _, f := range w.Fields {
		m[f.Field] = f.Cond.Map()
	}
	return m
}

// Direction is a sort direction.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

var _ types.BaseEnum = Ascending

func (d Direction) IsValid() bool { return d == Ascending || d == Descending }

func (d Direction) Number() int {
	if !d.IsValid() {
		return types.IllegalValue
	}
	return int(d)
}

func (d Direction) Name() string {
	switch d {
	case Ascending:
		return "asc"
	case Descending:
		return "desc"
	default:
		return types.IllegalName
	}
}

func (d Direction) String() string { return d.Name() }

func (d Direction) Desc() string {
	switch d {
	case Ascending:
		return "ascending"
	case Descending:
		return "descending"
	default:
		return types.IllegalDesc
	}
}

// ParseDirection maps a direction token to a Direction: "desc" in any case
// is Descending, everything else Ascending.
func ParseDirection(token string) Direction {
	if strings.ToLower(token) == "desc" {
		return Descending
	}
	return Ascending
}

// Ordering is a single-field sort key.
type Ordering struct {
	Field     string
	Direction Direction
}

func (o Ordering) Map() map[string]any { return map[string]any{o.Field: o.Direction.Name()} }

// Compiled is the backend-ready translation of a Spec.
type Compiled struct {
	Where   Where
	OrderBy []Ordering
	Include IncludeTree
}

// Map renders the compiled query as {where, orderBy, include?}.
func (c Compiled) Map() map[string]any {
	orderBy := make([]any, 0, len(c.OrderBy))
	for _, o := range c.OrderBy {
		orderBy = append(orderBy, o.Map())
	}
	m := map[string]any{
		"where":   c.Where.Map(),
		"orderBy": orderBy,
	}
	if len(c.Include) > 0 {
		m["include"] = c.Include.Map()
	}
	return m
}

// Compiler turns specifications into Compiled queries. The zero value is
// usable and behaves like NewCompiler.
type Compiler struct {
	// MembershipRelation names the join relation hoisted filters test.
	MembershipRelation string
	// MembershipKeys are the filter fields hoisted into the membership test,
	// in the order they appear in the compiled clause.
	MembershipKeys []string
	// MaxDepth bounds include nesting.
	MaxDepth int
}

// NewCompiler returns a compiler hoisting companyId and roleId into the
// "memberships" relation.
func NewCompiler() *Compiler {
	return &Compiler{
		MembershipRelation: DefaultMembershipRelation,
		MembershipKeys:     []string{CompanyKey, RoleKey},
		MaxDepth:           DefaultMaxDepth,
	}
}

var defaultCompiler = NewCompiler()

// Compile compiles spec with the default compiler.
func Compile(spec Spec) (Compiled, error) { return defaultCompiler.Compile(spec) }

// ExpandInclude expands inc with the default compiler.
func ExpandInclude(inc Include) (IncludeTree, error) { return defaultCompiler.ExpandInclude(inc) }

func (c *Compiler) relation() string {
	if c.MembershipRelation == "" {
		return DefaultMembershipRelation
	}
	return c.MembershipRelation
}

func (c *Compiler) keys() []string {
	if c.MembershipKeys == nil {
		return []string{CompanyKey, RoleKey}
	}
	return c.MembershipKeys
}

func (c *Compiler) maxDepth() int {
	if c.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return c.MaxDepth
}

// Compile translates filter, order and include.
func (c *Compiler) Compile(spec Spec) (Compiled, error) {
	include, err := c.ExpandInclude(spec.Include)
	if err != nil {
		return Compiled{}, err
	}
	return Compiled{
		Where:   c.CompileWhere(spec.Filter),
		OrderBy: CompileOrder(spec.Order),
		Include: include,
	}, nil
}

// CompileWhere translates a filter. Membership keys are hoisted into a
// single existence test and never appear as plain fields.
func (c *Compiler) CompileWhere(f Filter) Where {
	var where Where
	keys := c.keys()
	for _, key := range keys {
		cr, ok := f.Lookup(key)
		if !ok {
			continue
		}
		if where.Membership == nil {
			where.Membership = &Membership{Relation: c.relation()}
		}
		where.Membership.Some = append(where.Membership.Some, FieldFilter{Field: key, Cond: compileOps(cr.Ops)})
	}
	for _, cr := range f.Without(keys...).criteria {
		where.Fields = append(where.Fields, FieldFilter{Field: cr.Field, Cond: compileOps(cr.Ops)})
	}
	return where
}

var predicateOrder = [...]struct {
	kind opKind
	op   Operator
}{
	{opIn, OpIn},
	{opNotIn, OpNotIn},
	{opNeq, OpNot},
	{opGt, OpGt},
	{opLt, OpLt},
	{opGte, OpGte},
	{opLte, OpLte},
}

// compileOps applies the precedence rule: an Eq anywhere in ops replaces the
// whole condition with plain equality, otherwise the remaining operators are
// emitted in fixed order with the last value winning per operator.
func compileOps(ops []Op) Condition {
	last := make(map[opKind]Op, len(ops))
	for _, op := range ops {
		last[op.kind] = op
	}
	if eq, ok := last[opEq]; ok {
		return Equals{Value: eq.value}
	}
	preds := make(Predicates, 0, len(last))
	for _, p := range predicateOrder {
		if op, ok := last[p.kind]; ok {
			preds = append(preds, Predicate{Op: p.op, Value: op.value})
		}
	}
	return preds
}

// CompileOrder keeps term order; no tie-break key is added.
func CompileOrder(o Order) []Ordering {
	out := make([]Ordering, 0, len(o))
	for _, t := range o {
		out = append(out, Ordering{Field: t.Field, Direction: ParseDirection(t.Direction)})
	}
	return out
}
