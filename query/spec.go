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

type opKind int

const (
	opEq opKind = iota
	opIn
	opNotIn
	opNeq
	opGt
	opLt
	opGte
	opLte
)

// Op is a single comparison applied to a field. The set is closed: values
// are only built by Eq, In, NotIn, Neq, Gt, Lt, Gte and Lte.
type Op struct {
	kind  opKind
	value any
}

// Eq matches values equal to v; a nil v matches NULL.
func Eq(v any) Op { return Op{kind: opEq, value: v} }

// Neq matches values different from v.
func Neq(v any) Op { return Op{kind: opNeq, value: v} }

// Gt matches values greater than v.
func Gt(v any) Op { return Op{kind: opGt, value: v} }

// Lt matches values less than v.
func Lt(v any) Op { return Op{kind: opLt, value: v} }

// Gte matches values greater than or equal to v.
func Gte(v any) Op { return Op{kind: opGte, value: v} }

// Lte matches values less than or equal to v.
func Lte(v any) Op { return Op{kind: opLte, value: v} }

// In matches any of values. An empty list matches nothing.
func In(values ...any) Op { return Op{kind: opIn, value: values} }

// NotIn excludes values. An empty list excludes nothing.
func NotIn(values ...any) Op { return Op{kind: opNotIn, value: values} }

// IsEq reports whether the op is an exact equality.
func (o Op) IsEq() bool { return o.kind == opEq }

// Value returns the operand; In and NotIn carry a []any.
func (o Op) Value() any { return o.value }

// Criterion is the set of ops supplied for one field.
type Criterion struct {
	Field string
	Ops   []Op
}

// Filter is an ordered field -> criterion mapping. The zero value is an
// empty filter. Methods never modify the receiver.
type Filter struct {
	criteria []Criterion
}

// NewFilter returns an empty filter.
func NewFilter() Filter { return Filter{} }

// Eq adds an exact-equality criterion, the scalar form of a filter entry.
func (f Filter) Eq(field string, v any) Filter { return f.Where(field, Eq(v)) }

// Where sets the ops of field, replacing an earlier entry for the same field
// in place. Passing no ops yields an empty operator object.
func (f Filter) Where(field string, ops ...Op) Filter {
	c := Criterion{Field: field, Ops: append([]Op(nil), ops...)}
	out := make([]Criterion, len(f.criteria), len(f.criteria)+1)
	copy(out, f.criteria)
	for i := range out {
		if out[i].Field == field {
			out[i] = c
			return Filter{criteria: out}
		}
	}
	return Filter{criteria: append(out, c)}
}

// Lookup returns the criterion of field.
func (f Filter) Lookup(field string) (Criterion, bool) {
	for _, c := range f.criteria {
		if c.Field == field {
			return c, true
		}
	}
	return Criterion{}, false
}

// Without returns the filter minus the named fields.
func (f Filter) Without(fields ...string) Filter {
	out := make([]Criterion, 0, len(f.criteria))
	for _, c := range f.criteria {
		if !contains(fields, c.Field) {
			out = append(out, c)
		}
	}
	return Filter{criteria: out}
}

// Criteria returns the entries in declaration order.
func (f Filter) Criteria() []Criterion {
	return append([]Criterion(nil), f.criteria...)
}

// Len returns the number of fields constrained.
func (f Filter) Len() int { return len(f.criteria) }

// OrderTerm is one field of an Order. Direction is matched case-insensitively;
// "desc" sorts descending, any other token ascending.
type OrderTerm struct {
	Field     string
	Direction string
}

// Order lists sort terms by precedence.
type Order []OrderTerm

// Asc sorts field ascending.
func Asc(field string) OrderTerm { return OrderTerm{Field: field, Direction: "asc"} }

// Desc sorts field descending.
func Desc(field string) OrderTerm { return OrderTerm{Field: field, Direction: "desc"} }

// IncludeValue is what a relation maps to inside an Include: All, Select,
// Nested, or a bare Include for the legacy nested-object form.
type IncludeValue interface {
	isIncludeValue()
}

// All includes a relation with every column.
type All struct{}

// Select includes a relation projected to the listed fields.
type Select []string

// Nested includes a relation together with relations of its own, the
// explicit "include" marker form.
type Nested struct {
	Include Include
}

func (All) isIncludeValue()     {}
func (Select) isIncludeValue()  {}
func (Nested) isIncludeValue()  {}
func (Include) isIncludeValue() {}

// IncludeEntry binds a relation name to its IncludeValue.
type IncludeEntry struct {
	Relation string
	Value    IncludeValue
}

// Include is an ordered relation -> IncludeValue mapping. Methods never
// modify the receiver.
type Include struct {
	entries []IncludeEntry
}

// NewInclude returns an empty include specification.
func NewInclude() Include { return Include{} }

// With sets relation to v, replacing an earlier entry in place.
func (i Include) With(relation string, v IncludeValue) Include {
	e := IncludeEntry{Relation: relation, Value: v}
	out := make([]IncludeEntry, len(i.entries), len(i.entries)+1)
	copy(out, i.entries)
	for k := range out {
		if out[k].Relation == relation {
			out[k] = e
			return Include{entries: out}
		}
	}
	return Include{entries: append(out, e)}
}

// All includes relation with every column.
func (i Include) All(relation string) Include { return i.With(relation, All{}) }

// Select includes relation projected to fields.
func (i Include) Select(relation string, fields ...string) Include {
	return i.With(relation, Select(append([]string(nil), fields...)))
}

// Nested includes relation with the relations in inner.
func (i Include) Nested(relation string, inner Include) Include {
	return i.With(relation, Nested{Include: inner})
}

// Tree nests inner directly under relation, the legacy bare-object form.
func (i Include) Tree(relation string, inner Include) Include {
	return i.With(relation, inner)
}

// Entries returns the entries in declaration order.
func (i Include) Entries() []IncludeEntry {
	return append([]IncludeEntry(nil), i.entries...)
}

// Len returns the number of relations included.
func (i Include) Len() int { return len(i.entries) }

// Spec is the caller side of a query: what to match, how to sort and which
// relations to attach.
type Spec struct {
	Filter  Filter
	Order   Order
	Include Include
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
