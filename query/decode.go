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
	"reflect"
	"sort"

	"github.com/tomoncle/quarry/types"
	"gopkg.in/yaml.v3"
)

// maxDecodeDepth stops alias loops such as `a: &x {b: *x}` from recursing
// forever; it is independent of Compiler.MaxDepth.
const maxDecodeDepth = 64

// Decoding goes through yaml.Node so that key order survives: order terms
// and identifier objects depend on it. JSON documents decode the same way.

// ParseSpec decodes a {filters, order, include} document.
func ParseSpec(data []byte) (Spec, error) {
	node, err := parseDocument(data)
	if err != nil || node == nil {
		return Spec{}, err
	}
	if node.Kind != yaml.MappingNode {
		return Spec{}, fmt.Errorf("%w: spec must be an object", ErrInvalidSpec)
	}
	var spec Spec
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i].Value, resolveAlias(node.Content[i+1])
		switch key {
		case "filters", "filter", "where":
			if spec.Filter, err = decodeFilter(value); err != nil {
				return Spec{}, err
			}
		case "order", "orderBy":
			if spec.Order, err = decodeOrder(value); err != nil {
				return Spec{}, err
			}
		case "include":
			if spec.Include, err = decodeInclude(value, 1); err != nil {
				return Spec{}, err
			}
		}
	}
	return spec, nil
}

// ParseFilter decodes a filter document.
func ParseFilter(data []byte) (Filter, error) {
	node, err := parseDocument(data)
	if err != nil || node == nil {
		return Filter{}, err
	}
	return decodeFilter(node)
}

// ParseOrder decodes an order document.
func ParseOrder(data []byte) (Order, error) {
	node, err := parseDocument(data)
	if err != nil || node == nil {
		return nil, err
	}
	return decodeOrder(node)
}

// ParseInclude decodes an include document.
func ParseInclude(data []byte) (Include, error) {
	node, err := parseDocument(data)
	if err != nil || node == nil {
		return Include{}, err
	}
	return decodeInclude(node, 1)
}

// ParseIdentifier decodes an identifier document into a scalar or a Record.
func ParseIdentifier(data []byte) (any, error) {
	node, err := parseDocument(data)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidIdentifier)
	}
	switch node.Kind {
	case yaml.ScalarNode:
		return scalarValue(node)
	case yaml.MappingNode:
		rec := make(Record, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var v any
			if err := resolveAlias(node.Content[i+1]).Decode(&v); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
			}
			rec = append(rec, Pair{Key: node.Content[i].Value, Value: v})
		}
		return rec, nil
	default:
		return nil, fmt.Errorf("%w: identifier must be a scalar or an object", ErrInvalidIdentifier)
	}
}

func parseDocument(data []byte) (*yaml.Node, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil, nil
		}
		return resolveAlias(root.Content[0]), nil
	}
	if root.Kind == 0 {
		return nil, nil
	}
	return resolveAlias(&root), nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for i := 0; n != nil && n.Kind == yaml.AliasNode && i < maxDecodeDepth; i++ {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

func scalarValue(n *yaml.Node) (any, error) {
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	return v, nil
}

func decodeFilter(n *yaml.Node) (Filter, error) {
	if isNull(n) {
		return Filter{}, nil
	}
	if n.Kind != yaml.MappingNode {
		return Filter{}, fmt.Errorf("%w: filters must be an object", ErrInvalidSpec)
	}
	f := Filter{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		field, value := n.Content[i].Value, resolveAlias(n.Content[i+1])
		switch value.Kind {
		case yaml.ScalarNode:
			if isNull(value) {
				continue
			}
			v, err := scalarValue(value)
			if err != nil {
				return Filter{}, err
			}
			f = f.Eq(field, v)
		case yaml.MappingNode:
			ops, err := decodeOps(value)
			if err != nil {
				return Filter{}, err
			}
			f = f.Where(field, ops...)
		}
	}
	return f, nil
}

func decodeOps(n *yaml.Node) ([]Op, error) {
	var ops []Op
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i].Value, resolveAlias(n.Content[i+1])
		var v any
		if err := value.Decode(&v); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSpec, key, err)
		}
		if op, ok := opFromKey(key, v); ok {
			ops = append(ops, op)
		}
	}
	return ops, nil
}

func opFromKey(key string, v any) (Op, bool) {
	switch key {
	case "eq":
		return Eq(v), true
	case "in":
		return In(AsList(v)...), true
	case "nin":
		return NotIn(AsList(v)...), true
	case "neq":
		return Neq(v), true
	case "gt":
		return Gt(v), true
	case "lt":
		return Lt(v), true
	case "gte":
		return Gte(v), true
	case "lte":
		return Lte(v), true
	default:
		return Op{}, false
	}
}

func decodeOrder(n *yaml.Node) (Order, error) {
	if isNull(n) {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: order must be an object", ErrInvalidSpec)
	}
	order := make(Order, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		term := OrderTerm{Field: n.Content[i].Value}
		if v := resolveAlias(n.Content[i+1]); v.Kind == yaml.ScalarNode && v.Tag == "!!str" {
			term.Direction = v.Value
		}
		order = append(order, term)
	}
	return order, nil
}

func decodeInclude(n *yaml.Node, depth int) (Include, error) {
	if isNull(n) {
		return Include{}, nil
	}
	if depth > maxDecodeDepth {
		return Include{}, fmt.Errorf("%w: include nests deeper than %d levels", ErrIncludeTooDeep, maxDecodeDepth)
	}
	if n.Kind != yaml.MappingNode {
		return Include{}, fmt.Errorf("%w: include must be an object", ErrInvalidSpec)
	}
	inc := Include{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		relation, value := n.Content[i].Value, resolveAlias(n.Content[i+1])
		switch value.Kind {
		case yaml.ScalarNode:
			var shallow bool
			if value.ShortTag() == "!!bool" && value.Decode(&shallow) == nil && shallow {
				inc = inc.All(relation)
			}
		case yaml.SequenceNode:
			inc = inc.With(relation, decodeSelect(value))
		case yaml.MappingNode:
			v, err := decodeIncludeObject(value, depth)
			if err != nil {
				return Include{}, err
			}
			inc = inc.With(relation, v)
		}
	}
	return inc, nil
}

// decodeIncludeObject handles the object forms: the explicit `kind`
// discriminator, the `include` marker, and the legacy bare object.
func decodeIncludeObject(n *yaml.Node, depth int) (IncludeValue, error) {
	kind, body := mappingValue(n, "kind"), mappingValue(n, "include")
	if kind != nil && kind.Kind == yaml.ScalarNode {
		switch kind.Value {
		case "all":
			return All{}, nil
		case "select":
			if sel := mappingValue(n, "select"); sel != nil && sel.Kind == yaml.SequenceNode {
				return decodeSelect(sel), nil
			}
			return Select{}, nil
		case "nested":
			return decodeNested(body, depth)
		default:
			return nil, fmt.Errorf("%w: unknown include kind %q", ErrInvalidSpec, kind.Value)
		}
	}
	if body != nil {
		return decodeNested(body, depth)
	}
	return decodeInclude(n, depth+1)
}

func decodeNested(body *yaml.Node, depth int) (IncludeValue, error) {
	if body == nil || body.Kind != yaml.MappingNode {
		return Nested{}, nil
	}
	inner, err := decodeInclude(body, depth+1)
	if err != nil {
		return nil, err
	}
	return Nested{Include: inner}, nil
}

func decodeSelect(n *yaml.Node) Select {
	sel := make(Select, 0, len(n.Content))
	for _, item := range n.Content {
		item = resolveAlias(item)
		if item.Kind == yaml.ScalarNode && !isNull(item) {
			sel = append(sel, item.Value)
		}
	}
	return sel
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return resolveAlias(n.Content[i+1])
		}
	}
	return nil
}

// FilterFromMap converts a loosely typed filter object. Keys are visited in
// sorted order; scalars become equality, objects become operators, and any
// other kind is ignored.
func FilterFromMap(m types.JsonObject) Filter {
	f := Filter{}
	for _, field := range m.Keys() {
		switch v := m[field].(type) {
		case map[string]any:
			f = f.Where(field, opsFromMap(v)...)
		case types.JsonObject:
			f = f.Where(field, opsFromMap(v)...)
		default:
			if v != nil && isScalar(v) {
				f = f.Eq(field, v)
			}
		}
	}
	return f
}

func opsFromMap(m map[string]any) []Op {
	keys := types.JsonObject(m).Keys()
	ops := make([]Op, 0, len(keys))
	for _, k := range keys {
		if op, ok := opFromKey(k, m[k]); ok {
			ops = append(ops, op)
		}
	}
	return ops
}

// IncludeFromMap converts a loosely typed include object, keys in sorted
// order.
func IncludeFromMap(m types.JsonObject) (Include, error) {
	return includeFromMap(m, 1)
}

func includeFromMap(m map[string]any, depth int) (Include, error) {
	if depth > maxDecodeDepth {
		return Include{}, fmt.Errorf("%w: include nests deeper than %d levels", ErrIncludeTooDeep, maxDecodeDepth)
	}
	inc := Include{}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, relation := range keys {
		switch v := m[relation].(type) {
		case bool:
			if v {
				inc = inc.All(relation)
			}
		case []string:
			inc = inc.Select(relation, v...)
		case []any:
			sel := make(Select, 0, len(v))
			for _, item := range v {
				if s, ok := item.(string); ok {
					sel = append(sel, s)
				}
			}
			inc = inc.With(relation, sel)
		case types.JsonObject:
			val, err := includeObjectFromMap(v, depth)
			if err != nil {
				return Include{}, err
			}
			inc = inc.With(relation, val)
		case map[string]any:
			val, err := includeObjectFromMap(v, depth)
			if err != nil {
				return Include{}, err
			}
			inc = inc.With(relation, val)
		}
	}
	return inc, nil
}

func includeObjectFromMap(m map[string]any, depth int) (IncludeValue, error) {
	if body, ok := m["include"]; ok {
		inner, _ := body.(map[string]any)
		if obj, ok := body.(types.JsonObject); ok {
			inner = obj
		}
		nested, err := includeFromMap(inner, depth+1)
		if err != nil {
			return nil, err
		}
		return Nested{Include: nested}, nil
	}
	return includeFromMap(m, depth+1)
}

// AsList widens a slice or array of any element type to []any. A nil value
// is an empty list and any other value a one-element list.
func AsList(v any) []any {
	if v == nil {
		return []any{}
	}
	if list, ok := v.([]any); ok {
		return list
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{v}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
