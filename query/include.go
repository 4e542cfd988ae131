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
	"strings"
)

// IncludeKind tells how a relation was requested.
type IncludeKind int

const (
	// IncludeShallow renders as true.
	IncludeShallow IncludeKind = iota
	// IncludeSelect renders as {select: {field: true...}}.
	IncludeSelect
	// IncludeNested renders as {include: children}.
	IncludeNested
	// IncludeBare renders as the children tree itself.
	IncludeBare
)

// IncludeNode is one relation of a compiled include tree.
type IncludeNode struct {
	Relation string
	Kind     IncludeKind
	Select   []string
	Children IncludeTree
}

// IncludeTree is the compiled include specification, in declaration order.
type IncludeTree []IncludeNode

// Map renders the tree in its JSON shape.
func (t IncludeTree) Map() map[string]any {
	m := make(map[string]any, len(t))
	for _, n := range t {
		switch n.Kind {
		case IncludeShallow:
			m[n.Relation] = true
		case IncludeSelect:
			sel := make(map[string]any, len(n.Select))
			for _, f := range n.Select {
				sel[f] = true
			}
			m[n.Relation] = map[string]any{"select": sel}
		case IncludeNested:
			m[n.Relation] = map[string]any{"include": n.Children.Map()}
		case IncludeBare:
			m[n.Relation] = n.Children.Map()
		}
	}
	return m
}

// RelationPath is a flattened include entry: a dotted relation path and the
// optional column projection for it.
type RelationPath struct {
	Path   string
	Select []string
}

// Paths flattens the tree depth first, parents before children.
func (t IncludeTree) Paths() []RelationPath {
	var out []RelationPath
	t.collect(nil, &out)
	return out
}

func (t IncludeTree) collect(prefix []string, out *[]RelationPath) {
	for _, n := range t {
		path := append(append([]string(nil), prefix...), n.Relation)
		rp := RelationPath{Path: strings.Join(path, ".")}
		if n.Kind == IncludeSelect {
			rp.Select = append([]string(nil), n.Select...)
		}
		*out = append(*out, rp)
		if n.Kind == IncludeNested || n.Kind == IncludeBare {
			n.Children.collect(path, out)
		}
	}
}

// ExpandInclude compiles an include specification, one recursion level per
// nesting level.
func (c *Compiler) ExpandInclude(inc Include) (IncludeTree, error) {
	return c.expand(inc, 1)
}

func (c *Compiler) expand(inc Include, depth int) (IncludeTree, error) {
	if inc.Len() == 0 {
		return nil, nil
	}
	if depth > c.maxDepth() {
		return nil, fmt.Errorf("%w: limit is %d levels", ErrIncludeTooDeep, c.maxDepth())
	}
	tree := make(IncludeTree, 0, inc.Len())
	for _, e := range inc.entries {
		node := IncludeNode{Relation: e.Relation}
		switch v := e.Value.(type) {
		case All:
			node.Kind = IncludeShallow
		case Select:
			node.Kind = IncludeSelect
			node.Select = append([]string{}, v...)
		case Nested:
			children, err := c.expand(v.Include, depth+1)
			if err != nil {
				return nil, err
			}
			node.Kind = IncludeNested
			node.Children = children
		case Include:
			children, err := c.expand(v, depth+1)
			if err != nil {
				return nil, err
			}
			node.Kind = IncludeBare
			node.Children = children
		default:
			continue
		}
		tree = append(tree, node)
	}
	return tree, nil
}
