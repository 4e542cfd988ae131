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
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tomoncle/quarry/types"
)

func TestParseSpecJSON(t *testing.T) {
	doc := "{" +
		`"filters": {"roleId": 3, "age": {"gt": 5, "nin": [1, 2]}, "tags": ["a"], "deleted": null},` +
		`"order": {"createdAt": "desc", "name": "asc"},` +
		`"include": {"memberships": {"include": {"role": true}}, "profile": ["name"]}` +
		"}"
	spec, err := ParseSpec([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	c, err := Compile(spec)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	want := map[string]any{
		"where": map[string]any{
			"memberships": map[string]any{"some": map[string]any{"roleId": 3}},
			"age":         map[string]any{"notIn": []any{1, 2}, "gt": 5},
		},
		"orderBy": []any{
			map[string]any{"createdAt": "desc"},
			map[string]any{"name": "asc"},
		},
		"include": map[string]any{
			"memberships": map[string]any{"include": map[string]any{"role": true}},
			"profile":     map[string]any{"select": map[string]any{"name": true}},
		},
	}
	if diff := cmp.Diff(want, c.Map()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestParseOrderKeepsDocumentOrder(t *testing.T) {
	order, err := ParseOrder([]byte("zeta: desc\nalpha: asc\nmid: DESC\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := Order{{"zeta", "desc"}, {"alpha", "asc"}, {"mid", "DESC"}}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestParseFilterEqWins(t *testing.T) {
	f, err := ParseFilter([]byte(`{"age": {"gt": 5, "eq": 10}, "name": "x"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	c, _ := Compile(Spec{Filter: f})
	want := map[string]any{"age": 10, "name": "x"}
	if diff := cmp.Diff(want, c.Where.Map()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestParseFilterUnknownOperatorKeys(t *testing.T) {
	f, _ := ParseFilter([]byte(`{"age": {"between": [1, 2]}}`))
	c, _ := Compile(Spec{Filter: f})
	want := map[string]any{"age": map[string]any{}}
	if diff := cmp.Diff(want, c.Where.Map()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestParseIncludeForms(t *testing.T) {
	doc := `
company: true
owner: True
manager: TRUE
skipped: false
disabled: False
profile: [name, avatar]
memberships:
  kind: nested
  include:
    role: true
team:
  kind: select
  select: [name]
posts:
  comments: true
`
	inc, err := ParseInclude([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tree, err := ExpandInclude(inc)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	want := map[string]any{
		"company":     true,
		"owner":       true,
		"manager":     true,
		"profile":     map[string]any{"select": map[string]any{"name": true, "avatar": true}},
		"memberships": map[string]any{"include": map[string]any{"role": true}},
		"team":        map[string]any{"select": map[string]any{"name": true}},
		"posts":       map[string]any{"comments": true},
	}
	if diff := cmp.Diff(want, tree.Map()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestParseIncludeUnknownKind(t *testing.T) {
	_, err := ParseInclude([]byte(`{"a": {"kind": "everything"}}`))
	if !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("err = %v, want ErrInvalidSpec", err)
	}
}

func TestParseSpecRejectsNonObject(t *testing.T) {
	for _, doc := range []string{`[1, 2]`, `"text"`, `{"filters": [1]}`, `{"order": "name"}`, `{`} {
		if _, err := ParseSpec([]byte(doc)); !errors.Is(err, ErrInvalidSpec) {
			t.Errorf("%s: err = %v, want ErrInvalidSpec", doc, err)
		}
	}
}

func TestParseSpecEmpty(t *testing.T) {
	spec, err := ParseSpec(nil)
	if err != nil || spec.Filter.Len() != 0 || len(spec.Order) != 0 || spec.Include.Len() != 0 {
		t.Errorf("spec = %#v, err = %v", spec, err)
	}
}

func TestParseIdentifier(t *testing.T) {
	id, err := ParseIdentifier([]byte(`{"slug": "x", "id": 1}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got, err := Resolve(id)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Key != "slug" || got.Value != "x" {
		t.Errorf("got %#v, want first declared key", got)
	}

	id, _ = ParseIdentifier([]byte(`17`))
	if got, _ := Resolve(id); got.Key != PrimaryKey || got.Value != 17 {
		t.Errorf("scalar identifier resolved to %#v", got)
	}

	if _, err := ParseIdentifier([]byte(`[1]`)); !errors.Is(err, ErrInvalidIdentifier) {
		t.Errorf("err = %v, want ErrInvalidIdentifier", err)
	}
}

func TestFilterFromMap(t *testing.T) {
	f := FilterFromMap(types.JsonObject{
		"name":    "x",
		"age":     map[string]any{"gte": 18, "in": []int{18, 19}},
		"tags":    []any{"a"},
		"deleted": nil,
	})
	c, _ := Compile(Spec{Filter: f})
	want := map[string]any{
		"name": "x",
		"age":  map[string]any{"in": []any{18, 19}, "gte": 18},
	}
	if diff := cmp.Diff(want, c.Where.Map()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	var fields []string
	for _, cr := range f.Criteria() {
		fields = append(fields, cr.Field)
	}
	if diff := cmp.Diff([]string{"age", "name"}, fields); diff != "" {
		t.Errorf("map keys should be visited in sorted order (-want +got):\n%s", diff)
	}
}

func TestIncludeFromMap(t *testing.T) {
	inc, err := IncludeFromMap(types.JsonObject{
		"memberships": map[string]any{"include": map[string]any{"role": true}},
		"profile":     []any{"name"},
		"company":     true,
		"posts":       map[string]any{"comments": true},
	})
	if err != nil {
		t.Fatalf("include: %v", err)
	}
	tree, _ := ExpandInclude(inc)
	want := map[string]any{
		"company":     true,
		"memberships": map[string]any{"include": map[string]any{"role": true}},
		"posts":       map[string]any{"comments": true},
		"profile":     map[string]any{"select": map[string]any{"name": true}},
	}
	if diff := cmp.Diff(want, tree.Map()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}
