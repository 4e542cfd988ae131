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
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/tomoncle/quarry/query"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// modelSchema maps spec field and relation names of a bun model onto
// columns and Go relation fields, on top of bun's table metadata.
type modelSchema struct {
	typ       reflect.Type
	table     string
	pk        string
	columns   map[string]string // lookup key -> column
	relations map[string]*relation
}

type relation struct {
	goName   string
	kind     string // has-one, belongs-to, has-many, m2m
	elem     reflect.Type
	joinBase []string
	joinRel  []string
}

var relationKinds = map[int]string{
	schema.HasOneRelation:     "has-one",
	schema.BelongsToRelation:  "belongs-to",
	schema.HasManyRelation:    "has-many",
	schema.ManyToManyRelation: "m2m",
}

var schemaCache sync.Map // *schema.Table -> *modelSchema

func schemaOf(db bun.IDB, typ reflect.Type) *modelSchema {
	for typ.Kind() == reflect.Ptr || typ.Kind() == reflect.Slice {
		typ = typ.Elem()
	}
	table := db.Dialect().Tables().Get(typ)
	if s, ok := schemaCache.Load(table); ok {
		return s.(*modelSchema)
	}
	actual, _ := schemaCache.LoadOrStore(table, buildSchema(table))
	return actual.(*modelSchema)
}

func buildSchema(table *schema.Table) *modelSchema {
	s := &modelSchema{
		typ:       table.Type,
		table:     table.Name,
		columns:   make(map[string]string, len(table.Fields)*3),
		relations: make(map[string]*relation, len(table.Relations)*2),
	}
	if len(table.PKs) > 0 {
		s.pk = table.PKs[0].Name
	} else if table.HasField(query.PrimaryKey) {
		s.pk = query.PrimaryKey
	}
	// Column names first so an alias never shadows a real column.
	for _, f := range table.Fields {
		s.columns[f.Name] = f.Name
	}
	for _, f := range table.Fields {
		s.alias(f.Name, strings.ToLower(f.GoName), jsonName(f.StructField))
	}
	for _, rel := range table.Relations {
		s.addRelation(rel)
	}
	return s
}

func (s *modelSchema) alias(column string, keys ...string) {
	for _, k := range keys {
		if _, taken := s.columns[k]; k != "" && !taken {
			s.columns[k] = column
		}
	}
}

func (s *modelSchema) addRelation(r *schema.Relation) {
	rel := &relation{
		goName: r.Field.GoName,
		kind:   relationKinds[r.Type],
		elem:   r.JoinTable.Type,
	}
	for _, f := range r.BasePKs {
		rel.joinBase = append(rel.joinBase, f.Name)
	}
	for _, f := range r.JoinPKs {
		rel.joinRel = append(rel.joinRel, f.Name)
	}
	keys := []string{strings.ToLower(r.Field.GoName)}
	if js := jsonName(r.Field.StructField); js != "" {
		keys = append(keys, strings.ToLower(js))
	}
	for _, k := range keys {
		if _, taken := s.relations[k]; !taken {
			s.relations[k] = rel
		}
	}
}

// column resolves a spec field: exact column, Go field name, json name, then
// the snake_case form of the field.
func (s *modelSchema) column(field string) (string, error) {
	for _, k := range []string{field, strings.ToLower(field), query.ColumnName(field)} {
		if c, ok := s.columns[k]; ok {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown field %q on %s", query.ErrInvalidSpec, field, s.typ.Name())
}

func (s *modelSchema) relation(name string) (*relation, error) {
	if rel, ok := s.relations[strings.ToLower(name)]; ok {
		return rel, nil
	}
	return nil, fmt.Errorf("%w: unknown relation %q on %s", query.ErrInvalidSpec, name, s.typ.Name())
}

// membershipJoin infers the join for a has-many relation declared as
// `bun:"rel:has-many,join:id=user_id"`.
func (s *modelSchema) membershipJoin(db bun.IDB, name string) (*query.MembershipJoin, error) {
	rel, err := s.relation(name)
	if err != nil {
		return nil, err
	}
	if rel.kind != "has-many" || len(rel.joinBase) != 1 {
		return nil, fmt.Errorf("%w: relation %q must be has-many with a single join column", query.ErrInvalidSpec, name)
	}
	return &query.MembershipJoin{
		Table:      schemaOf(db, rel.elem).table,
		ForeignKey: rel.joinRel[0],
		ParentKey:  rel.joinBase[0],
	}, nil
}

func jsonName(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}
