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

	"github.com/google/uuid"
	"github.com/tomoncle/quarry/types"
)

// PrimaryKey is the lookup key used for scalar identifiers.
const PrimaryKey = "id"

// Pair is one key/value of a partial object identifier.
type Pair struct {
	Key   string
	Value any
}

// Record is a partial object with declared key order. Only its first pair
// takes part in identifier resolution.
type Record []Pair

// By returns a single-pair Record.
func By(key string, value any) Record { return Record{{Key: key, Value: value}} }

// Lookup is a resolved unique-key lookup.
type Lookup struct {
	Key   string
	Value any
}

// Resolve normalises an identifier into a single Lookup.
//
// A scalar resolves to {id, scalar}. A Record resolves to its first declared
// pair, even when it has more. Go maps carry no declaration order, so a map
// resolves to its lexically first key. Nil identifiers, empty objects, nil
// values and unsupported kinds fail with ErrInvalidIdentifier.
func Resolve(id any) (Lookup, error) {
	switch v := id.(type) {
	case nil:
		return Lookup{}, fmt.Errorf("%w: identifier is nil", ErrInvalidIdentifier)
	case Lookup:
		return checkLookup(v.Key, v.Value)
	case Record:
		if len(v) == 0 {
			return Lookup{}, fmt.Errorf("%w: empty object", ErrInvalidIdentifier)
		}
		return checkLookup(v[0].Key, v[0].Value)
	case types.JsonObject:
		return resolveMap(v)
	case map[string]any:
		return resolveMap(v)
	case uuid.UUID:
		return Lookup{Key: PrimaryKey, Value: v}, nil
	}
	if isScalar(id) {
		return Lookup{Key: PrimaryKey, Value: id}, nil
	}
	return Lookup{}, fmt.Errorf("%w: unsupported identifier type %T", ErrInvalidIdentifier, id)
}

func resolveMap(m map[string]any) (Lookup, error) {
	if len(m) == 0 {
		return Lookup{}, fmt.Errorf("%w: empty object", ErrInvalidIdentifier)
	}
	key := types.JsonObject(m).Keys()[0]
	return checkLookup(key, m[key])
}

func checkLookup(key string, value any) (Lookup, error) {
	if key == "" {
		return Lookup{}, fmt.Errorf("%w: empty key", ErrInvalidIdentifier)
	}
	if value == nil {
		return Lookup{}, fmt.Errorf("%w: %s has no value", ErrInvalidIdentifier, key)
	}
	return Lookup{Key: key, Value: value}, nil
}

func isScalar(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
