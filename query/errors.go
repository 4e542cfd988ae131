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

import "errors"

var (
	// ErrInvalidIdentifier is returned when a lookup value cannot be turned
	// into a single key/value pair.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrIncludeTooDeep is returned when an include specification nests
	// deeper than the compiler allows, which is also how cyclic
	// specifications are rejected.
	ErrIncludeTooDeep = errors.New("include specification nested too deep")

	// ErrInvalidSpec is returned for malformed documents and for fields or
	// relations the target model does not have.
	ErrInvalidSpec = errors.New("invalid query specification")
)
