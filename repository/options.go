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
	"github.com/tomoncle/quarry/database"
	"github.com/tomoncle/quarry/query"
)

type options struct {
	entity     string
	compiler   *query.Compiler
	membership *query.MembershipJoin
	logger     database.Logger
}

// Option configures a repository.
type Option func(*options)

// WithEntityName sets the entity name used in envelope messages. It defaults
// to the Go type name of the model.
func WithEntityName(name string) Option {
	return func(o *options) { o.entity = name }
}

// WithCompiler replaces the default query compiler, e.g. to rename the
// membership relation or the hoisted keys.
func WithCompiler(c *query.Compiler) Option {
	return func(o *options) {
		if c != nil {
			o.compiler = c
		}
	}
}

// WithMembership sets the join table behind the membership relation. Without
// it the join is inferred from the model's has-many relation of that name.
func WithMembership(join query.MembershipJoin) Option {
	return func(o *options) { o.membership = &join }
}

// WithLogger sets the logger faults are reported to. It defaults to
// database.GetLogger().
func WithLogger(l database.Logger) Option {
	return func(o *options) { o.logger = l }
}
