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

package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/tomoncle/quarry/query"
	"github.com/tomoncle/quarry/types"
)

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <identifier>",
		Short: "Resolve an identifier into the lookup Update and Delete use",
		Long: `resolve decodes a JSON or YAML identifier and prints the key/value lookup
it resolves to. A scalar looks up "id"; an object looks up its first key.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeEnvelope(cmd.OutOrStdout(), runResolve(args[0]))
		},
	}
}

// resolved is the output of resolve.
type resolved struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func runResolve(doc string) types.Envelope[resolved] {
	id, err := query.ParseIdentifier([]byte(strings.TrimSpace(doc)))
	if err != nil {
		return types.Failure[resolved](err, types.WithSymbol(types.BadEntry))
	}
	lookup, err := query.Resolve(id)
	if err != nil {
		return types.Failure[resolved](err, types.WithSymbol(types.BadEntry))
	}
	return types.Success(resolved{Key: lookup.Key, Value: lookup.Value})
}
