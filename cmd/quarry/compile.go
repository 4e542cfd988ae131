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
	"errors"
	"net/http"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/spf13/cobra"
	"github.com/tomoncle/quarry/database"
	"github.com/tomoncle/quarry/query"
	"github.com/tomoncle/quarry/types"
)

type compileOptions struct {
	sql        bool
	table      string
	dialect    string
	membership query.MembershipJoin
	relation   string
	maxDepth   int
}

// renderedSQL is the output of compile --sql.
type renderedSQL struct {
	SQL  string `json:"sql"`
	Args []any  `json:"args"`
}

func newCompileCmd() *cobra.Command {
	opts := &compileOptions{}
	cmd := &cobra.Command{
		Use:   "compile [file|-]",
		Short: "Compile a query spec (filters, order, include)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			return writeEnvelope(cmd.OutOrStdout(), runCompile(data, opts))
		},
	}
	f := cmd.Flags()
	f.BoolVar(&opts.sql, "sql", false, "Render the where and order part as SQL")
	f.StringVar(&opts.table, "table", "", "Table the SQL selects from")
	f.StringVar(&opts.dialect, "dialect", database.TypePostgres, "SQL placeholder style: postgres|mysql|sqlite")
	f.StringVar(&opts.relation, "relation", query.DefaultMembershipRelation, "Relation the membership keys are hoisted into")
	f.IntVar(&opts.maxDepth, "max-depth", query.DefaultMaxDepth, "Maximum include nesting")
	f.StringVar(&opts.membership.Table, "membership-table", "memberships", "Join table of the membership relation")
	f.StringVar(&opts.membership.ForeignKey, "membership-fk", "user_id", "Join table column referencing the parent row")
	f.StringVar(&opts.membership.ParentKey, "membership-parent-key", query.PrimaryKey, "Parent column referenced by the join table")
	return cmd
}

func runCompile(data []byte, opts *compileOptions) types.Envelope[any] {
	spec, err := query.ParseSpec(data)
	if err != nil {
		return types.Failure[any](err, types.WithSymbol(types.BadEntry))
	}
	c := &query.Compiler{MembershipRelation: opts.relation, MaxDepth: opts.maxDepth}
	compiled, err := c.Compile(spec)
	if err != nil {
		return types.Failure[any](err, types.WithSymbol(types.BadEntry))
	}
	if !opts.sql {
		return types.Success[any](compiled.Map())
	}

	if opts.table == "" {
		return types.Failure[any](errors.New("--sql needs --table"), types.WithSymbol(types.BadEntry))
	}
	b, err := query.ToSelect(compiled, opts.table, &opts.membership)
	if err != nil {
		return types.Failure[any](err, types.WithSymbol(types.BadEntry))
	}
	if strings.HasPrefix(opts.dialect, database.TypePostgres) {
		b = b.PlaceholderFormat(sq.Dollar)
	}
	stmt, args, err := b.ToSql()
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, query.ErrInvalidSpec) {
			code = http.StatusBadRequest
		}
		return types.Failure[any](err, types.WithCode(code))
	}
	if args == nil {
		args = []any{}
	}
	return types.Success[any](renderedSQL{SQL: stmt, Args: args})
}
