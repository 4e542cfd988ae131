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
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tomoncle/quarry/types"
	"github.com/tomoncle/quarry/utils"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "quarry",
		Short: "Compile query specs and inspect the data-access layer",
		Long: `quarry compiles filter, order and include specs into the queries the
repository runs, resolves identifiers the way Update and Delete do, and
checks database connectivity.

Every command prints a result envelope as JSON.

Examples:
  # Show the compiled form of a spec
  quarry compile spec.yaml

  # Render the where and order part as PostgreSQL
  quarry compile --sql --table users --dialect postgres spec.yaml

  # Resolve an identifier
  quarry resolve '{email: a@b.c}'

  # Check the configured database
  quarry health --config quarry.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCompileCmd(), newResolveCmd(), newHealthCmd())
	return root
}

// errFailed marks a command whose failure envelope was already printed.
var errFailed = fmt.Errorf("command failed")

func writeEnvelope[T any](w io.Writer, env types.Envelope[T]) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return err
	}
	if env.Failed() {
		return errFailed
	}
	return nil
}

// readInput returns the named file, or stdin for "-" or no argument.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}

func main() {
	// stdout carries the envelope
	utils.ConfigureConsoleOutput(os.Stderr)
	if err := newRootCmd().Execute(); err != nil {
		if err != errFailed {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
