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
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"github.com/tomoncle/quarry/database"
	"github.com/tomoncle/quarry/types"
)

func newHealthCmd() *cobra.Command {
	var (
		configPath string
		timeout    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Connect to the configured database and report its health",
		Long: `health loads the configuration (file, then QUARRY_* and DB_* environment
variables), connects and prints the health status and pool statistics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return writeEnvelope(cmd.OutOrStdout(), runHealth(ctx, configPath))
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (default ./quarry.{yaml,json,toml})")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Health check timeout")
	return cmd
}

// healthReport is the output of health.
type healthReport struct {
	Type   string                 `json:"type"`
	Status *database.HealthStatus `json:"status"`
	Stats  *database.DBStats      `json:"stats"`
}

func runHealth(ctx context.Context, path string) types.Envelope[healthReport] {
	cfg, err := database.LoadConfig(path)
	if err != nil {
		return types.Failure[healthReport](err, types.WithSymbol(types.BadEntry))
	}
	cfg.MigrateConfig.EnableMigrateOnStartup = false
	if _, err := database.InitDB(cfg); err != nil {
		return types.Failure[healthReport](err)
	}
	defer func() { _ = database.CloseDB() }()

	report := healthReport{
		Type:   cfg.ConnectionConfig.Type,
		Status: database.GetHealthStatus(ctx),
		Stats:  database.GetDatabaseStats(),
	}
	if !report.Status.Healthy {
		msg := report.Status.LastError
		if msg == "" {
			msg = "database unhealthy"
		}
		env := types.Failure[healthReport](errors.New(msg))
		return env.WithOutput(report)
	}
	return types.Success(report)
}
