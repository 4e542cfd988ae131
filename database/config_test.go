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

package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quarry.yaml")
	doc := `
connection:
  type: postgres
  host: db.internal
  port: 5432
  dbname: app
  slow_query_time: 500ms
migrate:
  enable_migrate_on_startup: true
log:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("QUARRY_CONNECTION_PASSWORD", "secret")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	c := cfg.ConnectionConfig
	if c.Type != TypePostgres || c.Host != "db.internal" || c.Port != 5432 || c.DBName != "app" {
		t.Errorf("connection = %+v", c)
	}
	if c.Password != "secret" {
		t.Errorf("password from environment = %q", c.Password)
	}
	if c.SlowQueryTime != 500*time.Millisecond {
		t.Errorf("slow_query_time = %v", c.SlowQueryTime)
	}
	if c.MaxOpenConns != DefaultConnectionConfig().MaxOpenConns {
		t.Errorf("default max_open_conns lost: %d", c.MaxOpenConns)
	}
	if !cfg.MigrateConfig.EnableMigrateOnStartup || cfg.LogConfig.Level != "debug" || cfg.LogConfig.Format != "json" {
		t.Errorf("config = %+v", cfg)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("an explicit missing file must fail")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ConnectionConfig.Type != TypeSQLite || cfg.ConnectionConfig.DBName != "quarry" {
		t.Errorf("defaults = %+v", cfg.ConnectionConfig)
	}
}

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "override")
	t.Setenv("DB_PORT", "not-a-number")
	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("DB_CONN_MAX_LIFETIME", "60")
	t.Setenv("DB_ENABLE_QUERY_LOG", "true")

	cfg := DefaultConnectionConfig()
	cfg.Port = 3306
	overrideFromEnv(cfg)
	if cfg.Host != "override" || cfg.Port != 3306 || cfg.MaxOpenConns != 7 {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.ConnMaxLifetime != time.Minute || !cfg.EnableQueryLog {
		t.Errorf("lifetime = %v, query log = %v", cfg.ConnMaxLifetime, cfg.EnableQueryLog)
	}
}

func TestConnectionConfigValidate(t *testing.T) {
	valid := []ConnectionConfig{
		{Type: TypeSQLite, DBName: MemoryDBName},
		{Type: TypePostgres, Host: "h", DBName: "d"},
	}
	for _, c := range valid {
		if err := c.Validate(); err != nil {
			t.Errorf("%+v: %v", c, err)
		}
	}
	invalid := []ConnectionConfig{
		{Type: "oracle", DBName: "d"},
		{Type: TypeMySQL, DBName: "d"},
		{Type: TypeSQLite},
		{Type: TypeSQLite, DBName: "x", MaxOpenConns: 1, MaxIdleConns: 2},
	}
	for _, c := range invalid {
		if err := c.Validate(); err == nil {
			t.Errorf("%+v should be rejected", c)
		}
	}
}
