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
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment keys read by LoadConfig, for example
// QUARRY_CONNECTION_HOST.
const EnvPrefix = "QUARRY"

// NewViper returns a viper instance carrying the configuration defaults and
// environment binding used by LoadConfig.
func NewViper() *viper.Viper {
	v := viper.New()
	d := DefaultConnectionConfig()
	defaults := map[string]any{
		"connection.type":                   TypeSQLite,
		"connection.host":                   "",
		"connection.port":                   0,
		"connection.username":               "",
		"connection.password":               "",
		"connection.dbname":                 "quarry",
		"connection.sslmode":                "",
		"connection.max_idle_conns":         d.MaxIdleConns,
		"connection.max_open_conns":         d.MaxOpenConns,
		"connection.conn_max_lifetime":      d.ConnMaxLifetime,
		"connection.conn_max_idle_time":     d.ConnMaxIdleTime,
		"connection.connect_timeout":        d.ConnectTimeout,
		"connection.read_timeout":           d.ReadTimeout,
		"connection.write_timeout":          d.WriteTimeout,
		"connection.enable_reconnect":       d.EnableReconnect,
		"connection.reconnect_interval":     d.ReconnectInterval,
		"connection.max_reconnect_tries":    d.MaxReconnectTries,
		"connection.health_check_interval":  d.HealthCheckInterval,
		"connection.enable_query_log":       d.EnableQueryLog,
		"connection.slow_query_time":        d.SlowQueryTime,
		"connection.charset":                "utf8mb4",
		"migrate.enable_migrate_on_startup": false,
		"migrate.silent":                    true,
		"log.level":                         "info",
		"log.format":                        "text",
		"log.dir":                           "",
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads path (YAML, JSON or TOML by extension) on top of the
// defaults. With an empty path it looks for quarry.{yaml,json,toml} in the
// working directory and ./configs, and falls back to defaults and
// environment when none exists.
func LoadConfig(path string) (*Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("quarry")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return ConfigFromViper(v)
}

// ConfigFromViper decodes a Config from v.
func ConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}
