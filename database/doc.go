// Package database provides connection management on top of Bun for
// postgres, mysql and sqlite, viper-based configuration, driver error
// classification, query logging hooks, a model registry and table
// migrations.
package database
