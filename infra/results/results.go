// Package results persists scenario outcomes as CSV files or SQL rows.
package results

import (
	"context"
	"fmt"
	"io"

	"github.com/kilianp07/peakmpc/core/scenario"
)

// Config selects and configures the result store.
type Config struct {
	// Backend is one of none, csv, sqlite, postgres.
	Backend string `json:"backend"`
	// Dir is the root directory of the csv backend.
	Dir string `json:"dir"`
	// Nested separates csv traces per horizon and season.
	Nested bool `json:"nested"`
	// DSN is the database path (sqlite) or connection string (postgres).
	DSN string `json:"dsn"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "csv"
	}
	if c.Backend == "csv" && c.Dir == "" {
		c.Dir = "."
	}
	if c.Backend == "sqlite" && c.DSN == "" {
		c.DSN = "peakmpc.db"
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	switch c.Backend {
	case "none", "csv":
	case "sqlite", "postgres":
		if c.DSN == "" {
			return fmt.Errorf("results: dsn is required for %s", c.Backend)
		}
	default:
		return fmt.Errorf("results: unknown backend %s", c.Backend)
	}
	return nil
}

// Store is a scenario.Store that holds resources.
type Store interface {
	scenario.Store
	io.Closer
}

// Open builds the store described by cfg.
func Open(cfg Config) (Store, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case "csv":
		return &CSVStore{Dir: cfg.Dir, Nested: cfg.Nested}, nil
	case "sqlite", "postgres":
		st, err := OpenSQL(cfg.Backend, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return discard{}, nil
	}
}

type discard struct{}

func (discard) SaveScenario(context.Context, scenario.Result) error { return nil }
func (discard) Close() error                                         { return nil }
