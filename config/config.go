// Package config loads the peakmpc configuration file.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/peakmpc/core/metrics"
	"github.com/kilianp07/peakmpc/core/model"
	"github.com/kilianp07/peakmpc/infra/logger"
	"github.com/kilianp07/peakmpc/infra/monitoring"
	"github.com/kilianp07/peakmpc/infra/results"
)

type Config struct {
	NLE     model.Params      `json:"nle"`
	Solver  SolverConfig      `json:"solver"`
	Runner  RunnerConfig      `json:"runner"`
	Logging logger.Config     `json:"logging"`
	Results results.Config    `json:"results"`
	Metrics metrics.Config    `json:"metrics"`
	Sentry  monitoring.Config `json:"sentry"`
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.Solver.SetDefaults()
	c.Runner.SetDefaults()
	c.Logging.SetDefaults()
	c.Results.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.NLE.Validate(); err != nil {
		return fmt.Errorf("nle: %w", err)
	}
	if err := c.Solver.Validate(); err != nil {
		return err
	}
	if err := c.Runner.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return c.Results.Validate()
}

// Load reads a YAML or JSON file, applies K_ prefixed environment overrides
// (K_NLE__PEAK_COST=12 sets nle.peak_cost), then defaults and validation.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
