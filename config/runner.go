package config

import (
	"fmt"
	"runtime"
)

// RunnerConfig controls where scenarios come from and how many run at once.
type RunnerConfig struct {
	EvalDir string `json:"eval_dir"`
	// Workers bounds concurrent scenarios in a sweep. Zero means GOMAXPROCS.
	Workers int `json:"workers"`
}

// SetDefaults applies sane defaults.
func (c *RunnerConfig) SetDefaults() {
	if c.EvalDir == "" {
		c.EvalDir = "eval"
	}
	if c.Workers == 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
}

// Validate checks mandatory fields.
func (c RunnerConfig) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("runner: workers must be >= 0, got %d", c.Workers)
	}
	return nil
}
