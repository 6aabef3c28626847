package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	corelogger "github.com/kilianp07/peakmpc/core/logger"
)

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.Nop

// Config controls the process wide log output.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level"`
	// Format is "json" or "console". Empty means console when APP_ENV=dev.
	Format string `json:"format"`
	// File, when set, duplicates the output into a rotated log file.
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		if strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
			c.Format = "console"
		} else {
			c.Format = "json"
		}
	}
	if c.File != "" && c.MaxSizeMB == 0 {
		c.MaxSizeMB = 50
	}
}

// Validate checks the level and format names.
func (c Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Level)); err != nil {
		return fmt.Errorf("log level %q: %w", c.Level, err)
	}
	switch c.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format %s", c.Format)
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("log rotation settings must be non-negative")
	}
	return nil
}

var (
	mu   sync.RWMutex
	base = zerolog.New(defaultWriter()).With().Timestamp().Logger()
)

func defaultWriter() io.Writer {
	if strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return os.Stdout
}

// Setup replaces the base logger used by New. The returned closer releases
// the rotated log file, if any.
func Setup(cfg Config) (io.Closer, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	lvl, _ := zerolog.ParseLevel(strings.ToLower(cfg.Level))

	var out io.Writer = os.Stdout
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		out = zerolog.MultiLevelWriter(out, lj)
		closer = lj
	}

	mu.Lock()
	base = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	mu.Unlock()
	return closer, nil
}

// New returns a Logger for the given component. All entries carry a
// component field.
func New(component string) Logger {
	mu.RLock()
	z := base.With().Str("component", component).Logger()
	mu.RUnlock()
	return &ZerologLogger{log: z}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
