package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLogger("simulator", &buf, zerolog.DebugLevel)
	l.Debugw("step", map[string]any{"step": 3, "net_load": 9.5})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "simulator", entry["component"])
	assert.Equal(t, "step", entry["message"])
	assert.Equal(t, float64(3), entry["step"])
	assert.Equal(t, 9.5, entry["net_load"])
}

func TestZerologLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLogger("test", &buf, zerolog.WarnLevel)
	l.Debugf("debug %d", 1)
	l.Infof("info %s", "x")
	if buf.Len() != 0 {
		t.Fatalf("entries below warn should be dropped: %s", buf.String())
	}
	l.Warnf("warn")
	l.Errorf("error")
	if n := strings.Count(buf.String(), "\n"); n != 2 {
		t.Fatalf("expected 2 entries, got %d", n)
	}
}

func TestConfigValidate(t *testing.T) {
	c := Config{Level: "verbose"}
	c.SetDefaults()
	assert.Error(t, c.Validate())

	c = Config{Level: "debug", Format: "xml"}
	assert.Error(t, c.Validate())

	c = Config{}
	c.SetDefaults()
	assert.NoError(t, c.Validate())
	assert.Equal(t, "info", c.Level)
}

func TestSetupWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peakmpc.log")
	closer, err := Setup(Config{Level: "info", Format: "json", File: path})
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = Setup(Config{Level: "info", Format: "json"})
	})

	New("cli").Infof("hello %s", "file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"cli"`)
	assert.Contains(t, string(data), "hello file")
}
