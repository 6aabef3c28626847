package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `nle:
  bat_size_kwh: 1
  bat_efficiency: 0.95
  bat_max_power: 0.5
  bat_end_soc_weight: 0.1
  peak_cost: 10
  peak_init: 0
  bat_initial_soc: 0.5
runner:
  workers: 2
logging:
  level: error
  format: json
metrics:
  sinks:
    - type: nop
`

const testDataset = `horizons:
  "3":
    winter:
      ground_truth: {start: "2021-01-01T00:00:00Z", freq: 1h, values: [1, 4, 2, 3, 5, 2]}
      models:
        lstm:
          - {start: "2021-01-01T01:00:00Z", freq: 1h, values: [4, 2, 3]}
          - {start: "2021-01-01T02:00:00Z", freq: 1h, values: [2, 3, 5]}
          - {start: "2021-01-01T03:00:00Z", freq: 1h, values: [3, 5, 2]}
        naive:
          - {start: "2021-01-01T01:00:00Z", freq: 1h, values: [1, 1, 1]}
          - {start: "2021-01-01T02:00:00Z", freq: 1h, values: [4, 4, 4]}
          - {start: "2021-01-01T03:00:00Z", freq: 1h, values: [2, 2, 2]}
`

func setup(t *testing.T) (cfgFile, evalRoot, outDir string) {
	t.Helper()
	root := t.TempDir()
	outDir = filepath.Join(root, "out")
	cfgFile = filepath.Join(root, "config.yaml")
	cfg := testConfig + "results:\n  backend: csv\n  dir: " + outDir + "\n"
	require.NoError(t, os.WriteFile(cfgFile, []byte(cfg), 0o644))
	evalRoot = filepath.Join(root, "eval")
	require.NoError(t, os.MkdirAll(filepath.Join(evalRoot, "household"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(evalRoot, "household", "Paris.yaml"), []byte(testDataset), 0o644))
	return cfgFile, evalRoot, outDir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := Execute()
	return out.String(), err
}

func TestRunPrintsScore(t *testing.T) {
	cfgFile, evalRoot, outDir := setup(t)
	trace := filepath.Join(t.TempDir(), "trace.json")
	out, err := execute(t, "run", "-c", cfgFile, "--eval-dir", evalRoot,
		"--scale", "household", "--location", "Paris", "--season", "winter", "--horizon", "3", "--model", "lstm",
		"--trace-json", trace)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "NLE score: "), out)

	_, err = os.Stat(filepath.Join(outDir, "mpc_results", "household", "Paris", "lstm_operations.csv"))
	assert.NoError(t, err)
	_, err = os.Stat(trace)
	assert.NoError(t, err)
}

func TestRunUnknownModel(t *testing.T) {
	cfgFile, evalRoot, _ := setup(t)
	_, err := execute(t, "run", "-c", cfgFile, "--eval-dir", evalRoot,
		"--scale", "household", "--location", "Paris", "--season", "winter", "--horizon", "3", "--model", "gpt", "--trace-json", "")
	assert.ErrorContains(t, err, "unknown model")
}

func TestSweepPrintsTable(t *testing.T) {
	cfgFile, evalRoot, outDir := setup(t)
	out, err := execute(t, "sweep", "-c", cfgFile, "--eval-dir", evalRoot, "--scale", "household", "--location", "Paris")
	require.NoError(t, err)
	assert.Contains(t, out, "HORIZON")
	assert.Contains(t, out, "lstm")
	assert.Contains(t, out, "naive")
	assert.Equal(t, 0, strings.Count(out, "failed"))

	_, err = os.Stat(filepath.Join(outDir, "mpc_results", "household", "Paris", "h3_winter", "naive_operations.csv"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	cfgFile, evalRoot, _ := setup(t)
	out, err := execute(t, "validate", "-c", cfgFile, "--eval-dir", evalRoot, "--scale", "household", "--location", "Paris")
	require.NoError(t, err)
	assert.Contains(t, out, "dataset household/Paris ok: 2 scenarios")

	_, err = execute(t, "validate", "-c", filepath.Join(t.TempDir(), "missing.yaml"), "--location", "")
	assert.Error(t, err)
}
