package results

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/kilianp07/peakmpc/core/scenario"
	"github.com/kilianp07/peakmpc/pkg/export"
)

// CSVStore writes one operations file per scenario below Dir/mpc_results and
// appends the scores to a scores.csv per location.
type CSVStore struct {
	Dir string
	// Nested adds an h<horizon>_<season> directory level so scenarios that
	// share a model name do not overwrite each other.
	Nested bool

	mu sync.Mutex
}

// NewCSVStore creates a store rooted at dir.
func NewCSVStore(dir string) *CSVStore {
	return &CSVStore{Dir: dir}
}

// OperationsPath returns the trace file of a scenario.
func (s *CSVStore) OperationsPath(k scenario.Key) string {
	dir := s.locationDir(k)
	if s.Nested {
		dir = filepath.Join(dir, fmt.Sprintf("h%d_%s", k.Horizon, k.Season))
	}
	return filepath.Join(dir, k.Model+"_operations.csv")
}

func (s *CSVStore) locationDir(k scenario.Key) string {
	return filepath.Join(s.Dir, "mpc_results", k.Scale, k.Location)
}

// SaveScenario writes the joined trace and appends the score row.
func (s *CSVStore) SaveScenario(_ context.Context, res scenario.Result) error {
	path := s.OperationsPath(res.Key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteTraceCSV(f, res.Trace); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return s.appendScore(res)
}

var scoreHeader = []string{"run_id", "horizon", "season", "model", "nle", "model_cost", "baseline_cost", "norm_min", "norm_max", "written_at"}

func (s *CSVStore) appendScore(res scenario.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := filepath.Join(s.locationDir(res.Key), "scores.csv")
	_, statErr := os.Stat(path)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	w := csv.NewWriter(f)
	if os.IsNotExist(statErr) {
		if err := w.Write(scoreHeader); err != nil {
			return err
		}
	}
	k := res.Key
	rec := []string{
		res.RunID,
		strconv.Itoa(k.Horizon),
		k.Season,
		k.Model,
		formatFloat(res.NLE),
		formatFloat(res.ModelCost.Total),
		formatFloat(res.BaselineCost.Total),
		formatFloat(res.Normalizer.Min),
		formatFloat(res.Normalizer.Max),
		time.Now().UTC().Format(time.RFC3339),
	}
	if err := w.Write(rec); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// Close is a no-op; files are closed after each write.
func (s *CSVStore) Close() error { return nil }

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
