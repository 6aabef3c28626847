// Package dataset loads evaluation files holding the ground truth and the
// per-model forecast windows of one location.
//
// Layout of <eval_dir>/<scale>/<location>.yaml (JSON is accepted too):
//
//	scale: household
//	location: Paris
//	horizons:
//	  "24":
//	    winter:
//	      ground_truth: {start: "2021-01-01T00:00:00Z", freq: 1h, values: [...]}
//	      models:
//	        lstm:
//	          - {start: "2021-01-01T01:00:00Z", freq: 1h, values: [...]}
package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/peakmpc/core/model"
	"github.com/kilianp07/peakmpc/core/scenario"
)

var (
	// ErrNotFound is returned by Open when no file with a known extension
	// exists for the dataset.
	ErrNotFound = errors.New("dataset not found")
	// ErrUnknownHorizon is returned by Scenario for a horizon the dataset
	// has no forecasts for.
	ErrUnknownHorizon = errors.New("unknown horizon")
	// ErrUnknownSeason is returned by Scenario for a season missing under
	// the requested horizon.
	ErrUnknownSeason = errors.New("unknown season")
	// ErrUnknownModel is returned by Scenario for a forecaster name missing
	// under the requested horizon and season.
	ErrUnknownModel = errors.New("unknown model")
)

// Extensions are tried in order by Open.
var Extensions = []string{".yaml", ".yml", ".json"}

// Block is a regularly sampled series.
type Block struct {
	Start  string    `yaml:"start" json:"start"`
	Freq   string    `yaml:"freq" json:"freq"`
	Values []float64 `yaml:"values" json:"values"`
}

// Series expands the block into timestamped points.
func (b Block) Series() (model.Series, error) {
	start, err := time.Parse(time.RFC3339, b.Start)
	if err != nil {
		return nil, fmt.Errorf("start %q: %w", b.Start, err)
	}
	freq, err := time.ParseDuration(b.Freq)
	if err != nil {
		return nil, fmt.Errorf("freq %q: %w", b.Freq, err)
	}
	if freq <= 0 {
		return nil, fmt.Errorf("freq %q must be positive", b.Freq)
	}
	out := make(model.Series, len(b.Values))
	for i, v := range b.Values {
		out[i] = model.Point{Time: start.Add(time.Duration(i) * freq), Value: v}
	}
	return out, nil
}

// Season holds the ground truth and the forecasts of every model.
type Season struct {
	GroundTruth Block              `yaml:"ground_truth" json:"ground_truth"`
	Models      map[string][]Block `yaml:"models" json:"models"`
}

// File is the on-disk document.
type File struct {
	Scale    string                       `yaml:"scale" json:"scale"`
	Location string                       `yaml:"location" json:"location"`
	Horizons map[string]map[string]Season `yaml:"horizons" json:"horizons"`
}

// Dataset is a loaded and validated evaluation file.
type Dataset struct {
	Scale    string
	Location string
	horizons map[int]map[string]Season
}

// Open loads <evalDir>/<scale>/<location> with the first extension found.
func Open(evalDir, scale, location string) (*Dataset, error) {
	base := filepath.Join(evalDir, scale, location)
	for _, ext := range Extensions {
		path := base + ext
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return nil, fmt.Errorf("%w: %s{%s}", ErrNotFound, base, strings.Join(Extensions, ","))
}

// Load reads and validates an evaluation file. Scale and location default to
// the parent directory and file name.
func Load(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	// JSON documents are valid YAML
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if f.Scale == "" {
		f.Scale = filepath.Base(filepath.Dir(path))
	}
	if f.Location == "" {
		f.Location = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	d, err := New(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// New validates f.
func New(f File) (*Dataset, error) {
	d := &Dataset{Scale: f.Scale, Location: f.Location, horizons: make(map[int]map[string]Season, len(f.Horizons))}
	for hs, seasons := range f.Horizons {
		h, err := strconv.Atoi(hs)
		if err != nil || h < 2 {
			return nil, fmt.Errorf("horizon %q must be an integer >= 2", hs)
		}
		for name, s := range seasons {
			if len(s.GroundTruth.Values) == 0 {
				return nil, fmt.Errorf("h%d/%s: empty ground truth", h, name)
			}
			if _, err := s.GroundTruth.Series(); err != nil {
				return nil, fmt.Errorf("h%d/%s ground truth: %w", h, name, err)
			}
			for m, windows := range s.Models {
				if len(windows) < 2 {
					return nil, fmt.Errorf("h%d/%s/%s: need at least 2 forecast windows, got %d", h, name, m, len(windows))
				}
				for i, w := range windows {
					if len(w.Values) != h {
						return nil, fmt.Errorf("h%d/%s/%s window %d: %d values, want %d", h, name, m, i, len(w.Values), h)
					}
					if _, err := w.Series(); err != nil {
						return nil, fmt.Errorf("h%d/%s/%s window %d: %w", h, name, m, i, err)
					}
				}
			}
		}
		d.horizons[h] = seasons
	}
	return d, nil
}

// Keys lists every scenario of the dataset in a stable order.
func (d *Dataset) Keys() []scenario.Key {
	var keys []scenario.Key
	for h, seasons := range d.horizons {
		for s, season := range seasons {
			for m := range season.Models {
				keys = append(keys, scenario.Key{Scale: d.Scale, Location: d.Location, Horizon: h, Season: s, Model: m})
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Horizon != b.Horizon {
			return a.Horizon < b.Horizon
		}
		if a.Season != b.Season {
			return a.Season < b.Season
		}
		return a.Model < b.Model
	})
	return keys
}

// Input returns the scenario input for one horizon, season and model.
func (d *Dataset) Input(horizon int, season, modelName string) (scenario.Input, error) {
	key := scenario.Key{Scale: d.Scale, Location: d.Location, Horizon: horizon, Season: season, Model: modelName}
	seasons, ok := d.horizons[horizon]
	if !ok {
		return scenario.Input{}, fmt.Errorf("%w %d for %s/%s", ErrUnknownHorizon, horizon, d.Scale, d.Location)
	}
	s, ok := seasons[season]
	if !ok {
		return scenario.Input{}, fmt.Errorf("%w %q for horizon %d", ErrUnknownSeason, season, horizon)
	}
	windows, ok := s.Models[modelName]
	if !ok {
		return scenario.Input{}, fmt.Errorf("%w %q for h%d/%s", ErrUnknownModel, modelName, horizon, season)
	}
	gt, err := s.GroundTruth.Series()
	if err != nil {
		return scenario.Input{}, err
	}
	in := scenario.Input{Key: key, GroundTruth: gt, Forecasts: make([]model.Series, len(windows))}
	for i, w := range windows {
		if in.Forecasts[i], err = w.Series(); err != nil {
			return scenario.Input{}, err
		}
	}
	sort.SliceStable(in.Forecasts, func(i, j int) bool {
		return in.Forecasts[i][0].Time.Before(in.Forecasts[j][0].Time)
	})
	return in, nil
}

// Inputs returns the input of every key.
func (d *Dataset) Inputs() ([]scenario.Input, error) {
	keys := d.Keys()
	out := make([]scenario.Input, 0, len(keys))
	for _, k := range keys {
		in, err := d.Input(k.Horizon, k.Season, k.Model)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}
