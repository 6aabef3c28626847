package results

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/kilianp07/peakmpc/core/model"
	"github.com/kilianp07/peakmpc/core/scenario"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS scores (
        run_id TEXT NOT NULL,
        scale TEXT NOT NULL,
        location TEXT NOT NULL,
        horizon INTEGER NOT NULL,
        season TEXT NOT NULL,
        model TEXT NOT NULL,
        nle DOUBLE PRECISION,
        model_cost DOUBLE PRECISION,
        baseline_cost DOUBLE PRECISION,
        norm_min DOUBLE PRECISION,
        norm_max DOUBLE PRECISION,
        steps INTEGER,
        created_at TEXT,
        PRIMARY KEY(run_id, scale, location, horizon, season, model)
    )`,
	`CREATE TABLE IF NOT EXISTS operations (
        run_id TEXT NOT NULL,
        scale TEXT NOT NULL,
        location TEXT NOT NULL,
        horizon INTEGER NOT NULL,
        season TEXT NOT NULL,
        model TEXT NOT NULL,
        run TEXT NOT NULL,
        step INTEGER NOT NULL,
        ts TEXT,
        net_load DOUBLE PRECISION,
        bss_p_ch DOUBLE PRECISION,
        bss_en DOUBLE PRECISION,
        load DOUBLE PRECISION,
        opr_net_load DOUBLE PRECISION,
        peak DOUBLE PRECISION,
        forecast DOUBLE PRECISION,
        PRIMARY KEY(run_id, scale, location, horizon, season, model, run, step)
    )`,
}

// SQLStore writes scores and operations into a SQLite or PostgreSQL database.
type SQLStore struct {
	db       *sql.DB
	postgres bool
	// RunID tags results whose scenario.Result carries none.
	RunID string
}

// OpenSQL opens the database with driver "sqlite" or "postgres" and ensures
// the schema.
func OpenSQL(driver, dsn string) (*SQLStore, error) {
	if driver != "sqlite" && driver != "postgres" {
		return nil, fmt.Errorf("results: unsupported driver %s", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// a single connection serialises concurrent sweeps on the file lock
		db.SetMaxOpenConns(1)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("results: create schema: %w", err)
		}
	}
	return &SQLStore{db: db, postgres: driver == "postgres", RunID: uuid.NewString()}, nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(q string) string {
	if !s.postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SaveScenario replaces the rows of the scenario for its run id.
func (s *SQLStore) SaveScenario(ctx context.Context, res scenario.Result) error {
	runID := res.RunID
	if runID == "" {
		runID = s.RunID
	}
	k := res.Key
	keyArgs := []any{runID, k.Scale, k.Location, k.Horizon, k.Season, k.Model}
	keyWhere := ` WHERE run_id = ? AND scale = ? AND location = ? AND horizon = ? AND season = ? AND model = ?`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"scores", "operations"} {
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM `+table+keyWhere), keyArgs...); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO scores
        (run_id, scale, location, horizon, season, model, nle, model_cost, baseline_cost, norm_min, norm_max, steps, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		append(keyArgs, res.NLE, res.ModelCost.Total, res.BaselineCost.Total,
			res.Normalizer.Min, res.Normalizer.Max, len(res.Trace), time.Now().UTC().Format(time.RFC3339))...); err != nil {
		return fmt.Errorf("insert score: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO operations
        (run_id, scale, location, horizon, season, model, run, step, ts, net_load, bss_p_ch, bss_en, load, opr_net_load, peak, forecast)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare operations: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	for _, tr := range res.Trace {
		for _, run := range []struct {
			name string
			row  model.OperationRow
		}{{"model", tr.Model}, {"baseline", tr.Baseline}} {
			r := run.row
			args := append(append([]any{}, keyArgs...), run.name, tr.Step, tr.Time.UTC().Format(time.RFC3339Nano),
				r.NetLoad, r.Charge, r.Energy, r.Load, r.OprNetLoad, r.Peak, r.Forecast)
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("insert operation %s/%d: %w", run.name, tr.Step, err)
			}
		}
	}
	return tx.Commit()
}

// Score is a persisted scores row.
type Score struct {
	RunID        string
	Key          scenario.Key
	NLE          float64
	ModelCost    float64
	BaselineCost float64
	Steps        int
}

// Scores returns the scores of a run ordered by scenario key.
func (s *SQLStore) Scores(ctx context.Context, runID string) ([]Score, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT run_id, scale, location, horizon, season, model, nle, model_cost, baseline_cost, steps
        FROM scores WHERE run_id = ? ORDER BY scale, location, horizon, season, model`), runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Score
	for rows.Next() {
		var sc Score
		if err := rows.Scan(&sc.RunID, &sc.Key.Scale, &sc.Key.Location, &sc.Key.Horizon, &sc.Key.Season, &sc.Key.Model,
			&sc.NLE, &sc.ModelCost, &sc.BaselineCost, &sc.Steps); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Operations returns the realised rows of one run ("model" or "baseline")
// of a scenario, ordered by step.
func (s *SQLStore) Operations(ctx context.Context, runID string, k scenario.Key, run string) (model.OperationRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT step, ts, net_load, bss_p_ch, bss_en, load, opr_net_load, peak, forecast
        FROM operations WHERE run_id = ? AND scale = ? AND location = ? AND horizon = ? AND season = ? AND model = ? AND run = ?
        ORDER BY step`), runID, k.Scale, k.Location, k.Horizon, k.Season, k.Model, run)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out model.OperationRecord
	for rows.Next() {
		var r model.OperationRow
		var ts string
		if err := rows.Scan(&r.Step, &ts, &r.NetLoad, &r.Charge, &r.Energy, &r.Load, &r.OprNetLoad, &r.Peak, &r.Forecast); err != nil {
			return nil, err
		}
		if r.Time, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("operation %d: %w", r.Step, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error { return s.db.Close() }
