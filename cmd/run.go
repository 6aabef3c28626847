package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/peakmpc/app"
	"github.com/kilianp07/peakmpc/dataset"
	"github.com/kilianp07/peakmpc/pkg/export"
)

var runOpts struct {
	scale     string
	location  string
	season    string
	horizon   int
	model     string
	traceJSON string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Score one forecast model on one scenario",
	RunE:  runScenario,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.scale, "scale", "1_county", "spatial scale")
	f.StringVar(&runOpts.location, "location", "Los_Angeles", "location")
	f.StringVar(&runOpts.season, "season", "Summer", "season")
	f.IntVar(&runOpts.horizon, "horizon", 24, "MPC horizon")
	f.StringVar(&runOpts.model, "model", "RandomForest", "forecast model")
	f.StringVar(&runOpts.traceJSON, "trace-json", "", "also write the joined trace as JSON to this file")
	rootCmd.AddCommand(runCmd)
}

func runScenario(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ds, err := dataset.Open(cfg.Runner.EvalDir, runOpts.scale, runOpts.location)
	if err != nil {
		return err
	}
	in, err := ds.Input(runOpts.horizon, runOpts.season, runOpts.model)
	if err != nil {
		return err
	}
	return withService(cfg, func(ctx context.Context, svc *app.Service) error {
		res, err := svc.RunScenario(ctx, in)
		if err != nil {
			return err
		}
		if runOpts.traceJSON != "" {
			f, err := os.Create(runOpts.traceJSON)
			if err != nil {
				return err
			}
			if err := export.WriteTraceJSON(f, res.Trace); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "NLE score: %v\n", res.NLE)
		return err
	})
}
