package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/peakmpc/app"
	"github.com/kilianp07/peakmpc/core/scenario"
	"github.com/kilianp07/peakmpc/dataset"
)

var sweepOpts struct {
	scale    string
	location string
	workers  int
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Score every horizon, season and model of a location concurrently",
	RunE:  sweep,
}

func init() {
	f := sweepCmd.Flags()
	f.StringVar(&sweepOpts.scale, "scale", "1_county", "spatial scale")
	f.StringVar(&sweepOpts.location, "location", "Los_Angeles", "location")
	f.IntVar(&sweepOpts.workers, "workers", 0, "concurrent scenarios (overrides runner.workers)")
	rootCmd.AddCommand(sweepCmd)
}

func sweep(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if sweepOpts.workers > 0 {
		cfg.Runner.Workers = sweepOpts.workers
	}
	cfg.Results.Nested = true
	ds, err := dataset.Open(cfg.Runner.EvalDir, sweepOpts.scale, sweepOpts.location)
	if err != nil {
		return err
	}
	inputs, err := ds.Inputs()
	if err != nil {
		return err
	}
	return withService(cfg, func(ctx context.Context, svc *app.Service) error {
		outcomes := svc.Sweep(ctx, inputs)
		if err := printOutcomes(cmd, outcomes); err != nil {
			return err
		}
		if failed := scenario.Failed(outcomes); len(failed) > 0 {
			return fmt.Errorf("%d of %d scenarios failed: %w", len(failed), len(outcomes), scenario.Join(outcomes))
		}
		return nil
	})
}

func printOutcomes(cmd *cobra.Command, outcomes []scenario.Outcome) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HORIZON\tSEASON\tMODEL\tNLE\tMODEL COST\tBASELINE COST\tSTATUS")
	for _, oc := range outcomes {
		k := oc.Key
		if oc.Err != nil {
			fmt.Fprintf(tw, "%d\t%s\t%s\t-\t-\t-\tfailed\n", k.Horizon, k.Season, k.Model)
			continue
		}
		r := oc.Result
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.6f\t%.6f\t%.6f\tok\n", k.Horizon, k.Season, k.Model, r.NLE, r.ModelCost.Total, r.BaselineCost.Total)
	}
	return tw.Flush()
}
