package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/peakmpc/dataset"
)

var validateOpts struct {
	scale    string
	location string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and, when --location is set, the dataset",
	RunE:  validate,
}

func init() {
	f := validateCmd.Flags()
	f.StringVar(&validateOpts.scale, "scale", "1_county", "spatial scale")
	f.StringVar(&validateOpts.location, "location", "", "location to check")
	rootCmd.AddCommand(validateCmd)
}

func validate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "config %s ok (battery %.3g kWh, %.3g kW)\n", cfgPath, cfg.NLE.BatSizeKWh, cfg.NLE.BatMaxPower)
	if validateOpts.location == "" {
		return nil
	}
	ds, err := dataset.Open(cfg.Runner.EvalDir, validateOpts.scale, validateOpts.location)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "dataset %s/%s ok: %d scenarios\n", ds.Scale, ds.Location, len(ds.Keys()))
	return nil
}
