package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/peakmpc/app"
	"github.com/kilianp07/peakmpc/config"
	"github.com/kilianp07/peakmpc/infra/logger"
)

var (
	cfgPath string
	evalDir string
)

var rootCmd = &cobra.Command{
	Use:           "peakmpc",
	Short:         "Score load forecasts by the cost of peak shaving them with a battery",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.PersistentFlags().StringVar(&evalDir, "eval-dir", "", "evaluation data directory (overrides runner.eval_dir)")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if evalDir != "" {
		cfg.Runner.EvalDir = evalDir
	}
	return cfg, nil
}

// withService builds the service, runs fn with a signal aware context and
// closes the service afterwards.
func withService(cfg *config.Config, fn func(ctx context.Context, svc *app.Service) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	svc.Start(ctx)
	return fn(ctx, svc)
}
