package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"impactsim/app"
	"impactsim/internal"
	"impactsim/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "impactsim",
		Short:         "Monte Carlo simulation of disparate-impact measurement",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file (default $IMPACTSIM_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "ERROR|WARN|INFO|DEBUG|TRACE (default $LOG_LEVEL or INFO)")

	load := func(cmd *cobra.Command) (*config.Config, *internal.Logger, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, nil, err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		return cfg, internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel)), nil
	}

	rootCmd.AddCommand(
		newSimulateCmd(load),
		newRenderCmd(load),
		newConfigCmd(load),
	)
	return rootCmd
}

type loader func(cmd *cobra.Command) (*config.Config, *internal.Logger, error)

func newSimulateCmd(load loader) *cobra.Command {
	var (
		minN, maxN, step, iterations, workers int
		seed                                  int64
		outDir, format, policy                string
		failFast, noCells                     bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the simulation grid and write charts, tables and a manifest",
		Long: `Run every (sample size, iteration) cell of the grid, aggregate per scenario
and sample size, and write ratio/p-value charts, results tables, a per-cell
table, a run summary and a manifest to the output directory.

Example: impactsim simulate --min-n 200 --max-n 4000 --step 200 --iterations 100 --seed 9487565`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(cmd)
			if err != nil {
				return err
			}

			f := cmd.Flags()
			if f.Changed("min-n") {
				cfg.Grid.MinN = minN
			}
			if f.Changed("max-n") {
				cfg.Grid.MaxN = maxN
			}
			if f.Changed("step") {
				cfg.Grid.Step = step
			}
			if f.Changed("iterations") {
				cfg.Grid.Iterations = iterations
			}
			if f.Changed("seed") {
				cfg.Run.Seed = seed
			}
			if f.Changed("workers") {
				cfg.Run.Workers = workers
			}
			if f.Changed("probability-policy") {
				cfg.Run.ProbabilityPolicy = policy
			}
			if f.Changed("fail-fast") {
				cfg.Run.FailFast = failFast
			}
			if f.Changed("out-dir") {
				cfg.Output.Dir = outDir
			}
			if f.Changed("format") {
				cfg.Output.ChartFormat = format
			}
			if f.Changed("no-cells") {
				cfg.Output.WriteCells = !noCells
			}

			res, err := app.NewDefaultSimulationService(logger).Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s finished in %dms\n", res.RunID, res.RuntimeMs)
			fmt.Fprintf(out, "fingerprint %s\n", res.Manifest.Fingerprint.Fingerprint.Short())
			if len(res.Summary.Gaps) > 0 {
				fmt.Fprintf(out, "%d gap(s):\n", len(res.Summary.Gaps))
				for _, g := range res.Summary.Gaps {
					fmt.Fprintf(out, "  %s\n", g)
				}
			}
			for _, name := range res.Outputs {
				fmt.Fprintf(out, "wrote %s/%s\n", cfg.Output.Dir, name)
			}
			return nil
		},
	}

	defaults := config.Default()
	cmd.Flags().IntVar(&minN, "min-n", defaults.Grid.MinN, "Smallest sample size")
	cmd.Flags().IntVar(&maxN, "max-n", defaults.Grid.MaxN, "Largest sample size")
	cmd.Flags().IntVar(&step, "step", defaults.Grid.Step, "Sample size step")
	cmd.Flags().IntVar(&iterations, "iterations", defaults.Grid.Iterations, "Iterations per sample size")
	cmd.Flags().Int64Var(&seed, "seed", defaults.Run.Seed, "Base random seed")
	cmd.Flags().IntVar(&workers, "workers", defaults.Run.Workers, "Concurrent cells")
	cmd.Flags().StringVar(&policy, "probability-policy", defaults.Run.ProbabilityPolicy, "Out-of-range probabilities: reject|clamp")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Abort the run on the first numerical domain error")
	cmd.Flags().StringVar(&outDir, "out-dir", defaults.Output.Dir, "Output directory")
	cmd.Flags().StringVar(&format, "format", defaults.Output.ChartFormat, "Chart format: png|svg|pdf")
	cmd.Flags().BoolVar(&noCells, "no-cells", false, "Skip the per-cell table")

	return cmd
}

func newRenderCmd(load loader) *cobra.Command {
	var outDir, format string

	cmd := &cobra.Command{
		Use:   "render [results-table]",
		Short: "Re-render charts and summary from a results.csv or results.xlsx",
		Long: `Read an aggregated results table written by simulate and draw the charts
and run summary again, without re-running the simulation.

Example: impactsim render out/results.xlsx --out-dir out/svg --format svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("format") {
				cfg.Output.ChartFormat = format
			}
			if outDir == "" {
				outDir = cfg.Output.Dir
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			outputs, err := app.NewDefaultSimulationService(logger).Render(cmd.Context(), args[0], outDir, cfg)
			if err != nil {
				return err
			}
			for _, name := range outputs {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s/%s\n", outDir, name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out-dir", "", "Output directory (default output.dir)")
	cmd.Flags().StringVar(&format, "format", "png", "Chart format: png|svg|pdf")

	return cmd
}

func newConfigCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load(cmd)
			if err != nil {
				return err
			}
			data, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
