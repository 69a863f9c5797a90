package app

import (
	"context"
	"path/filepath"
	"time"

	"impactsim/adapters/excel"
	"impactsim/adapters/markdown"
	"impactsim/adapters/plot"
	"impactsim/adapters/rng"
	"impactsim/domain/core"
	"impactsim/domain/run"
	"impactsim/domain/scenario"
	"impactsim/internal"
	"impactsim/internal/aggregate"
	"impactsim/internal/config"
	"impactsim/internal/errors"
	"impactsim/internal/report"
	"impactsim/internal/simulation"
	"impactsim/ports"
)

// Version is recorded in run manifests; overridden at build time with -ldflags
var Version = "v0.1.0"

// ManifestFile is the manifest's file name inside the output directory
const ManifestFile = "manifest.json"

// SimulationService runs the Simulator → Aggregator → Reporter pipeline
type SimulationService struct {
	rngPort ports.RNGPort
	tables  ports.TableWriter
	reader  ports.TableReader
	charts  ports.ChartRenderer
	docs    ports.DocumentRenderer
	logger  *internal.Logger
}

// RunResult contains the complete output of a simulation run
type RunResult struct {
	RunID     core.RunID        `json:"run_id"`
	Summary   *scenario.Summary `json:"summary"`
	Manifest  *run.Manifest     `json:"manifest"`
	Outputs   []string          `json:"outputs"`
	RuntimeMs int64             `json:"runtime_ms"`
}

// NewSimulationService creates a service over explicit adapters
func NewSimulationService(rngPort ports.RNGPort, tables ports.TableWriter, reader ports.TableReader,
	charts ports.ChartRenderer, docs ports.DocumentRenderer, logger *internal.Logger) *SimulationService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &SimulationService{
		rngPort: rngPort,
		tables:  tables,
		reader:  reader,
		charts:  charts,
		docs:    docs,
		logger:  logger,
	}
}

// NewDefaultSimulationService wires the production adapters
func NewDefaultSimulationService(logger *internal.Logger) *SimulationService {
	return NewSimulationService(
		rng.NewSeededAdapter(),
		excel.NewTableWriter(),
		excel.NewDataReader(),
		plot.NewLineChartRenderer(),
		markdown.NewHTMLRenderer(),
		logger,
	)
}

// Run executes the full grid and writes every report output plus the manifest
func (s *SimulationService) Run(ctx context.Context, cfg *config.Config) (*RunResult, error) {
	startTime := time.Now()
	log := s.logger.With("SimulationService")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runID := core.NewRunID()
	sizes := cfg.Grid.SampleSizes()
	fingerprint := run.NewRunFingerprint(cfg.Grid.Hash(), cfg.Constants.Hash(), cfg.Run.Seed, cfg.Run.ProbabilityPolicy, Version)
	manifest := run.NewManifest(runID, run.Grid{
		MinN:        cfg.Grid.MinN,
		MaxN:        cfg.Grid.MaxN,
		Step:        cfg.Grid.Step,
		Iterations:  cfg.Grid.Iterations,
		SampleSizes: sizes,
	}, cfg.Constants.Params(), cfg.Run.Workers, fingerprint)

	log.Info("run %s: fingerprint %s, grid %s, constants %s",
		runID, fingerprint.Fingerprint.Short(), core.Hash(fingerprint.GridHash).Short(), core.Hash(fingerprint.ConstantsHash).Short())

	sim := simulation.NewSimulator(cfg, s.logger)
	runner := simulation.NewRunner(sim, s.rngPort, cfg, s.logger)
	simStart := time.Now()
	results, err := runner.Run(ctx, cfg.Grid)
	if err != nil {
		return nil, errors.Wrapf(err, "run %s: simulation failed", runID)
	}
	log.Info("simulation finished in %s", time.Since(simStart).Round(time.Millisecond))

	agg := aggregate.New(cfg.Run.Alpha, cfg.Output.FourFifths, s.logger)
	summary, err := agg.Aggregate(results, sizes, cfg.Grid.Iterations)
	if err != nil {
		return nil, errors.Wrapf(err, "run %s: aggregation failed", runID)
	}
	if !summary.Complete() {
		log.Warn("%s", errors.AggregationGap(gapMessage(summary)))
	}

	reporter := report.New(s.tables, s.charts, s.docs, report.OptionsFromConfig(cfg), s.logger)
	outputs, err := reporter.Report(ctx, summary, results)
	if err != nil {
		return nil, errors.Wrapf(err, "run %s: report failed", runID)
	}

	manifest.Complete(summary, append(outputs, ManifestFile))
	if err := manifest.WriteFile(filepath.Join(cfg.Output.Dir, ManifestFile)); err != nil {
		return nil, errors.ReportError("write "+ManifestFile, err)
	}

	runtime := time.Since(startTime)
	log.Info("run %s complete in %s: %d cells, %d failed, %d gap(s), outputs in %s",
		runID, runtime.Round(time.Millisecond), manifest.Cells, summary.CellFailures, len(summary.Gaps), cfg.Output.Dir)

	return &RunResult{
		RunID:     runID,
		Summary:   summary,
		Manifest:  manifest,
		Outputs:   manifest.Outputs,
		RuntimeMs: runtime.Milliseconds(),
	}, nil
}

// Render re-draws the charts and summary from a results table written by a
// previous run. cfg supplies the reference lines and chart format; its output
// directory is replaced by outDir.
func (s *SimulationService) Render(ctx context.Context, tablePath, outDir string, cfg *config.Config) ([]string, error) {
	log := s.logger.With("SimulationService")

	summary, err := s.reader.ReadSummary(ctx, tablePath)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, errors.Wrapf(err, "read %s", tablePath))
	}
	opts := report.OptionsFromConfig(cfg)
	opts.Dir = outDir
	reporter := report.New(s.tables, s.charts, s.docs, opts, s.logger)

	outputs, err := reporter.Charts(ctx, summary)
	if err != nil {
		return nil, err
	}
	docs, err := reporter.Documents(summary)
	if err != nil {
		return nil, err
	}
	outputs = append(outputs, docs...)

	log.Info("rendered %d outputs from %s into %s", len(outputs), tablePath, outDir)
	return outputs, nil
}

func gapMessage(summary *scenario.Summary) string {
	msg := "summary has gaps:"
	for _, g := range summary.Gaps {
		msg += " [" + g.String() + "]"
	}
	return msg
}
