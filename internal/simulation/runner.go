package simulation

import (
	"context"
	"sync/atomic"
	"time"

	"impactsim/domain/core"
	"impactsim/domain/scenario"
	"impactsim/internal"
	"impactsim/internal/config"
	"impactsim/internal/errors"
	"impactsim/ports"

	"golang.org/x/sync/errgroup"
)

// Runner executes the simulator over every cell of a grid
type Runner struct {
	sim      *Simulator
	rng      ports.RNGPort
	seed     int64
	workers  int
	failFast bool
	logger   *internal.Logger
}

// NewRunner creates a grid runner
func NewRunner(sim *Simulator, rng ports.RNGPort, cfg *config.Config, logger *internal.Logger) *Runner {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	workers := cfg.Run.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Runner{
		sim:      sim,
		rng:      rng,
		seed:     cfg.Run.Seed,
		workers:  workers,
		failFast: cfg.Run.FailFast,
		logger:   logger.With("Runner"),
	}
}

// Run simulates every (sample size, iteration) cell. Each cell owns one slot
// of the returned slice (sizeIndex*iterations + iteration) and its own random
// stream, so the output does not depend on the worker count.
//
// A numerical domain failure is recorded on the cell's Result and the run
// continues, unless fail-fast is configured.
func (r *Runner) Run(ctx context.Context, grid config.GridConfig) ([]scenario.Result, error) {
	sizes := grid.SampleSizes()
	total := len(sizes) * grid.Iterations
	if total == 0 {
		return nil, errors.InvalidInput("grid has no cells")
	}

	results := make([]scenario.Result, total)
	var done, failed atomic.Int64
	start := time.Now()
	step := int64(total / 10)
	if step == 0 {
		step = 1
	}

	r.logger.Info("simulating %d cells (%d sample sizes x %d iterations) with %d workers, seed %d",
		total, len(sizes), grid.Iterations, r.workers, r.seed)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

schedule:
	for si, n := range sizes {
		for it := 0; it < grid.Iterations; it++ {
			if gctx.Err() != nil {
				break schedule
			}
			slot := si*grid.Iterations + it
			g.Go(func() error {
				key := core.NewCellKey(n, it)
				src, err := r.rng.CellStream(gctx, key, r.seed)
				if err != nil {
					return err
				}

				res, err := r.sim.Simulate(gctx, n, it, src)
				if err != nil {
					if r.failFast || !core.IsNumericalDomainError(err) {
						return err
					}
					failed.Add(1)
					r.logger.Error("cell %s aborted: %v", key, err)
					res = scenario.Result{N: n, Iteration: it, Failure: err}
				}
				results[slot] = res

				if d := done.Add(1); d%step == 0 || d == int64(total) {
					r.logger.Info("progress %d/%d cells (%.0f%%) in %v",
						d, total, 100*float64(d)/float64(total), time.Since(start).Round(time.Millisecond))
				}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "simulation aborted")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "simulation cancelled")
	}

	r.logger.Info("finished %d cells in %v (%d aborted)", total, time.Since(start).Round(time.Millisecond), failed.Load())
	return results, nil
}
