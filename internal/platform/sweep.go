package platform

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"tilechain/internal/evo"
	"tilechain/internal/stats"
)

type SweepRequest struct {
	ID              string
	Base            evo.Config
	PopulationSizes []int
	Generations     []int
	// Parallel bounds how many cells run at once; values below 2 run the
	// grid in order.
	Parallel int
}

// Range lists from, from+step, ... up to and including to.
func Range(from, to, step int) []int {
	if step <= 0 || to < from {
		return nil
	}
	out := make([]int, 0, (to-from)/step+1)
	for v := from; v <= to; v += step {
		out = append(out, v)
	}
	return out
}

// DefaultSweep covers populations and generation counts 500, 600 and 700.
func DefaultSweep(base evo.Config) SweepRequest {
	return SweepRequest{
		Base:            base,
		PopulationSizes: Range(500, 700, 100),
		Generations:     Range(500, 700, 100),
	}
}

// Sweep runs one search per population size and generation count pair. Cell
// i is seeded with Base.Seed+i so a sweep is reproducible whatever its
// parallelism.
func (r *Runner) Sweep(ctx context.Context, req SweepRequest) (stats.SweepReport, error) {
	if len(req.PopulationSizes) == 0 || len(req.Generations) == 0 {
		return stats.SweepReport{}, fmt.Errorf("sweep needs at least one population size and generation count")
	}
	id := req.ID
	if id == "" {
		id = r.cfg.NewID()
	}

	type cell struct {
		cfg evo.Config
	}
	var cells []cell
	for _, population := range req.PopulationSizes {
		for _, generations := range req.Generations {
			cfg := req.Base
			cfg.PopulationSize = population
			cfg.Generations = generations
			cfg.Seed = req.Base.Seed + int64(len(cells))
			if err := cfg.Validate(); err != nil {
				return stats.SweepReport{}, fmt.Errorf("sweep cell population=%d generations=%d: %w", population, generations, err)
			}
			cells = append(cells, cell{cfg: cfg})
		}
	}

	report := stats.SweepReport{
		ID:           id,
		StartedAtUTC: r.cfg.Now().UTC().Format(stats.TimestampLayout),
		Cells:        make([]stats.SweepCell, len(cells)),
	}
	r.cfg.Logger.Printf("sweep_started sweep_id=%s cells=%d parallel=%d", id, len(cells), max(req.Parallel, 1))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(max(req.Parallel, 1))
	for i, c := range cells {
		group.Go(func() error {
			summary, err := r.Run(gctx, RunRequest{Search: c.cfg})
			if err != nil {
				return err
			}
			report.Cells[i] = stats.SweepCell{
				PopulationSize:  c.cfg.PopulationSize,
				Generations:     c.cfg.Generations,
				RunID:           summary.Record.ID,
				BestFitness:     summary.Record.Best.Fitness,
				Evaluations:     summary.Record.Evaluations,
				DurationSeconds: summary.Record.Duration,
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		r.cfg.Logger.Printf("sweep_failed sweep_id=%s err=%v", id, err)
		return stats.SweepReport{}, fmt.Errorf("sweep %s: %w", id, err)
	}
	report.CompletedAtUTC = r.cfg.Now().UTC().Format(stats.TimestampLayout)

	if r.cfg.ArtifactsDir != "" {
		if err := stats.WriteSweepReport(r.cfg.ArtifactsDir, report); err != nil {
			return stats.SweepReport{}, fmt.Errorf("write sweep report %s: %w", id, err)
		}
	}
	best, _ := report.Best()
	r.cfg.Logger.Printf(
		"sweep_completed sweep_id=%s best_fitness=%d best_population=%d best_generations=%d best_run_id=%s",
		id, best.BestFitness, best.PopulationSize, best.Generations, best.RunID,
	)
	return report, nil
}
