package evo

import (
	"context"

	"golang.org/x/sync/errgroup"

	"tilechain/internal/board"
	"tilechain/internal/model"
)

// Evaluate walks the genome's layout on a fresh grid and caches the step count.
func Evaluate(g *model.Genome, size board.Size) int {
	res := board.Simulate(size, g.Start, g.Heading, g.Tiles, g.Flips)
	g.Fitness = res.Steps
	g.Stop = res.Stop
	return res.Steps
}

// EvaluateAll scores every genome in place. Evaluations share no state, so
// they are spread over up to workers goroutines.
func EvaluateAll(ctx context.Context, population []model.Genome, size board.Size, workers int) error {
	if workers <= 1 {
		for i := range population {
			if err := ctx.Err(); err != nil {
				return err
			}
			Evaluate(&population[i], size)
		}
		return nil
	}

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for i := range population {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			Evaluate(&population[i], size)
			return nil
		})
	}
	return group.Wait()
}
