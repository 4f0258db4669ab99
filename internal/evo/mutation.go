package evo

import (
	"math/rand"

	"tilechain/internal/board"
	"tilechain/internal/model"
	"tilechain/internal/tile"
)

// Mutate perturbs g in place. Start coordinates move with probability rate
// each; heading, one sequence swap and every flip bit with 2*rate. The tile
// counts never change.
func Mutate(rng *rand.Rand, g *model.Genome, size board.Size, rate float64) {
	if rng.Float64() < rate {
		g.Start.X = rng.Intn(size.W)
	}
	if rng.Float64() < rate {
		g.Start.Y = rng.Intn(size.H)
	}
	if rng.Float64() < 2*rate {
		g.Heading = tile.Heading(rng.Intn(tile.HeadingCount))
	}
	if rng.Float64() < 2*rate && len(g.Tiles) >= 2 {
		i := rng.Intn(len(g.Tiles))
		j := rng.Intn(len(g.Tiles) - 1)
		if j >= i {
			j++
		}
		g.Tiles[i], g.Tiles[j] = g.Tiles[j], g.Tiles[i]
	}
	for i := range g.Flips {
		if rng.Float64() < 2*rate {
			g.Flips[i] = !g.Flips[i]
		}
	}
}
