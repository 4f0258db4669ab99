package evo

import (
	"math/rand"

	"tilechain/internal/board"
	"tilechain/internal/model"
	"tilechain/internal/tile"
)

// RandomGenome draws a start cell and heading uniformly and shuffles the full
// inventory with independent flips.
func RandomGenome(rng *rand.Rand, size board.Size, inv model.Inventory) model.Genome {
	start := board.Point{X: rng.Intn(size.W), Y: rng.Intn(size.H)}
	heading := tile.Heading(rng.Intn(tile.HeadingCount))

	tiles := inv.Tiles()
	rng.Shuffle(len(tiles), func(i, j int) {
		tiles[i], tiles[j] = tiles[j], tiles[i]
	})
	flips := make([]bool, len(tiles))
	for i := range flips {
		flips[i] = rng.Intn(2) == 1
	}

	return model.Genome{
		Start:   start,
		Heading: heading,
		Tiles:   tiles,
		Flips:   flips,
	}
}

func NewPopulation(rng *rand.Rand, cfg Config) []model.Genome {
	population := make([]model.Genome, cfg.PopulationSize)
	for i := range population {
		population[i] = RandomGenome(rng, cfg.Board, cfg.Inventory)
	}
	return population
}
