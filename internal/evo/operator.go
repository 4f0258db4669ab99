package evo

import (
	"math/rand"

	"tilechain/internal/board"
	"tilechain/internal/model"
)

// Operator perturbs a freshly bred child in place. It must keep the tile
// counts of the child unchanged.
type Operator interface {
	Name() string
	Apply(rng *rand.Rand, genome *model.Genome)
}

// RateMutation is Mutate bound to a board and rate.
type RateMutation struct {
	Board board.Size
	Rate  float64
}

func (RateMutation) Name() string {
	return "rate_mutation"
}

func (m RateMutation) Apply(rng *rand.Rand, genome *model.Genome) {
	Mutate(rng, genome, m.Board, m.Rate)
}
