package evo

import (
	"fmt"
	"math/rand"
	"slices"

	"tilechain/internal/model"
)

const DefaultTournamentSize = 5

// Selector chooses the parent pool for one generation.
type Selector interface {
	Name() string
	Select(rng *rand.Rand, population []model.Genome, count int) ([]model.Genome, error)
}

// TournamentSelector samples Size distinct individuals per parent and keeps
// the fittest; the first maximum in sample order wins ties.
type TournamentSelector struct {
	Size int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) size() int {
	if s.Size <= 0 {
		return DefaultTournamentSize
	}
	return s.Size
}

func (s TournamentSelector) Select(rng *rand.Rand, population []model.Genome, count int) ([]model.Genome, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if count < 0 {
		return nil, fmt.Errorf("invalid parent count: %d", count)
	}
	if s.size() > len(population) {
		return nil, fmt.Errorf("tournament size %d exceeds population %d", s.size(), len(population))
	}

	order := identity(len(population))
	parents := make([]model.Genome, 0, count)
	for len(parents) < count {
		parents = append(parents, population[s.draw(rng, population, order)])
	}
	return parents, nil
}

// Tournament runs a single tournament and returns the winner index together
// with the sampled candidate indices in draw order.
func (s TournamentSelector) Tournament(rng *rand.Rand, population []model.Genome) (int, []int) {
	order := identity(len(population))
	winner := s.draw(rng, population, order)
	return winner, slices.Clone(order[:min(s.size(), len(order))])
}

// draw picks one winner without replacement by partially shuffling order,
// which stays a permutation between calls. The first maximum drawn wins.
func (s TournamentSelector) draw(rng *rand.Rand, population []model.Genome, order []int) int {
	size := min(s.size(), len(order))
	best := -1
	for i := 0; i < size; i++ {
		j := i + rng.Intn(len(order)-i)
		order[i], order[j] = order[j], order[i]
		candidate := order[i]
		if best < 0 || population[candidate].Fitness > population[best].Fitness {
			best = candidate
		}
	}
	return best
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
