package evo

import (
	"math/rand"

	"tilechain/internal/board"
	"tilechain/internal/model"
	"tilechain/internal/tile"
)

// Crossover joins a prefix of each parent's sequence. Each cut is drawn from
// [0, min(fitness, len)] so it falls inside the part the parent actually
// walked, then the child is repaired back onto the inventory. Start cell and
// heading are taken field by field from either parent.
func Crossover(rng *rand.Rand, p1, p2 model.Genome, inv model.Inventory) model.Genome {
	cut1 := rng.Intn(min(p1.Fitness, len(p1.Tiles)) + 1)
	cut2 := rng.Intn(min(p2.Fitness, len(p2.Tiles)) + 1)

	kinds := make([]tile.Kind, 0, cut1+cut2)
	kinds = append(kinds, p1.Tiles[:cut1]...)
	kinds = append(kinds, p2.Tiles[:cut2]...)
	flips := make([]bool, 0, cut1+cut2)
	flips = append(flips, flipPrefix(p1, cut1)...)
	flips = append(flips, flipPrefix(p2, cut2)...)

	kinds, flips = Repair(rng, kinds, flips, inv)

	return model.Genome{
		Start: board.Point{
			X: pick(rng, p1.Start.X, p2.Start.X),
			Y: pick(rng, p1.Start.Y, p2.Start.Y),
		},
		Heading: tile.Heading(pick(rng, int(p1.Heading), int(p2.Heading))),
		Tiles:   kinds,
		Flips:   flips,
	}
}

// Repair restores the exact inventory counts. Surplus kinds lose their last
// occurrences together with the paired flip; missing kinds are appended in
// shuffled order with fresh random flips. kinds is compacted in place.
func Repair(rng *rand.Rand, kinds []tile.Kind, flips []bool, inv model.Inventory) ([]tile.Kind, []bool) {
	var surplus [3]int
	for _, kind := range tile.Drawable {
		surplus[kind] = -inv.Count(kind)
	}
	for _, kind := range kinds {
		surplus[kind]++
	}

	drop := make([]bool, len(kinds))
	for i := len(kinds) - 1; i >= 0; i-- {
		if surplus[kinds[i]] > 0 {
			drop[i] = true
			surplus[kinds[i]]--
		}
	}

	keptKinds := kinds[:0]
	keptFlips := make([]bool, 0, inv.Total())
	for i, kind := range kinds {
		if drop[i] {
			continue
		}
		keptKinds = append(keptKinds, kind)
		keptFlips = append(keptFlips, i < len(flips) && flips[i])
	}

	var missing []tile.Kind
	for _, kind := range tile.Drawable {
		for ; surplus[kind] < 0; surplus[kind]++ {
			missing = append(missing, kind)
		}
	}
	rng.Shuffle(len(missing), func(i, j int) {
		missing[i], missing[j] = missing[j], missing[i]
	})
	for _, kind := range missing {
		keptKinds = append(keptKinds, kind)
		keptFlips = append(keptFlips, rng.Intn(2) == 1)
	}
	return keptKinds, keptFlips
}

func flipPrefix(g model.Genome, n int) []bool {
	if n <= len(g.Flips) {
		return g.Flips[:n]
	}
	out := make([]bool, n)
	copy(out, g.Flips)
	return out
}

func pick(rng *rand.Rand, a, b int) int {
	if rng.Intn(2) == 0 {
		return a
	}
	return b
}
