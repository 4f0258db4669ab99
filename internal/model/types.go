package model

import (
	"slices"
	"strconv"
	"time"

	"tilechain/internal/board"
	"tilechain/internal/tile"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Inventory is the exact number of each drawable kind a tile sequence holds.
type Inventory struct {
	A int `json:"a"`
	B int `json:"b"`
	C int `json:"c"`
}

func DefaultInventory() Inventory {
	return Inventory{A: 10, B: 10, C: 8}
}

func (inv Inventory) Count(kind tile.Kind) int {
	switch kind {
	case tile.KindA:
		return inv.A
	case tile.KindB:
		return inv.B
	case tile.KindC:
		return inv.C
	default:
		return 0
	}
}

func (inv Inventory) Total() int {
	return inv.A + inv.B + inv.C
}

// Tiles returns the inventory as an ordered A..B..C sequence.
func (inv Inventory) Tiles() []tile.Kind {
	out := make([]tile.Kind, 0, inv.Total())
	for _, kind := range tile.Drawable {
		for i := 0; i < inv.Count(kind); i++ {
			out = append(out, kind)
		}
	}
	return out
}

// Matches reports whether kinds holds exactly the inventory counts.
func (inv Inventory) Matches(kinds []tile.Kind) bool {
	var counts [3]int
	for _, kind := range kinds {
		if kind > tile.KindC {
			return false
		}
		counts[kind]++
	}
	return counts[tile.KindA] == inv.A && counts[tile.KindB] == inv.B && counts[tile.KindC] == inv.C
}

// Genome is one candidate layout: where the token starts, which way it faces,
// and the order tiles are laid as the token reaches empty cells.
type Genome struct {
	VersionedRecord
	Start   board.Point      `json:"start"`
	Heading tile.Heading     `json:"heading"`
	Tiles   []tile.Kind      `json:"tiles"`
	Flips   []bool           `json:"flips"`
	Fitness int              `json:"fitness"`
	Stop    board.StopReason `json:"stop,omitempty"`
}

func (g Genome) Clone() Genome {
	out := g
	out.Tiles = slices.Clone(g.Tiles)
	out.Flips = slices.Clone(g.Flips)
	return out
}

// Key identifies the layout independent of its cached fitness.
func (g Genome) Key() string {
	buf := make([]byte, 0, 8+2*len(g.Tiles))
	buf = strconv.AppendInt(buf, int64(g.Start.X), 10)
	buf = append(buf, ',')
	buf = strconv.AppendInt(buf, int64(g.Start.Y), 10)
	buf = append(buf, ',')
	buf = strconv.AppendInt(buf, int64(g.Heading), 10)
	buf = append(buf, ':')
	for i, kind := range g.Tiles {
		buf = append(buf, kind.String()...)
		if i < len(g.Flips) && g.Flips[i] {
			buf = append(buf, '1')
		} else {
			buf = append(buf, '0')
		}
	}
	return string(buf)
}

type GenerationDiagnostics struct {
	Generation      int                      `json:"generation"`
	BestFitness     int                      `json:"best_fitness"`
	MeanFitness     float64                  `json:"mean_fitness"`
	MinFitness      int                      `json:"min_fitness"`
	DistinctLayouts int                      `json:"distinct_layouts"`
	StopCounts      map[board.StopReason]int `json:"stop_counts,omitempty"`
}

// RunRecord is the persisted summary of one search.
type RunRecord struct {
	VersionedRecord
	ID               string     `json:"id"`
	CreatedAt        time.Time  `json:"created_at"`
	Board            board.Size `json:"board"`
	Inventory        Inventory  `json:"inventory"`
	PopulationSize   int        `json:"population_size"`
	Generations      int        `json:"generations"`
	MutationRate     float64    `json:"mutation_rate"`
	EliteFraction    float64    `json:"elite_fraction"`
	Seed             int64      `json:"seed"`
	Workers          int        `json:"workers"`
	Best             Genome     `json:"best"`
	BestGeneration   int        `json:"best_generation"`
	BestByGeneration []int      `json:"best_by_generation"`
	Evaluations      int        `json:"evaluations"`
	Duration         float64    `json:"duration_seconds"`
}
