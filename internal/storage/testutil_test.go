package storage

import (
	"time"

	"tilechain/internal/board"
	"tilechain/internal/model"
	"tilechain/internal/tile"
)

func sampleRun(id string, created time.Time, fitness int) model.RunRecord {
	inv := model.Inventory{A: 2, B: 1, C: 1}
	run := model.RunRecord{
		ID:             id,
		CreatedAt:      created,
		Board:          board.Size{W: 6, H: 6},
		Inventory:      inv,
		PopulationSize: 20,
		Generations:    3,
		MutationRate:   0.4,
		EliteFraction:  0.1,
		Seed:           7,
		Workers:        1,
		Best: model.Genome{
			Start:   board.Point{X: 2, Y: 5},
			Heading: tile.Heading(0),
			Tiles:   []tile.Kind{tile.KindA, tile.KindB, tile.KindA, tile.KindC},
			Flips:   []bool{false, true, false, false},
			Fitness: fitness,
			Stop:    board.StopOffGrid,
		},
		BestGeneration:   2,
		BestByGeneration: []int{fitness - 2, fitness - 1, fitness, fitness},
		Evaluations:      74,
		Duration:         0.25,
	}
	Stamp(&run.VersionedRecord)
	Stamp(&run.Best.VersionedRecord)
	return run
}

func sampleDiagnostics() []model.GenerationDiagnostics {
	return []model.GenerationDiagnostics{
		{Generation: 0, BestFitness: 5, MeanFitness: 2.5, MinFitness: 1, DistinctLayouts: 20, StopCounts: map[board.StopReason]int{board.StopOffGrid: 20}},
		{Generation: 1, BestFitness: 7, MeanFitness: 3.5, MinFitness: 1, DistinctLayouts: 18, StopCounts: map[board.StopReason]int{board.StopOffGrid: 17, board.StopEnd: 3}},
	}
}

func runIDs(runs []model.RunRecord) []string {
	ids := make([]string, len(runs))
	for i, run := range runs {
		ids[i] = run.ID
	}
	return ids
}
