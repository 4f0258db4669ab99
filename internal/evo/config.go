package evo

import (
	"fmt"
	"math"

	"tilechain/internal/board"
	"tilechain/internal/model"
)

// Config holds every knob of one search. Zero values are not defaulted;
// start from DefaultConfig.
type Config struct {
	Board          board.Size
	Inventory      model.Inventory
	PopulationSize int
	Generations    int
	MutationRate   float64
	EliteFraction  float64
	TournamentSize int
	Workers        int
	Seed           int64
}

func DefaultConfig() Config {
	return Config{
		Board:          board.Size{W: 6, H: 6},
		Inventory:      model.DefaultInventory(),
		PopulationSize: 100,
		Generations:    100,
		MutationRate:   0.4,
		EliteFraction:  0.1,
		TournamentSize: DefaultTournamentSize,
		Workers:        1,
		Seed:           1,
	}
}

// EliteCount is the number of individuals carried over unchanged.
func (c Config) EliteCount() int {
	return int(math.Floor(float64(c.PopulationSize)*c.EliteFraction + 1e-9))
}

func (c Config) Validate() error {
	if c.Board.W <= 0 || c.Board.H <= 0 {
		return fmt.Errorf("board size must be positive: %dx%d", c.Board.W, c.Board.H)
	}
	if c.Inventory.A < 0 || c.Inventory.B < 0 || c.Inventory.C < 0 {
		return fmt.Errorf("inventory counts must be >= 0: %+v", c.Inventory)
	}
	if c.Inventory.Total() < 2 {
		return fmt.Errorf("inventory must hold at least 2 tiles, got %d", c.Inventory.Total())
	}
	tournament := c.TournamentSize
	if tournament <= 0 {
		tournament = DefaultTournamentSize
	}
	if c.PopulationSize < tournament {
		return fmt.Errorf("population size must be >= tournament size %d, got %d", tournament, c.PopulationSize)
	}
	if c.Generations < 0 {
		return fmt.Errorf("generations must be >= 0")
	}
	if c.MutationRate < 0 || c.MutationRate > 1 {
		return fmt.Errorf("mutation rate must be in [0, 1], got %g", c.MutationRate)
	}
	if c.EliteFraction < 0 || c.EliteFraction >= 1 {
		return fmt.Errorf("elite fraction must be in [0, 1), got %g", c.EliteFraction)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0")
	}
	return nil
}
