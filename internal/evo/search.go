package evo

import (
	"context"
	"fmt"
	"math/rand"
	"slices"

	"tilechain/internal/board"
	"tilechain/internal/model"
)

type RunResult struct {
	// Best is the fittest individual of the final population.
	Best model.Genome
	// BestEver is the first individual to reach BestFitness.
	BestEver              model.Genome
	BestFitness           int
	BestGeneration        int
	BestByGeneration      []int
	GenerationDiagnostics []model.GenerationDiagnostics
	FinalPopulation       []model.Genome
	Evaluations           int
}

// GenerationHook observes a generation after it has been evaluated.
type GenerationHook func(diag model.GenerationDiagnostics)

type Search struct {
	cfg      Config
	rng      *rand.Rand
	selector Selector
	mutation Operator
	hook     GenerationHook
}

type Option func(*Search)

func WithSelector(selector Selector) Option {
	return func(s *Search) {
		s.selector = selector
	}
}

func WithMutation(op Operator) Option {
	return func(s *Search) {
		s.mutation = op
	}
}

func WithGenerationHook(hook GenerationHook) Option {
	return func(s *Search) {
		s.hook = hook
	}
}

// WithRand replaces the generator seeded from Config.Seed.
func WithRand(rng *rand.Rand) Option {
	return func(s *Search) {
		s.rng = rng
	}
}

func NewSearch(cfg Config, opts ...Option) (*Search, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	s := &Search{
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		selector: TournamentSelector{Size: cfg.TournamentSize},
		mutation: RateMutation{Board: cfg.Board, Rate: cfg.MutationRate},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if s.selector == nil {
		return nil, fmt.Errorf("selector is required")
	}
	if s.mutation == nil {
		return nil, fmt.Errorf("mutation operator is required")
	}
	return s, nil
}

func (s *Search) Config() Config {
	return s.cfg
}

// Run evolves a fresh random population for the configured number of
// generations. Generation 0 is the evaluated initial population.
func (s *Search) Run(ctx context.Context) (RunResult, error) {
	population := NewPopulation(s.rng, s.cfg)
	if err := EvaluateAll(ctx, population, s.cfg.Board, s.cfg.Workers); err != nil {
		return RunResult{}, err
	}

	result := RunResult{
		BestByGeneration:      make([]int, 0, s.cfg.Generations+1),
		GenerationDiagnostics: make([]model.GenerationDiagnostics, 0, s.cfg.Generations+1),
		Evaluations:           len(population),
		BestFitness:           -1,
	}
	s.record(&result, population, 0)

	for gen := 1; gen <= s.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}

		next, err := s.nextGeneration(population)
		if err != nil {
			return RunResult{}, err
		}
		elite := s.cfg.EliteCount()
		if err := EvaluateAll(ctx, next[elite:], s.cfg.Board, s.cfg.Workers); err != nil {
			return RunResult{}, err
		}
		result.Evaluations += len(next) - elite
		population = next
		s.record(&result, population, gen)
	}

	result.Best = population[fittest(population)]
	result.FinalPopulation = population
	return result, nil
}

// nextGeneration keeps the elite unchanged and fills the rest with children
// that still need evaluating.
func (s *Search) nextGeneration(population []model.Genome) ([]model.Genome, error) {
	size := s.cfg.PopulationSize
	elite := s.cfg.EliteCount()

	parents, err := s.selector.Select(s.rng, population, size-elite)
	if err != nil {
		return nil, fmt.Errorf("select parents: %w", err)
	}
	if len(parents) == 0 && size > elite {
		return nil, fmt.Errorf("selector %s returned no parents", s.selector.Name())
	}

	next := make([]model.Genome, 0, size)
	next = append(next, rankByFitness(population)[:elite]...)
	for len(next) < size {
		p1 := parents[s.rng.Intn(len(parents))]
		p2 := parents[s.rng.Intn(len(parents))]
		child := Crossover(s.rng, p1, p2, s.cfg.Inventory)
		s.mutation.Apply(s.rng, &child)
		next = append(next, child)
	}
	return next, nil
}

func (s *Search) record(result *RunResult, population []model.Genome, generation int) {
	diag := summarizeGeneration(population, generation)
	result.GenerationDiagnostics = append(result.GenerationDiagnostics, diag)
	result.BestByGeneration = append(result.BestByGeneration, diag.BestFitness)
	if diag.BestFitness > result.BestFitness {
		result.BestFitness = diag.BestFitness
		result.BestGeneration = generation
		result.BestEver = population[fittest(population)].Clone()
	}
	if s.hook != nil {
		s.hook(diag)
	}
}

// rankByFitness returns the population ordered best first; equal fitness
// keeps population order.
func rankByFitness(population []model.Genome) []model.Genome {
	ranked := slices.Clone(population)
	slices.SortStableFunc(ranked, func(a, b model.Genome) int {
		return b.Fitness - a.Fitness
	})
	return ranked
}

func fittest(population []model.Genome) int {
	best := 0
	for i := range population {
		if population[i].Fitness > population[best].Fitness {
			best = i
		}
	}
	return best
}

func summarizeGeneration(population []model.Genome, generation int) model.GenerationDiagnostics {
	if len(population) == 0 {
		return model.GenerationDiagnostics{Generation: generation}
	}

	total := 0
	minFitness := population[0].Fitness
	maxFitness := population[0].Fitness
	layouts := make(map[string]struct{}, len(population))
	stops := make(map[board.StopReason]int, len(board.StopReasons))
	for _, g := range population {
		total += g.Fitness
		minFitness = min(minFitness, g.Fitness)
		maxFitness = max(maxFitness, g.Fitness)
		layouts[g.Key()] = struct{}{}
		if g.Stop != "" {
			stops[g.Stop]++
		}
	}

	return model.GenerationDiagnostics{
		Generation:      generation,
		BestFitness:     maxFitness,
		MeanFitness:     float64(total) / float64(len(population)),
		MinFitness:      minFitness,
		DistinctLayouts: len(layouts),
		StopCounts:      stops,
	}
}
