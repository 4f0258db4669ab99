package platform

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"tilechain/internal/board"
	"tilechain/internal/evo"
	"tilechain/internal/model"
	"tilechain/internal/stats"
	"tilechain/internal/storage"
)

var ErrRunNotFound = errors.New("run not found")

type Config struct {
	Store storage.Store
	// ArtifactsDir receives one directory per run; empty disables artifacts.
	ArtifactsDir string
	// ResultsPath is the results log; empty disables it.
	ResultsPath string
	Logger      *log.Logger
	Now         func() time.Time
	NewID       func() string
}

type RunRequest struct {
	RunID  string
	Search evo.Config
	Hook   evo.GenerationHook
}

type RunSummary struct {
	Record      model.RunRecord
	Stop        board.StopReason
	Grid        *board.Grid
	Diagnostics []model.GenerationDiagnostics
	// Logged reports whether the run improved on the results log.
	Logged       bool
	ArtifactsDir string
}

type RunDetail struct {
	Record      model.RunRecord
	Diagnostics []model.GenerationDiagnostics
	Grid        *board.Grid
}

// Runner executes searches and owns everything around them: ids,
// persistence, artifacts and the results log.
type Runner struct {
	cfg Config

	mu          sync.Mutex
	started     bool
	trackedBest int
}

func NewRunner(cfg Config) *Runner {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Runner{cfg: cfg, trackedBest: -1}
}

func (r *Runner) Init(ctx context.Context) error {
	if r.cfg.Store == nil {
		return fmt.Errorf("store is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}
	if err := r.cfg.Store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	if r.cfg.ResultsPath != "" {
		best, err := stats.BestResult(r.cfg.ResultsPath)
		if err != nil {
			return fmt.Errorf("read results log: %w", err)
		}
		r.trackedBest = best
	}
	r.started = true
	return nil
}

// TrackedBest is the best fitness seen in the results log or by this runner,
// -1 when nothing has been recorded.
func (r *Runner) TrackedBest() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trackedBest
}

func (r *Runner) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if !r.isStarted() {
		return RunSummary{}, fmt.Errorf("runner is not initialized")
	}
	runID := req.RunID
	if runID == "" {
		runID = r.cfg.NewID()
	}

	var opts []evo.Option
	if req.Hook != nil {
		opts = append(opts, evo.WithGenerationHook(req.Hook))
	}
	search, err := evo.NewSearch(req.Search, opts...)
	if err != nil {
		return RunSummary{}, fmt.Errorf("run %s: %w", runID, err)
	}
	cfg := search.Config()

	r.cfg.Logger.Printf(
		"run_started run_id=%s board=%dx%d population=%d generations=%d mutation_rate=%g elite=%d seed=%d workers=%d",
		runID, cfg.Board.W, cfg.Board.H, cfg.PopulationSize, cfg.Generations, cfg.MutationRate, cfg.EliteCount(), cfg.Seed, cfg.Workers,
	)
	started := r.cfg.Now()
	result, err := search.Run(ctx)
	if err != nil {
		r.cfg.Logger.Printf("run_failed run_id=%s err=%v", runID, err)
		return RunSummary{}, fmt.Errorf("run %s: %w", runID, err)
	}
	elapsed := r.cfg.Now().Sub(started)

	best := result.BestEver.Clone()
	replay := board.Simulate(cfg.Board, best.Start, best.Heading, best.Tiles, best.Flips)
	storage.Stamp(&best.VersionedRecord)

	record := model.RunRecord{
		ID:               runID,
		CreatedAt:        started.UTC(),
		Board:            cfg.Board,
		Inventory:        cfg.Inventory,
		PopulationSize:   cfg.PopulationSize,
		Generations:      cfg.Generations,
		MutationRate:     cfg.MutationRate,
		EliteFraction:    cfg.EliteFraction,
		Seed:             cfg.Seed,
		Workers:          cfg.Workers,
		Best:             best,
		BestGeneration:   result.BestGeneration,
		BestByGeneration: result.BestByGeneration,
		Evaluations:      result.Evaluations,
		Duration:         elapsed.Seconds(),
	}
	storage.Stamp(&record.VersionedRecord)

	if err := r.cfg.Store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, fmt.Errorf("save run %s: %w", runID, err)
	}
	if err := r.cfg.Store.SaveGenerationDiagnostics(ctx, runID, result.GenerationDiagnostics); err != nil {
		return RunSummary{}, fmt.Errorf("save diagnostics %s: %w", runID, err)
	}

	summary := RunSummary{
		Record:      record,
		Stop:        replay.Stop,
		Grid:        replay.Grid,
		Diagnostics: result.GenerationDiagnostics,
	}
	if r.cfg.ArtifactsDir != "" {
		dir, err := r.writeArtifacts(cfg, record, result, replay.Grid)
		if err != nil {
			return RunSummary{}, fmt.Errorf("write artifacts %s: %w", runID, err)
		}
		summary.ArtifactsDir = dir
	}

	logged, err := r.recordResult(replay.Grid, best.Fitness)
	if err != nil {
		return RunSummary{}, err
	}
	summary.Logged = logged

	r.cfg.Logger.Printf(
		"run_completed run_id=%s best_fitness=%d best_generation=%d stop=%s evaluations=%d duration_ms=%d logged=%t",
		runID, best.Fitness, result.BestGeneration, replay.Stop, result.Evaluations, elapsed.Milliseconds(), logged,
	)
	return summary, nil
}

func (r *Runner) Runs(ctx context.Context) ([]model.RunRecord, error) {
	if !r.isStarted() {
		return nil, fmt.Errorf("runner is not initialized")
	}
	return r.cfg.Store.ListRuns(ctx)
}

// Show loads a stored run and replays its best genome to rebuild the grid.
func (r *Runner) Show(ctx context.Context, runID string) (RunDetail, error) {
	if !r.isStarted() {
		return RunDetail{}, fmt.Errorf("runner is not initialized")
	}
	record, ok, err := r.cfg.Store.GetRun(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}
	if !ok {
		return RunDetail{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	diagnostics, _, err := r.cfg.Store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}
	best := record.Best
	replay := board.Simulate(record.Board, best.Start, best.Heading, best.Tiles, best.Flips)
	return RunDetail{Record: record, Diagnostics: diagnostics, Grid: replay.Grid}, nil
}

// Delete removes a run from the store, the run index and the artifacts
// directory. A run known to either the store or the index exists.
func (r *Runner) Delete(ctx context.Context, runID string) error {
	if !r.isStarted() {
		return fmt.Errorf("runner is not initialized")
	}
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	_, stored, err := r.cfg.Store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	indexed := false
	if r.cfg.ArtifactsDir != "" {
		if indexed, err = stats.RemoveRunIndex(r.cfg.ArtifactsDir, runID); err != nil {
			return fmt.Errorf("remove run index entry %s: %w", runID, err)
		}
	}
	if !stored && !indexed {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if stored {
		if err := r.cfg.Store.DeleteRun(ctx, runID); err != nil {
			return err
		}
	}
	if r.cfg.ArtifactsDir != "" {
		if err := stats.RemoveRunArtifacts(r.cfg.ArtifactsDir, runID); err != nil {
			return fmt.Errorf("remove artifacts %s: %w", runID, err)
		}
	}
	r.cfg.Logger.Printf("run_deleted run_id=%s stored=%t indexed=%t", runID, stored, indexed)
	return nil
}

func (r *Runner) isStarted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// recordResult appends to the results log when fitness beats the tracked best.
func (r *Runner) recordResult(grid *board.Grid, fitness int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fitness <= r.trackedBest {
		return false, nil
	}
	r.trackedBest = fitness
	if r.cfg.ResultsPath == "" {
		return false, nil
	}
	if err := stats.AppendResult(r.cfg.ResultsPath, grid, fitness); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Runner) writeArtifacts(search evo.Config, record model.RunRecord, result evo.RunResult, grid *board.Grid) (string, error) {
	tournament := search.TournamentSize
	if tournament <= 0 {
		tournament = evo.DefaultTournamentSize
	}
	cfg := stats.RunConfig{
		RunID:          record.ID,
		Board:          record.Board,
		Inventory:      record.Inventory,
		PopulationSize: record.PopulationSize,
		Generations:    record.Generations,
		MutationRate:   record.MutationRate,
		EliteFraction:  record.EliteFraction,
		EliteCount:     search.EliteCount(),
		TournamentSize: tournament,
		Seed:           record.Seed,
		Workers:        record.Workers,
	}
	dir, err := stats.WriteRunArtifacts(r.cfg.ArtifactsDir, stats.RunArtifacts{
		Config:                cfg,
		BestByGeneration:      result.BestByGeneration,
		GenerationDiagnostics: result.GenerationDiagnostics,
		FinalBestFitness:      result.BestFitness,
		BestGeneration:        result.BestGeneration,
		Best:                  record.Best,
		BestGrid:              grid.Render(),
	})
	if err != nil {
		return "", err
	}
	err = stats.AppendRunIndex(r.cfg.ArtifactsDir, stats.RunIndexEntry{
		RunID:            record.ID,
		Board:            record.Board,
		PopulationSize:   record.PopulationSize,
		Generations:      record.Generations,
		Seed:             record.Seed,
		Workers:          record.Workers,
		EliteCount:       cfg.EliteCount,
		FinalBestFitness: result.BestFitness,
		CreatedAtUTC:     record.CreatedAt.Format(stats.TimestampLayout),
	})
	return dir, err
}
