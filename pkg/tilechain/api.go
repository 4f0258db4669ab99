package tilechain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"tilechain/internal/board"
	"tilechain/internal/evo"
	"tilechain/internal/model"
	"tilechain/internal/platform"
	"tilechain/internal/stats"
	"tilechain/internal/storage"
	"tilechain/internal/tile"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultResultsPath  = "results.txt"
	defaultDBPath       = "tilechain.db"
)

var ErrNoRuns = errors.New("no runs recorded")

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	// ResultsPath is the results log; "-" disables it.
	ResultsPath string
	Logger      *log.Logger
}

type Client struct {
	store  storage.Store
	runner *platform.Runner

	artifactsDir string
	exportsDir   string
}

type RunRequest struct {
	RunID  string
	Width  int
	Height int
	// Inventory defaults to 10 A, 10 B and 8 C tiles when nil.
	Inventory     *model.Inventory
	Population    int
	Generations   int
	MutationRate  float64
	EliteFraction float64
	Seed          int64
	Workers       int
	Progress      func(model.GenerationDiagnostics)
}

type RunSummary struct {
	RunID            string
	ArtifactsDir     string
	BestFitness      int
	BestGeneration   int
	BestByGeneration []int
	Best             model.Genome
	Stop             board.StopReason
	Grid             string
	Evaluations      int
	Duration         time.Duration
	Logged           bool
}

type SweepRequest struct {
	ID              string
	Base            RunRequest
	PopulationSizes []int
	Generations     []int
	Parallel        int
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string
	CreatedAt        time.Time
	Width            int
	Height           int
	Seed             int64
	Population       int
	Generations      int
	FinalBestFitness int
}

type ShowRequest struct {
	RunID  string
	Latest bool
}

type ShowSummary struct {
	RunID       string
	Config      stats.RunConfig
	Best        model.Genome
	Diagnostics []model.GenerationDiagnostics
	Result      board.Result
}

type SimulateRequest struct {
	Width   int
	Height  int
	X       int
	Y       int
	Heading int
	// Tiles is one letter per tile, e.g. "ABCA". Flips is one 0/1 digit per
	// tile; missing digits read as 0.
	Tiles string
	Flips string
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	resultsPath := opts.ResultsPath
	switch resultsPath {
	case "":
		resultsPath = defaultResultsPath
	case "-":
		resultsPath = ""
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store: store,
		runner: platform.NewRunner(platform.Config{
			Store:        store,
			ArtifactsDir: artifactsDir,
			ResultsPath:  resultsPath,
			Logger:       opts.Logger,
		}),
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.runner.Init(ctx)
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}
	summary, err := c.runner.Run(ctx, platform.RunRequest{
		RunID:  req.RunID,
		Search: searchConfig(req),
		Hook:   req.Progress,
	})
	if err != nil {
		return RunSummary{}, err
	}
	record := summary.Record
	return RunSummary{
		RunID:            record.ID,
		ArtifactsDir:     summary.ArtifactsDir,
		BestFitness:      record.Best.Fitness,
		BestGeneration:   record.BestGeneration,
		BestByGeneration: record.BestByGeneration,
		Best:             record.Best,
		Stop:             summary.Stop,
		Grid:             summary.Grid.Render(),
		Evaluations:      record.Evaluations,
		Duration:         time.Duration(record.Duration * float64(time.Second)),
		Logged:           summary.Logged,
	}, nil
}

func (c *Client) Sweep(ctx context.Context, req SweepRequest) (stats.SweepReport, error) {
	if err := c.Init(ctx); err != nil {
		return stats.SweepReport{}, err
	}
	base := searchConfig(req.Base)
	sweep := platform.DefaultSweep(base)
	sweep.ID = req.ID
	sweep.Parallel = req.Parallel
	if len(req.PopulationSizes) > 0 {
		sweep.PopulationSizes = req.PopulationSizes
	}
	if len(req.Generations) > 0 {
		sweep.Generations = req.Generations
	}
	return c.runner.Sweep(ctx, sweep)
}

// Runs lists runs from the artifact index, newest first, so runs made by
// earlier processes show up whatever the store backend.
func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if req.Limit > 0 && len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	items := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		created, _ := time.Parse(time.RFC3339Nano, e.CreatedAtUTC)
		items = append(items, RunItem{
			RunID:            e.RunID,
			CreatedAt:        created,
			Width:            e.Board.W,
			Height:           e.Board.H,
			Seed:             e.Seed,
			Population:       e.PopulationSize,
			Generations:      e.Generations,
			FinalBestFitness: e.FinalBestFitness,
		})
	}
	return items, nil
}

// Show loads a run from the store, falling back to its artifact directory,
// and replays its best layout.
func (c *Client) Show(ctx context.Context, req ShowRequest) (ShowSummary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ShowSummary{}, err
	}
	if err := c.Init(ctx); err != nil {
		return ShowSummary{}, err
	}

	detail, err := c.runner.Show(ctx, runID)
	switch {
	case err == nil:
		record := detail.Record
		best := record.Best
		return ShowSummary{
			RunID: runID,
			Config: stats.RunConfig{
				RunID:          runID,
				Board:          record.Board,
				Inventory:      record.Inventory,
				PopulationSize: record.PopulationSize,
				Generations:    record.Generations,
				MutationRate:   record.MutationRate,
				EliteFraction:  record.EliteFraction,
				Seed:           record.Seed,
				Workers:        record.Workers,
			},
			Best:        best,
			Diagnostics: detail.Diagnostics,
			Result:      board.Simulate(record.Board, best.Start, best.Heading, best.Tiles, best.Flips),
		}, nil
	case !errors.Is(err, platform.ErrRunNotFound):
		return ShowSummary{}, err
	}

	cfg, ok, err := stats.ReadRunConfig(c.artifactsDir, runID)
	if err != nil {
		return ShowSummary{}, err
	}
	if !ok {
		return ShowSummary{}, fmt.Errorf("%w: %s", platform.ErrRunNotFound, runID)
	}
	best, ok, err := stats.ReadBest(c.artifactsDir, runID)
	if err != nil {
		return ShowSummary{}, err
	}
	if !ok {
		return ShowSummary{}, fmt.Errorf("run %s has no best layout", runID)
	}
	diagnostics, _, err := stats.ReadGenerationDiagnostics(c.artifactsDir, runID)
	if err != nil {
		return ShowSummary{}, err
	}
	return ShowSummary{
		RunID:       runID,
		Config:      cfg,
		Best:        best,
		Diagnostics: diagnostics,
		Result:      board.Simulate(cfg.Board, best.Start, best.Heading, best.Tiles, best.Flips),
	}, nil
}

func (c *Client) Delete(ctx context.Context, runID string) error {
	if err := c.Init(ctx); err != nil {
		return err
	}
	return c.runner.Delete(ctx, runID)
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// Simulate walks an explicit layout without touching the store.
func Simulate(req SimulateRequest) (board.Result, error) {
	size := board.Size{W: req.Width, H: req.Height}
	if size.W <= 0 || size.H <= 0 {
		size = evo.DefaultConfig().Board
	}
	kinds, err := ParseTiles(req.Tiles)
	if err != nil {
		return board.Result{}, err
	}
	flips, err := ParseFlips(req.Flips, len(kinds))
	if err != nil {
		return board.Result{}, err
	}
	heading := tile.Heading(req.Heading)
	if !heading.Valid() {
		return board.Result{}, fmt.Errorf("heading must be in [0, %d), got %d", tile.HeadingCount, req.Heading)
	}
	start := board.Point{X: req.X, Y: req.Y}
	if !size.Contains(start) {
		return board.Result{}, fmt.Errorf("start %s is outside the %dx%d board", start, size.W, size.H)
	}
	return board.Simulate(size, start, heading, kinds, flips), nil
}

func ParseTiles(s string) ([]tile.Kind, error) {
	kinds := make([]tile.Kind, 0, len(s))
	for i, r := range s {
		kind, err := tile.ParseKind(string(r))
		if err != nil {
			return nil, fmt.Errorf("tile %d: %w", i, err)
		}
		if kind > tile.KindC {
			return nil, fmt.Errorf("tile %d: only A, B and C can be laid, got %s", i, kind)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func ParseFlips(s string, n int) ([]bool, error) {
	if len(s) > n {
		return nil, fmt.Errorf("got %d flips for %d tiles", len(s), n)
	}
	flips := make([]bool, n)
	for i, r := range s {
		switch r {
		case '0':
		case '1':
			flips[i] = true
		default:
			return nil, fmt.Errorf("flip %d must be 0 or 1, got %q", i, r)
		}
	}
	return flips, nil
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID == "" && !latest {
		return "", errors.New("run id or latest is required")
	}
	if !latest {
		return runID, nil
	}
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", ErrNoRuns
	}
	return entries[0].RunID, nil
}

func searchConfig(req RunRequest) evo.Config {
	cfg := evo.DefaultConfig()
	if req.Width > 0 {
		cfg.Board.W = req.Width
	}
	if req.Height > 0 {
		cfg.Board.H = req.Height
	}
	if req.Inventory != nil {
		cfg.Inventory = *req.Inventory
	}
	if req.Population > 0 {
		cfg.PopulationSize = req.Population
	}
	if req.Generations > 0 {
		cfg.Generations = req.Generations
	}
	if req.MutationRate > 0 {
		cfg.MutationRate = req.MutationRate
	}
	if req.EliteFraction > 0 {
		cfg.EliteFraction = req.EliteFraction
	}
	if req.Seed != 0 {
		cfg.Seed = req.Seed
	}
	if req.Workers > 0 {
		cfg.Workers = req.Workers
	}
	return cfg
}
