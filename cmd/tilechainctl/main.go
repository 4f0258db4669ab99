package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"tilechain/internal/model"
	"tilechain/internal/storage"
	"tilechain/internal/view"
	"tilechain/pkg/tilechain"
)

var stdout io.Writer = os.Stdout

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "sweep":
		return runSweep(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "simulate":
		return runSimulate(ctx, args[1:])
	case "view":
		return runView(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "delete":
		return runDelete(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type clientFlags struct {
	storeKind    *string
	dbPath       *string
	artifactsDir *string
	resultsPath  *string
	quiet        *bool
}

func addClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		storeKind:    fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:       fs.String("db-path", "tilechain.db", "sqlite database path"),
		artifactsDir: fs.String("artifacts", "runs", "run artifacts directory"),
		resultsPath:  fs.String("results", "results.txt", "results log, - to disable"),
		quiet:        fs.Bool("quiet", false, "suppress progress logging"),
	}
}

func (f clientFlags) open() (*tilechain.Client, error) {
	logger := log.New(os.Stderr, "", log.LstdFlags)
	if *f.quiet {
		logger = log.New(io.Discard, "", 0)
	}
	return tilechain.New(tilechain.Options{
		StoreKind:    *f.storeKind,
		DBPath:       *f.dbPath,
		ArtifactsDir: *f.artifactsDir,
		ResultsPath:  *f.resultsPath,
		Logger:       logger,
	})
}

type runFlags struct {
	configPath    *string
	runID         *string
	width         *int
	height        *int
	tilesA        *int
	tilesB        *int
	tilesC        *int
	population    *int
	generations   *int
	mutationRate  *float64
	eliteFraction *float64
	seed          *int64
	workers       *int
}

func addRunFlags(fs *flag.FlagSet) runFlags {
	inv := model.DefaultInventory()
	return runFlags{
		configPath:    fs.String("config", "", "JSON run config; flags set explicitly override it"),
		runID:         fs.String("run-id", "", "run id, random when empty"),
		width:         fs.Int("width", 6, "board width"),
		height:        fs.Int("height", 6, "board height"),
		tilesA:        fs.Int("a", inv.A, "number of A tiles"),
		tilesB:        fs.Int("b", inv.B, "number of B tiles"),
		tilesC:        fs.Int("c", inv.C, "number of C tiles"),
		population:    fs.Int("pop", 100, "population size"),
		generations:   fs.Int("gens", 100, "generations"),
		mutationRate:  fs.Float64("mutation-rate", 0.4, "mutation rate"),
		eliteFraction: fs.Float64("elite", 0.1, "elite fraction"),
		seed:          fs.Int64("seed", time.Now().UnixNano(), "random seed"),
		workers:       fs.Int("workers", 1, "fitness evaluation workers"),
	}
}

// request builds the run request from an optional config file, then applies
// every flag the user set explicitly.
func (f runFlags) request(fs *flag.FlagSet) (tilechain.RunRequest, error) {
	req := tilechain.RunRequest{
		RunID:         *f.runID,
		Width:         *f.width,
		Height:        *f.height,
		Inventory:     &model.Inventory{A: *f.tilesA, B: *f.tilesB, C: *f.tilesC},
		Population:    *f.population,
		Generations:   *f.generations,
		MutationRate:  *f.mutationRate,
		EliteFraction: *f.eliteFraction,
		Seed:          *f.seed,
		Workers:       *f.workers,
	}
	if *f.configPath == "" {
		return req, nil
	}

	loaded, err := loadRunRequestFromConfig(*f.configPath)
	if err != nil {
		return tilechain.RunRequest{}, fmt.Errorf("load config %s: %w", *f.configPath, err)
	}
	set := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	if err := overrideFromFlags(&loaded, set, map[string]any{
		"run-id":        *f.runID,
		"width":         *f.width,
		"height":        *f.height,
		"a":             *f.tilesA,
		"b":             *f.tilesB,
		"c":             *f.tilesC,
		"pop":           *f.population,
		"gens":          *f.generations,
		"mutation-rate": *f.mutationRate,
		"elite":         *f.eliteFraction,
		"seed":          *f.seed,
		"workers":       *f.workers,
	}); err != nil {
		return tilechain.RunRequest{}, err
	}
	if loaded.Seed == 0 {
		loaded.Seed = *f.seed
	}
	return loaded, nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	client := addClientFlags(fs)
	flags := addRunFlags(fs)
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	req, err := flags.request(fs)
	if err != nil {
		return err
	}

	c, err := client.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = c.Close()
	}()

	summary, err := c.Run(ctx, req)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(map[string]any{
			"run_id":             summary.RunID,
			"best_fitness":       summary.BestFitness,
			"best_generation":    summary.BestGeneration,
			"best_by_generation": summary.BestByGeneration,
			"stop":               summary.Stop,
			"best":               summary.Best,
			"evaluations":        summary.Evaluations,
			"artifacts_dir":      summary.ArtifactsDir,
			"logged":             summary.Logged,
		})
	}

	fmt.Fprintf(stdout, "run_id=%s best_fitness=%d best_generation=%d stop=%s evaluations=%s duration=%s\n",
		summary.RunID, summary.BestFitness, summary.BestGeneration, summary.Stop,
		humanize.Comma(int64(summary.Evaluations)), summary.Duration.Round(time.Millisecond))
	fmt.Fprintf(stdout, "start=%s heading=%s\n", summary.Best.Start, summary.Best.Heading)
	fmt.Fprint(stdout, summary.Grid)
	if summary.Logged {
		fmt.Fprintln(stdout, "new best appended to results log")
	}
	return nil
}

func runSweep(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	client := addClientFlags(fs)
	flags := addRunFlags(fs)
	sweepID := fs.String("sweep-id", "", "sweep id, random when empty")
	pops := fs.String("pops", "500:700:100", "population sizes as from:to:step or a comma list")
	gens := fs.String("gens-range", "500:700:100", "generation counts as from:to:step or a comma list")
	parallel := fs.Int("parallel", 1, "cells run at once")
	if err := fs.Parse(args); err != nil {
		return err
	}
	base, err := flags.request(fs)
	if err != nil {
		return err
	}
	populations, err := parseIntList(*pops)
	if err != nil {
		return fmt.Errorf("pops: %w", err)
	}
	generations, err := parseIntList(*gens)
	if err != nil {
		return fmt.Errorf("gens-range: %w", err)
	}

	c, err := client.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = c.Close()
	}()

	report, err := c.Sweep(ctx, tilechain.SweepRequest{
		ID:              *sweepID,
		Base:            base,
		PopulationSizes: populations,
		Generations:     generations,
		Parallel:        *parallel,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "sweep_id=%s cells=%d\n", report.ID, len(report.Cells))
	for _, cell := range report.Cells {
		fmt.Fprintf(stdout, "pop=%d gens=%d run_id=%s best_fitness=%d evaluations=%s\n",
			cell.PopulationSize, cell.Generations, cell.RunID, cell.BestFitness, humanize.Comma(int64(cell.Evaluations)))
	}
	if best, ok := report.Best(); ok {
		fmt.Fprintf(stdout, "best pop=%d gens=%d best_fitness=%d run_id=%s\n", best.PopulationSize, best.Generations, best.BestFitness, best.RunID)
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	client := addClientFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	c, err := client.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = c.Close()
	}()

	items, err := c.Runs(ctx, tilechain.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(items)
	}
	if len(items) == 0 {
		fmt.Fprintln(stdout, "no runs found")
		return nil
	}
	for _, item := range items {
		fmt.Fprintf(stdout, "%s created=%s board=%dx%d pop=%s gens=%s seed=%d best_fitness=%d\n",
			item.RunID, humanize.Time(item.CreatedAt), item.Width, item.Height,
			humanize.Comma(int64(item.Population)), humanize.Comma(int64(item.Generations)), item.Seed, item.FinalBestFitness)
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	client := addClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the most recent run")
	diagnostics := fs.Bool("diagnostics", false, "print per-generation diagnostics")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := client.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = c.Close()
	}()

	shown, err := c.Show(ctx, tilechain.ShowRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	cfg := shown.Config
	fmt.Fprintf(stdout, "run_id=%s board=%dx%d inventory=A%d/B%d/C%d pop=%d gens=%d seed=%d\n",
		shown.RunID, cfg.Board.W, cfg.Board.H, cfg.Inventory.A, cfg.Inventory.B, cfg.Inventory.C,
		cfg.PopulationSize, cfg.Generations, cfg.Seed)
	fmt.Fprintf(stdout, "start=%s heading=%s steps=%d stop=%s\n", shown.Best.Start, shown.Best.Heading, shown.Result.Steps, shown.Result.Stop)
	fmt.Fprint(stdout, shown.Result.Grid.Render())
	if *diagnostics {
		for _, diag := range shown.Diagnostics {
			fmt.Fprintf(stdout, "generation=%d best=%d mean=%.2f min=%d distinct=%d\n",
				diag.Generation, diag.BestFitness, diag.MeanFitness, diag.MinFitness, diag.DistinctLayouts)
		}
	}
	return nil
}

func runSimulate(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	req := addSimulateFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := tilechain.Simulate(*req)
	if err != nil {
		return err
	}
	fmt.Fprint(stdout, res.Grid.Render())
	fmt.Fprintf(stdout, "steps=%d stop=%s drawn=%d\n", res.Steps, res.Stop, res.Drawn)
	return nil
}

func runView(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("view", flag.ContinueOnError)
	client := addClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "view the most recent run")
	layout := addSimulateFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *runID == "" && !*latest {
		res, err := tilechain.Simulate(*layout)
		if err != nil {
			return err
		}
		return view.Show(ctx, "layout "+layout.Tiles, res)
	}

	c, err := client.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = c.Close()
	}()
	shown, err := c.Show(ctx, tilechain.ShowRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	return view.Show(ctx, "run "+shown.RunID, shown.Result)
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	client := addClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("out", "exports", "export directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := client.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = c.Close()
	}()
	exported, err := c.Export(ctx, tilechain.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "exported run_id=%s dir=%s\n", exported.RunID, exported.Directory)
	return nil
}

func runDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	client := addClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("run-id is required")
	}

	c, err := client.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = c.Close()
	}()
	if err := c.Delete(ctx, *runID); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "deleted run_id=%s\n", *runID)
	return nil
}

func addSimulateFlags(fs *flag.FlagSet) *tilechain.SimulateRequest {
	req := &tilechain.SimulateRequest{}
	fs.IntVar(&req.Width, "width", 6, "board width")
	fs.IntVar(&req.Height, "height", 6, "board height")
	fs.IntVar(&req.X, "x", 0, "start column")
	fs.IntVar(&req.Y, "y", 0, "start row")
	fs.IntVar(&req.Heading, "heading", 0, "start heading, 0=N clockwise to 7=NW")
	fs.StringVar(&req.Tiles, "tiles", "", "tile sequence, e.g. ABCA")
	fs.StringVar(&req.Flips, "flips", "", "flip bits, e.g. 0101")
	return req
}

func writeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: tilechainctl <%s> [flags]", msg, strings.Join([]string{"run", "sweep", "runs", "show", "simulate", "view", "export", "delete"}, "|"))
}
