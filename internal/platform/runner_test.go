package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"tilechain/internal/evo"
	"tilechain/internal/model"
	"tilechain/internal/stats"
	"tilechain/internal/storage"
)

func newTestRunner(t *testing.T, dir string) *Runner {
	t.Helper()
	var seq atomic.Int64
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var ticks atomic.Int64
	runner := NewRunner(Config{
		Store:        storage.NewMemoryStore(),
		ArtifactsDir: filepath.Join(dir, "artifacts"),
		ResultsPath:  filepath.Join(dir, "results.txt"),
		Logger:       log.New(io.Discard, "", 0),
		Now: func() time.Time {
			return clock.Add(time.Duration(ticks.Add(1)) * time.Second)
		},
		NewID: func() string {
			return fmt.Sprintf("run-%d", seq.Add(1))
		},
	})
	if err := runner.Init(context.Background()); err != nil {
		t.Fatalf("init runner: %v", err)
	}
	return runner
}

func quickSearch(seed int64) evo.Config {
	cfg := evo.DefaultConfig()
	cfg.PopulationSize = 20
	cfg.Generations = 5
	cfg.Seed = seed
	return cfg
}

func TestRunnerRunPersistsEverything(t *testing.T) {
	dir := t.TempDir()
	runner := newTestRunner(t, dir)
	ctx := context.Background()

	hookCalls := 0
	summary, err := runner.Run(ctx, RunRequest{
		Search: quickSearch(3),
		Hook:   func(model.GenerationDiagnostics) { hookCalls++ },
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Record.ID != "run-1" {
		t.Fatalf("unexpected run id %q", summary.Record.ID)
	}
	if hookCalls != 6 {
		t.Fatalf("expected 6 hook calls, got %d", hookCalls)
	}
	if summary.Grid == nil || summary.Stop == "" {
		t.Fatal("expected replayed grid and stop reason")
	}
	if !summary.Logged || runner.TrackedBest() != summary.Record.Best.Fitness {
		t.Fatalf("expected first run to be logged, tracked best %d", runner.TrackedBest())
	}

	stored, ok, err := runner.cfg.Store.GetRun(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("stored run: ok=%t err=%v", ok, err)
	}
	if stored.Best.Key() != summary.Record.Best.Key() {
		t.Fatal("stored best differs from summary")
	}
	if stored.Duration != 1 {
		t.Fatalf("expected one clock tick of duration, got %g", stored.Duration)
	}

	for _, file := range []string{"config.json", "best.json", "best_grid.txt"} {
		if _, err := os.Stat(filepath.Join(summary.ArtifactsDir, file)); err != nil {
			t.Fatalf("expected artifact %s: %v", file, err)
		}
	}
	index, err := stats.ListRunIndex(filepath.Join(dir, "artifacts"))
	if err != nil || len(index) != 1 {
		t.Fatalf("expected one index entry, got %d err=%v", len(index), err)
	}

	entries, err := stats.ReadResults(filepath.Join(dir, "results.txt"))
	if err != nil {
		t.Fatalf("read results: %v", err)
	}
	if len(entries) != 1 || entries[0].Fitness != summary.Record.Best.Fitness || entries[0].Grid != summary.Grid.Render() {
		t.Fatalf("unexpected results log: %+v", entries)
	}
}

func TestRunnerLogsOnlyImprovements(t *testing.T) {
	dir := t.TempDir()
	runner := newTestRunner(t, dir)
	ctx := context.Background()

	first, err := runner.Run(ctx, RunRequest{Search: quickSearch(5)})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := runner.Run(ctx, RunRequest{Search: quickSearch(5)})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Record.Best.Fitness != first.Record.Best.Fitness {
		t.Fatalf("same seed should reproduce fitness: %d vs %d", first.Record.Best.Fitness, second.Record.Best.Fitness)
	}
	if second.Logged {
		t.Fatal("equal fitness must not be logged again")
	}

	reopened := newTestRunner(t, dir)
	if reopened.TrackedBest() != first.Record.Best.Fitness {
		t.Fatalf("expected tracked best %d from log, got %d", first.Record.Best.Fitness, reopened.TrackedBest())
	}
}

func TestRunnerShowAndDelete(t *testing.T) {
	runner := newTestRunner(t, t.TempDir())
	ctx := context.Background()

	summary, err := runner.Run(ctx, RunRequest{RunID: "fixed", Search: quickSearch(9)})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	detail, err := runner.Show(ctx, "fixed")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if detail.Grid.Render() != summary.Grid.Render() {
		t.Fatal("replayed grid differs from run grid")
	}
	if len(detail.Diagnostics) != 6 {
		t.Fatalf("expected 6 diagnostics, got %d", len(detail.Diagnostics))
	}

	runs, err := runner.Runs(ctx)
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected one run, got %d err=%v", len(runs), err)
	}

	if err := runner.Delete(ctx, "fixed"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := runner.Show(ctx, "fixed"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if err := runner.Delete(ctx, "fixed"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound on second delete, got %v", err)
	}
}

func TestRunnerDeleteRemovesIndexAndArtifacts(t *testing.T) {
	dir := t.TempDir()
	artifacts := filepath.Join(dir, "artifacts")
	ctx := context.Background()

	first := newTestRunner(t, dir)
	for _, id := range []string{"keep", "drop"} {
		if _, err := first.Run(ctx, RunRequest{RunID: id, Search: quickSearch(2)}); err != nil {
			t.Fatalf("run %s: %v", id, err)
		}
	}

	// a fresh memory store only knows the run through the artifacts index
	second := newTestRunner(t, dir)
	if err := second.Delete(ctx, "drop"); err != nil {
		t.Fatalf("delete indexed run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(artifacts, "drop")); !os.IsNotExist(err) {
		t.Fatalf("expected artifacts of drop removed, stat err=%v", err)
	}
	index, err := stats.ListRunIndex(artifacts)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(index) != 1 || index[0].RunID != "keep" {
		t.Fatalf("unexpected index after delete: %+v", index)
	}
	if _, err := os.Stat(filepath.Join(artifacts, "keep", "best.json")); err != nil {
		t.Fatalf("expected keep artifacts to survive: %v", err)
	}

	if err := first.Delete(ctx, "drop"); err != nil {
		t.Fatalf("delete stored run already gone from index: %v", err)
	}
	if _, ok, err := first.cfg.Store.GetRun(ctx, "drop"); err != nil || ok {
		t.Fatalf("expected stored run removed, ok=%t err=%v", ok, err)
	}
	if err := second.Delete(ctx, "never"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound for unknown run, got %v", err)
	}
}

func TestRunnerRejectsInvalidConfig(t *testing.T) {
	runner := newTestRunner(t, t.TempDir())
	cfg := quickSearch(1)
	cfg.PopulationSize = 3
	if _, err := runner.Run(context.Background(), RunRequest{Search: cfg}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestRunnerRequiresInit(t *testing.T) {
	runner := NewRunner(Config{Store: storage.NewMemoryStore(), Logger: log.New(io.Discard, "", 0)})
	if _, err := runner.Run(context.Background(), RunRequest{Search: quickSearch(1)}); err == nil {
		t.Fatal("expected error before init")
	}
	if err := NewRunner(Config{}).Init(context.Background()); err == nil {
		t.Fatal("expected missing store error")
	}
}

func TestRunnerLogsKeyValueLines(t *testing.T) {
	var buf strings.Builder
	runner := NewRunner(Config{
		Store:  storage.NewMemoryStore(),
		Logger: log.New(&buf, "", 0),
		NewID:  func() string { return "abc" },
	})
	if err := runner.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := runner.Run(context.Background(), RunRequest{Search: quickSearch(2)}); err != nil {
		t.Fatalf("run: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "run_started run_id=abc") || !strings.Contains(out, "run_completed run_id=abc") {
		t.Fatalf("unexpected log output: %s", out)
	}
}
