package stats

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"tilechain/internal/board"
	"tilechain/internal/model"
	"tilechain/internal/tile"
)

func sampleArtifacts(runID string) RunArtifacts {
	return RunArtifacts{
		Config: RunConfig{
			RunID:          runID,
			Board:          board.Size{W: 6, H: 6},
			Inventory:      model.DefaultInventory(),
			PopulationSize: 20,
			Generations:    2,
			MutationRate:   0.4,
			EliteFraction:  0.1,
			EliteCount:     2,
			Seed:           1,
			Workers:        2,
		},
		BestByGeneration: []int{11, 14, 14},
		FinalBestFitness: 14,
		BestGeneration:   1,
		Best: model.Genome{
			Start:   board.Point{X: 1, Y: 4},
			Heading: tile.Heading(2),
			Tiles:   []tile.Kind{tile.KindA, tile.KindB},
			Flips:   []bool{false, true},
			Fitness: 14,
		},
		BestGrid: "S→ A+\n",
	}
}

func TestWriteAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	runDir, err := WriteRunArtifacts(baseDir, sampleArtifacts("run-123"))
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	for _, file := range runFiles {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}

	exportedDir, err := ExportRunArtifacts(baseDir, "run-123", outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	for _, file := range runFiles {
		if _, err := os.Stat(filepath.Join(exportedDir, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}
}

func TestRunArtifactsReadBack(t *testing.T) {
	baseDir := t.TempDir()
	want := sampleArtifacts("run-9")
	if _, err := WriteRunArtifacts(baseDir, want); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	cfg, ok, err := ReadRunConfig(baseDir, "run-9")
	if err != nil || !ok {
		t.Fatalf("read config: ok=%t err=%v", ok, err)
	}
	if cfg.PopulationSize != 20 || cfg.Inventory != model.DefaultInventory() {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	best, ok, err := ReadBest(baseDir, "run-9")
	if err != nil || !ok {
		t.Fatalf("read best: ok=%t err=%v", ok, err)
	}
	if best.Key() != want.Best.Key() || best.Fitness != 14 {
		t.Fatalf("unexpected best: %+v", best)
	}

	if _, ok, err := ReadGenerationDiagnostics(baseDir, "run-9"); err != nil || !ok {
		t.Fatalf("read diagnostics: ok=%t err=%v", ok, err)
	}
	if _, ok, err := ReadGenerationDiagnostics(baseDir, "missing"); err != nil || ok {
		t.Fatalf("expected missing diagnostics, ok=%t err=%v", ok, err)
	}

	grid, ok, err := ReadBestGrid(baseDir, "run-9")
	if err != nil || !ok || grid != want.BestGrid {
		t.Fatalf("unexpected grid %q ok=%t err=%v", grid, ok, err)
	}

	series, ok, err := ReadFitnessSeries(baseDir, "run-9")
	if err != nil || !ok {
		t.Fatalf("read series: ok=%t err=%v", ok, err)
	}
	if len(series) != 3 || series[0] != 11 || series[2] != 14 {
		t.Fatalf("unexpected series: %v", series)
	}

	if _, ok, err := ReadRunConfig(baseDir, "missing"); err != nil || ok {
		t.Fatalf("expected missing config, got ok=%t err=%v", ok, err)
	}
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	if _, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{}); err == nil {
		t.Fatal("expected run id error")
	}
}

func TestRunIndexNewestFirstAndReplace(t *testing.T) {
	baseDir := t.TempDir()
	entries := []RunIndexEntry{
		{RunID: "a", FinalBestFitness: 10, CreatedAtUTC: "2026-01-01T00:00:00Z"},
		{RunID: "b", FinalBestFitness: 12, CreatedAtUTC: "2026-01-03T00:00:00Z"},
		{RunID: "c", FinalBestFitness: 11, CreatedAtUTC: "2026-01-02T00:00:00Z"},
	}
	for _, entry := range entries {
		if err := AppendRunIndex(baseDir, entry); err != nil {
			t.Fatalf("append %s: %v", entry.RunID, err)
		}
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "a", FinalBestFitness: 20, CreatedAtUTC: "2026-01-01T00:00:00Z"}); err != nil {
		t.Fatalf("replace a: %v", err)
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	var ids []string
	for _, entry := range index {
		ids = append(ids, entry.RunID)
	}
	if strings.Join(ids, ",") != "b,c,a" {
		t.Fatalf("unexpected order: %v", ids)
	}
	if index[2].FinalBestFitness != 20 {
		t.Fatalf("expected replaced entry, got %+v", index[2])
	}
}

func TestListRunIndexMissingIsEmpty(t *testing.T) {
	index, err := ListRunIndex(t.TempDir())
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(index) != 0 {
		t.Fatalf("expected empty index, got %d entries", len(index))
	}
}

func TestRunIndexOrdersSubsecondTimestamps(t *testing.T) {
	baseDir := t.TempDir()
	base := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	// 0.1s and 0.12s compare wrongly as trimmed RFC 3339 strings
	for i, offset := range []time.Duration{100 * time.Millisecond, 120 * time.Millisecond} {
		entry := RunIndexEntry{RunID: fmt.Sprintf("run-%d", i), CreatedAtUTC: base.Add(offset).Format(TimestampLayout)}
		if err := AppendRunIndex(baseDir, entry); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "tie", CreatedAtUTC: base.Add(120 * time.Millisecond).Format(TimestampLayout)}); err != nil {
		t.Fatalf("append tie: %v", err)
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	var ids []string
	for _, entry := range index {
		ids = append(ids, entry.RunID)
	}
	if strings.Join(ids, ",") != "tie,run-1,run-0" {
		t.Fatalf("unexpected order: %v", ids)
	}
	if _, err := time.Parse(time.RFC3339Nano, index[0].CreatedAtUTC); err != nil {
		t.Fatalf("timestamp not RFC 3339: %v", err)
	}
}

func TestAppendRunIndexConcurrent(t *testing.T) {
	baseDir := t.TempDir()
	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- AppendRunIndex(baseDir, RunIndexEntry{RunID: fmt.Sprintf("run-%02d", i), CreatedAtUTC: "2026-01-01T00:00:00Z"})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(index) != 32 {
		t.Fatalf("expected 32 entries, got %d", len(index))
	}
	leftovers, err := filepath.Glob(filepath.Join(baseDir, ".*.tmp"))
	if err != nil || len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v err=%v", leftovers, err)
	}
}

func TestRemoveRunIndexAndArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	for _, id := range []string{"run-1", "run-2"} {
		if _, err := WriteRunArtifacts(baseDir, sampleArtifacts(id)); err != nil {
			t.Fatalf("write %s: %v", id, err)
		}
		if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: id, CreatedAtUTC: "2026-01-01T00:00:00Z"}); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}

	removed, err := RemoveRunIndex(baseDir, "run-1")
	if err != nil || !removed {
		t.Fatalf("remove run-1: removed=%t err=%v", removed, err)
	}
	removed, err = RemoveRunIndex(baseDir, "run-1")
	if err != nil || removed {
		t.Fatalf("second remove: removed=%t err=%v", removed, err)
	}
	if removed, err := RemoveRunIndex(t.TempDir(), "run-1"); err != nil || removed {
		t.Fatalf("remove from missing index: removed=%t err=%v", removed, err)
	}
	index, err := ListRunIndex(baseDir)
	if err != nil || len(index) != 1 || index[0].RunID != "run-2" {
		t.Fatalf("unexpected index %+v err=%v", index, err)
	}

	if err := RemoveRunArtifacts(baseDir, "run-1"); err != nil {
		t.Fatalf("remove artifacts: %v", err)
	}
	if _, err := os.Stat(filepath.Join(baseDir, "run-1")); !os.IsNotExist(err) {
		t.Fatalf("expected run-1 directory removed, stat err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(baseDir, "run-2", "best.json")); err != nil {
		t.Fatalf("expected run-2 to survive: %v", err)
	}
	for _, bad := range []string{"", ".", "..", "../run-2", "a/b"} {
		if err := RemoveRunArtifacts(baseDir, bad); err == nil {
			t.Fatalf("expected error for run id %q", bad)
		}
	}
}
