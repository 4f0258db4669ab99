package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tilechain/internal/stats"
)

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	orig := stdout
	stdout = buf
	t.Cleanup(func() {
		stdout = orig
	})
	return buf
}

func workspaceFlags(t *testing.T) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	return dir, []string{
		"--store", "memory",
		"--artifacts", filepath.Join(dir, "runs"),
		"--results", filepath.Join(dir, "results.txt"),
		"--quiet",
	}
}

func TestRunCommandCreatesArtifactsAndResultsLog(t *testing.T) {
	dir, common := workspaceFlags(t)
	out := captureStdout(t)

	args := append([]string{"run"}, common...)
	args = append(args, "--run-id", "cli-run", "--pop", "12", "--gens", "2", "--seed", "11", "--workers", "2")
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("run command: %v", err)
	}
	if !strings.Contains(out.String(), "run_id=cli-run") {
		t.Fatalf("unexpected output: %q", out.String())
	}

	for _, file := range []string{"config.json", "fitness_history.json", "generation_diagnostics.json", "best.json", "best_grid.txt", "fitness_series.csv"} {
		path := filepath.Join(dir, "runs", "cli-run", file)
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected artifact %s: %v", path, err)
		}
	}
	cfg, ok, err := stats.ReadRunConfig(filepath.Join(dir, "runs"), "cli-run")
	if err != nil || !ok {
		t.Fatalf("read config: ok=%t err=%v", ok, err)
	}
	if cfg.PopulationSize != 12 || cfg.Generations != 2 || cfg.Seed != 11 {
		t.Fatalf("unexpected persisted config: %+v", cfg)
	}

	entries, err := stats.ReadResults(filepath.Join(dir, "results.txt"))
	if err != nil {
		t.Fatalf("read results: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected first run to be logged, got %d entries", len(entries))
	}
}

func TestRunCommandJSONOutput(t *testing.T) {
	_, common := workspaceFlags(t)
	out := captureStdout(t)

	args := append([]string{"run"}, common...)
	args = append(args, "--pop", "10", "--gens", "1", "--seed", "3", "--json")
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("run command: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(out.Bytes(), &payload); err != nil {
		t.Fatalf("decode json output: %v\n%s", err, out.String())
	}
	if payload["run_id"] == "" || payload["best_fitness"] == nil {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestRunsShowExportAndDeleteCommands(t *testing.T) {
	dir, common := workspaceFlags(t)
	out := captureStdout(t)

	for _, id := range []string{"first", "second"} {
		args := append([]string{"run"}, common...)
		args = append(args, "--run-id", id, "--pop", "10", "--gens", "1", "--seed", "5")
		if err := run(context.Background(), args); err != nil {
			t.Fatalf("run %s: %v", id, err)
		}
	}

	out.Reset()
	if err := run(context.Background(), append(append([]string{"runs"}, common...), "--limit", "1")); err != nil {
		t.Fatalf("runs command: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "second ") {
		t.Fatalf("expected newest run only, got %q", out.String())
	}

	out.Reset()
	if err := run(context.Background(), append(append([]string{"show"}, common...), "--latest", "--diagnostics")); err != nil {
		t.Fatalf("show command: %v", err)
	}
	if !strings.Contains(out.String(), "run_id=second") || !strings.Contains(out.String(), "generation=1") {
		t.Fatalf("unexpected show output: %q", out.String())
	}

	exportDir := filepath.Join(dir, "exports")
	out.Reset()
	if err := run(context.Background(), append(append([]string{"export"}, common...), "--run-id", "first", "--out", exportDir)); err != nil {
		t.Fatalf("export command: %v", err)
	}
	if _, err := os.Stat(filepath.Join(exportDir, "first", "best.json")); err != nil {
		t.Fatalf("expected exported best.json: %v", err)
	}

	out.Reset()
	if err := run(context.Background(), append(append([]string{"delete"}, common...), "--run-id", "first")); err != nil {
		t.Fatalf("delete command: %v", err)
	}
	if !strings.Contains(out.String(), "deleted run_id=first") {
		t.Fatalf("unexpected delete output: %q", out.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "runs", "first")); !os.IsNotExist(err) {
		t.Fatalf("expected artifacts of first removed, stat err=%v", err)
	}
	out.Reset()
	if err := run(context.Background(), append([]string{"runs"}, common...)); err != nil {
		t.Fatalf("runs after delete: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(out.String()), "\n"); len(lines) != 1 || !strings.HasPrefix(lines[0], "second ") {
		t.Fatalf("expected only second listed after delete, got %q", out.String())
	}
	if err := run(context.Background(), append(append([]string{"delete"}, common...), "--run-id", "first")); err == nil {
		t.Fatal("expected second delete of first to fail")
	}
	if err := run(context.Background(), append([]string{"delete"}, common...)); err == nil {
		t.Fatal("expected missing run-id error")
	}
}

func TestRunsCommandEmptyAndBadLimit(t *testing.T) {
	_, common := workspaceFlags(t)
	out := captureStdout(t)

	if err := run(context.Background(), append([]string{"runs"}, common...)); err != nil {
		t.Fatalf("runs command: %v", err)
	}
	if strings.TrimSpace(out.String()) != "no runs found" {
		t.Fatalf("unexpected output: %q", out.String())
	}
	if err := run(context.Background(), append(append([]string{"runs"}, common...), "--limit", "0")); err == nil {
		t.Fatal("expected limit validation error")
	}
}

func TestSweepCommand(t *testing.T) {
	dir, common := workspaceFlags(t)
	out := captureStdout(t)

	args := append([]string{"sweep"}, common...)
	args = append(args, "--sweep-id", "grid", "--pops", "10,12", "--gens-range", "1:2:1", "--seed", "9", "--parallel", "2")
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("sweep command: %v", err)
	}
	if !strings.Contains(out.String(), "sweep_id=grid cells=4") || !strings.Contains(out.String(), "best pop=") {
		t.Fatalf("unexpected sweep output: %q", out.String())
	}
	report, ok, err := stats.ReadSweepReport(filepath.Join(dir, "runs"), "grid")
	if err != nil || !ok {
		t.Fatalf("read sweep report: ok=%t err=%v", ok, err)
	}
	if len(report.Cells) != 4 {
		t.Fatalf("expected 4 cells, got %d", len(report.Cells))
	}
}

func TestSimulateCommand(t *testing.T) {
	out := captureStdout(t)
	args := []string{"simulate", "--x", "2", "--y", "5", "--heading", "0", "--tiles", "AAAAAAAAAA"}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("simulate command: %v", err)
	}
	if !strings.Contains(out.String(), "steps=6 stop=off_grid") {
		t.Fatalf("unexpected simulate output: %q", out.String())
	}
	if err := run(context.Background(), []string{"simulate", "--tiles", "AXA"}); err == nil {
		t.Fatal("expected unknown tile error")
	}
}

func TestUnknownAndMissingCommand(t *testing.T) {
	if err := run(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "usage:") {
		t.Fatalf("expected usage error, got %v", err)
	}
	if err := run(context.Background(), []string{"evolve"}); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}
