package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"tilechain/internal/board"
	"tilechain/internal/model"
)

const runIndexFile = "run_index.json"

// TimestampLayout is a fixed-width RFC 3339 layout, so stored timestamps sort
// as strings.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

var runFiles = []string{"config.json", "fitness_history.json", "generation_diagnostics.json", "best.json", "best_grid.txt", "fitness_series.csv"}

type RunConfig struct {
	RunID          string          `json:"run_id"`
	Board          board.Size      `json:"board"`
	Inventory      model.Inventory `json:"inventory"`
	PopulationSize int             `json:"population_size"`
	Generations    int             `json:"generations"`
	MutationRate   float64         `json:"mutation_rate"`
	EliteFraction  float64         `json:"elite_fraction"`
	EliteCount     int             `json:"elite_count"`
	TournamentSize int             `json:"tournament_size"`
	Seed           int64           `json:"seed"`
	Workers        int             `json:"workers"`
}

type RunArtifacts struct {
	Config                RunConfig                     `json:"config"`
	BestByGeneration      []int                         `json:"best_by_generation"`
	GenerationDiagnostics []model.GenerationDiagnostics `json:"generation_diagnostics,omitempty"`
	FinalBestFitness      int                           `json:"final_best_fitness"`
	BestGeneration        int                           `json:"best_generation"`
	Best                  model.Genome                  `json:"best"`
	// BestGrid is the rendered board the best genome leaves behind.
	BestGrid string `json:"-"`
}

type RunIndexEntry struct {
	RunID            string     `json:"run_id"`
	Board            board.Size `json:"board"`
	PopulationSize   int        `json:"population_size"`
	Generations      int        `json:"generations"`
	Seed             int64      `json:"seed"`
	Workers          int        `json:"workers"`
	EliteCount       int        `json:"elite_count"`
	FinalBestFitness int        `json:"final_best_fitness"`
	CreatedAtUTC     string     `json:"created_at_utc"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}
	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	documents := []struct {
		name  string
		value any
	}{
		{"config.json", artifacts.Config},
		{"fitness_history.json", map[string]any{
			"best_by_generation": artifacts.BestByGeneration,
			"final_best_fitness": artifacts.FinalBestFitness,
			"best_generation":    artifacts.BestGeneration,
		}},
		{"generation_diagnostics.json", artifacts.GenerationDiagnostics},
		{"best.json", artifacts.Best},
	}
	for _, doc := range documents {
		if err := writeJSON(filepath.Join(runDir, doc.name), doc.value); err != nil {
			return "", fmt.Errorf("write %s: %w", doc.name, err)
		}
	}
	if err := os.WriteFile(filepath.Join(runDir, "best_grid.txt"), []byte(artifacts.BestGrid), 0o644); err != nil {
		return "", err
	}
	if err := WriteFitnessSeries(runDir, artifacts.BestByGeneration); err != nil {
		return "", err
	}
	return runDir, nil
}

// indexMu serializes read-modify-write cycles on run_index.json.
var indexMu sync.Mutex

// AppendRunIndex adds entry to run_index.json, replacing an entry with the
// same run id in place.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	indexMu.Lock()
	defer indexMu.Unlock()
	var index []RunIndexEntry
	if _, err := readJSON(filepath.Join(baseDir, runIndexFile), &index); err != nil {
		return err
	}
	if i := slices.IndexFunc(index, func(e RunIndexEntry) bool { return e.RunID == entry.RunID }); i >= 0 {
		index[i] = entry
	} else {
		index = append(index, entry)
	}
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// RemoveRunIndex drops runID from run_index.json and reports whether it was
// listed.
func RemoveRunIndex(baseDir, runID string) (bool, error) {
	indexMu.Lock()
	defer indexMu.Unlock()
	var index []RunIndexEntry
	found, err := readJSON(filepath.Join(baseDir, runIndexFile), &index)
	if err != nil || !found {
		return false, err
	}
	kept := slices.DeleteFunc(slices.Clone(index), func(e RunIndexEntry) bool { return e.RunID == runID })
	if len(kept) == len(index) {
		return false, nil
	}
	return true, writeJSON(filepath.Join(baseDir, runIndexFile), kept)
}

// RemoveRunArtifacts deletes the artifact directory of runID.
func RemoveRunArtifacts(baseDir, runID string) error {
	if runID == "" || filepath.Base(runID) != runID || runID == "." || runID == ".." {
		return fmt.Errorf("invalid run id %q", runID)
	}
	return os.RemoveAll(filepath.Join(baseDir, runID))
}

// ListRunIndex returns the indexed runs newest first. Entries created at the
// same instant come out in reverse append order.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	var entries []RunIndexEntry
	if _, err := readJSON(filepath.Join(baseDir, runIndexFile), &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		return []RunIndexEntry{}, nil
	}
	slices.Reverse(entries)
	slices.SortStableFunc(entries, func(a, b RunIndexEntry) int {
		return strings.Compare(b.CreatedAtUTC, a.CreatedAtUTC)
	})
	return entries, nil
}

// ExportRunArtifacts copies a run directory to outDir/runID.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}
	for _, file := range runFiles {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, "config.json"), &cfg)
	return cfg, ok, err
}

func ReadBest(baseDir, runID string) (model.Genome, bool, error) {
	var best model.Genome
	ok, err := readJSON(filepath.Join(baseDir, runID, "best.json"), &best)
	return best, ok, err
}

func ReadGenerationDiagnostics(baseDir, runID string) ([]model.GenerationDiagnostics, bool, error) {
	var diagnostics []model.GenerationDiagnostics
	ok, err := readJSON(filepath.Join(baseDir, runID, "generation_diagnostics.json"), &diagnostics)
	return diagnostics, ok, err
}

func ReadBestGrid(baseDir, runID string) (string, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, "best_grid.txt"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

func WriteFitnessSeries(runDir string, bestByGeneration []int) error {
	path := filepath.Join(runDir, "fitness_series.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"generation", "best_fitness"}); err != nil {
		return err
	}
	for i, best := range bestByGeneration {
		if err := writer.Write([]string{strconv.Itoa(i), strconv.Itoa(best)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadFitnessSeries(baseDir, runID string) ([]int, bool, error) {
	path := filepath.Join(baseDir, runID, "fitness_series.csv")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []int{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 2 || strings.TrimSpace(header[1]) != "best_fitness" {
		return nil, false, fmt.Errorf("fitness series header must be generation,best_fitness")
	}

	series := make([]int, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		value, err := strconv.Atoi(record[1])
		if err != nil {
			return nil, false, fmt.Errorf("fitness series row %d: %w", len(series)+1, err)
		}
		series = append(series, value)
	}
	return series, true, nil
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

// writeJSON replaces path through a temp file and rename, so readers never
// see a partial document.
func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
