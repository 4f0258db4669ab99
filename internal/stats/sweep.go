package stats

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const sweepsDir = "sweeps"

// SweepCell is one population size and generation count pair of a sweep.
type SweepCell struct {
	PopulationSize  int     `json:"population_size"`
	Generations     int     `json:"generations"`
	RunID           string  `json:"run_id"`
	BestFitness     int     `json:"best_fitness"`
	Evaluations     int     `json:"evaluations"`
	DurationSeconds float64 `json:"duration_seconds"`
}

type SweepReport struct {
	ID             string      `json:"id"`
	StartedAtUTC   string      `json:"started_at_utc,omitempty"`
	CompletedAtUTC string      `json:"completed_at_utc,omitempty"`
	Cells          []SweepCell `json:"cells"`
}

// Best returns the cell with the highest fitness; earlier cells win ties.
func (r SweepReport) Best() (SweepCell, bool) {
	if len(r.Cells) == 0 {
		return SweepCell{}, false
	}
	best := r.Cells[0]
	for _, cell := range r.Cells[1:] {
		if cell.BestFitness > best.BestFitness {
			best = cell
		}
	}
	return best, true
}

func WriteSweepReport(baseDir string, report SweepReport) error {
	if report.ID == "" {
		return fmt.Errorf("sweep id is required")
	}
	path := sweepReportPath(baseDir, report.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return writeJSON(path, report)
}

func ReadSweepReport(baseDir, id string) (SweepReport, bool, error) {
	if id == "" {
		return SweepReport{}, false, fmt.Errorf("sweep id is required")
	}
	var report SweepReport
	ok, err := readJSON(sweepReportPath(baseDir, id), &report)
	return report, ok, err
}

// ListSweepReports returns every stored sweep, newest first.
func ListSweepReports(baseDir string) ([]SweepReport, error) {
	entries, err := os.ReadDir(filepath.Join(baseDir, sweepsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return []SweepReport{}, nil
		}
		return nil, err
	}

	reports := make([]SweepReport, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		report, ok, err := ReadSweepReport(baseDir, entry.Name())
		if err != nil {
			return nil, err
		}
		if ok {
			reports = append(reports, report)
		}
	}
	sort.Slice(reports, func(i, j int) bool {
		if reports[i].StartedAtUTC == reports[j].StartedAtUTC {
			return reports[i].ID < reports[j].ID
		}
		return reports[i].StartedAtUTC > reports[j].StartedAtUTC
	})
	return reports, nil
}

func sweepReportPath(baseDir, id string) string {
	return filepath.Join(baseDir, sweepsDir, id, "sweep.json")
}
