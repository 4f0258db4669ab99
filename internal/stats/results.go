package stats

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"tilechain/internal/board"
)

// AppendResult adds one discovered layout to the results log: the rendered
// grid, a line with the fitness, then a blank line.
func AppendResult(path string, grid *board.Grid, fitness int) error {
	if grid == nil {
		return fmt.Errorf("grid is required")
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open results log: %w", err)
	}

	w := bufio.NewWriter(f)
	w.WriteString(grid.Render())
	fmt.Fprintf(w, "%d\n\n", fitness)
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write results log: %w", err)
	}
	return f.Close()
}

// ResultEntry is one block of the results log.
type ResultEntry struct {
	Grid    string
	Fitness int
}

// ReadResults parses a results log back into its entries. A missing file
// holds no entries.
func ReadResults(path string) ([]ResultEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var (
		entries []ResultEntry
		block   []string
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			block = append(block, line)
			continue
		}
		if len(block) == 0 {
			continue
		}
		entry, err := parseResultBlock(block)
		if err != nil {
			return nil, fmt.Errorf("results entry %d: %w", len(entries)+1, err)
		}
		entries = append(entries, entry)
		block = block[:0]
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(block) > 0 {
		return nil, fmt.Errorf("results entry %d: missing blank separator", len(entries)+1)
	}
	return entries, nil
}

// BestResult is the highest fitness in the log, or -1 for an empty log.
func BestResult(path string) (int, error) {
	entries, err := ReadResults(path)
	if err != nil {
		return 0, err
	}
	best := -1
	for _, entry := range entries {
		best = max(best, entry.Fitness)
	}
	return best, nil
}

func parseResultBlock(block []string) (ResultEntry, error) {
	last := block[len(block)-1]
	fitness, err := strconv.Atoi(strings.TrimSpace(last))
	if err != nil {
		return ResultEntry{}, fmt.Errorf("fitness line %q: %w", last, err)
	}
	grid := strings.Join(block[:len(block)-1], "\n")
	if grid != "" {
		grid += "\n"
	}
	return ResultEntry{Grid: grid, Fitness: fitness}, nil
}
