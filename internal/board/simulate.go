package board

import "tilechain/internal/tile"

type StopReason string

const (
	StopEnd       StopReason = "end"
	StopRejected  StopReason = "rejected"
	StopOffGrid   StopReason = "off_grid"
	StopLoopGuard StopReason = "loop_guard"
)

// StopReasons lists every terminal state in a stable order.
var StopReasons = []StopReason{StopEnd, StopRejected, StopOffGrid, StopLoopGuard}

type Result struct {
	Steps int
	Stop  StopReason
	// Drawn counts tiles taken from the sequence, not including the End tile.
	Drawn int
	Path  []Point
	Grid  *Grid
}

// Simulate walks a token from start, drawing tiles from kinds/flips on demand
// and returning the step count. kinds and flips are read, never modified;
// flips shorter than kinds reads as false. An End tile follows the sequence.
func Simulate(size Size, start Point, heading tile.Heading, kinds []tile.Kind, flips []bool) Result {
	grid := NewGrid(size)
	res := Result{Grid: grid, Path: []Point{start}}
	if !size.Contains(start) {
		res.Stop = StopOffGrid
		return res
	}

	grid.place(start, tile.New(tile.KindStart, false))
	pos := start
	dir := tile.Norm(int(heading))
	next := 0

	for {
		current := grid.At(pos)
		if current == nil {
			if next < len(kinds) {
				current = tile.New(kinds[next], next < len(flips) && flips[next])
				res.Drawn++
			} else {
				current = tile.New(tile.KindEnd, false)
			}
			next++
			grid.place(pos, current)
		}

		if current.Kind == tile.KindEnd {
			res.Steps += 2
			res.Stop = StopEnd
			return res
		}

		out, ok := current.Move(dir)
		if !ok {
			res.Stop = StopRejected
			return res
		}
		dir = out

		res.Steps++
		if res.Steps > StepCap {
			res.Stop = StopLoopGuard
			return res
		}

		pos = pos.Step(dir)
		if !size.Contains(pos) {
			res.Stop = StopOffGrid
			return res
		}
		res.Path = append(res.Path, pos)
	}
}

// Steps is Simulate without the walk details.
func Steps(size Size, start Point, heading tile.Heading, kinds []tile.Kind, flips []bool) int {
	return Simulate(size, start, heading, kinds, flips).Steps
}
