// Package view draws a walked board on a terminal and lets the user step the
// token along its path.
package view

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"

	"tilechain/internal/board"
	"tilechain/internal/tile"
)

const (
	cellWidth = 4
	gridTop   = 3
)

var kindStyles = map[tile.Kind]tcell.Style{
	tile.KindStart: tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true),
	tile.KindEnd:   tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true),
	tile.KindA:     tcell.StyleDefault.Foreground(tcell.ColorWhite),
	tile.KindB:     tcell.StyleDefault.Foreground(tcell.ColorBlue),
	tile.KindC:     tcell.StyleDefault.Foreground(tcell.ColorYellow),
}

type Viewer struct {
	screen tcell.Screen
	title  string
	result board.Result
	// firstVisit is the path index at which each occupied cell was reached.
	firstVisit map[board.Point]int
	step       int
}

func New(screen tcell.Screen, title string, result board.Result) *Viewer {
	firstVisit := make(map[board.Point]int, len(result.Path))
	for i, p := range result.Path {
		if _, seen := firstVisit[p]; !seen {
			firstVisit[p] = i
		}
	}
	return &Viewer{
		screen:     screen,
		title:      title,
		result:     result,
		firstVisit: firstVisit,
		step:       len(result.Path) - 1,
	}
}

// Step is the index into the path where the token is drawn.
func (v *Viewer) Step() int {
	return v.step
}

// Move shifts the token along its path, clamped to both ends.
func (v *Viewer) Move(delta int) {
	v.step = min(max(v.step+delta, 0), len(v.result.Path)-1)
}

func (v *Viewer) Draw() {
	v.screen.Clear()
	plain := tcell.StyleDefault
	dim := tcell.StyleDefault.Foreground(tcell.ColorGray).Dim(true)

	drawText(v.screen, 0, 0, plain.Bold(true), v.title)
	status := fmt.Sprintf("steps=%d stop=%s drawn=%d  position %d/%d", v.result.Steps, v.result.Stop, v.result.Drawn, v.step, len(v.result.Path)-1)
	drawText(v.screen, 0, 1, plain, status)

	grid := v.result.Grid
	if grid == nil {
		v.screen.Show()
		return
	}
	var token board.Point
	if len(v.result.Path) > 0 {
		token = v.result.Path[v.step]
	}
	size := grid.Size()
	for y := 0; y < size.H; y++ {
		for x := 0; x < size.W; x++ {
			p := board.Point{X: x, Y: y}
			t := grid.At(p)
			style := dim
			label := "."
			if t != nil {
				label = board.Label(t)
				if first, ok := v.firstVisit[p]; ok && first <= v.step {
					style = kindStyles[t.Kind]
				}
			}
			if t != nil && p == token && len(v.result.Path) > 0 {
				style = style.Reverse(true)
			}
			drawText(v.screen, x*cellWidth, gridTop+y, style, fmt.Sprintf("%-*s", cellWidth-1, label))
		}
	}
	drawText(v.screen, 0, gridTop+size.H+1, dim, "left/right step  home/end jump  q quit")
	v.screen.Show()
}

// HandleEvent applies one event and reports whether the viewer should keep
// running.
func (v *Viewer) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyRight:
			v.Move(1)
		case tcell.KeyLeft:
			v.Move(-1)
		case tcell.KeyHome:
			v.Move(-len(v.result.Path))
		case tcell.KeyEnd:
			v.Move(len(v.result.Path))
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return false
			case 'l', ' ':
				v.Move(1)
			case 'h':
				v.Move(-1)
			}
		}
	case *tcell.EventResize:
		v.screen.Sync()
	}
	return true
}

// Run draws and handles events until the user quits or ctx is done.
func (v *Viewer) Run(ctx context.Context) error {
	events := make(chan tcell.Event, 16)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(events)
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-done:
				return
			}
		}
	}()

	v.Draw()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok || !v.HandleEvent(ev) {
				return nil
			}
			v.Draw()
		}
	}
}

// Show opens the terminal, runs a viewer on it and restores the terminal on
// return.
func Show(ctx context.Context, title string, result board.Result) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	defer screen.Fini()
	return New(screen, title, result).Run(ctx)
}

func drawText(screen tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, r := range text {
		screen.SetContent(x, y, r, nil, style)
		x++
	}
}
