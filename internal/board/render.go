package board

import (
	"fmt"
	"strings"

	"tilechain/internal/tile"
)

var startArrows = [tile.HeadingCount]string{"↑", "↗", "→", "↘", "↓", "↙", "←", "↖"}

// Label is the short text for one cell, "." when empty. Flipped tiles carry a
// trailing apostrophe.
func Label(t *tile.Tile) string {
	if t == nil {
		return "."
	}
	rotation, placed := t.Rotation()
	var b strings.Builder
	b.WriteString(t.Kind.String())
	switch t.Kind {
	case tile.KindStart:
		if placed {
			b.WriteString(startArrows[rotation])
		}
	case tile.KindA:
		if placed {
			if rotation == 0 {
				b.WriteString("+")
			} else {
				b.WriteString("x")
			}
		}
	case tile.KindB, tile.KindC:
		if placed {
			fmt.Fprintf(&b, "%d", rotation)
		}
	}
	if t.Flip {
		b.WriteString("'")
	}
	return b.String()
}

// Render draws the grid one row per line, cells padded to equal width.
func (g *Grid) Render() string {
	var b strings.Builder
	for y := 0; y < g.size.H; y++ {
		for x := 0; x < g.size.W; x++ {
			if x > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%-3s", Label(g.At(Point{X: x, Y: y})))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (g *Grid) String() string {
	return g.Render()
}
