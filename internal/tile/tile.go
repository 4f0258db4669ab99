package tile

import "fmt"

// Heading is one of the eight compass sectors, 0 = north, clockwise.
type Heading int

const HeadingCount = 8

// deltas is indexed by Heading. Rotation offsets in the behavior table rely on
// this exact order.
var deltas = [HeadingCount][2]int{
	{0, -1},
	{1, -1},
	{1, 0},
	{1, 1},
	{0, 1},
	{-1, 1},
	{-1, 0},
	{-1, -1},
}

// Norm wraps any integer onto [0,8).
func Norm(h int) Heading {
	return Heading(((h % HeadingCount) + HeadingCount) % HeadingCount)
}

func (h Heading) Valid() bool {
	return h >= 0 && h < HeadingCount
}

// Delta returns the grid displacement for one step along h.
func (h Heading) Delta() (dx, dy int) {
	d := deltas[Norm(int(h))]
	return d[0], d[1]
}

func (h Heading) String() string {
	names := [HeadingCount]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}
	if !h.Valid() {
		return fmt.Sprintf("Heading(%d)", int(h))
	}
	return names[h]
}

type Kind uint8

const (
	KindA Kind = iota
	KindB
	KindC
	KindStart
	KindEnd
)

// Drawable lists the kinds a tile sequence may contain.
var Drawable = []Kind{KindA, KindB, KindC}

func (k Kind) String() string {
	switch k {
	case KindA:
		return "A"
	case KindB:
		return "B"
	case KindC:
		return "C"
	case KindStart:
		return "S"
	case KindEnd:
		return "E"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "A", "a":
		return KindA, nil
	case "B", "b":
		return KindB, nil
	case "C", "c":
		return KindC, nil
	case "S", "s", "start":
		return KindStart, nil
	case "E", "e", "end":
		return KindEnd, nil
	default:
		return 0, fmt.Errorf("unknown tile kind: %q", s)
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	if k > KindEnd {
		return nil, fmt.Errorf("unknown tile kind: %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Tile is one placed instance. Kind and Flip are fixed when the tile is drawn;
// the rotation is frozen on the first Move call.
type Tile struct {
	Kind Kind
	Flip bool

	rotation int
	placed   bool
}

func New(kind Kind, flip bool) *Tile {
	return &Tile{Kind: kind, Flip: flip}
}

// Rotation reports the frozen sector and whether the tile has been entered yet.
func (t *Tile) Rotation() (int, bool) {
	return t.rotation, t.placed
}

// Accepts reports whether a later contact from heading in would be redirected.
// Before first contact every kind except End accepts any heading.
func (t *Tile) Accepts(in Heading) bool {
	b := behaviors[t.Kind]
	if !t.placed {
		return b.place != nil
	}
	return b.redirect != nil && b.accepts(t.rotation, Norm(int(in)))
}

// Move returns the outgoing heading for a token entering with heading in.
// ok is false when the tile stops the token.
func (t *Tile) Move(in Heading) (Heading, bool) {
	in = Norm(int(in))
	b := behaviors[t.Kind]
	if !t.placed {
		if b.place == nil {
			return 0, false
		}
		t.rotation = b.rotate(in, t.Flip)
		t.placed = true
		return b.place(in, t.Flip), true
	}
	if b.redirect == nil || !b.accepts(t.rotation, in) {
		return 0, false
	}
	return b.redirect(t.rotation, in)
}
