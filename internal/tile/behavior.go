package tile

type behavior struct {
	rotate   func(in Heading, flip bool) int
	accepts  func(rotation int, in Heading) bool
	place    func(in Heading, flip bool) Heading
	redirect func(rotation int, in Heading) (Heading, bool)
}

var behaviors = [...]behavior{
	KindA: {
		rotate: func(in Heading, _ bool) int {
			if in%2 == 0 {
				return 0
			}
			return 1
		},
		accepts: func(rotation int, in Heading) bool {
			return int(in)%2 == rotation
		},
		place: func(in Heading, _ bool) Heading { return in },
		redirect: func(_ int, in Heading) (Heading, bool) {
			return in, true
		},
	},
	KindB: {
		rotate: func(in Heading, flip bool) int {
			if flip {
				return (int(in) + 2) % 4
			}
			return int(in) % 4
		},
		accepts: func(rotation int, in Heading) bool {
			return int(in)%2 == rotation%2
		},
		place: func(in Heading, flip bool) Heading {
			if flip {
				return Norm(int(in) + 2)
			}
			return Norm(int(in) - 2)
		},
		redirect: func(rotation int, in Heading) (Heading, bool) {
			out, ok := bTurns[rotation][in]
			return out, ok
		},
	},
	KindC: {
		rotate: func(in Heading, flip bool) int {
			if flip {
				return int(Norm(int(in) - 3))
			}
			return int(in)
		},
		accepts: func(rotation int, in Heading) bool {
			return in == Heading(rotation) || in == Norm(rotation+3)
		},
		place: func(in Heading, flip bool) Heading {
			if flip {
				return Norm(int(in) + 1)
			}
			return Norm(int(in) - 1)
		},
		redirect: func(rotation int, in Heading) (Heading, bool) {
			switch in {
			case Heading(rotation):
				return Norm(rotation - 1), true
			case Norm(rotation + 3):
				return Norm(rotation + 4), true
			}
			return 0, false
		},
	},
	KindStart: {
		rotate: func(in Heading, _ bool) int { return int(in) },
		accepts: func(int, Heading) bool {
			return true
		},
		place: func(in Heading, _ bool) Heading { return in },
	},
	KindEnd: {
		accepts: func(int, Heading) bool {
			return true
		},
	},
}

// bTurns maps rotation -> incoming -> outgoing for a B tile after first contact.
var bTurns = [4]map[Heading]Heading{
	{0: 6, 2: 4, 4: 2, 6: 0},
	{1: 7, 3: 5, 5: 3, 7: 1},
	{0: 2, 2: 0, 4: 6, 6: 4},
	{1: 3, 3: 1, 5: 7, 7: 5},
}
