package clipboard

import "github.com/goflowspace/goflow/pkg/domain"

// DefaultOffset shifts pasted and duplicated nodes away from their source.
var DefaultOffset = domain.Coordinates{X: 50, Y: 50}

// Place returns want, shifted by step until it does not coincide with any
// occupied position. A zero step falls back to DefaultOffset.
func Place(occupied []domain.Coordinates, want, step domain.Coordinates) domain.Coordinates {
	if step == (domain.Coordinates{}) {
		step = DefaultOffset
	}
	taken := make(map[domain.Coordinates]bool, len(occupied))
	for _, c := range occupied {
		taken[c] = true
	}
	for taken[want] {
		want.X += step.X
		want.Y += step.Y
	}
	return want
}

// Arrange moves the top-level nodes of f by offset, then nudges each one off
// any position already occupied, including positions claimed by nodes
// arranged before it.
func Arrange(f *Fragment, occupied []domain.Coordinates, offset domain.Coordinates) {
	taken := append([]domain.Coordinates(nil), occupied...)
	for _, n := range f.Nodes {
		want := domain.Coordinates{X: n.Coordinates.X + offset.X, Y: n.Coordinates.Y + offset.Y}
		n.Coordinates = Place(taken, want, offset)
		taken = append(taken, n.Coordinates)
	}
}

// Occupied lists the positions of the nodes of a layer.
func Occupied(l *domain.Layer) []domain.Coordinates {
	out := make([]domain.Coordinates, 0, len(l.Nodes))
	for _, n := range l.OrderedNodes() {
		out = append(out, n.Coordinates)
	}
	return out
}
