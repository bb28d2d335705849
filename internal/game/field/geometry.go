package field

import (
	"fmt"
	"strings"
)

// Position is a cell on the unbounded integer grid. North is -Y.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Origin is the pre-placed start cell.
var Origin = Position{}

// String renders the position as "(x,y)".
func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Step returns the neighboring position in direction d.
func (p Position) Step(d Direction) Position {
	dx, dy := d.Delta()
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// Direction is one of the four tile sides.
type Direction int

// The four directions, clockwise from North.
const (
	North Direction = iota
	East
	South
	West
)

// Directions lists every direction clockwise from North.
var Directions = [4]Direction{North, East, South, West}

var directionNames = [4]string{"N", "E", "S", "W"}

// String returns the single-letter name of d.
func (d Direction) String() string {
	return directionNames[d]
}

// Opposite returns the direction facing d.
func (d Direction) Opposite() Direction {
	return (d + 2) % 4
}

// Delta returns the grid offset of one step in d.
func (d Direction) Delta() (int, int) {
	switch d {
	case North:
		return 0, -1
	case East:
		return 1, 0
	case South:
		return 0, 1
	default:
		return -1, 0
	}
}

// Side returns the single-bit mask for d.
func (d Direction) Side() Sides {
	return 1 << d
}

// DirectionBetween returns the direction from a to an orthogonally adjacent b.
func DirectionBetween(a, b Position) (Direction, bool) {
	for _, d := range Directions {
		if a.Step(d) == b {
			return d, true
		}
	}
	return 0, false
}

// AdjacentPositions returns the four orthogonal neighbors of p, indexed by Direction.
func AdjacentPositions(p Position) [4]Position {
	var out [4]Position
	for _, d := range Directions {
		out[d] = p.Step(d)
	}
	return out
}

// Sides is a 4-bit mask of open sides: bit 0 North, 1 East, 2 South, 3 West.
type Sides uint8

// AllOpen has every side open.
const AllOpen Sides = 0b1111

// Valid reports whether s only uses the four side bits.
func (s Sides) Valid() bool {
	return s&^AllOpen == 0
}

// Open reports whether side d is open.
func (s Sides) Open(d Direction) bool {
	return s&d.Side() != 0
}

// OpenSides returns the open directions of s clockwise from North.
func (s Sides) OpenSides() []Direction {
	var out []Direction
	for _, d := range Directions {
		if s.Open(d) {
			out = append(out, d)
		}
	}
	return out
}

// Rotate returns s turned a quarter clockwise: North becomes East.
func (s Sides) Rotate() Sides {
	return ((s << 1) | (s >> 3)) & AllOpen
}

// Rotations returns the distinct orientations reachable by rotating s, starting with s.
func (s Sides) Rotations() []Sides {
	out := []Sides{s}
	r := s.Rotate()
	for r != s {
		out = append(out, r)
		r = r.Rotate()
	}
	return out
}

// IsRotationOf reports whether s is base turned by some number of quarter turns.
func (s Sides) IsRotationOf(base Sides) bool {
	for _, r := range base.Rotations() {
		if r == s {
			return true
		}
	}
	return false
}

// String renders the open sides as letters, e.g. "NS"; "-" when closed all round.
func (s Sides) String() string {
	var b strings.Builder
	for _, d := range s.OpenSides() {
		b.WriteString(d.String())
	}
	if b.Len() == 0 {
		return "-"
	}
	return b.String()
}

// ParseSides parses a string of side letters such as "NES".
func ParseSides(str string) (Sides, error) {
	var s Sides
	for _, r := range strings.ToUpper(str) {
		switch r {
		case 'N':
			s |= North.Side()
		case 'E':
			s |= East.Side()
		case 'S':
			s |= South.Side()
		case 'W':
			s |= West.Side()
		case '-':
		default:
			return 0, fmt.Errorf("invalid side %q in %q", r, str)
		}
	}
	return s, nil
}
