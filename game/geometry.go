package game

import "fmt"

// Direction indexes one of the 8 compass unit vectors.
// The numbering is fixed: 0=E, then clockwise in 45° steps (1=SE, 2=S, ... 7=NE).
type Direction int

const (
	East Direction = iota
	SouthEast
	South
	SouthWest
	West
	NorthWest
	North
	NorthEast

	numDirections = 8
)

// unitVectors holds (row delta, col delta) per Direction. Row grows downwards.
var unitVectors = [numDirections]Coord{
	{Row: 0, Col: 1},
	{Row: 1, Col: 1},
	{Row: 1, Col: 0},
	{Row: 1, Col: -1},
	{Row: 0, Col: -1},
	{Row: -1, Col: -1},
	{Row: -1, Col: 0},
	{Row: -1, Col: 1},
}

var directionNames = [numDirections]string{"E", "SE", "S", "SW", "W", "NW", "N", "NE"}

// Vector returns the unit step for d.
func (d Direction) Vector() Coord {
	return unitVectors[d.normalize()]
}

// Rotate turns d by offset steps of 45°. Negative offsets turn anticlockwise.
func (d Direction) Rotate(offset int) Direction {
	return Direction(int(d) + offset).normalize()
}

// Reverse is the heading pointing back the way d came.
func (d Direction) Reverse() Direction {
	return d.Rotate(numDirections / 2)
}

func (d Direction) Valid() bool {
	return d >= 0 && d < numDirections
}

func (d Direction) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return directionNames[d]
}

func (d Direction) normalize() Direction {
	v := int(d) % numDirections
	if v < 0 {
		v += numDirections
	}
	return Direction(v)
}

// Mode selects how wide an arc an end may turn through per move.
type Mode int

const (
	Mode6 Mode = iota
	Mode10
	Mode14
)

// Relative heading offsets per mode, in generation order. +4 (reversal) never appears.
var modeOffsets = [...][]int{
	Mode6:  {0, 2, -2},
	Mode10: {0, 1, 2, -2, -1},
	Mode14: {0, 1, 2, 3, -3, -2, -1},
}

// Offsets returns the relative heading offsets permitted in m.
// The returned slice must not be modified.
func (m Mode) Offsets() []int {
	if !m.Valid() {
		return nil
	}
	return modeOffsets[m]
}

func (m Mode) Valid() bool {
	return m >= Mode6 && m <= Mode14
}

func (m Mode) String() string {
	switch m {
	case Mode6:
		return "6"
	case Mode10:
		return "10"
	case Mode14:
		return "14"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts the mode names used on the command line: "6", "10" or "14".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "6":
		return Mode6, nil
	case "10":
		return Mode10, nil
	case "14":
		return Mode14, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}
