// Package game defines the core board types for twinsnake.
//
// Each of the two players steers two snake ends that grow outwards one cell per
// turn, claiming the cells they pass through. The board is stored as a flat
// row-major cell slice plus a fixed-size array of end records, so it can be
// cloned cheaply for speculative evaluation.
package game

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrOutOfBounds   = errors.New("coordinate out of bounds")
	ErrBoardTooSmall = errors.New("board size must be at least 4")
	ErrUnknownMode   = errors.New("unknown game mode")
	ErrInvalidPlayer = errors.New("invalid player")
)

// MinSize is the smallest grid that fits the seeded ends.
const MinSize = 4

// Coord is a grid coordinate. (0,0) is the top-left cell.
type Coord struct {
	Row int
	Col int
}

// Add returns c shifted by v.
func (c Coord) Add(v Coord) Coord {
	return Coord{Row: c.Row + v.Row, Col: c.Col + v.Col}
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

type Cell uint8

const (
	Empty Cell = iota
	Player0Mark
	Player1Mark
)

type Player int

const (
	Player0 Player = 0
	Player1 Player = 1
)

// Other returns the opponent of p.
func (p Player) Other() Player {
	return 1 - p
}

// Mark is the cell value claimed by p.
func (p Player) Mark() Cell {
	return Cell(p + 1)
}

func (p Player) Valid() bool {
	return p == Player0 || p == Player1
}

// End is one growth point of a player's snake.
type End struct {
	At      Coord
	Heading Direction
}

// Move places a claim on Target; Heading is the heading the end carries afterwards.
type Move struct {
	Target  Coord
	Heading Direction
}

func (m Move) String() string {
	return fmt.Sprintf("%v->%v", m.Target, m.Heading)
}

// Board is the full game state.
// Ends[p][i] is end i of player p; both ends of a player always sit on cells
// carrying that player's mark.
type Board struct {
	Size  int
	Mode  Mode
	Cells []Cell
	Ends  [2][2]End
}

// NewBoard creates a size×size board with both players' ends seeded around the
// centre. With h = size/2 (integer division):
//
//	player 0: (h-1,h-1) heading E, (h-1,h-2) heading W
//	player 1: (h,h)     heading W, (h,h+1)   heading E
//
// Odd sizes use the same floor centring, which leaves the seed block one cell
// up-left of the true centre.
func NewBoard(size int, mode Mode) (*Board, error) {
	if size < MinSize {
		return nil, fmt.Errorf("%w: got %d", ErrBoardTooSmall, size)
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrUnknownMode, mode)
	}

	h := size / 2
	b := &Board{
		Size:  size,
		Mode:  mode,
		Cells: make([]Cell, size*size),
		Ends: [2][2]End{
			{{At: Coord{h - 1, h - 1}, Heading: East}, {At: Coord{h - 1, h - 2}, Heading: West}},
			{{At: Coord{h, h}, Heading: West}, {At: Coord{h, h + 1}, Heading: East}},
		},
	}
	for p := range b.Ends {
		for _, e := range b.Ends[p] {
			b.Cells[b.index(e.At)] = Player(p).Mark()
		}
	}
	return b, nil
}

// NewBoardWithEnds creates an otherwise empty board with ends placed as given,
// for prepared positions.
func NewBoardWithEnds(size int, mode Mode, ends [2][2]End) (*Board, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrBoardTooSmall, size)
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrUnknownMode, mode)
	}
	b := &Board{Size: size, Mode: mode, Cells: make([]Cell, size*size), Ends: ends}
	for p := range ends {
		for _, e := range ends[p] {
			if !b.InBounds(e.At) {
				return nil, fmt.Errorf("end %v: %w", e.At, ErrOutOfBounds)
			}
			if !b.EmptyAt(e.At) {
				return nil, fmt.Errorf("end %v: cell already holds an end", e.At)
			}
			b.Cells[b.index(e.At)] = Player(p).Mark()
		}
	}
	return b, nil
}

// Clone performs a deep copy of the board.
func (b *Board) Clone() *Board {
	if b == nil {
		return nil
	}
	out := &Board{
		Size:  b.Size,
		Mode:  b.Mode,
		Cells: make([]Cell, len(b.Cells)),
		Ends:  b.Ends,
	}
	copy(out.Cells, b.Cells)
	return out
}

// CloneInto overwrites dst with a copy of b, reusing dst's cell storage when it
// is large enough.
func (b *Board) CloneInto(dst *Board) {
	if cap(dst.Cells) >= len(b.Cells) {
		dst.Cells = dst.Cells[:len(b.Cells)]
	} else {
		dst.Cells = make([]Cell, len(b.Cells))
	}
	copy(dst.Cells, b.Cells)
	dst.Size = b.Size
	dst.Mode = b.Mode
	dst.Ends = b.Ends
}

func (b *Board) InBounds(c Coord) bool {
	return c.Row >= 0 && c.Row < b.Size && c.Col >= 0 && c.Col < b.Size
}

// CellAt returns the occupancy of c.
func (b *Board) CellAt(c Coord) (Cell, error) {
	if !b.InBounds(c) {
		return Empty, fmt.Errorf("%w: %v on %dx%d board", ErrOutOfBounds, c, b.Size, b.Size)
	}
	return b.Cells[b.index(c)], nil
}

// SetCell marks c. Callers must have checked bounds.
func (b *Board) SetCell(c Coord, v Cell) {
	b.Cells[b.index(c)] = v
}

// EmptyAt reports whether c is on the board and unclaimed.
func (b *Board) EmptyAt(c Coord) bool {
	return b.InBounds(c) && b.Cells[b.index(c)] == Empty
}

// EndsOf returns a copy of p's two ends.
func (b *Board) EndsOf(p Player) [2]End {
	return b.Ends[p]
}

// Occupied counts claimed cells.
func (b *Board) Occupied() int {
	n := 0
	for _, c := range b.Cells {
		if c != Empty {
			n++
		}
	}
	return n
}

func (b *Board) index(c Coord) int {
	return c.Row*b.Size + c.Col
}

// String draws the board one row per line: current ends as O (player 0) and
// X (player 1), claimed cells as o and *, empty cells as '.'.
func (b *Board) String() string {
	var sb strings.Builder
	sb.Grow(b.Size * (b.Size + 1))
	for r := 0; r < b.Size; r++ {
		for c := 0; c < b.Size; c++ {
			sb.WriteByte(b.glyph(Coord{Row: r, Col: c}))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (b *Board) glyph(c Coord) byte {
	for p := range b.Ends {
		for _, e := range b.Ends[p] {
			if e.At == c {
				return "OX"[p]
			}
		}
	}
	switch b.Cells[b.index(c)] {
	case Player0Mark:
		return 'o'
	case Player1Mark:
		return '*'
	default:
		return '.'
	}
}

// Point is a position on a rendered board, in screen units (for example pixels).
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// CellForPoint maps a screen point to the grid cell under it when each cell is
// drawn cellSize units wide. A cellSize below 1 is treated as 1.
func CellForPoint(p Point, cellSize int) Coord {
	if cellSize < 1 {
		cellSize = 1
	}
	return Coord{Row: floorDiv(p.Y, cellSize), Col: floorDiv(p.X, cellSize)}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && (a < 0) {
		q--
	}
	return q
}
