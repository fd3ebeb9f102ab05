package game

import (
	"errors"
	"testing"
)

func TestNewBoard_SeedsEightByEight(t *testing.T) {
	b, err := NewBoard(8, Mode6)
	if err != nil {
		t.Fatalf("NewBoard: %v", err)
	}
	t.Logf("seeded board:\n%s", b)

	want := [2][2]End{
		{{At: Coord{3, 3}, Heading: East}, {At: Coord{3, 2}, Heading: West}},
		{{At: Coord{4, 4}, Heading: West}, {At: Coord{4, 5}, Heading: East}},
	}
	if b.Ends != want {
		t.Fatalf("ends=%v want=%v", b.Ends, want)
	}
	for p := range want {
		for _, e := range want[p] {
			got, err := b.CellAt(e.At)
			if err != nil {
				t.Fatalf("CellAt(%v): %v", e.At, err)
			}
			if got != Player(p).Mark() {
				t.Fatalf("cell %v=%d want=%d", e.At, got, Player(p).Mark())
			}
		}
	}
	if b.Occupied() != 4 {
		t.Fatalf("occupied=%d want=4", b.Occupied())
	}

	wantText := "" +
		"........\n" +
		"........\n" +
		"........\n" +
		"..OO....\n" +
		"....XX..\n" +
		"........\n" +
		"........\n" +
		"........\n"
	if b.String() != wantText {
		t.Fatalf("render:\n%s\nwant:\n%s", b.String(), wantText)
	}
}

func TestNewBoard_OddSizeUsesFloorCentre(t *testing.T) {
	b, err := NewBoard(7, Mode10)
	if err != nil {
		t.Fatalf("NewBoard: %v", err)
	}
	if b.Ends[0][0].At != (Coord{2, 2}) || b.Ends[1][1].At != (Coord{3, 4}) {
		t.Fatalf("unexpected seed for odd size: %v", b.Ends)
	}
}

func TestNewBoard_Rejects(t *testing.T) {
	if _, err := NewBoard(3, Mode6); !errors.Is(err, ErrBoardTooSmall) {
		t.Fatalf("size 3: err=%v want ErrBoardTooSmall", err)
	}
	if _, err := NewBoard(8, Mode(7)); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("mode 7: err=%v want ErrUnknownMode", err)
	}
}

func TestCellAt_OutOfBounds(t *testing.T) {
	b, _ := NewBoard(6, Mode6)
	for _, c := range []Coord{{-1, 0}, {0, -1}, {6, 0}, {0, 6}} {
		if _, err := b.CellAt(c); !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("CellAt(%v) err=%v want ErrOutOfBounds", c, err)
		}
		if b.EmptyAt(c) {
			t.Errorf("EmptyAt(%v)=true for off-board cell", c)
		}
	}
}

func TestClone_IsIndependent(t *testing.T) {
	orig, _ := NewBoard(8, Mode14)
	before := orig.String()
	beforeEnds := orig.Ends

	c := orig.Clone()
	c.SetCell(Coord{0, 0}, Player1Mark)
	c.Ends[0][1] = End{At: Coord{0, 0}, Heading: North}

	if orig.String() != before || orig.Ends != beforeEnds {
		t.Fatalf("mutating the clone changed the original:\n%s", orig)
	}
	if got, _ := orig.CellAt(Coord{0, 0}); got != Empty {
		t.Fatalf("original cell (0,0)=%d want empty", got)
	}
}

func TestCloneInto_ReusesStorage(t *testing.T) {
	a, _ := NewBoard(8, Mode6)
	big, _ := NewBoard(10, Mode14)
	dst := big.Clone()
	storage := &dst.Cells[0]

	a.CloneInto(dst)
	if dst.Size != 8 || dst.Mode != Mode6 || len(dst.Cells) != 64 {
		t.Fatalf("dst size=%d mode=%v len=%d", dst.Size, dst.Mode, len(dst.Cells))
	}
	if &dst.Cells[0] != storage {
		t.Fatalf("expected cell storage to be reused")
	}
	if dst.String() != a.String() {
		t.Fatalf("copy differs:\n%s\nvs\n%s", dst, a)
	}
	dst.SetCell(Coord{0, 0}, Player0Mark)
	if !a.EmptyAt(Coord{0, 0}) {
		t.Fatalf("CloneInto aliased the source cells")
	}
}

func TestDirection_RotateAndReverse(t *testing.T) {
	cases := []struct {
		d      Direction
		offset int
		want   Direction
	}{
		{East, 0, East},
		{East, 2, South},
		{East, -2, North},
		{North, 3, SouthEast},
		{NorthEast, 1, East},
		{West, -3, SouthEast},
	}
	for _, tc := range cases {
		if got := tc.d.Rotate(tc.offset); got != tc.want {
			t.Errorf("%v.Rotate(%d)=%v want %v", tc.d, tc.offset, got, tc.want)
		}
	}
	for d := Direction(0); d < numDirections; d++ {
		v, r := d.Vector(), d.Reverse().Vector()
		if v.Row != -r.Row || v.Col != -r.Col {
			t.Errorf("%v reverse vector %v is not the negation of %v", d, r, v)
		}
	}
}

func TestModeOffsets(t *testing.T) {
	for _, tc := range []struct {
		m    Mode
		want int
	}{{Mode6, 3}, {Mode10, 5}, {Mode14, 7}} {
		offs := tc.m.Offsets()
		if len(offs) != tc.want {
			t.Errorf("mode %v offsets=%v want %d entries", tc.m, offs, tc.want)
		}
		for _, o := range offs {
			if o == 4 || o == -4 {
				t.Errorf("mode %v permits reversal", tc.m)
			}
		}
	}
}

func TestParseMode(t *testing.T) {
	for s, want := range map[string]Mode{"6": Mode6, "10": Mode10, "14": Mode14} {
		got, err := ParseMode(s)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q)=%v,%v want %v", s, got, err, want)
		}
		if got.String() != s {
			t.Errorf("Mode(%d).String()=%q want %q", got, got.String(), s)
		}
	}
	if _, err := ParseMode("8"); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("ParseMode(8) err=%v", err)
	}
}

func TestCellForPoint(t *testing.T) {
	cases := []struct {
		p    Point
		size int
		want Coord
	}{
		{Point{X: 0, Y: 0}, 30, Coord{0, 0}},
		{Point{X: 29, Y: 29}, 30, Coord{0, 0}},
		{Point{X: 30, Y: 95}, 30, Coord{3, 1}},
		{Point{X: 5, Y: 2}, 1, Coord{2, 5}},
		{Point{X: -1, Y: 10}, 30, Coord{0, -1}},
		{Point{X: 4, Y: 4}, 0, Coord{4, 4}},
	}
	for _, tc := range cases {
		if got := CellForPoint(tc.p, tc.size); got != tc.want {
			t.Errorf("CellForPoint(%v,%d)=%v want %v", tc.p, tc.size, got, tc.want)
		}
	}
}
