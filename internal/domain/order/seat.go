package order

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Every showing has the same 8x8 grid: rows A..H, columns 1..8.
const (
	FirstRow = 'A'
	LastRow  = 'H'
	FirstCol = 1
	LastCol  = 8
)

var seatLabelPattern = regexp.MustCompile(`^([A-H])-(\d{1,2})$`)

type Seat struct {
	Row byte
	Col int
}

func NewSeat(row string, col int) (Seat, error) {
	if len(row) != 1 {
		return Seat{}, InvalidSeat(fmt.Sprintf("row %q", row))
	}
	s := Seat{Row: row[0], Col: col}
	if !s.Valid() {
		return Seat{}, InvalidSeat(fmt.Sprintf("%s-%d out of range", row, col))
	}
	return s, nil
}

// ParseSeat accepts the "A-1" label format.
func ParseSeat(label string) (Seat, error) {
	m := seatLabelPattern.FindStringSubmatch(strings.TrimSpace(label))
	if m == nil {
		return Seat{}, InvalidSeat(fmt.Sprintf("malformed label %q", label))
	}
	col, err := strconv.Atoi(m[2])
	if err != nil {
		return Seat{}, InvalidSeat(fmt.Sprintf("malformed label %q", label))
	}
	return NewSeat(m[1], col)
}

func (s Seat) Valid() bool {
	return s.Row >= FirstRow && s.Row <= LastRow && s.Col >= FirstCol && s.Col <= LastCol
}

func (s Seat) RowLabel() string {
	return string(s.Row)
}

func (s Seat) String() string {
	return fmt.Sprintf("%c-%d", s.Row, s.Col)
}

// Less is the global row-major claim order.
func (s Seat) Less(o Seat) bool {
	if s.Row != o.Row {
		return s.Row < o.Row
	}
	return s.Col < o.Col
}

// NormalizeSeats validates every coordinate, collapses duplicates and returns the
// seats in row-major order.
func NormalizeSeats(seats []Seat) ([]Seat, error) {
	seen := make(map[Seat]struct{}, len(seats))
	out := make([]Seat, 0, len(seats))
	for _, s := range seats {
		if !s.Valid() {
			return nil, InvalidSeat(fmt.Sprintf("%c-%d out of range", s.Row, s.Col))
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}
