package gomoku

import (
	"encoding/json"
	"fmt"
	"sort"
)

const (
	Size      = 13
	Cells     = Size * Size
	WinLength = 5
)

// Mark is the content of one cell.
type Mark uint8

const (
	Empty Mark = iota
	MarkA
	MarkB
)

func (m Mark) String() string {
	switch m {
	case MarkA:
		return "X"
	case MarkB:
		return "O"
	default:
		return ""
	}
}

func parseMark(s string) (Mark, error) {
	switch s {
	case "X":
		return MarkA, nil
	case "O":
		return MarkB, nil
	default:
		return Empty, fmt.Errorf("unknown mark %q", s)
	}
}

// Board is stored row-major: index = row*Size + col.
type Board [Cells]Mark

// directions are {dRow, dCol}: horizontal, vertical, diagonal \, diagonal /.
var directions = [4][2]int{
	{0, 1},
	{1, 0},
	{1, 1},
	{1, -1},
}

func InBounds(idx int) bool { return idx >= 0 && idx < Cells }

func Index(row, col int) int { return row*Size + col }

func (b *Board) at(row, col int) Mark {
	if row < 0 || row >= Size || col < 0 || col >= Size {
		return Empty
	}
	return b[Index(row, col)]
}

// Full reports whether no empty cell remains.
func (b *Board) Full() bool {
	for _, m := range b {
		if m == Empty {
			return false
		}
	}
	return true
}

// Count returns the number of marked cells.
func (b *Board) Count() int {
	n := 0
	for _, m := range b {
		if m != Empty {
			n++
		}
	}
	return n
}

// WinningLine checks the four axes through idx for a run of WinLength cells
// holding the mark at idx. It scans at most WinLength-1 cells forward, then
// backward, keeps the first WinLength cells encountered and returns them in
// ascending index order. It returns nil when there is no such run.
func (b *Board) WinningLine(idx int) []int {
	if !InBounds(idx) {
		return nil
	}
	mark := b[idx]
	if mark == Empty {
		return nil
	}
	row, col := idx/Size, idx%Size
	for _, d := range directions {
		dr, dc := d[0], d[1]
		line := []int{idx}
		for i := 1; i < WinLength; i++ {
			r, c := row+dr*i, col+dc*i
			if b.at(r, c) != mark {
				break
			}
			line = append(line, Index(r, c))
		}
		for i := 1; i < WinLength; i++ {
			r, c := row-dr*i, col-dc*i
			if b.at(r, c) != mark {
				break
			}
			line = append(line, Index(r, c))
		}
		if len(line) >= WinLength {
			line = line[:WinLength]
			sort.Ints(line)
			return line
		}
	}
	return nil
}

// MarshalJSON encodes the board as a Cells-long array with null for empty cells.
func (b Board) MarshalJSON() ([]byte, error) {
	out := make([]*string, Cells)
	for i, m := range b {
		if m == Empty {
			continue
		}
		s := m.String()
		out[i] = &s
	}
	return json.Marshal(out)
}

func (b *Board) UnmarshalJSON(data []byte) error {
	var raw []*string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != Cells {
		return fmt.Errorf("board: expected %d cells, got %d", Cells, len(raw))
	}
	var next Board
	for i, v := range raw {
		if v == nil {
			continue
		}
		m, err := parseMark(*v)
		if err != nil {
			return fmt.Errorf("board cell %d: %w", i, err)
		}
		next[i] = m
	}
	*b = next
	return nil
}
