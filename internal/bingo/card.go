package bingo

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// Card is one player's NxN board. Marked state per row, column and diagonal
// is tracked with incremental counters so mark/unmark is O(1); the bingo flag
// is true iff some counter has reached the board edge length.
type Card struct {
	owner string
	size  int
	cells [][]Bing

	rowCounts []int
	colCounts []int
	diagA     int // top-left to bottom-right
	diagB     int // top-right to bottom-left

	// completeLines counts rows, columns and diagonals whose counter equals
	// the edge length, so the bingo flag updates in O(1) on both mark and
	// unmark.
	completeLines int

	cardID string
}

// NewCard builds a card from slots laid out row-major. The slot texts at
// build time determine the card's content ID. If useFreeSpace is set the
// center cell is replaced with the free slot and marked immediately.
func NewCard(owner string, size int, slots []Bing, useFreeSpace bool) (*Card, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid card size %d", size)
	}
	if len(slots) < size*size {
		return nil, fmt.Errorf("need %d slots for a %dx%d card, got %d", size*size, size, size, len(slots))
	}

	c := &Card{
		owner:     owner,
		size:      size,
		cells:     make([][]Bing, size),
		rowCounts: make([]int, size),
		colCounts: make([]int, size),
	}

	var id strings.Builder
	k := 0
	for i := 0; i < size; i++ {
		row := make([]Bing, size)
		for j := 0; j < size; j++ {
			b := slots[k]
			k++
			b.Marked = false
			b.X = i
			b.Y = j
			row[j] = b
			id.WriteString(b.Text)
		}
		c.cells[i] = row
	}

	sum := md5.Sum([]byte(id.String()))
	c.cardID = hex.EncodeToString(sum[:])

	if useFreeSpace {
		mid := size / 2
		free := FreeBing()
		free.X = mid
		free.Y = mid
		c.cells[mid][mid] = free
		c.Mark(FreeIndex)
	}

	return c, nil
}

// Mark marks the cell holding the given slot index. Returns true only when a
// cell transitioned from unmarked to marked.
func (c *Card) Mark(index int) bool {
	cell := c.cellByIndex(index)
	if cell == nil || cell.Marked {
		return false
	}

	cell.Marked = true
	c.bump(&c.rowCounts[cell.X], 1)
	c.bump(&c.colCounts[cell.Y], 1)
	if cell.X == cell.Y {
		c.bump(&c.diagA, 1)
	}
	if cell.X+cell.Y == c.size-1 {
		c.bump(&c.diagB, 1)
	}
	return true
}

// Unmark clears the cell holding the given slot index. Returns true only when
// a cell transitioned from marked to unmarked.
func (c *Card) Unmark(index int) bool {
	cell := c.cellByIndex(index)
	if cell == nil || !cell.Marked {
		return false
	}

	cell.Marked = false
	c.bump(&c.rowCounts[cell.X], -1)
	c.bump(&c.colCounts[cell.Y], -1)
	if cell.X == cell.Y {
		c.bump(&c.diagA, -1)
	}
	if cell.X+cell.Y == c.size-1 {
		c.bump(&c.diagB, -1)
	}
	return true
}

// HasBingo reports whether any row, column or diagonal is fully marked.
func (c *Card) HasBingo() bool {
	return c.completeLines > 0
}

// Owner returns the card owner's display name.
func (c *Card) Owner() string {
	return c.owner
}

// ID returns the content hash computed at generation time.
func (c *Card) ID() string {
	return c.cardID
}

// Size returns the board edge length.
func (c *Card) Size() int {
	return c.size
}

// NumMarked counts the marked cells.
func (c *Card) NumMarked() int {
	n := 0
	for _, row := range c.cells {
		for _, cell := range row {
			if cell.Marked {
				n++
			}
		}
	}
	return n
}

// Cells returns the board grid. Callers must treat it as read-only.
func (c *Card) Cells() [][]Bing {
	return c.cells
}

// CellStrings returns the display form of every cell, row-major.
func (c *Card) CellStrings() [][]string {
	out := make([][]string, c.size)
	for i, row := range c.cells {
		strs := make([]string, c.size)
		for j, cell := range row {
			strs[j] = cell.String()
		}
		out[i] = strs
	}
	return out
}

// BingByIndex looks up the cell holding a slot index.
func (c *Card) BingByIndex(index int) (Bing, bool) {
	if cell := c.cellByIndex(index); cell != nil {
		return *cell, true
	}
	return Bing{}, false
}

// CellMarked reports the marked state at board coordinates.
func (c *Card) CellMarked(i, j int) bool {
	if i < 0 || i >= c.size || j < 0 || j >= c.size {
		return false
	}
	return c.cells[i][j].Marked
}

func (c *Card) cellByIndex(index int) *Bing {
	for i := range c.cells {
		for j := range c.cells[i] {
			if c.cells[i][j].Index == index {
				return &c.cells[i][j]
			}
		}
	}
	return nil
}

// bump adjusts a single line counter and keeps the complete-line tally in
// step with it.
func (c *Card) bump(counter *int, delta int) {
	was := *counter == c.size
	*counter += delta
	now := *counter == c.size
	switch {
	case now && !was:
		c.completeLines++
	case was && !now:
		c.completeLines--
	}
}
