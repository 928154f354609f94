package bingo

import "fmt"

// FreeIndex is the slot index reserved for the free space. Every other slot
// in a catalog is assigned an index starting at 1.
const FreeIndex = 0

// Bing is a single callable bingo slot. Identity is the index alone; the
// text, marked flag and board coordinates are per-copy state.
type Bing struct {
	Index  int
	Text   string
	Marked bool
	X      int
	Y      int
}

// FreeBing returns the free-space slot.
func FreeBing() Bing {
	return Bing{Index: FreeIndex, Text: "FREE SPACE"}
}

// Equal reports whether two slots refer to the same catalog entry.
func (b Bing) Equal(other Bing) bool {
	return b.Index == other.Index
}

// String returns the display form used in cell listings and notices.
func (b Bing) String() string {
	return fmt.Sprintf("%s (%d)", b.Text, b.Index)
}
