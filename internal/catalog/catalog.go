// Package catalog holds the slot vocabulary games draw cards from. A catalog
// has one or more variants (game types); each variant groups its slots into
// categories that may cap how many of their slots appear on a single card.
package catalog

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/schwolf/livebingo/internal/bingo"
)

// DefaultVariant is the variant used when a game does not name one.
const DefaultVariant = "classic"

// Category is a named group of slots with an optional per-card draw limit.
// A Limit of 0 means unlimited.
type Category struct {
	Name  string
	Limit int
	Slots []string
}

type variant struct {
	name  string
	slots []bingo.Bing   // all slots, indices assigned at build time
	cats  map[int]string // slot index -> category name
	caps  map[string]int // category name -> per-card limit (absent = unlimited)
}

// Catalog is an immutable, dependency-injected slot vocabulary. Indices are
// assigned per variant starting at 1; 0 stays reserved for the free space.
type Catalog struct {
	variants map[string]*variant
}

// New builds a catalog from per-variant category listings.
func New(variants map[string][]Category) (*Catalog, error) {
	if len(variants) == 0 {
		return nil, fmt.Errorf("catalog has no variants")
	}

	c := &Catalog{variants: make(map[string]*variant, len(variants))}
	for name, cats := range variants {
		v := &variant{
			name: name,
			cats: make(map[int]string),
			caps: make(map[string]int),
		}
		index := bingo.FreeIndex + 1
		for _, cat := range cats {
			if cat.Limit > 0 {
				v.caps[cat.Name] = cat.Limit
			}
			for _, text := range cat.Slots {
				v.slots = append(v.slots, bingo.Bing{Index: index, Text: text})
				v.cats[index] = cat.Name
				index++
			}
		}
		if len(v.slots) == 0 {
			return nil, fmt.Errorf("variant %q has no slots", name)
		}
		c.variants[name] = v
	}
	return c, nil
}

// Variants lists the configured variant names, sorted.
func (c *Catalog) Variants() []string {
	names := make([]string, 0, len(c.variants))
	for name := range c.variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasVariant reports whether the variant exists.
func (c *Catalog) HasVariant(name string) bool {
	_, ok := c.variants[name]
	return ok
}

// NumSlots returns the slot count of a variant, zero if unknown.
func (c *Catalog) NumSlots(variantName string) int {
	v, ok := c.variants[variantName]
	if !ok {
		return 0
	}
	return len(v.slots)
}

// BingByIndex resolves a slot index within a variant.
func (c *Catalog) BingByIndex(variantName string, index int) (bingo.Bing, bool) {
	if index == bingo.FreeIndex {
		return bingo.FreeBing(), true
	}
	v, ok := c.variants[variantName]
	if !ok {
		return bingo.Bing{}, false
	}
	for _, b := range v.slots {
		if b.Index == index {
			return b, true
		}
	}
	return bingo.Bing{}, false
}

// FindBySubstring returns the variant's slots whose text contains the given
// substring, case-insensitively.
func (c *Catalog) FindBySubstring(variantName, substr string) []bingo.Bing {
	v, ok := c.variants[variantName]
	if !ok {
		return nil
	}
	needle := strings.ToLower(substr)
	var matches []bingo.Bing
	for _, b := range v.slots {
		if strings.Contains(strings.ToLower(b.Text), needle) {
			matches = append(matches, b)
		}
	}
	return matches
}

// Slots returns a copy of all slots in a variant.
func (c *Catalog) Slots(variantName string) []bingo.Bing {
	v, ok := c.variants[variantName]
	if !ok {
		return nil
	}
	out := make([]bingo.Bing, len(v.slots))
	copy(out, v.slots)
	return out
}

// Deal draws count distinct slots from a variant honoring per-category
// limits. Slots drawn past a category's cap are discarded and redrawn.
func (c *Catalog) Deal(variantName string, count int, rng *rand.Rand) ([]bingo.Bing, error) {
	v, ok := c.variants[variantName]
	if !ok {
		return nil, fmt.Errorf("unknown catalog variant %q", variantName)
	}

	pool := make([]bingo.Bing, len(v.slots))
	copy(pool, v.slots)
	remaining := make(map[string]int, len(v.caps))
	for cat, limit := range v.caps {
		remaining[cat] = limit
	}

	out := make([]bingo.Bing, 0, count)
	for len(out) < count && len(pool) > 0 {
		i := rng.Intn(len(pool))
		b := pool[i]
		pool[i] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]

		cat := v.cats[b.Index]
		if left, capped := remaining[cat]; capped {
			if left == 0 {
				continue
			}
			remaining[cat] = left - 1
		}
		out = append(out, b)
	}

	if len(out) < count {
		return nil, fmt.Errorf("variant %q cannot fill %d cells under its category limits", variantName, count)
	}
	return out, nil
}
