package game

import "strings"

// BanStore is the permanent ban list collaborator. Bans survive game
// teardown and apply across sessions; the game only consults and appends.
type BanStore interface {
	IsBanned(id int64) bool
	AddBanned(id int64, name string) error
	RemoveBanned(id int64) error
}

// StatsSink receives per-player session statistics. UpdateFromPlayers is
// called with the full roster when a game stops; RemovePlayer scrubs a
// banned user.
type StatsSink interface {
	UpdateFromPlayers(players []*Player) error
	RemovePlayer(id int64) error
}

// ContentFilter vets player display names before they join.
type ContentFilter interface {
	Allow(name string) bool
}

// AllowAllNames is the pass-through content filter.
type AllowAllNames struct{}

// Allow implements ContentFilter.
func (AllowAllNames) Allow(string) bool { return true }

// BlocklistFilter rejects display names containing any configured word,
// case-insensitively.
type BlocklistFilter struct {
	words []string
}

// NewBlocklistFilter builds a filter from a word list.
func NewBlocklistFilter(words []string) *BlocklistFilter {
	lowered := make([]string, len(words))
	for i, w := range words {
		lowered[i] = strings.ToLower(w)
	}
	return &BlocklistFilter{words: lowered}
}

// Allow implements ContentFilter.
func (f *BlocklistFilter) Allow(name string) bool {
	lowered := strings.ToLower(name)
	for _, w := range f.words {
		if w != "" && strings.Contains(lowered, w) {
			return false
		}
	}
	return true
}
