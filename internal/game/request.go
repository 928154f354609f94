package game

import "github.com/schwolf/livebingo/internal/bingo"

// CallRequest is a pending ask from one or more players to call a specific
// slot. Requesters form a set: merging never duplicates a player, so the
// consumer never needs to distinguish a new request from an extra requester.
type CallRequest struct {
	bing       bingo.Bing
	requesters []*Player
}

// NewCallRequest builds a request for one slot on behalf of one player.
func NewCallRequest(p *Player, b bingo.Bing) *CallRequest {
	return &CallRequest{bing: b, requesters: []*Player{p}}
}

// Bing returns the requested slot.
func (r *CallRequest) Bing() bingo.Bing {
	return r.bing
}

// Matches reports whether both requests reference the same slot index.
func (r *CallRequest) Matches(other *CallRequest) bool {
	return other != nil && r.bing.Index == other.bing.Index
}

// Merge unions the other request's requesters into this one. Merging a
// non-matching request is a contract violation by the caller and does
// nothing. Merging twice yields the same requester set as merging once.
func (r *CallRequest) Merge(other *CallRequest) {
	if !r.Matches(other) {
		return
	}
	for _, p := range other.requesters {
		if !r.HasRequester(p.ID()) {
			r.requesters = append(r.requesters, p)
		}
	}
}

// HasRequester reports whether a user is already attached to the request.
func (r *CallRequest) HasRequester(id int64) bool {
	for _, p := range r.requesters {
		if p.ID() == id {
			return true
		}
	}
	return false
}

// RemoveRequester detaches a user, typically after a kick.
func (r *CallRequest) RemoveRequester(id int64) {
	for i, p := range r.requesters {
		if p.ID() == id {
			r.requesters = append(r.requesters[:i], r.requesters[i+1:]...)
			return
		}
	}
}

// Requesters returns the attached players in insertion order.
func (r *CallRequest) Requesters() []*Player {
	out := make([]*Player, len(r.requesters))
	copy(out, r.requesters)
	return out
}

// NumRequesters returns the requester count.
func (r *CallRequest) NumRequesters() int {
	return len(r.requesters)
}

// Primary returns the first requester, nil if all have been removed.
func (r *CallRequest) Primary() *Player {
	if len(r.requesters) == 0 {
		return nil
	}
	return r.requesters[0]
}
