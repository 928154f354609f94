package session

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Summary holds lightweight session metadata for clients.
type Summary struct {
	ID       string `json:"id"`
	State    string `json:"state"`
	Players  int    `json:"players"`
	Requests int    `json:"requests"`
}

// Store tracks live sessions by ID. The first registered session becomes
// the default, so single-game deployments never have to name one.
type Store struct {
	logger    *log.Logger
	mu        sync.RWMutex
	sessions  map[string]*Session
	defaultID string
}

// NewStore constructs an empty session store.
func NewStore(logger *log.Logger) *Store {
	return &Store{
		logger:   logger.WithPrefix("sessions"),
		sessions: make(map[string]*Session),
	}
}

// Register adds a session under its ID. Registering an ID twice returns
// the existing session unchanged.
func (st *Store) Register(s *Session) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if existing, ok := st.sessions[s.ID()]; ok {
		return existing
	}
	st.sessions[s.ID()] = s
	if st.defaultID == "" {
		st.defaultID = s.ID()
	}
	st.logger.Info("Session registered", "game", s.ID())
	return s
}

// Get retrieves a session by ID.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

// Default returns the default session, if any.
func (st *Store) Default() (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[st.defaultID]
	return s, ok
}

// Delete removes a session by ID and returns it. The caller is responsible
// for closing it.
func (st *Store) Delete(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, false
	}
	delete(st.sessions, id)
	if st.defaultID == id {
		st.defaultID = ""
		for newID := range st.sessions {
			st.defaultID = newID
			break
		}
	}
	st.logger.Info("Session removed", "game", id)
	return s, true
}

// List returns a snapshot of registered sessions.
func (st *Store) List() []Summary {
	st.mu.RLock()
	sessions := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		sessions = append(sessions, s)
	}
	st.mu.RUnlock()

	summaries := make([]Summary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, Summary{
			ID:       s.ID(),
			State:    s.State().String(),
			Players:  s.NumPlayers(),
			Requests: len(s.Requests()),
		})
	}
	return summaries
}

// CloseAll closes every session and empties the store.
func (st *Store) CloseAll() {
	st.mu.Lock()
	sessions := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		sessions = append(sessions, s)
	}
	st.sessions = make(map[string]*Session)
	st.defaultID = ""
	st.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
