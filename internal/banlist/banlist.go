// Package banlist persists the set of banned users. Bans outlive games and
// server restarts, so they live in their own file rather than in any game's
// session state.
package banlist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// Entry is one ban record.
type Entry struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	BannedAt time.Time `json:"banned_at"`
}

// Store is a JSON-file backed ban list. An empty path keeps the list in
// memory only, which is what tests and the simulator use.
type Store struct {
	logger *log.Logger
	clock  quartz.Clock
	path   string

	mu   sync.Mutex
	byID map[int64]Entry
}

// Open loads the ban list at path. A missing file starts an empty list; a
// present but unreadable one is an error, silently dropping bans is worse
// than refusing to start.
func Open(logger *log.Logger, clock quartz.Clock, path string) (*Store, error) {
	if clock == nil {
		clock = quartz.NewReal()
	}
	st := &Store{
		logger: logger.WithPrefix("banlist"),
		clock:  clock,
		path:   path,
		byID:   make(map[int64]Entry),
	}
	if path == "" {
		return st, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		st.logger.Info("No ban list on disk, starting empty", "path", path)
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ban list: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse ban list %s: %w", path, err)
	}
	for _, e := range entries {
		st.byID[e.ID] = e
	}
	st.logger.Info("Ban list loaded", "path", path, "entries", len(entries))
	return st, nil
}

// IsBanned reports whether the user is on the list.
func (st *Store) IsBanned(id int64) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.byID[id]
	return ok
}

// AddBanned records a ban and persists the list. Re-banning refreshes the
// stored name and timestamp.
func (st *Store) AddBanned(id int64, name string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.byID[id] = Entry{ID: id, Name: name, BannedAt: st.clock.Now()}
	if err := st.save(); err != nil {
		delete(st.byID, id)
		return err
	}
	st.logger.Info("User banned", "user", name, "id", id)
	return nil
}

// RemoveBanned lifts a ban and persists the list. Unknown IDs are a no-op.
func (st *Store) RemoveBanned(id int64) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	old, ok := st.byID[id]
	if !ok {
		return nil
	}
	delete(st.byID, id)
	if err := st.save(); err != nil {
		st.byID[id] = old
		return err
	}
	st.logger.Info("Ban lifted", "user", old.Name, "id", id)
	return nil
}

// Entries returns the ban records sorted by user ID.
func (st *Store) Entries() []Entry {
	st.mu.Lock()
	defer st.mu.Unlock()

	out := make([]Entry, 0, len(st.byID))
	for _, e := range st.byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// save writes the list to disk. Caller holds st.mu.
func (st *Store) save() error {
	if st.path == "" {
		return nil
	}

	entries := make([]Entry, 0, len(st.byID))
	for _, e := range st.byID {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ban list: %w", err)
	}
	if err := writeFileAtomic(st.path, data, 0o644); err != nil {
		return fmt.Errorf("write ban list: %w", err)
	}
	return nil
}

// writeFileAtomic writes via a temp file in the same directory followed by
// a rename, so a crashed write never leaves a truncated ban list behind.
func writeFileAtomic(filename string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(filename)
	tmp, err := os.CreateTemp(dir, filepath.Base(filename)+".tmp.*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	tmp = nil

	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, filename)
}
