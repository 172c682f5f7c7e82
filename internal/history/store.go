// Package history keeps the per-room record of delivered chat messages and
// the global append-only chat log.
package history

import (
	"fmt"
	"sync"
	"time"
)

// TimeLayout is the clock format used for history, relay and log lines.
const TimeLayout = "[15:04]"

// Entry is one delivered chat message. Entries are never modified after
// they are appended.
type Entry struct {
	Time   time.Time
	Author string
	Text   string
}

// String renders the entry as "[HH:MM] author: text".
func (e Entry) String() string {
	return fmt.Sprintf("%s %s: %s", e.Time.Format(TimeLayout), e.Author, e.Text)
}

// Store holds an ordered history per room. The zero value is not usable;
// call NewStore.
type Store struct {
	mu    sync.RWMutex
	rooms map[string][]Entry
	limit int
}

// NewStore creates a Store. A positive limit caps the entries retained per
// room, dropping the oldest first; zero keeps everything.
func NewStore(limit int) *Store {
	if limit < 0 {
		limit = 0
	}
	return &Store{rooms: make(map[string][]Entry), limit: limit}
}

// Ensure creates an empty history for room if none exists.
func (s *Store) Ensure(room string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room]; !ok {
		s.rooms[room] = nil
	}
}

// Append records e for room and returns the entry as stored. The stored
// time never precedes the previous entry of the same room.
func (s *Store) Append(room string, e Entry) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.rooms[room]
	if n := len(entries); n > 0 && e.Time.Before(entries[n-1].Time) {
		e.Time = entries[n-1].Time
	}
	entries = append(entries, e)
	if s.limit > 0 && len(entries) > s.limit {
		entries = append([]Entry(nil), entries[len(entries)-s.limit:]...)
	}
	s.rooms[room] = entries
	return e
}

// Last returns up to n of the most recent entries for room in
// chronological order.
func (s *Store) Last(room string, n int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.rooms[room]
	if n <= 0 {
		return nil
	}
	if n > len(entries) {
		n = len(entries)
	}
	out := make([]Entry, n)
	copy(out, entries[len(entries)-n:])
	return out
}

// Len reports how many entries room currently holds.
func (s *Store) Len(room string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms[room])
}
