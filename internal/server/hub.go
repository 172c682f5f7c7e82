// Package server coordinates room membership, message delivery and session
// cleanup through the Hub type.
package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Tyrowin/linechat/internal/filter"
	"github.com/Tyrowin/linechat/internal/history"
	"github.com/Tyrowin/linechat/internal/metrics"
)

// room holds one broadcast domain. Members are kept in join order and are
// guarded by Hub.mu; deliver serializes history, log and fan-out for the
// room and is always taken before Hub.mu, never while holding it.
type room struct {
	name    string
	members []*Session
	deliver sync.Mutex
}

func (r *room) add(s *Session) {
	for _, m := range r.members {
		if m == s {
			return
		}
	}
	r.members = append(r.members, s)
}

func (r *room) remove(s *Session) bool {
	for i, m := range r.members {
		if m == s {
			r.members = append(r.members[:i:i], r.members[i+1:]...)
			return true
		}
	}
	return false
}

// Hub owns the room registry and the identity mapping, and delivers
// messages to room members. Rooms are created on first use and never
// removed.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*room
	names map[*Session]string
	conns map[*Session]struct{}

	filter  *filter.Filter
	history *history.Store
	sink    *history.Log
	now     func() time.Time

	wg     sync.WaitGroup
	closed bool
}

// NewHub creates a Hub with the default room already present. A nil filter
// or store gets a default one; a nil sink disables the chat log.
func NewHub(f *filter.Filter, store *history.Store, sink *history.Log) *Hub {
	if f == nil {
		f = filter.New()
	}
	if store == nil {
		store = history.NewStore(0)
	}
	h := &Hub{
		rooms:   make(map[string]*room),
		names:   make(map[*Session]string),
		conns:   make(map[*Session]struct{}),
		filter:  f,
		history: store,
		sink:    sink,
		now:     time.Now,
	}
	h.EnsureRoom(DefaultRoom)
	return h
}

// Attach starts serving s on its own goroutine. After Shutdown the
// connection is closed immediately instead.
func (h *Hub) Attach(s *Session) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = s.conn.Close()
		return
	}
	h.conns[s] = struct{}{}
	h.wg.Add(1)
	h.mu.Unlock()

	log.Debug().Str("addr", s.addr).Msg("Session attached")
	go func() {
		defer h.wg.Done()
		s.Serve()
	}()
}

// EnsureRoom creates an empty room if name is unknown.
func (h *Hub) EnsureRoom(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ensureRoomLocked(name)
}

func (h *Hub) ensureRoomLocked(name string) *room {
	r, ok := h.rooms[name]
	if !ok {
		r = &room{name: name}
		h.rooms[name] = r
		h.history.Ensure(name)
	}
	return r
}

// Register completes the handshake for s: it records the username and
// places s in the default room in one step.
func (h *Hub) Register(s *Session, username string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	if s.removed.Load() {
		h.mu.Unlock()
		return &TransportError{Op: "register", Err: errSessionRemoved}
	}
	s.username = username
	h.names[s] = username
	h.conns[s] = struct{}{}
	h.ensureRoomLocked(DefaultRoom).add(s)
	s.room = DefaultRoom
	s.joined = true
	count := len(h.names)
	h.mu.Unlock()

	metrics.SessionsActive.Inc()
	s.logger.Info().Str("username", username).Int("sessions", count).Msg("Session registered")
	return nil
}

// Join moves s into roomName, creating it if needed. The session leaves its
// previous room in the same critical section, so no observer sees it in two
// rooms or in none. A removed session cannot rejoin.
func (h *Hub) Join(s *Session, roomName string) error {
	if roomName == "" {
		return ErrEmptyRoomName
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if s.removed.Load() {
		return &TransportError{Op: "join", Err: errSessionRemoved}
	}
	if !s.joined {
		return ErrNotJoined
	}
	target := h.ensureRoomLocked(roomName)
	if s.room == roomName {
		return nil
	}
	if current, ok := h.rooms[s.room]; ok {
		current.remove(s)
	}
	target.add(s)
	s.room = roomName
	return nil
}

// Leave removes s from whichever room holds it. It is a no-op if s is in
// no room.
func (h *Hub) Leave(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s.removed.Load() {
		return
	}
	if r, ok := h.rooms[s.room]; ok {
		r.remove(s)
	}
	s.room = ""
}

// MembersOf returns a snapshot of the members of roomName in join order.
func (h *Hub) MembersOf(roomName string) []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.rooms[roomName]
	if !ok {
		return nil
	}
	members := make([]*Session, len(r.members))
	copy(members, r.members)
	return members
}

// RoomOf returns the current room of s.
func (h *Hub) RoomOf(s *Session) (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !s.joined || s.room == "" {
		return "", ErrNotJoined
	}
	return s.room, nil
}

// Rooms returns every known room name, sorted.
func (h *Hub) Rooms() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.roomNamesLocked()
}

func (h *Hub) roomNamesLocked() []string {
	names := make([]string, 0, len(h.rooms))
	for name := range h.rooms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SessionCount returns the number of sessions that completed the handshake.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.names)
}

func (h *Hub) lookup(roomName string) *room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[roomName]
}

func (h *Hub) usernames(roomName string) []string {
	members := h.MembersOf(roomName)
	users := make([]string, 0, len(members))
	for _, m := range members {
		users = append(users, m.username)
	}
	return users
}

// Broadcast delivers line to every member of roomName except exclude.
// Members whose send fails are removed before Broadcast returns; delivery
// to the others continues regardless.
func (h *Hub) Broadcast(roomName, line string, exclude *Session) {
	r := h.lookup(roomName)
	if r == nil {
		return
	}

	r.deliver.Lock()
	failed := h.fanOut(r, line, exclude)
	r.deliver.Unlock()

	h.removeFailedSessions(failed)
}

// fanOut must be called with r.deliver held.
func (h *Hub) fanOut(r *room, line string, exclude *Session) []*Session {
	var failed []*Session
	for _, member := range h.MembersOf(r.name) {
		if member == exclude {
			continue
		}
		if err := member.Send(line); err != nil {
			failed = append(failed, member)
		}
	}
	return failed
}

// removeFailedSessions drops members that could not be written to. Callers
// must not hold any room's deliver lock.
func (h *Hub) removeFailedSessions(failed []*Session) {
	for _, s := range failed {
		if s.removed.Load() {
			continue
		}
		metrics.SessionsDropped.Inc()
		s.logger.Info().Msg("Session removed after failed send")
		h.RemoveSession(s)
	}
}

// Publish runs one chat line from s through the filter, records it in the
// room history and chat log, and relays it to the rest of the room. The
// record and the relay happen under the room's deliver lock, so history
// order matches delivery order. The returned error only reports a failure
// to write the filter warning back to s.
func (h *Hub) Publish(s *Session, text string) error {
	filtered, modified := h.filter.Apply(text)

	var warnErr error
	if modified {
		metrics.MessagesFiltered.Inc()
		warnErr = s.Send(WarningLine)
	}

	roomName, err := h.RoomOf(s)
	if err != nil {
		return err
	}
	r := h.lookup(roomName)

	r.deliver.Lock()
	entry := h.history.Append(roomName, history.Entry{Time: h.now(), Author: s.username, Text: filtered})
	if h.sink != nil {
		if err := h.sink.Append(history.Record{Entry: entry, Room: roomName}); err != nil {
			log.Warn().Err(err).Str("room", roomName).Msg("Chat log write failed; message not persisted")
		}
	}
	failed := h.fanOut(r, entry.String(), s)
	r.deliver.Unlock()

	metrics.MessagesTotal.Inc()
	h.removeFailedSessions(failed)
	return warnErr
}

// RemoveSession purges s from every room and the identity mapping, closes
// its transport and, if it had joined, tells every room it left. Only the
// first call has any effect.
func (h *Hub) RemoveSession(s *Session) {
	if !s.removed.CompareAndSwap(false, true) {
		return
	}

	h.mu.Lock()
	for _, r := range h.rooms {
		r.remove(s)
	}
	username, joined := h.names[s]
	delete(h.names, s)
	delete(h.conns, s)
	s.room = ""
	count := len(h.names)
	closing := h.closed
	rooms := h.roomNamesLocked()
	h.mu.Unlock()

	if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
		s.logger.Warn().Err(err).Msg("Error closing connection")
	}

	if !joined {
		return
	}
	metrics.SessionsActive.Dec()
	s.logger.Info().Str("username", username).Int("sessions", count).Msg("Session unregistered")

	if closing {
		return
	}
	notice := leftLine(username)
	for _, name := range rooms {
		h.Broadcast(name, notice, nil)
	}
}

// Shutdown closes every connection and waits for the session goroutines to
// finish or for ctx to expire.
func (h *Hub) Shutdown(ctx context.Context) error {
	log.Info().Msg("Initiating hub shutdown...")

	h.mu.Lock()
	h.closed = true
	sessions := make([]*Session, 0, len(h.conns))
	for s := range h.conns {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
			s.logger.Warn().Err(err).Msg("Error closing connection during shutdown")
		}
	}
	log.Info().Int("sessions", len(sessions)).Msg("Closed client connections")

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("Hub shutdown completed successfully")
		return nil
	case <-ctx.Done():
		log.Warn().Msg("Hub shutdown timeout reached, some sessions may still be running")
		return ctx.Err()
	}
}
