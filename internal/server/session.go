// Package server manages individual chat sessions: the join handshake, the
// receive loop, rate limiting, and serialized writes to the transport.
package server

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Session represents one connected client for the lifetime of its
// connection. The username is fixed by the handshake; the current room is
// owned by the Hub and guarded by its lock.
type Session struct {
	id           string
	conn         Conn
	hub          *Hub
	addr         string
	username     string
	writeTimeout time.Duration
	rateLimiter  *rateLimiter
	logger       zerolog.Logger

	// guarded by hub.mu
	room   string
	joined bool

	removed atomic.Bool
	writeMu sync.Mutex
}

// NewSession creates a Session for conn. It does not start serving; pass it
// to Hub.Attach for that.
func NewSession(conn Conn, hub *Hub, cfg Config) *Session {
	cfg = sanitizeConfig(cfg)
	id := uuid.NewString()
	addr := conn.RemoteAddr()
	return &Session{
		id:           id,
		conn:         conn,
		hub:          hub,
		addr:         addr,
		writeTimeout: cfg.WriteTimeout,
		rateLimiter:  newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		logger:       log.With().Str("session", id).Str("addr", addr).Logger(),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Username returns the name given during the handshake, or "" before it.
func (s *Session) Username() string {
	return s.username
}

// Addr returns the remote address of the connection.
func (s *Session) Addr() string {
	return s.addr
}

// Send writes one line to the client, bounded by the write timeout.
func (s *Session) Send(line string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.WriteLine(line, time.Now().Add(s.writeTimeout)); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

func (s *Session) readLine() (string, error) {
	line, err := s.conn.ReadLine()
	if err != nil {
		return "", &TransportError{Op: "read", Err: err}
	}
	return line, nil
}

// Serve runs the handshake and the receive loop until the connection fails,
// then removes the session from the hub.
func (s *Session) Serve() {
	defer s.hub.RemoveSession(s)

	if err := s.handshake(); err != nil {
		if IsTransportError(err) {
			s.logReadError(err)
		} else {
			s.logger.Info().Err(err).Msg("Rejected handshake")
		}
		return
	}

	for {
		line, err := s.readLine()
		if err != nil {
			s.logReadError(err)
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if !s.checkRateLimit() {
			if err := s.Send(RateLimitLine); err != nil {
				return
			}
			continue
		}

		if err := s.processLine(line); err != nil {
			if IsTransportError(err) {
				s.logger.Debug().Err(err).Msg("Session write failed")
				return
			}
			s.logger.Warn().Err(err).Msg("Error processing line")
		}
	}
}

// handshake reads the username, registers the session in the default room,
// announces it to the room and acknowledges the join.
func (s *Session) handshake() error {
	line, err := s.readLine()
	if err != nil {
		return err
	}

	name := strings.TrimSpace(line)
	if err := ValidateUsername(name); err != nil {
		return err
	}

	if err := s.hub.Register(s, name); err != nil {
		return err
	}

	s.hub.Broadcast(DefaultRoom, joinedLine(name, DefaultRoom), s)
	return s.Send(ackLine(DefaultRoom))
}

func (s *Session) processLine(line string) error {
	if strings.HasPrefix(line, "/") {
		return s.hub.Execute(s, ParseCommand(line))
	}
	return s.hub.Publish(s, line)
}

// checkRateLimit returns true if the line should be processed.
func (s *Session) checkRateLimit() bool {
	if s.rateLimiter != nil && !s.rateLimiter.allow() {
		s.logger.Warn().Msg("Rate limit exceeded; discarding message")
		return false
	}
	return true
}

// logReadError logs why the receive loop ended.
func (s *Session) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit), errors.Is(err, bufio.ErrTooLong):
		s.logger.Info().Msg("Message exceeded maximum size")
	case websocket.IsCloseError(errors.Unwrap(err),
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		s.logger.Info().Err(err).Msg("Client disconnected")
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		s.logger.Info().Msg("Client connection closed")
	default:
		s.logger.Warn().Err(err).Msg("Read error")
	}
}
