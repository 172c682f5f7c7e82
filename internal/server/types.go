// Package server defines the wire lines, error values and small helpers that
// are shared by the hub, sessions and transports.
package server

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultRoom is the room every session joins after the handshake.
const DefaultRoom = "General"

// Fixed server-to-client lines.
const (
	WarningLine   = "[WARNING] Your message contained inappropriate words and was modified."
	RateLimitLine = "[WARNING] You are sending messages too quickly; message dropped."
	UsageLine     = "Unknown command. Use /who /join <room> /history <n>"
)

var (
	// ErrNotJoined is returned for room lookups on a session that has not
	// completed the join handshake.
	ErrNotJoined = errors.New("session has not joined a room")
	// ErrEmptyUsername rejects a handshake whose first line is blank.
	ErrEmptyUsername = errors.New("username cannot be empty")
	// ErrInvalidUsername rejects a handshake that is not valid UTF-8.
	ErrInvalidUsername = errors.New("username contains invalid characters")
	// ErrEmptyRoomName rejects a join without a room name.
	ErrEmptyRoomName = errors.New("room name cannot be empty")
	// ErrHubClosed is returned once the hub has started shutting down.
	ErrHubClosed = errors.New("hub is shut down")

	errSessionRemoved = errors.New("session already removed")
)

// TransportError wraps a read or write failure on a session's connection.
// Any TransportError ends the session.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is, or wraps, a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ValidateUsername checks a trimmed handshake line.
func ValidateUsername(name string) error {
	if name == "" {
		return ErrEmptyUsername
	}
	if !utf8.ValidString(name) {
		return ErrInvalidUsername
	}
	return nil
}

func joinedLine(user, room string) string {
	return fmt.Sprintf("*** %s joined %s ***", user, room)
}

func leftLine(user string) string {
	return fmt.Sprintf("*** %s has left the chat ***", user)
}

func ackLine(room string) string {
	return fmt.Sprintf("[Joined room: %s]", room)
}

func switchedLine(room string) string {
	return fmt.Sprintf("[Switched to room: %s]", room)
}

func whoLine(room string, users []string) string {
	return fmt.Sprintf("Users in %s: %s", room, strings.Join(users, ", "))
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer")
}
