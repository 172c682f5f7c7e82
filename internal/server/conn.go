// Package server adapts stream transports (raw TCP lines and WebSocket text
// frames) to the line-oriented Conn used by sessions.
package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is a line-oriented, bidirectional client transport. ReadLine is only
// called from the owning session goroutine; WriteLine calls are serialized
// by the session.
type Conn interface {
	ReadLine() (string, error)
	WriteLine(line string, deadline time.Time) error
	Close() error
	RemoteAddr() string
}

type tcpConn struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

// NewTCPConn wraps a stream socket. Lines longer than maxLineSize bytes fail
// with bufio.ErrTooLong.
func NewTCPConn(conn net.Conn, maxLineSize int) Conn {
	scanner := bufio.NewScanner(conn)
	initial := 4096
	if maxLineSize < initial {
		initial = maxLineSize
	}
	scanner.Buffer(make([]byte, 0, initial), maxLineSize)
	return &tcpConn{conn: conn, scanner: scanner}
}

func (c *tcpConn) ReadLine() (string, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return c.scanner.Text(), nil
}

func (c *tcpConn) WriteLine(line string, deadline time.Time) error {
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	_, err := io.WriteString(c.conn, line+"\n")
	return err
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}

func (c *tcpConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

type wsConn struct {
	conn *websocket.Conn
	addr string
}

// NewWebSocketConn treats every text or binary frame as one line.
func NewWebSocketConn(conn *websocket.Conn, addr string, maxLineSize int) Conn {
	conn.SetReadLimit(int64(maxLineSize))
	return &wsConn{conn: conn, addr: addr}
}

func (c *wsConn) ReadLine() (string, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
}

func (c *wsConn) WriteLine(line string, deadline time.Time) error {
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

// Close sends a best-effort close frame before dropping the connection.
func (c *wsConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil &&
		!errors.Is(err, websocket.ErrCloseSent) && !isExpectedCloseError(err) {
		_ = c.conn.Close()
		return err
	}
	return c.conn.Close()
}

func (c *wsConn) RemoteAddr() string {
	return c.addr
}
