// Package testhelpers provides common utilities for the linechat integration tests.
//
// It starts a server on loopback listeners and offers small line-oriented
// clients for both transports so tests read like a chat transcript.
package testhelpers

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/linechat/internal/server"
)

// ReadTimeout bounds every expected read so a missing line fails the test
// instead of hanging it.
const ReadTimeout = 2 * time.Second

// TestServer is a running server with its TCP address and an HTTP test
// server for the WebSocket and health routes.
type TestServer struct {
	Server  *server.Server
	TCPAddr string
	HTTP    *httptest.Server

	served chan error
}

// StartServer runs a server built from cfg on 127.0.0.1 and registers
// cleanup with t. HTTPAddr is ignored; the routes are served by httptest.
func StartServer(t *testing.T, cfg server.Config) *TestServer {
	t.Helper()
	cfg.HTTPAddr = ""
	if cfg.Lemmatizer == "" {
		cfg.Lemmatizer = "rules"
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	ts := &TestServer{
		Server:  srv,
		TCPAddr: ln.Addr().String(),
		HTTP:    httptest.NewServer(server.SetupRoutes(srv)),
		served:  make(chan error, 1),
	}
	go func() { ts.served <- srv.ServeTCP(ln) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = ts.Shutdown(ctx)
		ts.HTTP.Close()
	})
	return ts
}

// Shutdown stops the server and waits for the TCP accept loop to return.
// It is safe to call more than once.
func (ts *TestServer) Shutdown(ctx context.Context) error {
	if err := ts.Server.Shutdown(ctx); err != nil {
		return err
	}
	select {
	case err, ok := <-ts.served:
		if ok {
			close(ts.served)
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WebSocketURL returns the ws:// address of the /ws route.
func (ts *TestServer) WebSocketURL() string {
	return "ws" + strings.TrimPrefix(ts.HTTP.URL, "http") + "/ws"
}

// LineClient is a chat participant speaking the newline-delimited protocol.
type LineClient interface {
	Send(t *testing.T, line string)
	Expect(t *testing.T) string
	ExpectClosed(t *testing.T)
	Close() error
}

type tcpClient struct {
	conn net.Conn
	r    *bufio.Reader
}

// DialTCP connects a raw TCP client and closes it when the test ends.
func DialTCP(t *testing.T, addr string) LineClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, ReadTimeout)
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", addr, err)
	}
	c := &tcpClient{conn: conn, r: bufio.NewReader(conn)}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func (c *tcpClient) Send(t *testing.T, line string) {
	t.Helper()
	if _, err := io.WriteString(c.conn, line+"\n"); err != nil {
		t.Fatalf("Failed to send %q: %v", line, err)
	}
}

func (c *tcpClient) Expect(t *testing.T) string {
	t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(ReadTimeout))
	line, err := c.r.ReadString('\n')
	if err != nil {
		t.Fatalf("Failed to read line: %v", err)
	}
	return strings.TrimRight(line, "\r\n")
}

func (c *tcpClient) ExpectClosed(t *testing.T) {
	t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(ReadTimeout))
	for {
		if _, err := c.r.ReadString('\n'); err != nil {
			failIfTimeout(t, err)
			return
		}
	}
}

func (c *tcpClient) Close() error {
	return c.conn.Close()
}

type wsClient struct {
	conn *websocket.Conn
}

// DialWebSocket opens a WebSocket session, sending origin when it is not
// empty, and closes it when the test ends.
func DialWebSocket(t *testing.T, url, origin string) LineClient {
	t.Helper()
	conn, err := ConnectWebSocket(url, origin)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	c := &wsClient{conn: conn}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// ConnectWebSocket creates a WebSocket connection to the specified URL.
// It returns the connection or an error if connection fails.
func ConnectWebSocket(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

func (c *wsClient) Send(t *testing.T, line string) {
	t.Helper()
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		t.Fatalf("Failed to send %q: %v", line, err)
	}
}

func (c *wsClient) Expect(t *testing.T) string {
	t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(ReadTimeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	return string(data)
}

func (c *wsClient) ExpectClosed(t *testing.T) {
	t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(ReadTimeout))
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			failIfTimeout(t, err)
			return
		}
	}
}

// Close gracefully closes the WebSocket connection.
func (c *wsClient) Close() error {
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

func failIfTimeout(t *testing.T, err error) {
	t.Helper()
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		t.Fatal("Expected connection to be closed, but it is still open")
	}
}

// Join sends the username handshake and consumes the join acknowledgement.
func Join(t *testing.T, c LineClient, username string) {
	t.Helper()
	c.Send(t, username)
	if got, want := c.Expect(t), "[Joined room: "+server.DefaultRoom+"]"; got != want {
		t.Fatalf("Expected %q after handshake, got %q", want, got)
	}
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}
