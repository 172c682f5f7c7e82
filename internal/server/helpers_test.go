package server

import (
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/linechat/internal/filter"
	"github.com/Tyrowin/linechat/internal/history"
)

var errBrokenPipe = errors.New("write: broken pipe")

// fakeConn is an in-memory Conn. Lines pushed with feed are returned by
// ReadLine; written lines are recorded.
type fakeConn struct {
	addr string
	in   chan string
	done chan struct{}

	mu         sync.Mutex
	out        []string
	failWrites bool
	closed     bool
	closeCalls int
	closeOnce  sync.Once
}

func newFakeConn(addr string) *fakeConn {
	return &fakeConn{addr: addr, in: make(chan string, 64), done: make(chan struct{})}
}

func (c *fakeConn) feed(lines ...string) {
	for _, l := range lines {
		c.in <- l
	}
}

func (c *fakeConn) ReadLine() (string, error) {
	select {
	case l, ok := <-c.in:
		if !ok {
			return "", io.EOF
		}
		return l, nil
	case <-c.done:
		return "", net.ErrClosed
	}
}

func (c *fakeConn) WriteLine(line string, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.failWrites {
		return errBrokenPipe
	}
	c.out = append(c.out, line)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.closeCalls++
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) RemoteAddr() string { return c.addr }

func (c *fakeConn) setFailWrites(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failWrites = fail
}

func (c *fakeConn) lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.out...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = nil
}

func newTestHub(t *testing.T) (*Hub, *history.Store) {
	t.Helper()
	store := history.NewStore(0)
	h := NewHub(filter.New(), store, nil)
	h.now = newTestClock()
	return h, store
}

func newTestClock() func() time.Time {
	return func() time.Time { return time.Date(2024, 5, 1, 9, 15, 0, 0, time.UTC) }
}

// joinedSession creates a session on a fakeConn and registers it under name
// without running Serve.
func joinedSession(t *testing.T, h *Hub, name string) (*Session, *fakeConn) {
	t.Helper()
	conn := newFakeConn("10.0.0.1:" + name)
	s := NewSession(conn, h, Config{})
	require.NoError(t, h.Register(s, name))
	return s, conn
}

func count(lines []string, want string) int {
	n := 0
	for _, l := range lines {
		if l == want {
			n++
		}
	}
	return n
}
