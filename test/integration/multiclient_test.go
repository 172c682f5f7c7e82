// Package integration contains integration tests for multi-client scenarios.
//
// These tests drive a real server over loopback sockets and verify that
// several clients, possibly on different transports and in different rooms,
// see a consistent conversation.
package integration

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Tyrowin/linechat/internal/server"
	"github.com/Tyrowin/linechat/test/testhelpers"
)

// joinAll connects n TCP clients named prefix0..prefixN-1 in order and
// consumes the join notices each earlier client receives.
func joinAll(t *testing.T, ts *testhelpers.TestServer, prefix string, n int) []testhelpers.LineClient {
	t.Helper()
	clients := make([]testhelpers.LineClient, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("%s%d", prefix, i)
		c := testhelpers.DialTCP(t, ts.TCPAddr)
		testhelpers.Join(t, c, name)
		for _, earlier := range clients {
			expectLine(t, earlier, fmt.Sprintf("*** %s joined %s ***", name, server.DefaultRoom))
		}
		clients = append(clients, c)
	}
	return clients
}

func expectLine(t *testing.T, c testhelpers.LineClient, want string) {
	t.Helper()
	if got := c.Expect(t); got != want {
		t.Fatalf("Expected %q, got %q", want, got)
	}
}

// chatBody strips the "[HH:MM] " prefix from a relayed chat line.
func chatBody(t *testing.T, line string) string {
	t.Helper()
	if len(line) < 8 || line[0] != '[' || line[6] != ']' || line[7] != ' ' {
		t.Fatalf("Line %q does not start with a timestamp", line)
	}
	return line[8:]
}

// TestMultipleClientsMessageExchange checks that every client receives each
// message from every other client, and never its own.
func TestMultipleClientsMessageExchange(t *testing.T) {
	ts := testhelpers.StartServer(t, server.Config{})

	const numClients = 5
	clients := joinAll(t, ts, "c", numClients)

	for i, sender := range clients {
		content := fmt.Sprintf("Message from client %d", i)
		sender.Send(t, content)
		for j, receiver := range clients {
			if j == i {
				continue
			}
			want := fmt.Sprintf("c%d: %s", i, content)
			if got := chatBody(t, receiver.Expect(t)); got != want {
				t.Errorf("Client %d: expected %q, got %q", j, want, got)
			}
		}
	}

	// The first line a sender sees after its own message must be the reply
	// to its next command, not an echo.
	clients[0].Send(t, "/who")
	expectLine(t, clients[0], "Users in General: c0, c1, c2, c3, c4")
}

// TestRoomsAreIsolated checks that messages stay inside the sender's room and
// that history follows the room a client switches into.
func TestRoomsAreIsolated(t *testing.T) {
	ts := testhelpers.StartServer(t, server.Config{})
	clients := joinAll(t, ts, "r", 3)
	lobby, gamer1, gamer2 := clients[0], clients[1], clients[2]

	gamer1.Send(t, "/join games")
	expectLine(t, gamer1, "[Switched to room: games]")
	gamer2.Send(t, "/join games")
	expectLine(t, gamer2, "[Switched to room: games]")

	gamer1.Send(t, "anyone up for chess")
	if got := chatBody(t, gamer2.Expect(t)); got != "r1: anyone up for chess" {
		t.Errorf("Unexpected games message %q", got)
	}

	lobby.Send(t, "/who")
	expectLine(t, lobby, "Users in General: r0")

	lobby.Send(t, "quiet here")
	lobby.Send(t, "/who")
	expectLine(t, lobby, "Users in General: r0")
	gamer2.Send(t, "/who")
	expectLine(t, gamer2, "Users in games: r1, r2")

	gamer2.Send(t, "/history 10")
	if got := chatBody(t, gamer2.Expect(t)); got != "r1: anyone up for chess" {
		t.Errorf("Unexpected games history %q", got)
	}

	gamer1.Send(t, "/join General")
	expectLine(t, gamer1, "[Switched to room: General]")
	gamer1.Send(t, "/history 1")
	if got := chatBody(t, gamer1.Expect(t)); got != "r0: quiet here" {
		t.Errorf("Unexpected General history %q", got)
	}
}

// TestConcurrentSendersShareOneOrder floods a room from every client at once
// and checks that all members observe the same order, which is also the
// order recorded in history.
func TestConcurrentSendersShareOneOrder(t *testing.T) {
	ts := testhelpers.StartServer(t, server.Config{
		RateLimit: server.RateLimitConfig{Burst: 1000, RefillInterval: time.Second},
	})

	const (
		numClients  = 4
		perClient   = 20
		othersLines = (numClients - 1) * perClient
	)
	clients := joinAll(t, ts, "s", numClients)

	for m := 0; m < perClient; m++ {
		for i, c := range clients {
			c.Send(t, fmt.Sprintf("msg %d from %d", m, i))
		}
	}

	received := make([][]string, numClients)
	for i, c := range clients {
		next := make(map[string]int)
		for k := 0; k < othersLines; k++ {
			body := chatBody(t, c.Expect(t))
			sender, text, ok := strings.Cut(body, ": ")
			if !ok {
				t.Fatalf("Client %d: malformed line %q", i, body)
			}
			if sender == fmt.Sprintf("s%d", i) {
				t.Fatalf("Client %d received its own message %q", i, body)
			}
			want := fmt.Sprintf("msg %d from %s", next[sender], strings.TrimPrefix(sender, "s"))
			if text != want {
				t.Fatalf("Client %d: expected %q from %s, got %q", i, want, sender, text)
			}
			next[sender]++
			received[i] = append(received[i], body)
		}
	}

	// Any two clients must agree on the order of messages neither of them sent.
	for i := 0; i < numClients; i++ {
		for j := i + 1; j < numClients; j++ {
			a := withoutSenders(received[i], i, j)
			b := withoutSenders(received[j], i, j)
			if strings.Join(a, "\n") != strings.Join(b, "\n") {
				t.Errorf("Clients %d and %d observed different orders", i, j)
			}
		}
	}

	clients[0].Send(t, fmt.Sprintf("/history %d", numClients*perClient))
	var recorded []string
	for k := 0; k < numClients*perClient; k++ {
		recorded = append(recorded, chatBody(t, clients[0].Expect(t)))
	}
	if got, want := strings.Join(withoutSenders(recorded, 0, 0), "\n"), strings.Join(received[0], "\n"); got != want {
		t.Error("History order differs from delivery order")
	}
}

func withoutSenders(lines []string, a, b int) []string {
	skipA, skipB := fmt.Sprintf("s%d: ", a), fmt.Sprintf("s%d: ", b)
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.HasPrefix(l, skipA) || strings.HasPrefix(l, skipB) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// TestMixedTransports checks that TCP and WebSocket clients share rooms.
func TestMixedTransports(t *testing.T) {
	ts := testhelpers.StartServer(t, server.Config{})

	tcp := testhelpers.DialTCP(t, ts.TCPAddr)
	testhelpers.Join(t, tcp, "T")

	ws := testhelpers.DialWebSocket(t, ts.WebSocketURL(), "")
	testhelpers.Join(t, ws, "W")
	expectLine(t, tcp, "*** W joined General ***")

	tcp.Send(t, "I hate bugs")
	expectLine(t, tcp, server.WarningLine)
	if got := chatBody(t, ws.Expect(t)); got != "T: I heart-emoji bugs" {
		t.Errorf("Unexpected relayed line %q", got)
	}

	ws.Send(t, "/who")
	expectLine(t, ws, "Users in General: T, W")

	if err := ws.Close(); err != nil {
		t.Logf("WebSocket close error: %v", err)
	}
	expectLine(t, tcp, "*** W has left the chat ***")
}
