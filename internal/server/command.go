package server

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Tyrowin/linechat/internal/metrics"
)

// DefaultHistoryCount is used when /history has no usable count.
const DefaultHistoryCount = 10

// Command is a parsed slash command. The set of implementations is closed:
// WhoCommand, JoinCommand, HistoryCommand and UnknownCommand.
type Command interface {
	command()
}

// WhoCommand lists the users in the sender's room.
type WhoCommand struct{}

// JoinCommand moves the sender to Room.
type JoinCommand struct {
	Room string
}

// HistoryCommand replays up to Count recent messages of the sender's room.
type HistoryCommand struct {
	Count int
}

// UnknownCommand is anything else, including a /join without a room.
type UnknownCommand struct {
	Name string
}

func (WhoCommand) command()     {}
func (JoinCommand) command()    {}
func (HistoryCommand) command() {}
func (UnknownCommand) command() {}

// ParseCommand parses a line starting with "/". The command word is matched
// case-insensitively.
func ParseCommand(line string) Command {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return UnknownCommand{}
	}

	name := strings.ToLower(fields[0])
	switch name {
	case "/who":
		return WhoCommand{}
	case "/join":
		if len(fields) > 1 {
			return JoinCommand{Room: fields[1]}
		}
	case "/history":
		count := DefaultHistoryCount
		if len(fields) > 1 {
			if n, err := strconv.Atoi(fields[1]); err == nil && n > 0 {
				count = n
			}
		}
		return HistoryCommand{Count: count}
	}
	return UnknownCommand{Name: name}
}

// Execute runs cmd for s. Replies go to s only; nothing is broadcast,
// logged or added to history.
func (h *Hub) Execute(s *Session, cmd Command) error {
	switch c := cmd.(type) {
	case WhoCommand:
		metrics.CommandsTotal.WithLabelValues("who").Inc()
		roomName, err := h.RoomOf(s)
		if err != nil {
			return err
		}
		return s.Send(whoLine(roomName, h.usernames(roomName)))

	case JoinCommand:
		metrics.CommandsTotal.WithLabelValues("join").Inc()
		if err := h.Join(s, c.Room); err != nil {
			return err
		}
		s.logger.Debug().Str("room", c.Room).Msg("Switched room")
		return s.Send(switchedLine(c.Room))

	case HistoryCommand:
		metrics.CommandsTotal.WithLabelValues("history").Inc()
		roomName, err := h.RoomOf(s)
		if err != nil {
			return err
		}
		for _, entry := range h.history.Last(roomName, c.Count) {
			if err := s.Send(entry.String()); err != nil {
				return err
			}
		}
		return nil

	case UnknownCommand:
		metrics.CommandsTotal.WithLabelValues("unknown").Inc()
		return s.Send(UsageLine)

	default:
		return fmt.Errorf("unhandled command %T", cmd)
	}
}
