package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(min int) time.Time {
	return time.Date(2024, 5, 1, 12, min, 0, 0, time.UTC)
}

func TestStoreLastReturnsChronologicalTail(t *testing.T) {
	s := NewStore(0)
	for i, text := range []string{"one", "two", "three", "four"} {
		s.Append("General", Entry{Time: at(i), Author: "A", Text: text})
	}

	got := s.Last("General", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "three", got[0].Text)
	assert.Equal(t, "four", got[1].Text)
}

func TestStoreLastWithFewerEntries(t *testing.T) {
	s := NewStore(0)
	s.Append("General", Entry{Time: at(0), Author: "A", Text: "hi"})
	s.Append("General", Entry{Time: at(1), Author: "B", Text: "yo"})

	got := s.Last("General", 10)
	require.Len(t, got, 2)
	assert.Equal(t, "hi", got[0].Text)
	assert.Equal(t, "yo", got[1].Text)

	assert.Empty(t, s.Last("General", 0))
	assert.Empty(t, s.Last("missing", 5))
}

func TestStoreClampsBackwardClock(t *testing.T) {
	s := NewStore(0)
	s.Append("r", Entry{Time: at(5), Author: "A", Text: "first"})
	stored := s.Append("r", Entry{Time: at(3), Author: "A", Text: "second"})

	assert.Equal(t, at(5), stored.Time)
	got := s.Last("r", 2)
	assert.False(t, got[1].Time.Before(got[0].Time))
}

func TestStoreLimitDropsOldest(t *testing.T) {
	s := NewStore(2)
	for i := 0; i < 5; i++ {
		s.Append("r", Entry{Time: at(i), Author: "A", Text: string(rune('a' + i))})
	}
	assert.Equal(t, 2, s.Len("r"))
	got := s.Last("r", 10)
	assert.Equal(t, "d", got[0].Text)
	assert.Equal(t, "e", got[1].Text)
}

func TestStoreRoomsAreIndependent(t *testing.T) {
	s := NewStore(0)
	s.Ensure("empty")
	s.Append("a", Entry{Time: at(0), Author: "A", Text: "x"})

	assert.Equal(t, 0, s.Len("empty"))
	assert.Equal(t, 1, s.Len("a"))
}

func TestEntryString(t *testing.T) {
	e := Entry{Time: at(7), Author: "A", Text: "hello"}
	assert.Equal(t, "[12:07] A: hello", e.String())
}
