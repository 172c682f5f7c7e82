package history

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Record is a log line: an Entry plus the room it was delivered to.
type Record struct {
	Entry
	Room string
}

// String renders the record as "[HH:MM] [room] author: text".
func (r Record) String() string {
	return fmt.Sprintf("%s [%s] %s: %s", r.Time.Format(TimeLayout), r.Room, r.Author, r.Text)
}

// Log is the global append-only chat log. Appends are serialized so lines
// never interleave.
type Log struct {
	mu   sync.Mutex
	w    io.Writer
	file *os.File
}

// OpenLog creates or truncates the file at path.
func OpenLog(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open chat log %s: %w", path, err)
	}
	return &Log{w: f, file: f}, nil
}

// NewLog wraps an arbitrary writer, mostly for tests.
func NewLog(w io.Writer) *Log {
	return &Log{w: w}
}

// Append writes one record as a single line.
func (l *Log) Append(r Record) error {
	line := r.String() + "\n"

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.w == nil {
		return os.ErrClosed
	}
	if _, err := io.WriteString(l.w, line); err != nil {
		return fmt.Errorf("append chat log: %w", err)
	}
	return nil
}

// Close releases the underlying file, if any. Later appends fail.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.w = nil
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
