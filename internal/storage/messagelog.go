package storage

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"time"
)

// MessageLog appends timestamped lines to a channel transcript file
type MessageLog struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	now    func() time.Time
}

// OpenMessageLog opens path for appending, creating it if needed
func OpenMessageLog(path string) (*MessageLog, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open message log: %w", err)
	}
	return &MessageLog{
		file:   file,
		writer: bufio.NewWriter(file),
		now:    time.Now,
	}, nil
}

// Log writes "[HH:MM:SS] text" and flushes it to disk before returning
func (l *MessageLog) Log(text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return os.ErrClosed
	}

	timestamp := l.now().Format("[15:04:05]")
	if _, err := fmt.Fprintf(l.writer, "%s %s\n", timestamp, text); err != nil {
		return err
	}
	return l.writer.Flush()
}

// Close flushes and releases the file. Calling it twice is a no-op.
func (l *MessageLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}

	flushErr := l.writer.Flush()
	closeErr := l.file.Close()
	l.file = nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
