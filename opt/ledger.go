package opt

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// LedgerLog is a durable, append-only log of text lines.
// Replay yields every line in file order without its trailing newline.
// Append must not return before the line is durable.
type LedgerLog interface {
	Replay(ctx context.Context, fn func(line []byte) error) error
	Append(ctx context.Context, line []byte) error
	Close() error
}

// FileLog is a LedgerLog backed by a local text file, one record per line.
type FileLog struct {
	path string
	mu   sync.Mutex
	file *os.File
}

// OpenFileLog opens the ledger file at path, creating an empty one if absent.
func OpenFileLog(path string) (*FileLog, error) {
	if path == "" {
		return nil, errors.New("ledger path cannot be empty")
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	return &FileLog{path: path, file: f}, nil
}

// Path returns the file path of the ledger.
func (l *FileLog) Path() string {
	return l.path
}

// Replay reads the file from the beginning. A final segment without a trailing
// newline is still handed to fn so that a torn write surfaces as a decode error.
func (l *FileLog) Replay(ctx context.Context, fn func(line []byte) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return os.ErrClosed
	}
	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding ledger %s: %w", l.path, err)
	}

	r := bufio.NewReader(l.file)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			if cbErr := fn(bytes.TrimSuffix(line, []byte("\n"))); cbErr != nil {
				return cbErr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading ledger %s: %w", l.path, err)
		}
	}
}

// Append writes line plus a newline in a single write and syncs the file.
func (l *FileLog) Append(_ context.Context, line []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return os.ErrClosed
	}
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	if _, err := l.file.Write(buf); err != nil {
		return fmt.Errorf("appending to ledger %s: %w", l.path, err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("syncing ledger %s: %w", l.path, err)
	}
	return nil
}

// Close closes the file. It is safe to call multiple times.
func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
