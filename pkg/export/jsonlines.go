// Package export provides sinks that persist exported records.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/goccy/go-json"
)

// JSONLines writes one JSON document per line.
type JSONLines[T any] struct {
	w       *bufio.Writer
	file    *os.File
	written int
}

// NewJSONLines creates a sink writing to w.
func NewJSONLines[T any](w io.Writer) *JSONLines[T] {
	return &JSONLines[T]{w: bufio.NewWriter(w)}
}

// CreateFile creates (or truncates) path and returns a sink writing to it.
// Flush also syncs the file to disk. The caller must Close the sink.
func CreateFile[T any](path string) (*JSONLines[T], error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create export directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create export file: %w", err)
	}
	return &JSONLines[T]{w: bufio.NewWriter(f), file: f}, nil
}

// Write encodes record as one line.
func (s *JSONLines[T]) Write(record T) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if _, err := s.w.Write(data); err != nil {
		return err
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return err
	}
	s.written++
	return nil
}

// Flush writes buffered lines through and, for files, syncs them.
func (s *JSONLines[T]) Flush() error {
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flush export: %w", err)
	}
	if s.file != nil {
		if err := s.file.Sync(); err != nil {
			return fmt.Errorf("sync export file: %w", err)
		}
	}
	return nil
}

// Written returns the number of records written.
func (s *JSONLines[T]) Written() int {
	return s.written
}

// Close flushes the sink and closes the underlying file, if any.
func (s *JSONLines[T]) Close() error {
	flushErr := s.Flush()
	if s.file == nil {
		return flushErr
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close export file: %w", err)
	}
	return flushErr
}

// Sink is the interface decorated by Counting.
type Sink[T any] interface {
	Write(record T) error
	Flush() error
}

// Counting counts the records passed to the wrapped sink.
type Counting[T any] struct {
	next  Sink[T]
	count atomic.Int64
	pages atomic.Int64
}

// NewCounting wraps next.
func NewCounting[T any](next Sink[T]) *Counting[T] {
	return &Counting[T]{next: next}
}

// Write implements Sink.
func (c *Counting[T]) Write(record T) error {
	if err := c.next.Write(record); err != nil {
		return err
	}
	c.count.Add(1)
	return nil
}

// Flush implements Sink.
func (c *Counting[T]) Flush() error {
	c.pages.Add(1)
	return c.next.Flush()
}

// Count returns the number of records written.
func (c *Counting[T]) Count() int64 {
	return c.count.Load()
}

// Flushes returns the number of flush signals seen.
func (c *Counting[T]) Flushes() int64 {
	return c.pages.Load()
}
