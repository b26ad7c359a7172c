package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Sink receives the body of the final attempt. Exactly one of Commit or
// Abort is called; Abort must leave nothing behind.
type Sink interface {
	io.Writer
	// Location describes where the body ended up ("memory", a file path).
	Location() string
	Commit() error
	Abort() error
}

// SinkFactory opens the sink for a logical request's final attempt.
type SinkFactory func() (Sink, error)

// MemorySink buffers the body in memory.
type MemorySink struct {
	buf bytes.Buffer
}

func (s *MemorySink) Write(p []byte) (int, error) { return s.buf.Write(p) }
func (s *MemorySink) Location() string            { return "memory" }
func (s *MemorySink) Commit() error               { return nil }

func (s *MemorySink) Abort() error {
	s.buf.Reset()
	return nil
}

func (s *MemorySink) Bytes() []byte { return s.buf.Bytes() }

// MemorySinks is the default factory.
func MemorySinks() SinkFactory {
	return func() (Sink, error) { return &MemorySink{}, nil }
}

// FileSink writes into a temporary file and moves it to its final path on
// Commit. Abort removes the temporary file.
type FileSink struct {
	file  *os.File
	final string
	done  bool
}

// NewFileSink creates a sink that ends up at path.
func NewFileSink(path string) (*FileSink, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating response directory: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".part-*")
	if err != nil {
		return nil, fmt.Errorf("creating response file: %w", err)
	}
	return &FileSink{file: f, final: path}, nil
}

func (s *FileSink) Write(p []byte) (int, error) { return s.file.Write(p) }
func (s *FileSink) Location() string            { return s.final }

func (s *FileSink) Commit() error {
	if s.done {
		return nil
	}
	s.done = true
	if err := s.file.Close(); err != nil {
		_ = os.Remove(s.file.Name())
		return err
	}
	if err := os.Rename(s.file.Name(), s.final); err != nil {
		_ = os.Remove(s.file.Name())
		return err
	}
	return nil
}

func (s *FileSink) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	closeErr := s.file.Close()
	removeErr := os.Remove(s.file.Name())
	if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
		return removeErr
	}
	return closeErr
}

// FileSinkAt always writes the body to path.
func FileSinkAt(path string) SinkFactory {
	return func() (Sink, error) { return NewFileSink(path) }
}

// FileSinks writes each body to a new file in dir.
func FileSinks(dir string) SinkFactory {
	return func() (Sink, error) {
		return NewFileSink(filepath.Join(dir, "response-"+uuid.NewString()+".body"))
	}
}

// discardSink drains non-final bodies.
type discardSink struct{}

func (discardSink) Write(p []byte) (int, error) { return len(p), nil }
func (discardSink) Location() string            { return os.DevNull }
func (discardSink) Commit() error               { return nil }
func (discardSink) Abort() error                { return nil }
