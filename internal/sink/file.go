package sink

import (
	"fmt"
	"os"
	"sync"
)

var newline = []byte{'\n'}

// FileSink appends newline-terminated records to a single file.
// It implements Sink. Writes are serialized with a mutex so concurrent
// requests never interleave partial records.
type FileSink struct {
	mu    sync.Mutex
	file  *os.File
	path  string
	fsync bool
}

// Open opens or creates the log file at path in append mode.
// When fsync is set, every append is flushed to stable storage.
func Open(path string, fsync bool) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return &FileSink{
		file:  f,
		path:  path,
		fsync: fsync,
	}, nil
}

// Append writes one record. A single '\n' is added when the record does
// not already end with one; no other bytes are altered. An empty record
// produces a single empty line.
func (s *FileSink) Append(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Write(p); err != nil {
		return fmt.Errorf("append to %s: %w", s.path, err)
	}
	if len(p) == 0 || p[len(p)-1] != '\n' {
		if _, err := s.file.Write(newline); err != nil {
			return fmt.Errorf("append to %s: %w", s.path, err)
		}
	}
	if s.fsync {
		if err := s.file.Sync(); err != nil {
			return fmt.Errorf("sync %s: %w", s.path, err)
		}
	}
	return nil
}

// Sync flushes the file buffers to disk.
func (s *FileSink) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Sync()
}

// Size reports the current size of the log file in bytes.
func (s *FileSink) Size() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, err := s.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Close syncs and closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.file.Sync()
	return s.file.Close()
}
