package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// LocalSink appends results to a local text file, one value per line.
type LocalSink struct {
	path string

	mu     sync.Mutex
	file   *os.File
	buf    []byte
	size   int64
	closed bool
}

// OpenLocalSink opens path for appending, creating it if needed.
func OpenLocalSink(path string) (*LocalSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open results %s: %w", path, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat results %s: %w", path, err)
	}

	return &LocalSink{path: path, file: f, size: fi.Size()}, nil
}

// Append writes values as newline-terminated decimal lines in one write.
func (s *LocalSink) Append(ctx context.Context, values []uint64) error {
	if len(values) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSinkClosed
	}

	s.buf = s.buf[:0]
	for _, v := range values {
		s.buf = strconv.AppendUint(s.buf, v, 10)
		s.buf = append(s.buf, '\n')
	}

	n, err := s.file.Write(s.buf)
	s.size += int64(n)
	if err != nil {
		return fmt.Errorf("append to %s: %w", s.path, err)
	}
	return nil
}

// Size returns the file length as seen by this sink.
func (s *LocalSink) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Close syncs and closes the file.
func (s *LocalSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.file.Sync(); err != nil {
		s.file.Close()
		return fmt.Errorf("sync %s: %w", s.path, err)
	}
	return s.file.Close()
}

// TruncateTo cuts the result file back to size bytes, discarding hits
// appended after that length was checkpointed. It returns the number of
// bytes dropped. A file that is missing or not longer than size is left
// untouched.
func TruncateTo(path string, size int64) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("stat results %s: %w", path, err)
	}

	if size < 0 || fi.Size() <= size {
		return 0, nil
	}

	if err := os.Truncate(path, size); err != nil {
		return 0, fmt.Errorf("truncate %s to %d bytes: %w", path, size, err)
	}
	return fi.Size() - size, nil
}
