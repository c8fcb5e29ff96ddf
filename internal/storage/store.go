package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrSinkClosed is returned when appending to a closed sink.
var ErrSinkClosed = errors.New("result sink closed")

// ResultSink records productive numbers as they are found.
type ResultSink interface {
	// Append records values. Order within a call is not significant.
	Append(ctx context.Context, values []uint64) error

	// Size reports the bytes recorded so far, including content present
	// when the sink was opened. It stays valid after Close.
	Size() int64

	// Close flushes and releases the sink.
	Close() error
}

// ReadResults parses a result file: one decimal integer per line.
// Blank lines are skipped.
func ReadResults(path string) ([]uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open results %s: %w", path, err)
	}
	defer f.Close()

	var out []uint64
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		v, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: invalid value %q: %w", path, line, text, err)
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read results %s: %w", path, err)
	}
	return out, nil
}
