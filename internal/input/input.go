// internal/input/input.go
package input

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// Source yields operator-entered serial numbers, one per call.
// Next returns io.EOF when the source is exhausted.
type Source interface {
	Next(ctx context.Context) (string, error)
	Close() error
}

// ------------------------------------------------------------
// Line source (stdin / keyboard wedge scanners)
// ------------------------------------------------------------

type lineResult struct {
	line string
	err  error
}

// LineSource reads newline terminated entries from r. Empty lines are
// delivered as "" so an operator can start a session with Enter alone.
type LineSource struct {
	r     io.Reader
	lines chan lineResult
	stop  chan struct{}
}

// NewLineSource starts reading r in the background.
func NewLineSource(r io.Reader) *LineSource {
	s := &LineSource{
		r:     r,
		lines: make(chan lineResult),
		stop:  make(chan struct{}),
	}
	go s.read()
	return s
}

func (s *LineSource) read() {
	defer close(s.lines)

	sc := bufio.NewScanner(s.r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		select {
		case s.lines <- lineResult{line: line}:
		case <-s.stop:
			return
		}
	}

	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	select {
	case s.lines <- lineResult{err: err}:
	case <-s.stop:
	}
}

func (s *LineSource) Next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return r.line, r.err
	}
}

// Close stops delivery. A blocked read on r is not interrupted.
func (s *LineSource) Close() error {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	return nil
}
