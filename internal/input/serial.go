// internal/input/serial.go
package input

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/tamzrod/ble-fixture/internal/config"
)

// pollInterval bounds how long Next can miss a cancelled context.
const pollInterval = 200 * time.Millisecond

// port is the subset of serial.Port the scanner source needs.
type port interface {
	Read(p []byte) (int, error)
	Close() error
	SetReadTimeout(t time.Duration) error
}

// SerialSource reads entries from a barcode scanner on a serial port.
// Not safe for concurrent Next calls.
type SerialSource struct {
	name string
	port port
	buf  []byte
	acc  []byte
}

// OpenSerial opens the scanner described by cfg (8N1).
func OpenSerial(cfg config.ScannerConfig) (*SerialSource, error) {
	p, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("scanner: open %s: %w", cfg.Port, err)
	}

	s, err := newSerialSource(cfg.Port, p)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return s, nil
}

func newSerialSource(name string, p port) (*SerialSource, error) {
	if err := p.SetReadTimeout(pollInterval); err != nil {
		return nil, fmt.Errorf("scanner: set read timeout: %w", err)
	}
	return &SerialSource{name: name, port: p, buf: make([]byte, 64)}, nil
}

func (s *SerialSource) Next(ctx context.Context) (string, error) {
	for {
		if line, ok := s.pending(); ok {
			return line, nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		// A read timeout returns (0, nil).
		n, err := s.port.Read(s.buf)
		if n > 0 {
			s.acc = append(s.acc, s.buf[:n]...)
		}
		if err != nil {
			return "", fmt.Errorf("scanner: read %s: %w", s.name, err)
		}
	}
}

func (s *SerialSource) Close() error {
	return s.port.Close()
}

// pending pops the first non-empty terminated entry from the buffer.
func (s *SerialSource) pending() (string, bool) {
	for {
		i := bytes.IndexAny(s.acc, "\r\n")
		if i < 0 {
			return "", false
		}
		line := strings.TrimSpace(string(s.acc[:i]))
		s.acc = s.acc[i+1:]
		if line != "" {
			return line, true
		}
	}
}
