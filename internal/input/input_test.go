// internal/input/input_test.go
package input

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineSource_Lines(t *testing.T) {
	src := NewLineSource(strings.NewReader("SQ25A00012345\r\n\n  ZO25B0001234 \nLAST"))
	defer src.Close()

	ctx := context.Background()
	for _, want := range []string{"SQ25A00012345", "", "ZO25B0001234", "LAST"} {
		got, err := src.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF, "exhausted source keeps returning EOF")
}

func TestLineSource_ContextCancel(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	src := NewLineSource(r)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := src.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// ------------------------------------------------------------
// Serial source
// ------------------------------------------------------------

type fakePort struct {
	mu      sync.Mutex
	chunks  [][]byte
	readErr error
	closed  bool
	timeout time.Duration
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.chunks) == 0 {
		if p.readErr != nil {
			return 0, p.readErr
		}
		time.Sleep(time.Millisecond) // emulate read timeout
		return 0, nil
	}
	n := copy(b, p.chunks[0])
	p.chunks[0] = p.chunks[0][n:]
	if len(p.chunks[0]) == 0 {
		p.chunks = p.chunks[1:]
	}
	return n, nil
}

func (p *fakePort) Close() error { p.closed = true; return nil }

func (p *fakePort) SetReadTimeout(t time.Duration) error { p.timeout = t; return nil }

func TestSerialSource_SplitAcrossReads(t *testing.T) {
	p := &fakePort{chunks: [][]byte{[]byte("SQ25A0"), []byte("0012345\r"), []byte("\nZU25C00000001\r")}}
	src, err := newSerialSource("fake", p)
	require.NoError(t, err)
	assert.Equal(t, pollInterval, p.timeout)

	ctx := context.Background()

	got, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SQ25A00012345", got)

	got, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ZU25C00000001", got)

	require.NoError(t, src.Close())
	assert.True(t, p.closed)
}

func TestSerialSource_CancelWhileIdle(t *testing.T) {
	src, _ := newSerialSource("fake", &fakePort{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := src.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSerialSource_ReadError(t *testing.T) {
	boom := errors.New("device unplugged")
	src, _ := newSerialSource("fake", &fakePort{readErr: boom})

	_, err := src.Next(context.Background())
	assert.ErrorIs(t, err, boom)
}
