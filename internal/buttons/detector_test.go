// internal/buttons/detector_test.go
package buttons

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bump returns a copy of frame with control c's nibble advanced by delta.
func bump(frame []byte, c int, delta uint8) []byte {
	out := append([]byte(nil), frame...)
	ch := reservedCount + c
	b := out[ch/2]
	if ch%2 == 0 {
		hi := (b>>4 + delta) & 0x0F
		out[ch/2] = hi<<4 | b&0x0F
	} else {
		lo := (b&0x0F + delta) & 0x0F
		out[ch/2] = b&0xF0 | lo
	}
	return out
}

func baseline() []byte {
	return []byte{0x00, 0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC, 0xDE, 0xF0, 0x11, 0x22}
}

func TestOnFrame_FirstFrameIsBaseline(t *testing.T) {
	d := New()
	f := d.OnFrame(baseline())
	assert.Equal(t, 0, f.Count())
	assert.Equal(t, 1, d.Iteration())
}

func TestOnFrame_RepeatedFrameNoLatch(t *testing.T) {
	d := New()
	d.OnFrame(baseline())
	for i := 0; i < 5; i++ {
		f := d.OnFrame(baseline())
		assert.Equal(t, 0, f.Count())
	}
}

func TestOnFrame_SequentialPressesAllPressedOnlyAtLast(t *testing.T) {
	d := New()
	frame := baseline()
	d.OnFrame(frame)

	for c := 0; c < Controls; c++ {
		frame = bump(frame, c, 1)
		f := d.OnFrame(frame)

		assert.Equal(t, c+1, f.Count(), "after control %d", c)
		if c < Controls-1 {
			assert.False(t, f.AllPressed(), "early all-pressed at control %d", c)
			select {
			case <-d.Done():
				t.Fatalf("done closed early at control %d", c)
			default:
			}
		} else {
			assert.True(t, f.AllPressed())
		}
	}

	select {
	case <-d.Done():
	default:
		t.Fatalf("done not closed after all controls")
	}
}

func TestOnFrame_LatchSurvivesReturnToOriginal(t *testing.T) {
	d := New()
	frame := baseline()
	d.OnFrame(frame)

	d.OnFrame(bump(frame, 3, 1))
	f := d.OnFrame(frame)
	assert.True(t, f[3])
	assert.Equal(t, 1, f.Count())
}

func TestOnFrame_CounterWrapCountsAsPress(t *testing.T) {
	d := New()
	frame := make([]byte, frameBytes)
	frame[1] = 0xF0 // control 0 at 15
	d.OnFrame(frame)

	f := d.OnFrame(bump(frame, 0, 1)) // 15 -> 0
	assert.True(t, f[0])
}

func TestOnFrame_ReservedChannelsIgnored(t *testing.T) {
	d := New()
	d.OnFrame(make([]byte, frameBytes))
	f := d.OnFrame([]byte{0xFF})
	assert.Equal(t, 0, f.Count())
}

func TestOnFrame_ShortFrameKeepsPrevious(t *testing.T) {
	d := New()
	d.OnFrame(baseline())

	// only the first 2 bytes present: channels 0..3 compared, rest unchanged
	f := d.OnFrame([]byte{0x00, 0x13})
	assert.Equal(t, 1, f.Count())
	assert.True(t, f[1])
}

func TestOnFrame_ExtraBytesIgnored(t *testing.T) {
	d := New()
	long := append(baseline(), 0x00, 0x00)
	d.OnFrame(long)
	long[len(long)-1] = 0xFF
	f := d.OnFrame(long)
	assert.Equal(t, 0, f.Count())
}

func TestDetector_NewIsFresh(t *testing.T) {
	d := New()
	frame := baseline()
	d.OnFrame(frame)
	d.OnFrame(bump(frame, 0, 1))
	require.Equal(t, 1, d.Flags().Count())

	fresh := New()
	assert.Equal(t, 0, fresh.Flags().Count())
	assert.Equal(t, 0, fresh.Iteration())
}

func TestDetector_ConcurrentFrames(t *testing.T) {
	d := New()
	d.OnFrame(make([]byte, frameBytes))

	var wg sync.WaitGroup
	for c := 0; c < Controls; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			// each goroutine flips one control away from zero and back
			d.OnFrame(bump(make([]byte, frameBytes), c, 1))
		}(c)
	}
	wg.Wait()

	// every frame differs from whichever frame preceded it in the
	// control it bumped, so all controls latch regardless of order
	assert.True(t, d.Flags().AllPressed())
	<-d.Done()
}

func TestFlags_Missing(t *testing.T) {
	var f Flags
	f[0], f[19] = true, true
	m := f.Missing()
	assert.Len(t, m, 18)
	assert.Equal(t, 1, m[0])
}
