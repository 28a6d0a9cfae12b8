// internal/buttons/detector.go
package buttons

import "sync"

// ---- CHANNEL LAYOUT (LOCKED) ----
//
// A notification carries 22 nibble counters, two per byte, high nibble first.
// Channels 0–1 are reserved; 2–21 are the user-visible controls.
const (
	Channels      = 22
	reservedCount = 2
	Controls      = Channels - reservedCount
	frameBytes    = Channels / 2
)

// Flags is the latched state of the user-visible controls.
type Flags [Controls]bool

// AllPressed reports whether every control has latched.
func (f Flags) AllPressed() bool {
	for _, v := range f {
		if !v {
			return false
		}
	}
	return true
}

// Count returns the number of latched controls.
func (f Flags) Count() int {
	n := 0
	for _, v := range f {
		if v {
			n++
		}
	}
	return n
}

// Missing returns the indexes of controls not yet latched.
func (f Flags) Missing() []int {
	var out []int
	for i, v := range f {
		if !v {
			out = append(out, i)
		}
	}
	return out
}

// Detector turns periodic absolute counter frames into latched presses.
// One Detector per session. Safe for concurrent OnFrame callers.
type Detector struct {
	mu        sync.Mutex
	memory    [Channels]uint8
	latched   [Channels]uint8
	iteration int

	done     chan struct{}
	doneOnce sync.Once
}

func New() *Detector {
	return &Detector{done: make(chan struct{})}
}

// OnFrame feeds one notification and returns the control flags after it.
// The first frame is the baseline and never latches.
func (d *Detector) OnFrame(frame []byte) Flags {
	d.mu.Lock()
	defer d.mu.Unlock()

	// missing positions repeat the previous reading
	n := d.memory
	for i := 0; i < len(frame) && i < frameBytes; i++ {
		n[2*i] = frame[i] >> 4
		n[2*i+1] = frame[i] & 0x0F
	}

	if d.iteration > 0 {
		for i := range n {
			if n[i] != d.memory[i] {
				// |diff| >= 1 so the saturated latch is 1
				d.latched[i] = 1
			}
		}
	}

	d.memory = n
	d.iteration++

	f := d.flagsLocked()
	if f.AllPressed() {
		d.doneOnce.Do(func() { close(d.done) })
	}
	return f
}

// Flags returns the current flags without feeding a frame.
func (d *Detector) Flags() Flags {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flagsLocked()
}

// Iteration is the number of frames seen.
func (d *Detector) Iteration() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.iteration
}

// Done is closed the first time all controls are latched.
func (d *Detector) Done() <-chan struct{} {
	return d.done
}

func (d *Detector) flagsLocked() Flags {
	var f Flags
	for i := range f {
		f[i] = d.latched[reservedCount+i] == 1
	}
	return f
}
