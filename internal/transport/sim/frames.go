// internal/transport/sim/frames.go
package sim

import "github.com/tamzrod/ble-fixture/internal/buttons"

const frameBytes = buttons.Channels / 2

// Press returns a copy of frame with control c's counter advanced by one.
func Press(frame []byte, c int) []byte {
	out := make([]byte, frameBytes)
	copy(out, frame)

	ch := c + 2
	b := out[ch/2]
	if ch%2 == 0 {
		out[ch/2] = ((b>>4+1)&0x0F)<<4 | b&0x0F
	} else {
		out[ch/2] = b&0xF0 | (b&0x0F+1)&0x0F
	}
	return out
}

// PressSequence returns a baseline frame followed by one frame per
// listed control, each pressing that control once.
func PressSequence(controls ...int) [][]byte {
	frame := make([]byte, frameBytes)
	out := [][]byte{frame}
	for _, c := range controls {
		frame = Press(frame, c)
		out = append(out, frame)
	}
	return out
}

// Sweep presses every control in order.
func Sweep() [][]byte {
	all := make([]int, buttons.Controls)
	for i := range all {
		all[i] = i
	}
	return PressSequence(all...)
}
