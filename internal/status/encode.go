// internal/status/encode.go
package status

// Encode converts a Snapshot and pre-encoded name registers into a full
// station status block. Layout is protocol-locked.
// No IO. No side effects.
func Encode(s Snapshot, nameRegs []uint16) []uint16 {
	regs := make([]uint16, SlotsPerStation)

	regs[SlotHealth] = s.Health
	regs[SlotLastFailure] = s.LastFailure
	regs[SlotPhase] = s.Phase
	regs[SlotPassed] = s.Passed
	regs[SlotFailed] = s.Failed

	// Slots 5..11 are RESERVED → left as zero

	for i := 0; i < SlotStationNameSlots && i < len(nameRegs); i++ {
		regs[SlotStationNameStart+i] = nameRegs[i]
	}

	return regs
}

// Fields returns the live slots of s in slot order, for incremental writes.
func Fields(s Snapshot) [SlotFailed + 1]uint16 {
	return [...]uint16{
		SlotHealth:      s.Health,
		SlotLastFailure: s.LastFailure,
		SlotPhase:       s.Phase,
		SlotPassed:      s.Passed,
		SlotFailed:      s.Failed,
	}
}

// EncodeName packs up to 16 ASCII characters into 8 registers.
// Each register stores two ASCII bytes in big-endian order.
func EncodeName(name string) []uint16 {
	out := make([]uint16, SlotStationNameSlots)

	b := []byte(name)
	if len(b) > StationNameMaxChars {
		b = b[:StationNameMaxChars]
	}

	// sanitize to printable ASCII
	for i := 0; i < len(b); i++ {
		if b[i] < 0x20 || b[i] > 0x7E {
			b[i] = '?'
		}
	}

	for i := 0; i < StationNameMaxChars; i += 2 {
		var hi, lo byte
		if i < len(b) {
			hi = b[i]
		}
		if i+1 < len(b) {
			lo = b[i+1]
		}
		out[i/2] = uint16(hi)<<8 | uint16(lo)
	}

	return out
}
