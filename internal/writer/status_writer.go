// internal/writer/status_writer.go
package writer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/ble-fixture/internal/status"
)

// blockClient is the exact contract the status writer uses.
// The PLC unit id is bound when the client is dialed.
type blockClient interface {
	WriteBlock(addr uint16, regs []uint16) error
}

// StatusWriter is the delivery-only contract for station status.
// It receives a snapshot and writes it verbatim.
// No logic, no interpretation.
type StatusWriter interface {
	WriteStatus(s status.Snapshot) error
}

// Plan locates one station's status block on a PLC endpoint.
type Plan struct {
	Endpoint string
	UnitID   uint8
	BaseSlot uint16
	Name     string
}

// StationWriter is the concrete implementation used by the fixture.
type StationWriter struct {
	plan Plan
	cli  blockClient

	needFull bool
	last     status.Snapshot
	nameRegs []uint16
}

var _ StatusWriter = (*StationWriter)(nil)

// NewStationWriter builds a status writer for one station block.
func NewStationWriter(plan Plan, cli blockClient) *StationWriter {
	return &StationWriter{
		plan:     plan,
		cli:      cli,
		needFull: true, // full re-assert on first successful write
		last:     status.Snapshot{Health: status.HealthUnknown},
		nameRegs: status.EncodeName(plan.Name),
	}
}

// WriteStatus delivers a station status snapshot into PLC memory.
// On any write failure, the next call re-asserts the full block.
func (sw *StationWriter) WriteStatus(s status.Snapshot) error {
	if sw == nil {
		return errors.New("status writer: disabled")
	}
	if sw.cli == nil {
		return fmt.Errorf("status writer: missing client for endpoint %s", sw.plan.Endpoint)
	}

	baseAddr := sw.baseAddr()

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if sw.needFull {
		regs := status.Encode(s, sw.nameRegs)

		if err := sw.cli.WriteBlock(baseAddr, regs); err != nil {
			sw.needFull = true
			return fmt.Errorf("status writer: full block write failed: %w", err)
		}

		sw.needFull = false
		sw.last = s
		return nil
	}

	// ------------------------------------------------------------
	// Incremental: only slots whose value changed
	// ------------------------------------------------------------
	prev := status.Fields(sw.last)
	next := status.Fields(s)

	var errs []string
	for slot := range next {
		if prev[slot] == next[slot] {
			continue
		}
		if err := sw.cli.WriteBlock(baseAddr+uint16(slot), []uint16{next[slot]}); err != nil {
			errs = append(errs, fmt.Sprintf("slot%d write failed: %v", slot, err))
		}
	}

	if len(errs) > 0 {
		// Any partial failure introduces doubt; re-assert on next call.
		sw.needFull = true
		return errors.New("status writer: " + strings.Join(errs, " | "))
	}

	sw.last = s
	return nil
}

func (sw *StationWriter) baseAddr() uint16 {
	// Each station owns a fixed SlotsPerStation block.
	return sw.plan.BaseSlot * status.SlotsPerStation
}
