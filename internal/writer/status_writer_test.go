// internal/writer/status_writer_test.go
package writer

import (
	"errors"
	"testing"

	"github.com/tamzrod/ble-fixture/internal/config"
	"github.com/tamzrod/ble-fixture/internal/status"
)

type regWrite struct {
	addr uint16
	regs []uint16
}

type fakeBlockClient struct {
	writes []regWrite
	failOn int // 1-based write index to fail, 0 = never
}

func (f *fakeBlockClient) WriteBlock(addr uint16, regs []uint16) error {
	f.writes = append(f.writes, regWrite{addr: addr, regs: append([]uint16(nil), regs...)})
	if f.failOn == len(f.writes) {
		return errors.New("plc unreachable")
	}
	return nil
}

func (f *fakeBlockClient) last() regWrite {
	return f.writes[len(f.writes)-1]
}

func testPlan() Plan {
	return Plan{Endpoint: "plc:502", UnitID: 3, BaseSlot: 2, Name: "EOL-01"}
}

func TestStationNameWrittenOnFullAssertOnly(t *testing.T) {
	cli := &fakeBlockClient{}
	sw := NewStationWriter(testPlan(), cli)

	// ---- first write: FULL ASSERT ----
	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthIdle}); err != nil {
		t.Fatalf("initial full assert failed: %v", err)
	}

	w := cli.last()
	if len(w.regs) != status.SlotsPerStation {
		t.Fatalf("expected full block write (%d regs), got %d", status.SlotsPerStation, len(w.regs))
	}
	if w.addr != 2*status.SlotsPerStation {
		t.Fatalf("unexpected target addr=%d", w.addr)
	}

	want := status.EncodeName("EOL-01")
	for i := 0; i < status.SlotStationNameSlots; i++ {
		slot := status.SlotStationNameStart + i
		if w.regs[slot] != want[i] {
			t.Fatalf("name slot %d mismatch: got=%d want=%d", slot, w.regs[slot], want[i])
		}
	}

	// ---- second write: INCREMENTAL ONLY ----
	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthTesting, Phase: 3}); err != nil {
		t.Fatalf("incremental write failed: %v", err)
	}

	if len(cli.writes) != 3 {
		t.Fatalf("expected 2 single-slot writes, got %d total writes", len(cli.writes))
	}
	for _, w := range cli.writes[1:] {
		if len(w.regs) != 1 {
			t.Fatalf("name should not be rewritten on incremental update")
		}
	}
}

func TestIncrementalWritesOnlyChangedSlots(t *testing.T) {
	cli := &fakeBlockClient{}
	sw := NewStationWriter(testPlan(), cli)

	_ = sw.WriteStatus(status.Snapshot{Health: status.HealthTesting, Passed: 4})
	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthTesting, Passed: 5}); err != nil {
		t.Fatalf("write: %v", err)
	}

	w := cli.last()
	expectedAddr := uint16(2*status.SlotsPerStation + status.SlotPassed)
	if w.addr != expectedAddr || len(w.regs) != 1 || w.regs[0] != 5 {
		t.Fatalf("unexpected write: %+v (want addr %d)", w, expectedAddr)
	}

	n := len(cli.writes)
	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthTesting, Passed: 5}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(cli.writes) != n {
		t.Fatalf("unchanged snapshot should not write")
	}
}

func TestFailureForcesFullReassert(t *testing.T) {
	cli := &fakeBlockClient{}
	sw := NewStationWriter(testPlan(), cli)

	_ = sw.WriteStatus(status.Snapshot{Health: status.HealthIdle})

	cli.failOn = 2
	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthFail, LastFailure: 5}); err == nil {
		t.Fatalf("expected error from failed slot write")
	}

	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthFail, LastFailure: 5}); err != nil {
		t.Fatalf("recovery write failed: %v", err)
	}
	if len(cli.last().regs) != status.SlotsPerStation {
		t.Fatalf("expected full block after failure, got %d regs", len(cli.last().regs))
	}
}

func TestFirstWriteFailureRetriesFull(t *testing.T) {
	cli := &fakeBlockClient{failOn: 1}
	sw := NewStationWriter(testPlan(), cli)

	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthIdle}); err == nil {
		t.Fatalf("expected error")
	}
	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthIdle}); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if len(cli.last().regs) != status.SlotsPerStation {
		t.Fatalf("retry should be a full block")
	}
}

func TestMissingClient(t *testing.T) {
	sw := NewStationWriter(testPlan(), nil)
	if err := sw.WriteStatus(status.Snapshot{}); err == nil {
		t.Fatalf("expected error for missing client")
	}

	var nilWriter *StationWriter
	if err := nilWriter.WriteStatus(status.Snapshot{}); err == nil {
		t.Fatalf("expected error for disabled writer")
	}
}

func TestBuildPlan(t *testing.T) {
	p, err := BuildPlan(config.StatusConfig{Endpoint: "plc:502", UnitID: 9, BaseSlot: 1, Name: "ST"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if p.UnitID != 9 || p.BaseSlot != 1 || p.Name != "ST" {
		t.Fatalf("unexpected plan: %+v", p)
	}

	if _, err := BuildPlan(config.StatusConfig{}); err == nil {
		t.Fatalf("expected error for missing endpoint")
	}
}
