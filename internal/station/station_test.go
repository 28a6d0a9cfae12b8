// internal/station/station_test.go
package station

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/ble-fixture/internal/catalog"
	"github.com/tamzrod/ble-fixture/internal/ledger"
	"github.com/tamzrod/ble-fixture/internal/protocol"
	"github.com/tamzrod/ble-fixture/internal/serialno"
	"github.com/tamzrod/ble-fixture/internal/session"
	"github.com/tamzrod/ble-fixture/internal/status"
	"github.com/tamzrod/ble-fixture/internal/transport/sim"
)

// ------------------------------------------------------------
// fakes
// ------------------------------------------------------------

type memCounter struct{ v int }

func (c *memCounter) Current() int { return c.v }

func (c *memCounter) Advance() (int, error) {
	c.v++
	return c.v, nil
}

type recordingStatus struct {
	mu    sync.Mutex
	snaps []status.Snapshot
	err   error
}

func (s *recordingStatus) WriteStatus(snap status.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
	return s.err
}

func (s *recordingStatus) phases() []uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uint16
	for _, sn := range s.snaps {
		out = append(out, sn.Phase)
	}
	return out
}

// ------------------------------------------------------------
// helpers
// ------------------------------------------------------------

var march2025 = time.Date(2025, time.March, 14, 10, 30, 0, 0, time.UTC)

const goodSerial = "SQC2500074781"

func square(t *testing.T) catalog.Device {
	t.Helper()
	d, err := catalog.Lookup("SQUARE")
	require.NoError(t, err)
	return d
}

func sessionConfig(v session.Variant) session.Config {
	return session.Config{
		Variant:        v,
		DeviceName:     "SQUARE",
		MinRSSI:        -80,
		ScanTimeout:    time.Second,
		ConnectTimeout: time.Second,
		PressWindow:    2 * time.Second,
		HWVersion:      3,
		Batch:          5,
		Producer:       2,
		Manufacturer:   "Elite",
		SWTesting:      "1.0.0.0",
	}
}

func goodUnit() *sim.Unit {
	u := sim.NewUnit("AA:BB:CC:DD:EE:01", "SQUARE", -50)
	u.Frames = sim.Sweep()
	u.EEPROM[protocol.Batch.ID] = 5
	u.EEPROM[protocol.Producer.ID] = 2
	return u
}

type rig struct {
	runner *Runner
	ledger *ledger.Ledger
	status *recordingStatus
	unit   *sim.Unit
}

func newRig(t *testing.T, cfg session.Config, u *sim.Unit) *rig {
	t.Helper()
	rg := &rig{
		ledger: ledger.New(filepath.Join(t.TempDir(), "sap_log.txt")),
		status: &recordingStatus{},
		unit:   u,
	}

	r, err := New(cfg, session.Deps{
		Transport: sim.New(u),
		Ledger:    rg.ledger,
		Counter:   &memCounter{v: 42},
		Log:       zerolog.Nop(),
	}, Options{
		Device:  square(t),
		History: rg.ledger,
		Status:  rg.status,
		Log:     zerolog.Nop(),
		Now:     func() time.Time { return march2025 },
	})
	require.NoError(t, err)
	rg.runner = r
	return rg
}

// ------------------------------------------------------------
// scenarios
// ------------------------------------------------------------

func TestRunOnce_PassUpdatesStatus(t *testing.T) {
	rg := newRig(t, sessionConfig(session.VariantIdentity), goodUnit())
	rg.runner.Start()

	out, err := rg.runner.RunOnce(context.Background(), "  sqc2500074781 ")
	require.NoError(t, err)
	assert.True(t, out.Passed())
	assert.Equal(t, goodSerial, out.Serial)
	assert.False(t, out.Duplicate)

	snap := rg.runner.Snapshot()
	assert.Equal(t, status.HealthPass, snap.Health)
	assert.Equal(t, uint16(session.PhaseDone), snap.Phase)
	assert.Equal(t, uint16(1), snap.Passed)

	passed, failed := rg.runner.Counts()
	assert.Equal(t, 1, passed)
	assert.Zero(t, failed)

	phases := rg.status.phases()
	assert.Contains(t, phases, uint16(session.PhaseButtonTest))
	assert.Contains(t, phases, uint16(session.PhaseProgramming))
	assert.Equal(t, status.HealthIdle, rg.status.snaps[0].Health)

	found, err := rg.ledger.ContainsSerial(goodSerial)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestRunOnce_FailureCountsAndReason(t *testing.T) {
	u := goodUnit()
	u.Frames = sim.PressSequence(0, 1, 2)

	cfg := sessionConfig(session.VariantIdentity)
	cfg.PressWindow = 50 * time.Millisecond
	r := newRig(t, cfg, u).runner

	out, err := r.RunOnce(context.Background(), goodSerial)
	require.Error(t, err)
	assert.False(t, out.Passed())
	assert.Equal(t, session.ReasonButtonsIncomplete, out.Result.Reason)

	snap := r.Snapshot()
	assert.Equal(t, status.HealthFail, snap.Health)
	assert.Equal(t, uint16(session.ReasonButtonsIncomplete), snap.LastFailure)
	assert.Equal(t, uint16(1), snap.Failed)
	assert.Zero(t, snap.Passed)
}

func TestRunOnce_InvalidSerialRefused(t *testing.T) {
	rg := newRig(t, sessionConfig(session.VariantIdentity), goodUnit())

	out, err := rg.runner.RunOnce(context.Background(), "SQC2500074780")
	require.Error(t, err)
	assert.True(t, out.Refused)
	assert.True(t, out.Issues.Has(serialno.SeverityError, serialno.FieldChecksum))
	assert.Zero(t, rg.unit.Subscribes(protocol.CharButtons), "no session should start")

	snap := rg.runner.Snapshot()
	assert.Equal(t, status.HealthFail, snap.Health)
	assert.Equal(t, uint16(session.ReasonValidationFailed), snap.LastFailure)
	assert.Zero(t, snap.Failed, "refused entries are not counted as units")
}

func TestRunOnce_EmptyEntry(t *testing.T) {
	rg := newRig(t, sessionConfig(session.VariantIdentity), goodUnit())

	out, err := rg.runner.RunOnce(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrNoEntry)
	assert.True(t, out.Refused)
	assert.Empty(t, rg.status.snaps)
}

func TestRunOnce_DuplicateIsWarningOnly(t *testing.T) {
	rg := newRig(t, sessionConfig(session.VariantIdentity), goodUnit())

	require.NoError(t, rg.ledger.Append(ledger.Row{
		At: march2025, Serial: goodSerial, AntID: 7, Result: ledger.ResultOK,
	}))

	out, err := rg.runner.RunOnce(context.Background(), goodSerial)
	require.NoError(t, err)
	assert.True(t, out.Duplicate)
	assert.True(t, out.Issues.Has(serialno.SeverityWarning, serialno.FieldDuplicate))
	assert.True(t, out.Passed())
}

func TestRunOnce_ProducerVariantIgnoresEntry(t *testing.T) {
	rg := newRig(t, sessionConfig(session.VariantProducer), goodUnit())

	out, err := rg.runner.RunOnce(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, out.Passed())
	assert.Empty(t, out.Serial)
	assert.Equal(t, int64(5), rg.unit.Value(protocol.Batch))
}

func TestRunOnce_PublishFailureDoesNotChangeOutcome(t *testing.T) {
	rg := newRig(t, sessionConfig(session.VariantIdentity), goodUnit())
	rg.status.err = errors.New("plc down")

	out, err := rg.runner.RunOnce(context.Background(), goodSerial)
	require.NoError(t, err)
	assert.True(t, out.Passed())
}

func TestNew_ChainsCallerPhaseHook(t *testing.T) {
	var seen []session.Phase
	u := goodUnit()

	r, err := New(sessionConfig(session.VariantProducer), session.Deps{
		Transport: sim.New(u),
		Log:       zerolog.Nop(),
		Hooks:     session.Hooks{OnPhase: func(p session.Phase) { seen = append(seen, p) }},
	}, Options{Device: square(t), Log: zerolog.Nop()})
	require.NoError(t, err)

	_, err = r.RunOnce(context.Background(), "")
	require.NoError(t, err)
	require.NotEmpty(t, seen)
	assert.Equal(t, session.PhaseDone, seen[len(seen)-1])
}

func TestNew_PropagatesControllerError(t *testing.T) {
	_, err := New(sessionConfig(session.VariantIdentity), session.Deps{
		Transport: sim.New(),
		Log:       zerolog.Nop(),
	}, Options{Device: square(t)})
	assert.ErrorIs(t, err, session.ErrMissingCounter)
}
