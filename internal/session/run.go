// internal/session/run.go
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/ble-fixture/internal/buttons"
	"github.com/tamzrod/ble-fixture/internal/catalog"
	"github.com/tamzrod/ble-fixture/internal/ledger"
	"github.com/tamzrod/ble-fixture/internal/protocol"
	"github.com/tamzrod/ble-fixture/internal/serialno"
	"github.com/tamzrod/ble-fixture/internal/transport"
)

// run is the in-flight state of one session. Never shared.
type run struct {
	cfg  Config
	deps Deps
	id   *serialno.Identifier
	log  zerolog.Logger

	phase Phase
	conn  transport.Connection
	res   Result

	written []written
}

type written struct {
	param protocol.Param
	value int64
	read  int64
}

func (r *run) enter(p Phase) {
	r.phase = p
	r.log.Debug().Stringer("phase", p).Msg("phase")
	if r.deps.Hooks.OnPhase != nil {
		r.deps.Hooks.OnPhase(p)
	}
}

// fail builds the session error for the current phase. Context
// cancellation always wins over the given reason.
func (r *run) fail(ctx context.Context, reason Reason, err error) *Error {
	if ctx.Err() != nil {
		reason = ReasonAborted
		if err == nil {
			err = ctx.Err()
		}
	}
	return &Error{Phase: r.phase, Reason: reason, Err: err}
}

func (r *run) execute(ctx context.Context) error {
	if r.cfg.Variant == VariantIdentity && r.id == nil {
		return r.fail(ctx, ReasonValidationFailed, ErrNoSerial)
	}

	r.enter(PhaseDiscovering)
	if err := r.discover(ctx); err != nil {
		return err
	}

	r.enter(PhaseConnecting)
	if err := r.connect(ctx); err != nil {
		return err
	}

	r.enter(PhaseButtonTest)
	if err := r.buttonTest(ctx); err != nil {
		return err
	}

	r.enter(PhaseProgramming)
	if err := r.program(ctx); err != nil {
		return err
	}

	r.enter(PhaseVerifying)
	if err := r.verify(ctx); err != nil {
		return err
	}

	r.enter(PhaseReporting)
	r.res.ReportErr = r.report(ledger.ResultOK)

	r.enter(PhasePoweringDown)
	r.powerDown(ctx)

	return nil
}

// ------------------------------------------------------------
// Phases
// ------------------------------------------------------------

func (r *run) discover(ctx context.Context) error {
	f := transport.Filter{Name: r.cfg.DeviceName, MinRSSI: r.cfg.MinRSSI}

	cands, err := r.deps.Transport.Discover(ctx, r.cfg.ScanTimeout, f)
	if err != nil {
		return r.fail(ctx, ReasonTransportFailure, err)
	}

	best, ok := transport.Select(cands, f)
	if !ok {
		return r.fail(ctx, ReasonNoDeviceFound,
			fmt.Errorf("%w: %q with rssi >= %d among %d seen", ErrNoDevice, f.Name, f.MinRSSI, len(cands)))
	}

	r.res.Address = best.Address
	r.log.Info().Str("address", best.Address).Int("rssi", best.RSSI).Msg("unit selected")
	return nil
}

func (r *run) connect(ctx context.Context) error {
	conn, err := r.deps.Transport.Connect(ctx, r.res.Address, r.cfg.ConnectTimeout)
	if err != nil {
		return r.fail(ctx, ReasonConnectionLost, err)
	}
	r.conn = conn

	if !conn.Connected() {
		return r.fail(ctx, ReasonConnectionLost, ErrLinkDropped)
	}
	return nil
}

// buttonTest unsubscribes exactly once whichever way the wait ends.
func (r *run) buttonTest(ctx context.Context) error {
	det := buttons.New()
	onButtons := r.deps.Hooks.OnButtons

	err := r.conn.Subscribe(protocol.CharButtons, func(frame []byte) {
		f := det.OnFrame(frame)
		if onButtons != nil {
			onButtons(f)
		}
	})
	if err != nil {
		return r.fail(ctx, ReasonTransportFailure, err)
	}

	timer := time.NewTimer(r.cfg.PressWindow)
	defer timer.Stop()

	var waitErr *Error
	select {
	case <-det.Done():
	case <-timer.C:
		waitErr = r.fail(ctx, ReasonButtonsIncomplete, r.pressTimeout(det.Flags()))
	case <-ctx.Done():
		waitErr = r.fail(ctx, ReasonAborted, ctx.Err())
	}

	unsubErr := r.conn.Unsubscribe(protocol.CharButtons)
	r.res.Buttons = det.Flags()

	if waitErr != nil {
		if unsubErr != nil {
			r.log.Warn().Err(unsubErr).Msg("unsubscribe buttons")
		}
		return waitErr
	}
	if unsubErr != nil {
		return r.fail(ctx, ReasonTransportFailure, unsubErr)
	}

	r.log.Info().Msg("all controls pressed")
	return nil
}

func (r *run) pressTimeout(f buttons.Flags) error {
	missing := f.Missing()
	labels := make([]string, 0, len(missing))
	for _, i := range missing {
		labels = append(labels, catalog.ControlLabels[i])
	}
	return fmt.Errorf("%w: %d of %d pressed, missing %s",
		ErrPressTimeout, f.Count(), buttons.Controls, strings.Join(labels, ", "))
}

func (r *run) program(ctx context.Context) (err error) {
	fw, err := r.conn.Read(ctx, protocol.CharSoftwareRevision)
	if err != nil {
		return r.fail(ctx, ReasonTransportFailure, err)
	}
	r.res.Firmware = strings.TrimRight(string(fw), "\x00")

	if err := r.conn.Subscribe(protocol.CharEEPROMResult, r.onEEPROMResult); err != nil {
		return r.fail(ctx, ReasonTransportFailure, err)
	}
	defer func() {
		if uerr := r.conn.Unsubscribe(protocol.CharEEPROMResult); uerr != nil && err == nil {
			err = r.fail(ctx, ReasonTransportFailure, uerr)
		}
	}()

	switch r.cfg.Variant {
	case VariantProducer:
		r.res.Batch, r.res.Producer = r.cfg.Batch, r.cfg.Producer
		return r.writeFields(ctx, []written{
			{param: protocol.Batch, value: int64(r.cfg.Batch)},
			{param: protocol.Producer, value: int64(r.cfg.Producer)},
		})

	default:
		// batch and producer were set by the producer station
		batch, err := r.readParam(ctx, protocol.Batch)
		if err != nil {
			return err
		}
		producer, err := r.readParam(ctx, protocol.Producer)
		if err != nil {
			return err
		}
		r.res.Batch, r.res.Producer = int(batch), int(producer)

		r.res.AntID = r.deps.Counter.Current()
		return r.writeFields(ctx, []written{
			{param: protocol.HWVersion, value: int64(r.cfg.HWVersion)},
			{param: protocol.AntID, value: int64(r.res.AntID)},
		})
	}
}

func (r *run) writeFields(ctx context.Context, fields []written) error {
	for _, w := range fields {
		if err := r.writeParam(ctx, w.param, w.value); err != nil {
			return err
		}
		if err := r.settle(ctx); err != nil {
			return err
		}
		v, err := r.readParam(ctx, w.param)
		if err != nil {
			return err
		}
		w.read = v
		r.written = append(r.written, w)
	}
	return nil
}

func (r *run) verify(ctx context.Context) error {
	var mm MismatchError
	for _, w := range r.written {
		if w.read != w.value {
			mm.Fields = append(mm.Fields, Mismatch{Param: w.param, Wrote: w.value, Read: w.read})
		}
	}
	if len(mm.Fields) > 0 {
		return r.fail(ctx, ReasonEepromVerifyMismatch, &mm)
	}
	r.log.Info().Int("fields", len(r.written)).Msg("eeprom verified")
	return nil
}

// report appends a ledger row and, for a passed identity session,
// advances the counter. Producer stations keep no ledger.
func (r *run) report(result string) error {
	if r.cfg.Variant != VariantIdentity {
		return nil
	}

	row := ledger.Row{
		At:           r.deps.Now(),
		Serial:       r.res.Serial,
		AntID:        r.res.AntID,
		FWVersion:    r.res.Firmware,
		HWVersion:    r.cfg.HWVersion,
		SWTesting:    r.cfg.SWTesting,
		Batch:        r.res.Batch,
		Producer:     r.res.Producer,
		Manufacturer: r.cfg.Manufacturer,
		BLEAddr:      r.res.Address,
		Result:       result,
	}

	var errs []error
	if err := r.deps.Ledger.Append(row); err != nil {
		errs = append(errs, err)
	}

	// the unit now carries this identity even if the row was lost
	if result == ledger.ResultOK {
		next, err := r.deps.Counter.Advance()
		if err != nil {
			errs = append(errs, err)
		} else {
			r.log.Info().Int("next_ant_id", next).Msg("identity counter advanced")
		}
	}
	return errors.Join(errs...)
}

func (r *run) powerDown(ctx context.Context) {
	err := r.conn.Write(ctx, protocol.CharControlPoint, protocol.PowerDownCommand(), false)
	if err != nil {
		r.res.PowerDownErr = err
		r.log.Warn().Err(err).Msg("power down")
	}
}

// finish closes the link and fills the outcome.
func (r *run) finish(err error) {
	if r.conn != nil {
		if derr := r.conn.Disconnect(); derr != nil {
			r.log.Warn().Err(derr).Msg("disconnect")
		}
	}

	if err != nil {
		var se *Error
		if errors.As(err, &se) {
			r.res.Reason = se.Reason
		}
		r.res.Err = err

		if r.cfg.LogFailures && r.res.Address != "" {
			r.res.ReportErr = r.report(ledger.ResultErr)
		}
		r.enter(PhaseFailed)
	} else {
		r.enter(PhaseDone)
	}

	r.res.Phase = r.phase
	r.res.Duration = r.deps.Now().Sub(r.res.Started)

	var ev *zerolog.Event
	if err != nil {
		ev = r.log.Warn().Err(err).Stringer("reason", r.res.Reason)
	} else {
		ev = r.log.Info()
	}
	ev.Str("serial", r.res.Serial).
		Str("address", r.res.Address).
		Bool("passed", r.res.Passed()).
		Dur("duration", r.res.Duration).
		Msg("session finished")
}

// ------------------------------------------------------------
// EEPROM transactions
// ------------------------------------------------------------

func (r *run) writeParam(ctx context.Context, p protocol.Param, v int64) error {
	req, err := protocol.BuildWrite(p, v, p.Width)
	if err != nil {
		return r.fail(ctx, ReasonProtocolFailure, err)
	}
	if err := r.conn.Write(ctx, protocol.CharEEPROMWrite, req, true); err != nil {
		return r.fail(ctx, ReasonTransportFailure, fmt.Errorf("write %s: %w", p, err))
	}
	r.log.Debug().Stringer("param", p).Int64("value", v).Msg("eeprom write")
	return nil
}

func (r *run) readParam(ctx context.Context, p protocol.Param) (int64, error) {
	if err := r.conn.Write(ctx, protocol.CharEEPROMWrite, protocol.BuildRead(p), true); err != nil {
		return 0, r.fail(ctx, ReasonTransportFailure, fmt.Errorf("request %s: %w", p, err))
	}
	frame, err := r.conn.Read(ctx, protocol.CharEEPROMRead)
	if err != nil {
		return 0, r.fail(ctx, ReasonTransportFailure, fmt.Errorf("read %s: %w", p, err))
	}
	v, err := protocol.ParseResponse(frame)
	if err != nil {
		return 0, r.fail(ctx, ReasonProtocolFailure, fmt.Errorf("read %s: %w", p, err))
	}
	r.log.Debug().Stringer("param", p).Int64("value", v).Msg("eeprom read")
	return v, nil
}

func (r *run) settle(ctx context.Context) error {
	if r.cfg.SettleDelay <= 0 {
		return nil
	}
	t := time.NewTimer(r.cfg.SettleDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return r.fail(ctx, ReasonAborted, ctx.Err())
	}
}

func (r *run) onEEPROMResult(data []byte) {
	r.log.Debug().Hex("data", data).Msg("eeprom result")
}
