// internal/station/station.go
package station

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/ble-fixture/internal/catalog"
	"github.com/tamzrod/ble-fixture/internal/serialno"
	"github.com/tamzrod/ble-fixture/internal/session"
	"github.com/tamzrod/ble-fixture/internal/status"
	"github.com/tamzrod/ble-fixture/internal/writer"
)

// ErrNoEntry is returned when the identity variant receives an empty entry.
var ErrNoEntry = errors.New("station: no serial entered")

// History answers whether a serial was already reported.
type History interface {
	ContainsSerial(serial string) (bool, error)
}

// Options are the station-level collaborators. All are optional except
// Device.
type Options struct {
	Device  catalog.Device
	History History
	Status  writer.StatusWriter
	Log     zerolog.Logger
	Now     func() time.Time
}

// Outcome is what one operator entry produced.
type Outcome struct {
	Serial    string
	Issues    serialno.Issues
	Duplicate bool

	// Refused is set when the entry never reached a session.
	Refused bool
	Result  session.Result
}

// Passed reports a session that ran and passed.
func (o Outcome) Passed() bool {
	return !o.Refused && o.Result.Passed()
}

// Runner turns operator entries into sessions and keeps the station
// status block current.
type Runner struct {
	ctrl    *session.Controller
	variant session.Variant
	opts    Options
	log     zerolog.Logger

	mu   sync.Mutex
	snap status.Snapshot
}

// New builds the session controller with the runner's phase hook chained
// in front of any hook already present in deps.
func New(cfg session.Config, deps session.Deps, opts Options) (*Runner, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if deps.Now == nil {
		deps.Now = opts.Now
	}

	r := &Runner{
		variant: cfg.Variant,
		opts:    opts,
		log:     opts.Log.With().Str("component", "station").Logger(),
		snap:    status.Snapshot{Health: status.HealthUnknown},
	}

	next := deps.Hooks.OnPhase
	deps.Hooks.OnPhase = func(p session.Phase) {
		r.onPhase(p)
		if next != nil {
			next(p)
		}
	}

	ctrl, err := session.New(cfg, deps)
	if err != nil {
		return nil, err
	}
	r.ctrl = ctrl
	return r, nil
}

// Start publishes the idle state with a full block write.
func (r *Runner) Start() {
	r.update(func(s *status.Snapshot) {
		s.Health = status.HealthIdle
		s.Phase = uint16(session.PhaseIdle)
	})
}

// Counts returns units passed and failed since start.
func (r *Runner) Counts() (passed, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.snap.Passed), int(r.snap.Failed)
}

// Snapshot returns the current station status.
func (r *Runner) Snapshot() status.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// RunOnce handles one operator entry. In the identity variant raw must be
// a serial for the configured device; in the producer variant any entry
// starts a session and raw is ignored.
func (r *Runner) RunOnce(ctx context.Context, raw string) (Outcome, error) {
	var (
		out Outcome
		id  *serialno.Identifier
	)

	if r.variant == session.VariantIdentity {
		ident, err := r.admit(&out, raw)
		if err != nil {
			return out, err
		}
		id = &ident
	}

	r.update(func(s *status.Snapshot) {
		s.Health = status.HealthTesting
		s.Phase = uint16(session.PhaseIdle)
	})

	out.Result = r.ctrl.Run(ctx, id)

	r.update(func(s *status.Snapshot) {
		s.Phase = uint16(out.Result.Phase)
		if out.Result.Passed() {
			s.Health = status.HealthPass
			s.Passed++
			return
		}
		s.Health = status.HealthFail
		s.LastFailure = uint16(out.Result.Reason)
		s.Failed++
	})

	return out, out.Result.Err
}

// admit validates the entry and checks it against the history. It fills
// out and returns an error when the entry is refused.
func (r *Runner) admit(out *Outcome, raw string) (serialno.Identifier, error) {
	out.Serial = serialno.Normalize(raw)
	if out.Serial == "" {
		out.Refused = true
		return serialno.Identifier{}, ErrNoEntry
	}

	id, issues := serialno.Validate(out.Serial, r.opts.Device, r.opts.Now())

	if r.opts.History != nil {
		dup, err := r.opts.History.ContainsSerial(out.Serial)
		switch {
		case err != nil:
			r.log.Warn().Err(err).Msg("history lookup")
		case dup:
			out.Duplicate = true
			issues.Warn(serialno.FieldDuplicate, "serial already registered")
		}
	}
	out.Issues = issues

	for _, w := range issues.Warnings() {
		r.log.Warn().Str("serial", out.Serial).Str("field", string(w.Field)).Msg(w.Message)
	}

	if err := issues.Err(); err != nil {
		out.Refused = true
		r.log.Error().Err(err).Str("serial", out.Serial).Msg("serial refused")
		r.update(func(s *status.Snapshot) {
			s.Health = status.HealthFail
			s.LastFailure = uint16(session.ReasonValidationFailed)
		})
		return serialno.Identifier{}, fmt.Errorf("station: %w", err)
	}
	return id, nil
}

func (r *Runner) onPhase(p session.Phase) {
	if p.Terminal() {
		return
	}
	r.update(func(s *status.Snapshot) {
		s.Phase = uint16(p)
	})
}

// update applies fn to the snapshot and publishes the result.
// Publish failures are logged; the writer re-asserts on its next call.
func (r *Runner) update(fn func(*status.Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fn(&r.snap)

	if r.opts.Status == nil {
		return
	}
	if err := r.opts.Status.WriteStatus(r.snap); err != nil {
		r.log.Warn().Err(err).Msg("status publish")
	}
}
